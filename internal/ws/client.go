// Package ws adapts WebSocket connections to the room's event
// transport, handling read/write pumps and handshake authentication.
package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quietfloor/readingroom/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Client wraps a single WebSocket connection. Send and Close satisfy
// the room's transport contract: Send never blocks, Close is
// idempotent, and either may be called from any goroutine.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues an event for the write pump. Events are dropped when the
// buffer is full so one stalled client cannot back up the room.
func (c *Client) Send(ev model.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("marshaling event", slog.String("event", string(ev.Name)), slog.Any("error", err))
		return
	}

	select {
	case c.send <- payload:
	case <-c.done:
	default:
		c.logger.Warn("send buffer full, dropping event", slog.String("event", string(ev.Name)))
	}
}

// Close signals the write pump to send a close frame and tear the
// connection down. The read pump then unblocks with an error.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// readPump reads frames until the connection fails or closes, handing
// each payload to dispatch. It runs on the handler's goroutine.
func (c *Client) readPump(dispatch func(raw []byte)) {
	defer c.Close()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read error", slog.Any("error", err))
			}
			return
		}
		dispatch(raw)
	}
}

// writePump drains the send buffer and keeps the connection alive with
// pings. It owns all writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			// Flush whatever is already queued before closing so a
			// kicked_out notification reaches the client.
			for {
				select {
				case payload := <-c.send:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				default:
					_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

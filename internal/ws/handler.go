package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/quietfloor/readingroom/internal/api/apierr"
	apimiddleware "github.com/quietfloor/readingroom/internal/api/middleware"
	"github.com/quietfloor/readingroom/internal/dependencies/random"
	"github.com/quietfloor/readingroom/internal/model"
	"github.com/quietfloor/readingroom/internal/services/auth"
	"github.com/quietfloor/readingroom/internal/services/room"
)

// envelope is the client-to-server frame
type envelope struct {
	Event model.EventName `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler upgrades authenticated requests to WebSocket sessions and
// dispatches their events into the room.
type Handler struct {
	authService *auth.Service
	room        *room.Controller
	random      random.Random
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewHandler creates a WebSocket handler
func NewHandler(authService *auth.Service, roomController *room.Controller, rnd random.Random, logger *slog.Logger) *Handler {
	return &Handler{
		authService: authService,
		room:        roomController,
		random:      rnd,
		logger:      logger.With(slog.String("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The token is the access control; the API serves no
			// browser pages of its own.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles GET /ws. A valid login token is required before
// the upgrade; the session's identity is fixed from that token.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := apimiddleware.ExtractToken(r)
	if token == "" {
		apierr.WriteError(w, apierr.NewUnauthorizedError())
		return
	}

	session, err := h.authService.ValidateToken(token)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	connID := model.ConnID(h.random.ID("conn_"))
	logger := h.logger.With(slog.String("conn_id", string(connID)), slog.String("username", session.Account.Username))
	client := newClient(conn, logger)

	go client.writePump()

	identity := room.Identity{
		AccountID:  session.Account.ID,
		Username:   session.Account.Username,
		Role:       session.Account.Role,
		Reputation: session.Account.Reputation,
	}
	h.room.Join(r.Context(), connID, identity, client)

	client.readPump(func(raw []byte) {
		h.dispatch(r.Context(), connID, raw)
	})

	// The request context dies with the connection; leave processing
	// must still run.
	h.room.Leave(context.WithoutCancel(r.Context()), connID)
}

// dispatch routes one client frame to the room. Malformed frames and
// unknown events are dropped.
func (h *Handler) dispatch(ctx context.Context, connID model.ConnID, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Debug("dropping malformed frame", slog.String("conn_id", string(connID)))
		return
	}

	switch env.Event {
	case model.EventJoinChat:
		// Accepted for client compatibility. Identity was already
		// fixed from the token at handshake.

	case model.EventChatMessage:
		var p model.ChatMessageSendPayload
		if decode(env.Data, &p) && p.Text != "" {
			h.room.PostMessage(ctx, connID, p.Text)
		}

	case model.EventMessageReaction:
		var p model.ReactionPayload
		if decode(env.Data, &p) {
			h.room.React(ctx, connID, p.MsgID, p.Reaction)
		}

	case model.EventVoteMessage:
		var p model.VotePayload
		if decode(env.Data, &p) {
			h.room.Vote(ctx, connID, p.MsgID, p.VoteType)
		}

	case model.EventPrivateMessage:
		var p model.PrivateMessageSendPayload
		if decode(env.Data, &p) && p.Text != "" {
			h.room.PrivateMessage(ctx, connID, p.TargetID, p.Text)
		}

	case model.EventAdminAuth:
		var p model.AdminAuthPayload
		if decode(env.Data, &p) {
			h.room.AdminAuth(ctx, connID, p.PIN)
		}

	case model.EventAdminDeleteMsg:
		var p model.AdminDeletePayload
		if decode(env.Data, &p) {
			h.room.DeleteMessage(ctx, connID, p.MsgID)
		}

	case model.EventAdminKickUser:
		var p model.AdminKickPayload
		if decode(env.Data, &p) {
			h.room.KickConn(ctx, connID, p.TargetID)
		}

	case model.EventAdminPurgeAll:
		h.room.PurgeAll(ctx, connID)

	default:
		h.logger.Debug("dropping unknown event",
			slog.String("conn_id", string(connID)), slog.String("event", string(env.Event)))
	}
}

func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

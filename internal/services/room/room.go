package room

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quietfloor/readingroom/internal/dependencies/clock"
	"github.com/quietfloor/readingroom/internal/dependencies/random"
	"github.com/quietfloor/readingroom/internal/model"
	"github.com/quietfloor/readingroom/internal/storage"
)

const (
	// DefaultLedgerCapacity bounds the replayable message history
	DefaultLedgerCapacity = 100
	// DefaultMaxAdminAttempts is the failed shared-secret threshold
	DefaultMaxAdminAttempts = 3
	// DefaultKickGrace lets the kicked_out notification reach the
	// client before the transport is torn down
	DefaultKickGrace = 500 * time.Millisecond
	// DefaultReplyTimeout bounds the external generation call
	DefaultReplyTimeout = 30 * time.Second
)

// BotConnID is the synthetic roster id for the AI collaborator
const BotConnID model.ConnID = "bot"

// Outbound is the transport half of a connected session. Send must not
// block; a transport whose buffer is full drops the event. Close tears
// the connection down, which surfaces back as a Leave.
type Outbound interface {
	Send(ev model.Event)
	Close()
}

// Identity is the trusted identity extracted from a validated login
// token at handshake. Client-supplied display strings are not used.
type Identity struct {
	AccountID  model.AccountID
	Username   string
	Role       model.Role
	Reputation int
}

// Responder is the external AI collaborator consumed by the mention
// relay. Extract reports whether the text mentions the bot and returns
// the prompt with the mention token stripped.
type Responder interface {
	Name() string
	Extract(text string) (prompt string, ok bool)
	Reply(ctx context.Context, prompt string) (string, error)
}

// session is the ephemeral per-connection state
type session struct {
	connID        model.ConnID
	identity      Identity
	admin         model.AdminState
	adminAttempts int
	out           Outbound
}

func (s *session) isAdmin() bool {
	return s.admin.IsAdmin()
}

// Config holds configuration for the room controller
type Config struct {
	LedgerCapacity   int
	AdminPIN         string // shared secret; empty disables self-elevation
	MaxAdminAttempts int
	KickGrace        time.Duration
	ReplyTimeout     time.Duration
}

// DefaultConfig returns default room configuration
func DefaultConfig() Config {
	return Config{
		LedgerCapacity:   DefaultLedgerCapacity,
		MaxAdminAttempts: DefaultMaxAdminAttempts,
		KickGrace:        DefaultKickGrace,
		ReplyTimeout:     DefaultReplyTimeout,
	}
}

// Controller owns the session registry, the message ledger, and the
// moderation state machine. A single mutex serializes every handler's
// synchronous portion; broadcasts go out after the lock is released so
// a slow transport cannot stall state changes.
type Controller struct {
	storage   storage.Storage
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger
	cfg       Config
	responder Responder // nil when the AI collaborator is unconfigured

	mu        sync.Mutex
	sessions  map[model.ConnID]*session
	joinOrder []model.ConnID
	ledger    *ledger
}

// NewController creates a room controller. responder may be nil.
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	responder Responder,
	logger *slog.Logger,
) *Controller {
	if cfg.LedgerCapacity <= 0 {
		cfg.LedgerCapacity = DefaultLedgerCapacity
	}
	if cfg.MaxAdminAttempts <= 0 {
		cfg.MaxAdminAttempts = DefaultMaxAdminAttempts
	}
	if cfg.KickGrace < 0 {
		cfg.KickGrace = DefaultKickGrace
	}
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	return &Controller{
		storage:   storage,
		clock:     clock,
		random:    random,
		logger:    logger.With(slog.String("component", "room")),
		cfg:       cfg,
		responder: responder,
		sessions:  make(map[model.ConnID]*session),
		ledger:    newLedger(cfg.LedgerCapacity),
	}
}

// sessionLocked resolves a live session by connection id. The caller
// holds the mutex.
func (c *Controller) sessionLocked(connID model.ConnID) (*session, error) {
	sess, ok := c.sessions[connID]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return sess, nil
}

// adminSessionLocked resolves a live session and gates it on
// moderation rights. The caller holds the mutex.
func (c *Controller) adminSessionLocked(connID model.ConnID) (*session, error) {
	sess, err := c.sessionLocked(connID)
	if err != nil {
		return nil, err
	}
	if !sess.isAdmin() {
		return nil, model.ErrNotAuthorized
	}
	return sess, nil
}

// Join registers a session for a validated identity, announces it,
// rebroadcasts the roster, and replays the ledger to the new session.
func (c *Controller) Join(ctx context.Context, connID model.ConnID, identity Identity, out Outbound) {
	admin := model.NotAdmin
	if identity.Role == model.RoleMod {
		admin = model.DurableModerator
	}

	c.mu.Lock()
	c.sessions[connID] = &session{
		connID:   connID,
		identity: identity,
		admin:    admin,
		out:      out,
	}
	c.joinOrder = append(c.joinOrder, connID)

	sysMsg := c.appendSystemLocked(fmt.Sprintf("%s accessed the library catalog.", identity.Username))
	roster := c.rosterLocked()
	history := c.ledger.snapshot()
	outs := c.outsLocked()
	c.mu.Unlock()

	c.logger.Info("session joined",
		slog.String("conn_id", string(connID)),
		slog.String("username", identity.Username))

	broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
	broadcast(outs, model.Event{Name: model.EventUpdateRoster, Data: roster})
	out.Send(model.Event{Name: model.EventChatHistory, Data: history})
}

// Leave removes a session (voluntary disconnect, transport failure, or
// forced ejection) and rebroadcasts presence.
func (c *Controller) Leave(ctx context.Context, connID model.ConnID) {
	c.mu.Lock()
	sess, ok := c.sessions[connID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sessions, connID)
	for i, id := range c.joinOrder {
		if id == connID {
			c.joinOrder = append(c.joinOrder[:i], c.joinOrder[i+1:]...)
			break
		}
	}

	sysMsg := c.appendSystemLocked(fmt.Sprintf("%s disconnected from the catalog.", sess.identity.Username))
	roster := c.rosterLocked()
	outs := c.outsLocked()
	c.mu.Unlock()

	c.logger.Info("session left",
		slog.String("conn_id", string(connID)),
		slog.String("username", sess.identity.Username))

	broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
	broadcast(outs, model.Event{Name: model.EventUpdateRoster, Data: roster})
}

// Roster returns the current derived roster
func (c *Controller) Roster() []model.RosterEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rosterLocked()
}

// SessionCount returns the number of live sessions
func (c *Controller) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// History returns a copy of the current ledger contents
func (c *Controller) History() []model.LedgerEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ledger.snapshot()
}

// rosterLocked derives the roster from live sessions in join order,
// with the synthetic bot entry prepended when AI is configured.
func (c *Controller) rosterLocked() []model.RosterEntry {
	roster := make([]model.RosterEntry, 0, len(c.joinOrder)+1)
	if c.responder != nil {
		roster = append(roster, model.RosterEntry{
			ConnID:   BotConnID,
			Username: c.responder.Name(),
			IsBot:    true,
		})
	}
	for _, id := range c.joinOrder {
		sess, ok := c.sessions[id]
		if !ok {
			continue
		}
		roster = append(roster, model.RosterEntry{
			ConnID:     sess.connID,
			Username:   sess.identity.Username,
			IsAdmin:    sess.isAdmin(),
			Reputation: sess.identity.Reputation,
		})
	}
	return roster
}

// appendSystemLocked appends a system entry and returns its payload
func (c *Controller) appendSystemLocked(text string) model.SystemMessagePayload {
	now := c.clock.Now()
	c.ledger.append(model.NewSystemEntry(text, now))
	return model.SystemMessagePayload{Text: text, Timestamp: now}
}

// outsLocked snapshots the transports of all live sessions
func (c *Controller) outsLocked() []Outbound {
	outs := make([]Outbound, 0, len(c.sessions))
	for _, sess := range c.sessions {
		outs = append(outs, sess.out)
	}
	return outs
}

func broadcast(outs []Outbound, ev model.Event) {
	for _, out := range outs {
		out.Send(ev)
	}
}

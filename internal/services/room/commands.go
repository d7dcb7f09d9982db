package room

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/quietfloor/readingroom/internal/model"
)

const (
	defaultRollSides = 100
	leaderboardSize  = 5
)

// handleCommand interprets slash-prefixed text. Unrecognized commands
// are dropped with no feedback so command syntax never leaks as chat
// noise.
func (c *Controller) handleCommand(ctx context.Context, connID model.ConnID, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "/roll":
		c.commandRoll(connID, args)
	case "/leaderboard":
		c.commandLeaderboard(ctx, connID)
	case "/clear":
		c.PurgeAll(ctx, connID)
	case "/kick":
		c.commandKick(ctx, connID, args)
	default:
		c.logger.Debug("unrecognized command dropped", slog.String("command", cmd))
	}
}

// commandRoll announces a uniform random integer in [1, N] attributed
// to the sender. The result never enters the reputation system.
func (c *Controller) commandRoll(connID model.ConnID, args []string) {
	sides := defaultRollSides
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			sides = n
		}
	}

	c.mu.Lock()
	sess, err := c.sessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		return
	}
	value := c.random.Intn(sides) + 1
	sysMsg := c.appendSystemLocked(fmt.Sprintf(
		"%s rolled a %d (1-%d).", sess.identity.Username, value, sides))
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
}

// commandLeaderboard emits the top accounts by reputation. Read-only.
func (c *Controller) commandLeaderboard(ctx context.Context, connID model.ConnID) {
	top, err := c.storage.TopAccountsByReputation(ctx, leaderboardSize)
	if err != nil {
		c.logger.Error("leaderboard query failed", slog.String("error", err.Error()))
		return
	}

	var b strings.Builder
	b.WriteString("Reputation leaderboard:")
	for i, account := range top {
		fmt.Fprintf(&b, " %d. %s (%d)", i+1, account.Username, account.Reputation)
	}

	c.mu.Lock()
	if _, err := c.sessionLocked(connID); err != nil {
		c.mu.Unlock()
		return
	}
	sysMsg := c.appendSystemLocked(b.String())
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
}

// commandKick resolves a username to a live session by exact
// case-insensitive match. Missing targets are a no-op.
func (c *Controller) commandKick(ctx context.Context, connID model.ConnID, args []string) {
	if len(args) == 0 {
		return
	}
	name := args[0]

	c.mu.Lock()
	var targetID model.ConnID
	for _, sess := range c.sessions {
		if strings.EqualFold(sess.identity.Username, name) {
			targetID = sess.connID
			break
		}
	}
	c.mu.Unlock()

	if targetID == "" {
		return
	}
	c.KickConn(ctx, connID, targetID)
}

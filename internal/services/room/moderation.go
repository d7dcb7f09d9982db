package room

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quietfloor/readingroom/internal/model"
)

// AdminAuth handles a shared-secret submission. Success elevates the
// session for its lifetime; each failure is announced publicly, and
// the third forces an ejection after the grace delay.
func (c *Controller) AdminAuth(ctx context.Context, connID model.ConnID, pin string) {
	c.mu.Lock()
	sess, err := c.sessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		return
	}

	if c.cfg.AdminPIN != "" && pin == c.cfg.AdminPIN {
		if sess.admin == model.NotAdmin {
			sess.admin = model.SessionElevated
		}
		sess.adminAttempts = 0
		announcement := fmt.Sprintf("%s has been granted administrator access.", sess.identity.Username)
		now := c.clock.Now()
		c.ledger.append(model.NewAnnouncementEntry(announcement, now))
		roster := c.rosterLocked()
		out := sess.out
		outs := c.outsLocked()
		c.mu.Unlock()

		c.logger.Info("admin elevation granted", slog.String("username", sess.identity.Username))

		out.Send(model.Event{Name: model.EventAdminAuthSuccess})
		broadcast(outs, model.Event{Name: model.EventAdminAnnouncement, Data: model.SystemMessagePayload{
			Text:      announcement,
			Timestamp: now,
		}})
		broadcast(outs, model.Event{Name: model.EventUpdateRoster, Data: roster})
		return
	}

	sess.adminAttempts++
	attempts := sess.adminAttempts
	username := sess.identity.Username
	out := sess.out

	if attempts >= c.cfg.MaxAdminAttempts {
		sysMsg := c.appendSystemLocked(fmt.Sprintf(
			"%s was disconnected after 3 incorrect admin code attempts.", username))
		outs := c.outsLocked()
		c.mu.Unlock()

		c.logger.Warn("admin attempts exhausted, ejecting",
			slog.String("conn_id", string(connID)),
			slog.String("username", username))

		out.Send(model.Event{Name: model.EventKickedOut})
		broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
		c.scheduleDisconnect(out)
		return
	}

	sysMsg := c.appendSystemLocked(fmt.Sprintf("Failed admin access attempt by %s.", username))
	outs := c.outsLocked()
	c.mu.Unlock()

	out.Send(model.Event{Name: model.EventAdminAuthFail})
	broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
}

// DeleteMessage removes a single message from the ledger. Unprivileged
// callers and missing targets are silent no-ops.
func (c *Controller) DeleteMessage(ctx context.Context, connID model.ConnID, msgID string) {
	c.mu.Lock()
	if _, err := c.adminSessionLocked(connID); err != nil {
		c.mu.Unlock()
		c.logger.Debug("delete denied", slog.String("error", err.Error()))
		return
	}
	if !c.ledger.remove(msgID) {
		c.mu.Unlock()
		return
	}
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventDeleteMessage, Data: msgID})
}

// PurgeAll clears the ledger. The purge itself is not recorded, so a
// subsequently joining session replays an empty history.
func (c *Controller) PurgeAll(ctx context.Context, connID model.ConnID) {
	c.mu.Lock()
	sess, err := c.adminSessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("purge denied", slog.String("error", err.Error()))
		return
	}
	c.ledger.clear()
	username := sess.identity.Username
	outs := c.outsLocked()
	c.mu.Unlock()

	c.logger.Info("ledger purged", slog.String("username", username))

	broadcast(outs, model.Event{Name: model.EventPurgeAllMessages})
}

// KickConn ejects an arbitrary live session by connection id
func (c *Controller) KickConn(ctx context.Context, connID, targetID model.ConnID) {
	c.mu.Lock()
	sess, err := c.adminSessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("kick denied", slog.String("error", err.Error()))
		return
	}
	target, err := c.sessionLocked(targetID)
	if err != nil {
		c.mu.Unlock()
		return
	}
	targetName := target.identity.Username
	targetOut := target.out
	sysMsg := c.appendSystemLocked(fmt.Sprintf("%s was removed by an administrator.", targetName))
	outs := c.outsLocked()
	c.mu.Unlock()

	c.logger.Info("session kicked",
		slog.String("target", string(targetID)),
		slog.String("by", sess.identity.Username))

	targetOut.Send(model.Event{Name: model.EventKickedOut})
	broadcast(outs, model.Event{Name: model.EventSystemMessage, Data: sysMsg})
	c.scheduleDisconnect(targetOut)
}

// scheduleDisconnect closes the transport after the grace delay so the
// kicked_out notification can reach the client first. Best effort, not
// a delivery guarantee.
func (c *Controller) scheduleDisconnect(out Outbound) {
	if c.cfg.KickGrace == 0 {
		out.Close()
		return
	}
	time.AfterFunc(c.cfg.KickGrace, out.Close)
}

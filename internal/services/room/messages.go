package room

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/quietfloor/readingroom/internal/model"
)

// msgIDLength gives ~62^12 ids, enough that a collision inside a
// 100-entry window is not a practical concern
const (
	msgIDLength   = 12
	msgIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// PostMessage handles a chat_message intent. Slash-prefixed text is
// routed to the command interpreter instead of the ledger. After the
// message is posted and broadcast, a bot mention dispatches the AI
// relay on a detached goroutine.
func (c *Controller) PostMessage(ctx context.Context, connID model.ConnID, text string) {
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		c.handleCommand(ctx, connID, text)
		return
	}

	c.mu.Lock()
	sess, err := c.sessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		return
	}

	entry := &model.LedgerEntry{
		Kind:       model.EntryChat,
		MsgID:      c.random.String(msgIDLength, msgIDAlphabet),
		Username:   sess.identity.Username,
		Text:       text,
		Timestamp:  c.clock.Now(),
		ConnID:     connID,
		IsAdmin:    sess.isAdmin(),
		Reactions:  make(map[string]int),
		Upvoters:   make(map[string]struct{}),
		Downvoters: make(map[string]struct{}),
	}
	c.ledger.append(entry)
	payload := entry.Clone()
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventChatMessage, Data: payload})

	if c.responder != nil {
		if prompt, mentioned := c.responder.Extract(text); mentioned {
			go c.relayReply(prompt)
		}
	}
}

// relayReply performs the fire-and-forget AI call. Failures are
// swallowed; a reply arriving after the triggering session left is
// still posted to whoever remains.
func (c *Controller) relayReply(prompt string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReplyTimeout)
	defer cancel()

	reply, err := c.responder.Reply(ctx, prompt)
	if err != nil {
		c.logger.Debug("bot reply failed", slog.String("error", err.Error()))
		return
	}

	c.mu.Lock()
	entry := &model.LedgerEntry{
		Kind:       model.EntryChat,
		MsgID:      c.random.String(msgIDLength, msgIDAlphabet),
		Username:   c.responder.Name(),
		Text:       reply,
		Timestamp:  c.clock.Now(),
		ConnID:     BotConnID,
		IsBot:      true,
		Reactions:  make(map[string]int),
		Upvoters:   make(map[string]struct{}),
		Downvoters: make(map[string]struct{}),
	}
	c.ledger.append(entry)
	payload := entry.Clone()
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventChatMessage, Data: payload})
}

// React attaches a free-form reaction token to a message. The per-token
// count accumulates on the ledger entry; the broadcast is the
// incremental delta, sent even when the message has already been
// evicted (receivers without the message ignore it).
func (c *Controller) React(ctx context.Context, connID model.ConnID, msgID, reaction string) {
	c.mu.Lock()
	sess, err := c.sessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		return
	}
	if entry := c.ledger.find(msgID); entry != nil {
		if entry.Reactions == nil {
			entry.Reactions = make(map[string]int)
		}
		entry.Reactions[reaction]++
	}
	username := sess.identity.Username
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventMessageReaction, Data: model.ReactionPayload{
		MsgID:    msgID,
		Reaction: reaction,
		Username: username,
	}})
}

// Vote applies a directional vote. One active vote per voter and
// message; the same direction twice is a no-op; the opposite direction
// swaps the vote. The author's durable reputation absorbs the net
// delta through a single atomic storage increment.
func (c *Controller) Vote(ctx context.Context, connID model.ConnID, msgID string, voteType int) {
	if voteType != 1 && voteType != -1 {
		return
	}

	c.mu.Lock()
	sess, err := c.sessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		return
	}
	voter := sess.identity.Username

	entry := c.ledger.find(msgID)
	if err := voteGuard(entry, voter); err != nil {
		c.mu.Unlock()
		c.logger.Debug("vote rejected",
			slog.String("msg_id", msgID),
			slog.String("error", err.Error()))
		return
	}
	if entry.HasVoted(voter, voteType) {
		c.mu.Unlock()
		return
	}

	// delta is voteType for a fresh vote, 2*voteType for a reversal
	delta := voteType
	if entry.HasVoted(voter, -voteType) {
		delta = 2 * voteType
	}

	if voteType > 0 {
		delete(entry.Downvoters, voter)
		entry.Upvoters[voter] = struct{}{}
	} else {
		delete(entry.Upvoters, voter)
		entry.Downvoters[voter] = struct{}{}
	}
	entry.Score += delta

	author := entry.Username
	score := entry.Score
	outs := c.outsLocked()
	c.mu.Unlock()

	broadcast(outs, model.Event{Name: model.EventMessageVoted, Data: model.MessageVotedPayload{
		MsgID: msgID,
		Score: score,
	}})

	// The durable total is only advertised after it persists; a failed
	// increment must not broadcast stale reputation.
	total, err := c.storage.AdjustReputation(ctx, author, delta)
	if err != nil {
		if !errors.Is(err, model.ErrAccountNotFound) {
			c.logger.Error("reputation update failed",
				slog.String("author", author),
				slog.String("error", err.Error()))
		}
		return
	}

	c.refreshReputation(author, total)

	broadcast(outs, model.Event{Name: model.EventReputationUpdate, Data: model.ReputationUpdatePayload{
		Username:   author,
		Reputation: total,
	}})
}

// voteGuard reports why a vote cannot apply to the entry
func voteGuard(entry *model.LedgerEntry, voter string) error {
	switch {
	case entry == nil:
		return model.ErrMessageNotFound
	case entry.IsBot:
		return model.ErrBotMessageVote
	case entry.Username == voter:
		return model.ErrOwnMessageVote
	}
	return nil
}

// refreshReputation updates the live sessions' reputation snapshot so
// subsequent roster broadcasts carry the new total
func (c *Controller) refreshReputation(username string, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sess := range c.sessions {
		if sess.identity.Username == username {
			sess.identity.Reputation = total
		}
	}
}

// PrivateMessage relays text to exactly one live session plus an echo
// back to the sender. No ledger persistence; a dead target is a
// silent drop.
func (c *Controller) PrivateMessage(ctx context.Context, connID, targetID model.ConnID, text string) {
	c.mu.Lock()
	sess, err := c.sessionLocked(connID)
	if err != nil {
		c.mu.Unlock()
		return
	}
	target := c.sessions[targetID]
	senderName := sess.identity.Username
	senderOut := sess.out
	var targetOut Outbound
	if target != nil {
		targetOut = target.out
	}
	c.mu.Unlock()

	now := c.clock.Now()
	if targetOut != nil {
		targetOut.Send(model.Event{Name: model.EventPrivateMessage, Data: model.PrivateMessagePayload{
			SenderID:   connID,
			SenderName: senderName,
			Text:       text,
			Timestamp:  now,
		}})
	}
	senderOut.Send(model.Event{Name: model.EventPrivateMessage, Data: model.PrivateMessagePayload{
		SenderID:   connID,
		SenderName: senderName,
		Text:       text,
		Timestamp:  now,
		IsEcho:     true,
		TargetID:   targetID,
	}})
}

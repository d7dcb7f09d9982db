package model

import (
	"maps"
	"time"
)

// EntryKind tags the variants of a ledger entry
type EntryKind string

const (
	EntrySystem       EntryKind = "system"
	EntryChat         EntryKind = "chat"
	EntryAnnouncement EntryKind = "admin_announcement"
)

// LedgerEntry is one element of the bounded message history.
// System and announcement entries carry only Text and Timestamp;
// the remaining fields are populated for chat entries.
type LedgerEntry struct {
	Kind      EntryKind `json:"type"`
	MsgID     string    `json:"msgId,omitempty"`
	Username  string    `json:"username,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	ConnID    ConnID    `json:"id,omitempty"`
	IsAdmin   bool      `json:"isAdmin,omitempty"`
	IsBot     bool      `json:"isBot,omitempty"`

	Score     int            `json:"score"`
	Reactions map[string]int `json:"reactions,omitempty"`

	// Vote bookkeeping, mutually exclusive per username. Lives only
	// in memory and is lost on eviction or restart.
	Upvoters   map[string]struct{} `json:"-"`
	Downvoters map[string]struct{} `json:"-"`
}

// Clone returns a value copy whose map fields are independent of the
// receiver. Copies handed outside the owning lock must use this, or a
// later reaction or vote mutates a map the receiver is reading.
func (e *LedgerEntry) Clone() LedgerEntry {
	out := *e
	out.Reactions = maps.Clone(e.Reactions)
	out.Upvoters = maps.Clone(e.Upvoters)
	out.Downvoters = maps.Clone(e.Downvoters)
	return out
}

// NewSystemEntry builds an author-less system entry
func NewSystemEntry(text string, at time.Time) *LedgerEntry {
	return &LedgerEntry{
		Kind:      EntrySystem,
		Text:      text,
		Timestamp: at,
	}
}

// NewAnnouncementEntry builds an admin announcement entry
func NewAnnouncementEntry(text string, at time.Time) *LedgerEntry {
	return &LedgerEntry{
		Kind:      EntryAnnouncement,
		Text:      text,
		Timestamp: at,
	}
}

// HasVoted reports whether the username has an active vote in the
// given direction (+1 or -1) on this entry
func (e *LedgerEntry) HasVoted(username string, direction int) bool {
	if direction > 0 {
		_, ok := e.Upvoters[username]
		return ok
	}
	_, ok := e.Downvoters[username]
	return ok
}

package room

import (
	"github.com/quietfloor/readingroom/internal/model"
)

// ledger is the bounded FIFO of recent entries. It is owned by the
// Controller and relies on the Controller's mutex for synchronization.
type ledger struct {
	entries  []*model.LedgerEntry
	capacity int
}

func newLedger(capacity int) *ledger {
	return &ledger{
		entries:  make([]*model.LedgerEntry, 0, capacity),
		capacity: capacity,
	}
}

// append adds an entry, evicting the oldest when full
func (l *ledger) append(entry *model.LedgerEntry) {
	if len(l.entries) >= l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = entry
		return
	}
	l.entries = append(l.entries, entry)
}

// find returns the chat entry with the given msgId, or nil
func (l *ledger) find(msgID string) *model.LedgerEntry {
	for _, entry := range l.entries {
		if entry.Kind == model.EntryChat && entry.MsgID == msgID {
			return entry
		}
	}
	return nil
}

// remove deletes the chat entry with the given msgId, preserving order
func (l *ledger) remove(msgID string) bool {
	for i, entry := range l.entries {
		if entry.Kind == model.EntryChat && entry.MsgID == msgID {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// clear drops all entries
func (l *ledger) clear() {
	l.entries = l.entries[:0]
}

// snapshot deep-copies the current contents in ledger order. The
// result is safe to marshal after the controller lock is released.
func (l *ledger) snapshot() []model.LedgerEntry {
	out := make([]model.LedgerEntry, len(l.entries))
	for i, entry := range l.entries {
		out[i] = entry.Clone()
	}
	return out
}

func (l *ledger) len() int {
	return len(l.entries)
}

package model

// ConnID is the opaque per-connection identifier assigned by the
// transport layer. It is unique among live connections and never
// reused while the connection is open.
type ConnID string

// AdminState models how a session satisfies admin-gated checks.
// DurableModerator (from the account role) always satisfies them;
// SessionElevated is granted for the life of the connection by a
// correct shared-secret submission.
type AdminState int

const (
	NotAdmin AdminState = iota
	SessionElevated
	DurableModerator
)

// IsAdmin reports whether the state passes admin gates
func (s AdminState) IsAdmin() bool {
	return s == SessionElevated || s == DurableModerator
}

// RosterEntry is one row of the derived online-user list
type RosterEntry struct {
	ConnID     ConnID `json:"id"`
	Username   string `json:"username"`
	IsAdmin    bool   `json:"isAdmin"`
	IsBot      bool   `json:"isBot"`
	Reputation int    `json:"reputation"`
}

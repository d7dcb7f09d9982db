package model

import "time"

// AccountID uniquely identifies a durable account
type AccountID string

// Role is the durable role attached to an account
type Role string

const (
	RoleUser Role = "user"
	RoleMod  Role = "mod"
)

// Account represents a registered chat user
type Account struct {
	ID           AccountID
	Username     string // login username (immutable, case-sensitive)
	PasswordHash string // bcrypt hash
	Role         Role
	Reputation   int // signed aggregate of votes on this user's messages
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

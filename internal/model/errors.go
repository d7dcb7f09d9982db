package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrUsernameExists  = errors.New("username already exists")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Ledger errors
	ErrMessageNotFound = errors.New("message not found")

	// Moderation errors
	ErrNotAuthorized = errors.New("not authorized")

	// Vote errors
	ErrOwnMessageVote = errors.New("cannot vote on own message")
	ErrBotMessageVote = errors.New("cannot vote on bot message")
)

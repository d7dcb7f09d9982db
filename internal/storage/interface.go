package storage

import (
	"context"

	"github.com/quietfloor/readingroom/internal/model"
)

// Storage defines the interface for durable account persistence
type Storage interface {
	// Account operations
	SaveAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)

	// AdjustReputation applies a signed delta to the account's
	// reputation and returns the new total. The increment is atomic
	// at the storage layer; callers must not read-then-write.
	AdjustReputation(ctx context.Context, username string, delta int) (int, error)

	// TopAccountsByReputation returns up to n accounts ordered by
	// reputation descending.
	TopAccountsByReputation(ctx context.Context, n int) ([]*model.Account, error)
}

package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/quietfloor/readingroom/internal/model"
	"github.com/quietfloor/readingroom/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	accounts      map[model.AccountID]*model.Account
	usernameIndex map[string]model.AccountID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		accounts:      make(map[model.AccountID]*model.Account),
		usernameIndex: make(map[string]model.AccountID),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *account
	s.accounts[account.ID] = &cp
	s.usernameIndex[account.Username] = account.ID
	return nil
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *Storage) AdjustReputation(ctx context.Context, username string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return 0, model.ErrAccountNotFound
	}
	account := s.accounts[id]
	account.Reputation += delta
	return account.Reputation, nil
}

func (s *Storage) TopAccountsByReputation(ctx context.Context, n int) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*model.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		cp := *account
		all = append(all, &cp)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Reputation != all[j].Reputation {
			return all[i].Reputation > all[j].Reputation
		}
		return all[i].Username < all[j].Username
	})

	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

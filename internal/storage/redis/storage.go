package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quietfloor/readingroom/internal/model"
	"github.com/quietfloor/readingroom/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Account documents are stored as JSON; the reputation score is held
// in a sorted set so that vote deltas are a single atomic ZINCRBY
// rather than a read-modify-write of the document.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// accountDoc is the JSON shape persisted for an account. Reputation is
// deliberately excluded; the sorted set is its source of truth.
type accountDoc struct {
	ID           model.AccountID `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"password_hash"`
	Role         model.Role      `json:"role"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (s *Storage) SaveAccount(ctx context.Context, account *model.Account) error {
	doc := accountDoc{
		ID:           account.ID,
		Username:     account.Username,
		PasswordHash: account.PasswordHash,
		Role:         account.Role,
		CreatedAt:    account.CreatedAt,
		UpdatedAt:    account.UpdatedAt,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	// Pipeline for atomic save + index updates
	pipe := s.client.Pipeline()
	pipe.Set(ctx, accountKey(account.ID), data, 0)
	pipe.Set(ctx, usernameIndexKey(account.Username), string(account.ID), 0)
	pipe.ZAddNX(ctx, reputationIndexKey(), redis.Z{
		Score:  float64(account.Reputation),
		Member: account.Username,
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	data, err := s.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	var doc accountDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return s.hydrate(ctx, &doc)
}

func (s *Storage) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	idStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrAccountNotFound
		}
		return nil, err
	}

	return s.GetAccount(ctx, model.AccountID(idStr))
}

func (s *Storage) AdjustReputation(ctx context.Context, username string, delta int) (int, error) {
	// Refuse to create sorted-set members for unknown usernames
	exists, err := s.client.Exists(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, model.ErrAccountNotFound
	}

	total, err := s.client.ZIncrBy(ctx, reputationIndexKey(), float64(delta), username).Result()
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *Storage) TopAccountsByReputation(ctx context.Context, n int) ([]*model.Account, error) {
	if n <= 0 {
		return nil, nil
	}

	members, err := s.client.ZRevRangeWithScores(ctx, reputationIndexKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}

	accounts := make([]*model.Account, 0, len(members))
	for _, m := range members {
		username, ok := m.Member.(string)
		if !ok {
			continue
		}
		account, err := s.GetAccountByUsername(ctx, username)
		if err != nil {
			if errors.Is(err, model.ErrAccountNotFound) {
				continue
			}
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// hydrate fills the reputation score from the sorted set
func (s *Storage) hydrate(ctx context.Context, doc *accountDoc) (*model.Account, error) {
	score, err := s.client.ZScore(ctx, reputationIndexKey(), doc.Username).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return &model.Account{
		ID:           doc.ID,
		Username:     doc.Username,
		PasswordHash: doc.PasswordHash,
		Role:         doc.Role,
		Reputation:   int(score),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

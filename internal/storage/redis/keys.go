package redis

import (
	"fmt"

	"github.com/quietfloor/readingroom/internal/model"
)

// Key prefix for all chat-related data
const keyPrefix = "readingroom"

// accountKey returns the Redis key for an Account
func accountKey(id model.AccountID) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> account_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// reputationIndexKey returns the Redis key for the reputation sorted set.
// Scores live here, keyed by username, so vote deltas can use ZINCRBY
// and the leaderboard is a range query.
func reputationIndexKey() string {
	return fmt.Sprintf("%s:idx:reputation", keyPrefix)
}

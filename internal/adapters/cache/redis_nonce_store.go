package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisNonceStore remembers token-validation nonces with TTL so a captured
// digest cannot be replayed inside the freshness window.
type RedisNonceStore struct {
	client *redis.Client
}

// NewRedisNonceStore creates the replay-rejection cache adapter.
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

// Remember returns true only on the first sighting of (tokenID, nonce).
// SETNX makes the check-and-set atomic across service instances.
func (s *RedisNonceStore) Remember(ctx context.Context, tokenID, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.SetNX(ctx, "token:nonce:"+tokenID+":"+nonce, "1", ttl).Result()
}

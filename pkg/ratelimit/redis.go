package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs the fixed-window counters with a shared Redis so
// multiple relay instances enforce one quota.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore builds a store over the given client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

const keyPrefix = "chatrelay:rl:"

// Incr implements Store using INCR with a TTL pinned on first hit, so the
// window never resets early.
func (s *RedisStore) Incr(key string, window time.Duration) (int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	k := keyPrefix + key
	count, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, k, window).Err(); err != nil {
			return 0, 0, err
		}
		return int(count), window, nil
	}
	ttl, err := s.rdb.TTL(ctx, k).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), ttl, nil
}

package ratelimit

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	redisCounterPrefix = "sentra:rl:cnt:"
	redisBlockPrefix   = "sentra:rl:blk:"
)

// RedisStore persists limiter state in Redis so a fleet of instances shares
// one view of each key. Window and block lifetimes ride on Redis TTLs.
type RedisStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client goredis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Incr adds one to the key's counter, attaching the window TTL on first sight.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	counterKey := redisCounterPrefix + key

	count, err := s.client.Incr(ctx, counterKey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, counterKey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return 1, s.now().Add(window), nil
	}

	ttl, err := s.client.PTTL(ctx, counterKey).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// Counter lost its TTL (e.g. restored dump); reattach the window.
		if err := s.client.PExpire(ctx, counterKey, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return int(count), s.now().Add(ttl), nil
}

// Peek returns the current count and reset time without incrementing.
func (s *RedisStore) Peek(ctx context.Context, key string) (int, time.Time, bool, error) {
	counterKey := redisCounterPrefix + key

	val, err := s.client.Get(ctx, counterKey).Result()
	if err == goredis.Nil {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	ttl, err := s.client.PTTL(ctx, counterKey).Result()
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return count, s.now().Add(ttl), true, nil
}

// Remove deletes the key's counter.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisCounterPrefix+key).Err()
}

// SetBlock marks the key blocked until the given time.
func (s *RedisStore) SetBlock(ctx context.Context, key string, until time.Time) error {
	return s.client.Set(ctx, redisBlockPrefix+key,
		strconv.FormatInt(until.UnixNano(), 10), until.Sub(s.now())).Err()
}

// GetBlock returns the block expiry when the key is blocked.
func (s *RedisStore) GetBlock(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, redisBlockPrefix+key).Result()
	if err == goredis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos), true, nil
}

// Sweep is a no-op: Redis TTLs reclaim expired entries on their own.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

// Clear removes every limiter key.
func (s *RedisStore) Clear(ctx context.Context) error {
	for _, prefix := range []string{redisCounterPrefix, redisBlockPrefix} {
		iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

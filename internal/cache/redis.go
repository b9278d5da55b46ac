package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL, fills in conservative timeouts and
// verifies the connection with a ping.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cache.Connect: parse url: %w", err)
	}

	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 5 * time.Second
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 5 * time.Second
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 2
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache.Connect: ping: %w", err)
	}
	return client, nil
}

// RedisStore keeps the ship dictionary in a Redis hash so every process
// (server, CLI runs) shares one copy between upstream refreshes.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// DefaultShipKey is the hash holding code → name.
const DefaultShipKey = "tracker:ships"

// NewRedisStore returns a store writing to key with the given TTL.
// A non-positive TTL keeps the hash until Invalidate.
func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultShipKey
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

// Load returns the stored dictionary; ok is false on a miss.
func (s *RedisStore) Load(ctx context.Context) (map[string]string, bool, error) {
	m, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("cache.RedisStore.Load: %w", err)
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	return m, true, nil
}

// Save replaces the stored dictionary atomically.
func (s *RedisStore) Save(ctx context.Context, ships map[string]string) error {
	if len(ships) == 0 {
		return nil
	}
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.key)
		p.HSet(ctx, s.key, ships)
		if s.ttl > 0 {
			p.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache.RedisStore.Save: %w", err)
	}
	return nil
}

// Delete drops the stored dictionary.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("cache.RedisStore.Delete: %w", err)
	}
	return nil
}

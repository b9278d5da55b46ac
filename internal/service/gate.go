package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Gate admits at most one run at a time. TryAcquire never waits: when the
// gate is held it returns ErrRunInProgress. The returned release func must
// be called exactly once.
type Gate interface {
	TryAcquire(ctx context.Context) (release func(), err error)
}

// LocalGate is an in-process gate.
type LocalGate struct {
	mu sync.Mutex
}

// NewLocalGate returns an open gate.
func NewLocalGate() *LocalGate {
	return &LocalGate{}
}

// TryAcquire implements Gate.
func (g *LocalGate) TryAcquire(context.Context) (func(), error) {
	if !g.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func() { once.Do(g.mu.Unlock) }, nil
}

// DefaultGateKey is the Redis key of the shared run lock.
const DefaultGateKey = "tracker:run-lock"

// Compare-and-delete / compare-and-extend so a holder whose lease expired
// never touches a lock now owned by someone else.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
	extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisGate is shared by every process pointed at the same Redis, so a CLI
// run and the server scheduler never overlap. The lock is a lease: it is
// renewed while held and expires on its own if the holder dies.
type RedisGate struct {
	rdb    redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisGate builds a gate on key with the given lease ttl.
func NewRedisGate(rdb redis.UniversalClient, key string, ttl time.Duration, logger *slog.Logger) *RedisGate {
	if key == "" {
		key = DefaultGateKey
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisGate{rdb: rdb, key: key, ttl: ttl, logger: logger}
}

// TryAcquire implements Gate.
func (g *RedisGate) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, g.key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("service.RedisGate.TryAcquire: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go g.renew(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, g.rdb, []string{g.key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				g.logger.Warn("run lock release failed", "key", g.key, "error", err)
			}
		})
	}, nil
}

func (g *RedisGate) renew(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(g.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), g.ttl/3)
			n, err := extendScript.Run(ctx, g.rdb, []string{g.key}, token, g.ttl.Milliseconds()).Int64()
			cancel()
			if err != nil {
				g.logger.Warn("run lock renewal failed", "key", g.key, "error", err)
				continue
			}
			if n == 0 {
				g.logger.Error("run lock lost", "key", g.key)
				return
			}
		}
	}
}

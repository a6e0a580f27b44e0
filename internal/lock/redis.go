package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rentsync:lock:"

type obtainer interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// Redis is a Locker shared by every process using the same Redis database.
// A held lock is refreshed at half its TTL until released, so a crashed
// holder frees the key after at most one TTL.
type Redis struct {
	client obtainer
	ttl    time.Duration
}

// NewRedis creates a locker on top of an existing client.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Redis{client: redislock.New(client), ttl: ttl}
}

func (r *Redis) TryLock(ctx context.Context, key string) (Release, error) {
	l, err := r.client.Obtain(ctx, keyPrefix+key, r.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain redis lock %s: %w", key, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.keepAlive(l, key, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				slog.Warn("failed to release redis lock",
					"component", "lock",
					"key", key,
					"error", err,
				)
			}
		})
	}, nil
}

func (r *Redis) keepAlive(l *redislock.Lock, key string, stop <-chan struct{}) {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := l.Refresh(ctx, r.ttl, nil)
			cancel()
			if err != nil {
				slog.Warn("failed to refresh redis lock",
					"component", "lock",
					"key", key,
					"error", err,
				)
				return
			}
		}
	}
}

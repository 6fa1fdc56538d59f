package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LeaseStore is the subset of redisclient.Client the RedisLocker needs.
type LeaseStore interface {
	AcquireLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, token string) (bool, error)
	ExtendLock(ctx context.Context, name, token string, ttl time.Duration) (bool, error)
}

// RedisLocker is a Locker shared by every replica. A held lease is renewed at
// a third of its TTL until released, so a slow gateway call cannot outlive it.
type RedisLocker struct {
	store      LeaseStore
	ttl        time.Duration
	retryEvery time.Duration
	logger     *zap.Logger
}

// DefaultLeaseTTL is used when NewRedisLocker is given a non-positive TTL.
const DefaultLeaseTTL = 60 * time.Second

// NewRedisLocker creates a RedisLocker with the given lease TTL
func NewRedisLocker(store LeaseStore, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &RedisLocker{
		store:      store,
		ttl:        ttl,
		retryEvery: 25 * time.Millisecond,
		logger:     logger,
	}
}

// Lock polls for the lease until it is acquired or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	token := uuid.New().String()
	backoff := l.retryEvery

	for {
		ok, err := l.store.AcquireLock(ctx, key, token, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-timer.C:
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(key, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()

			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			released, err := l.store.ReleaseLock(releaseCtx, key, token)
			if err != nil {
				l.logger.Error("Failed to release user lock", zap.String("key", key), zap.Error(err))
				return
			}
			if !released {
				l.logger.Warn("User lock expired before release", zap.String("key", key))
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(key, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			ok, err := l.store.ExtendLock(ctx, key, token, l.ttl)
			cancel()
			if err != nil {
				l.logger.Warn("Failed to extend user lock", zap.String("key", key), zap.Error(err))
				continue
			}
			if !ok {
				l.logger.Error("User lock lost while held", zap.String("key", key))
				return
			}
		}
	}
}

package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy indicates another writer holds the entity lock.
var ErrLockBusy = errors.New("entity is being updated, retry later")

// StockLockKey builds the redis key guarding a product's stock level.
func StockLockKey(productID int64) string {
	return fmt.Sprintf("stock:product:%d:lock", productID)
}

// InvoiceLockKey builds the redis key guarding an invoice's payments.
func InvoiceLockKey(invoiceID int64) string {
	return fmt.Sprintf("ar:invoice:%d:lock", invoiceID)
}

// Locker serialises read-then-write sequences per entity.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

// RedisLocker implements Locker with redis based leases.
type RedisLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	retries int
}

// NewRedisLocker constructs a RedisLocker. ttl bounds how long a crashed
// holder can block other writers.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{client: redislock.New(client), ttl: ttl, retries: 5}
}

// WithLock runs fn while holding the lease for key.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return fn(ctx)
	}
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.ExponentialBackoff(20*time.Millisecond, 500*time.Millisecond), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockBusy
	}
	if err != nil {
		return fmt.Errorf("shared: obtain lock %s: %w", key, err)
	}
	defer func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()
	return fn(lockCtx)
}

package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/models"
)

// releaseScript deletes the lock key only when it still holds our token,
// so a release after lease expiry cannot remove another holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockClient provides per-product mutual exclusion backed by Redis.
// Locks carry a lease so a crashed holder cannot block a product forever.
type LockClient struct {
	client        redis.UniversalClient
	retryInterval time.Duration
}

func NewLockClient(addrs []string, password string, clusterMode bool, poolSize int, retryInterval time.Duration) (*LockClient, error) {
	client := newUniversalClient(addrs, password, clusterMode, poolSize)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &models.SystemError{Component: "redis", Message: "connection failed", Cause: err}
	}

	log.Info().
		Strs("addrs", addrs).
		Dur("retry_interval", retryInterval).
		Msg("Redis lock client connected")

	return &LockClient{client: client, retryInterval: retryInterval}, nil
}

func lockKey(productID int64) string {
	return fmt.Sprintf("lock:product:%d", productID)
}

// Acquire tries to take the product lock, polling until wait elapses.
// The returned lease expires after the lease duration even if never
// released. ok=false means the wait timed out (or ctx was cancelled)
// without an acquisition; that is an outcome, not an error.
func (l *LockClient) Acquire(ctx context.Context, productID int64, wait, lease time.Duration) (*models.Lease, bool, error) {
	key := lockKey(productID)
	token := uuid.New().String()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, lease).Result()
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return &models.Lease{Key: key, Token: token}, true, nil
		}

		if time.Now().Add(l.retryInterval).After(deadline) {
			log.Warn().
				Int64("product_id", productID).
				Dur("wait", wait).
				Msg("Lock acquisition timed out")
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			// Treat cancellation during the wait the same as a timeout
			return nil, false, nil
		case <-time.After(l.retryInterval):
		}
	}
}

// Release removes the lock if the lease token still owns it.
// Releasing an expired or already-released lease is a no-op.
func (l *LockClient) Release(ctx context.Context, lease *models.Lease) error {
	result, err := releaseScript.Run(ctx, l.client, []string{lease.Key}, lease.Token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lease.Key, err)
	}
	if result == 0 {
		log.Debug().
			Str("key", lease.Key).
			Msg("Lock already released or lease expired")
	}
	return nil
}

func (l *LockClient) Close() error {
	return l.client.Close()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/models"
)

// CacheClient is a read-through cache for inventory records.
// It is invalidated, never updated in place, after a committed mutation.
type CacheClient struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewCacheClient(addrs []string, password string, clusterMode bool, poolSize int, ttl time.Duration) (*CacheClient, error) {
	client := newUniversalClient(addrs, password, clusterMode, poolSize)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, &models.SystemError{Component: "redis", Message: "connection failed", Cause: err}
	}

	log.Info().
		Strs("addrs", addrs).
		Bool("cluster_mode", clusterMode).
		Dur("ttl", ttl).
		Msg("Redis cache client connected")

	return &CacheClient{client: client, ttl: ttl}, nil
}

// newUniversalClient builds a cluster or single-node client from config,
// shared between the cache and the lock client.
func newUniversalClient(addrs []string, password string, clusterMode bool, poolSize int) redis.UniversalClient {
	if clusterMode {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
			PoolSize: poolSize,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     addrs[0],
		Password: password,
		PoolSize: poolSize,
	})
}

func inventoryKey(productID int64) string {
	return fmt.Sprintf("inventory::product::%d", productID)
}

// GetInventory returns the cached record, or (nil, nil) on a miss.
func (c *CacheClient) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	data, err := c.client.Get(ctx, inventoryKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached inventory for product %d: %w", productID, err)
	}

	var inv models.Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		// A corrupt entry behaves as a miss; the read path will repopulate it
		log.Warn().
			Int64("product_id", productID).
			Err(err).
			Msg("Discarding corrupt cache entry")
		return nil, nil
	}
	return &inv, nil
}

func (c *CacheClient) SetInventory(ctx context.Context, inv *models.Inventory) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory for product %d: %w", inv.ProductID, err)
	}

	if err := c.client.Set(ctx, inventoryKey(inv.ProductID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache inventory for product %d: %w", inv.ProductID, err)
	}
	return nil
}

// DeleteInventory removes the cached record so the next read repopulates
// from the ledger.
func (c *CacheClient) DeleteInventory(ctx context.Context, productID int64) error {
	if err := c.client.Del(ctx, inventoryKey(productID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache for product %d: %w", productID, err)
	}
	return nil
}

func (c *CacheClient) Close() error {
	return c.client.Close()
}

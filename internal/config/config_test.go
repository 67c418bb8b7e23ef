package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "inventory-group", cfg.KafkaConsumerGroup)
	assert.Equal(t, "inventory-dlq-group", cfg.KafkaDLQGroup)
	assert.Equal(t, 3, cfg.ConsumerMaxRetries)
	assert.Equal(t, time.Second, cfg.ConsumerRetryBackoff)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.LockWaitTimeout)
	assert.Equal(t, 2*time.Second, cfg.LockLeaseTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker-1:9092,broker-2:9092")
	t.Setenv("LOCK_WAIT_TIMEOUT", "3s")
	t.Setenv("LOCK_LEASE_TTL", "4s")
	t.Setenv("CONSUMER_MAX_RETRIES", "5")
	t.Setenv("REDIS_ADDRS", "redis-1:6379,redis-2:6379")

	cfg := LoadConfig()

	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.LockWaitTimeout)
	assert.Equal(t, 4*time.Second, cfg.LockLeaseTTL)
	assert.Equal(t, 5, cfg.ConsumerMaxRetries)
	// Multiple Redis addresses imply cluster mode unless overridden
	assert.True(t, cfg.RedisClusterMode)
}

func TestValidateRejectsLeaseOutOfBounds(t *testing.T) {
	cfg := LoadConfig()

	cfg.LockLeaseTTL = time.Second
	assert.Error(t, cfg.Validate())

	cfg.LockLeaseTTL = 11 * time.Second
	assert.Error(t, cfg.Validate())

	cfg.LockLeaseTTL = 10 * time.Second
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveWait(t *testing.T) {
	cfg := LoadConfig()
	cfg.LockWaitTimeout = 0

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsShortCacheTTL(t *testing.T) {
	cfg := LoadConfig()
	cfg.CacheTTL = time.Second

	assert.Error(t, cfg.Validate())
}

func TestIsProduction(t *testing.T) {
	cfg := LoadConfig()
	assert.False(t, cfg.IsProduction())

	cfg.Environment = "production"
	assert.True(t, cfg.IsProduction())
}

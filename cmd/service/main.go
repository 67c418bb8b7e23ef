package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/api"
	"github.com/FortiShop/product-inventory-service/internal/config"
	"github.com/FortiShop/product-inventory-service/internal/kafka"
	redisClient "github.com/FortiShop/product-inventory-service/internal/redis"
	"github.com/FortiShop/product-inventory-service/internal/repository"
	"github.com/FortiShop/product-inventory-service/internal/service"
)

// setupLogging configures structured logging
func setupLogging(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.With().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()
}

// initializeDatabase sets up and tests the database connection
func initializeDatabase(cfg *config.Config) *sqlx.DB {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	db.SetMaxOpenConns(cfg.DatabaseMaxConns)
	db.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}

	log.Info().Msg("Database connection established")
	return db
}

// initializeRedis sets up the cache and lock clients
func initializeRedis(cfg *config.Config) (*redisClient.CacheClient, *redisClient.LockClient) {
	cache, err := redisClient.NewCacheClient(cfg.RedisAddrs, cfg.RedisPassword, cfg.RedisClusterMode, cfg.RedisPoolSize, cfg.CacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis cache client")
	}

	locker, err := redisClient.NewLockClient(cfg.RedisAddrs, cfg.RedisPassword, cfg.RedisClusterMode, cfg.RedisPoolSize, cfg.LockRetryInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis lock client")
	}

	return cache, locker
}

// startHTTPServer starts the admin API server
func startHTTPServer(cfg *config.Config, handler *api.Handler) *http.Server {
	serverAddr := fmt.Sprintf("%s:%s", cfg.ServerAddr, cfg.ServerPort)

	srv := &http.Server{
		Addr:    serverAddr,
		Handler: api.SetupRouter(handler, cfg.EnableMetrics),
	}

	go func() {
		log.Info().Str("address", serverAddr).Msg("Inventory service HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	return srv
}

// startConsumers starts the event consumers and the dead-letter watcher
func startConsumers(ctx context.Context, consumer *kafka.Consumer) {
	go func() {
		if err := consumer.ConsumeOrderCreated(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Order event consumption stopped")
		}
	}()

	go func() {
		if err := consumer.ConsumePaymentFailed(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Payment event consumption stopped")
		}
	}()

	go func() {
		if err := consumer.WatchDeadLetters(ctx); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Dead-letter watcher stopped")
		}
	}()
}

// gracefulShutdown handles graceful shutdown of the service
func gracefulShutdown(cancel context.CancelFunc, srv *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down inventory service...")

	// Cancel context to stop all consumers
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced shutdown")
	}

	// Give in-flight messages time to finish or be redelivered
	time.Sleep(2 * time.Second)

	log.Info().Msg("Inventory service stopped")
}

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg)
	log.Info().Str("environment", cfg.Environment).Msg("Starting inventory service...")

	db := initializeDatabase(cfg)
	defer db.Close()

	cache, locker := initializeRedis(cfg)
	defer cache.Close()
	defer locker.Close()

	publisher := kafka.NewPublisher(cfg.KafkaBrokers)
	defer publisher.Close()

	repo := repository.NewInventoryRepository(db)
	reservations := service.NewReservationService(repo, cache, locker, publisher, service.ReservationConfig{
		LockWaitTimeout: cfg.LockWaitTimeout,
		LockLeaseTTL:    cfg.LockLeaseTTL,
	})
	inventory := service.NewInventoryService(repo, cache)

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       cfg.KafkaBrokers,
		ConsumerGroup: cfg.KafkaConsumerGroup,
		DLQGroup:      cfg.KafkaDLQGroup,
		MaxRetries:    cfg.ConsumerMaxRetries,
		RetryBackoff:  cfg.ConsumerRetryBackoff,
	}, reservations)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startHTTPServer(cfg, api.NewHandler(inventory))
	startConsumers(ctx, consumer)

	log.Info().Msg("Inventory service started, consuming events...")

	gracefulShutdown(cancel, srv)
}

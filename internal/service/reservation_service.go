package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/interfaces"
	"github.com/FortiShop/product-inventory-service/internal/metrics"
	"github.com/FortiShop/product-inventory-service/internal/models"
)

// invalidateTimeout bounds the post-commit cache invalidation, which runs
// detached from the request context.
const invalidateTimeout = 5 * time.Second

// ReservationConfig holds the lock timings for stock mutations.
type ReservationConfig struct {
	LockWaitTimeout time.Duration
	LockLeaseTTL    time.Duration
}

// ReservationService applies per-item stock mutations driven by order
// events. Each mutation runs under the product's distributed lock and a
// single database transaction; the outcome is reported on the egress
// topics keyed by order.
type ReservationService struct {
	repo      interfaces.InventoryRepository
	cache     interfaces.CacheRepository
	locker    interfaces.ProductLocker
	publisher interfaces.EventPublisher
	config    ReservationConfig
}

func NewReservationService(
	repo interfaces.InventoryRepository,
	cache interfaces.CacheRepository,
	locker interfaces.ProductLocker,
	publisher interfaces.EventPublisher,
	config ReservationConfig,
) *ReservationService {
	return &ReservationService{
		repo:      repo,
		cache:     cache,
		locker:    locker,
		publisher: publisher,
		config:    config,
	}
}

// DecreaseStock reserves quantity units of a product for an order.
// It returns (true, nil) when the stock is reserved (including a
// redelivered event whose mutation already committed), (false, nil) when
// the reservation terminally failed and a failure event was emitted, and
// an error when the attempt could not reach an outcome and should be
// retried by the caller.
func (s *ReservationService) DecreaseStock(ctx context.Context, orderID, productID int64, quantity int, traceID string) (bool, error) {
	lease, ok, err := s.locker.Acquire(ctx, productID, s.config.LockWaitTimeout, s.config.LockLeaseTTL)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock for product %d: %w", productID, err)
	}
	if !ok {
		log.Warn().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Msg("Stock decrease abandoned: lock acquisition timed out")
		metrics.ReservationOutcomes.WithLabelValues("lock_timeout").Inc()
		s.publishFailed(orderID, productID, models.ReasonLockAcquisitionFailed, traceID)
		return false, nil
	}
	defer s.releaseLease(lease)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	applied, err := s.repo.AlreadyApplied(ctx, tx, orderID, productID, models.OpDecrease)
	if err != nil {
		return false, err
	}
	if applied {
		log.Info().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Msg("Stock decrease already applied, re-emitting reserved event")
		s.publishReserved(orderID, productID, traceID)
		return true, nil
	}

	inv, err := s.repo.GetInventoryForUpdate(ctx, tx, productID)
	if err != nil {
		return false, err
	}
	if inv == nil {
		return false, models.NewNotFoundError("inventory", productID)
	}

	if inv.Quantity < quantity {
		log.Warn().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Int("available", inv.Quantity).
			Int("requested", quantity).
			Msg("Stock decrease rejected: insufficient stock")
		metrics.ReservationOutcomes.WithLabelValues("insufficient_stock").Inc()
		s.publishFailed(orderID, productID, models.ReasonInsufficientStock, traceID)
		return false, nil
	}

	inv.Quantity -= quantity
	if err := s.repo.UpdateQuantity(ctx, tx, inv); err != nil {
		return false, err
	}
	if err := s.repo.MarkApplied(ctx, tx, orderID, productID, models.OpDecrease); err != nil {
		return false, err
	}

	tx.AfterCommit(func() {
		s.releaseLease(lease)
		s.invalidateCache(productID)
	})

	if err := tx.Commit(); err != nil {
		return false, err
	}

	log.Info().
		Int64("order_id", orderID).
		Int64("product_id", productID).
		Int("quantity", quantity).
		Int("remaining", inv.Quantity).
		Msg("Stock decreased")
	metrics.ReservationOutcomes.WithLabelValues("reserved").Inc()
	s.publishReserved(orderID, productID, traceID)
	return true, nil
}

// RestoreStock credits quantity units back to a product after a failed
// payment. Restores have no success event; only a lock timeout produces
// a failure event. A nil return means the restore reached a terminal
// outcome and the message can be acknowledged.
func (s *ReservationService) RestoreStock(ctx context.Context, orderID, productID int64, quantity int, traceID string) error {
	lease, ok, err := s.locker.Acquire(ctx, productID, s.config.LockWaitTimeout, s.config.LockLeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire lock for product %d: %w", productID, err)
	}
	if !ok {
		log.Warn().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Msg("Stock restore abandoned: lock acquisition timed out")
		metrics.ReservationOutcomes.WithLabelValues("lock_timeout").Inc()
		s.publishFailed(orderID, productID, models.ReasonLockAcquisitionFailed, traceID)
		return nil
	}
	defer s.releaseLease(lease)

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	applied, err := s.repo.AlreadyApplied(ctx, tx, orderID, productID, models.OpRestore)
	if err != nil {
		return err
	}
	if applied {
		log.Info().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Msg("Stock restore already applied, skipping")
		return nil
	}

	inv, err := s.repo.GetInventoryForUpdate(ctx, tx, productID)
	if err != nil {
		return err
	}
	if inv == nil {
		return models.NewNotFoundError("inventory", productID)
	}

	inv.Quantity += quantity
	if err := s.repo.UpdateQuantity(ctx, tx, inv); err != nil {
		return err
	}
	if err := s.repo.MarkApplied(ctx, tx, orderID, productID, models.OpRestore); err != nil {
		return err
	}

	tx.AfterCommit(func() {
		s.releaseLease(lease)
		s.invalidateCache(productID)
	})

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info().
		Int64("order_id", orderID).
		Int64("product_id", productID).
		Int("quantity", quantity).
		Int("total", inv.Quantity).
		Msg("Stock restored")
	metrics.ReservationOutcomes.WithLabelValues("restored").Inc()
	return nil
}

// releaseLease releases the product lock. It runs both from the
// after-commit hook and from the deferred cleanup; the token check makes
// the second call a no-op.
func (s *ReservationService) releaseLease(lease *models.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := s.locker.Release(ctx, lease); err != nil {
		log.Error().
			Str("key", lease.Key).
			Err(err).
			Msg("Failed to release product lock")
	}
}

// invalidateCache drops the cached record after a committed mutation.
// Failure here leaves a stale entry until its TTL expires, so it is
// logged at error and not retried.
func (s *ReservationService) invalidateCache(productID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := s.cache.DeleteInventory(ctx, productID); err != nil {
		log.Error().
			Int64("product_id", productID).
			Err(err).
			Msg("Failed to invalidate inventory cache")
	}
}

// Event publication is fire-and-forget relative to the mutation outcome:
// the ledger is the source of truth and a lost event must not undo a
// committed reservation.
func (s *ReservationService) publishReserved(orderID, productID int64, traceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := s.publisher.PublishReserved(ctx, orderID, productID, traceID); err != nil {
		log.Error().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Err(err).
			Msg("Failed to publish reserved event")
	}
}

func (s *ReservationService) publishFailed(orderID, productID int64, reason, traceID string) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	if err := s.publisher.PublishFailed(ctx, orderID, productID, reason, traceID); err != nil {
		log.Error().
			Int64("order_id", orderID).
			Int64("product_id", productID).
			Str("reason", reason).
			Err(err).
			Msg("Failed to publish failed event")
	}
}

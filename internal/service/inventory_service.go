package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/interfaces"
	"github.com/FortiShop/product-inventory-service/internal/metrics"
	"github.com/FortiShop/product-inventory-service/internal/models"
)

// InventoryService serves the admin HTTP surface: cached reads and
// absolute quantity overwrites.
type InventoryService struct {
	repo  interfaces.InventoryRepository
	cache interfaces.CacheRepository
}

func NewInventoryService(repo interfaces.InventoryRepository, cache interfaces.CacheRepository) *InventoryService {
	return &InventoryService{repo: repo, cache: cache}
}

// GetInventory reads a stock record through the cache. The bool reports
// whether the cache served the read. A miss populates the cache in the
// background so the request does not pay for the write.
func (s *InventoryService) GetInventory(ctx context.Context, productID int64) (*models.Inventory, bool, error) {
	cached, err := s.cache.GetInventory(ctx, productID)
	if err != nil {
		// Cache unavailability degrades to a database read
		log.Warn().
			Int64("product_id", productID).
			Err(err).
			Msg("Cache read failed, falling back to database")
	}
	if cached != nil {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, true, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	inv, err := s.repo.GetInventory(ctx, productID)
	if err != nil {
		return nil, false, &models.SystemError{Component: "database", Message: "failed to read inventory", Cause: err}
	}
	if inv == nil {
		return nil, false, models.NewNotFoundError("inventory", productID)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()

		if err := s.cache.SetInventory(ctx, inv); err != nil {
			log.Warn().
				Int64("product_id", productID).
				Err(err).
				Msg("Failed to populate inventory cache")
		}
	}()

	return inv, false, nil
}

// SetQuantity overwrites the absolute quantity of an existing product.
// It never creates a record; seeding new products is a provisioning
// concern, not an admin-API one.
func (s *InventoryService) SetQuantity(ctx context.Context, productID int64, quantity int) (*models.Inventory, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	inv, err := s.repo.SetQuantity(ctx, tx, productID, quantity)
	if err != nil {
		return nil, err
	}

	tx.AfterCommit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()

		if err := s.cache.DeleteInventory(ctx, productID); err != nil {
			log.Error().
				Int64("product_id", productID).
				Err(err).
				Msg("Failed to invalidate inventory cache")
		}
	})

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Info().
		Int64("product_id", productID).
		Int("quantity", quantity).
		Msg("Inventory quantity overwritten")
	return inv, nil
}

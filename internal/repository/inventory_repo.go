package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/FortiShop/product-inventory-service/internal/interfaces"
	"github.com/FortiShop/product-inventory-service/internal/models"
)

// InventoryRepository persists the stock ledger in PostgreSQL.
// All mutations go through row-level locks (SELECT ... FOR UPDATE) held by
// the caller's transaction, on top of the coarser per-product Redis lock.
type InventoryRepository struct {
	db *sqlx.DB
}

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// BeginTx starts a transaction wrapped with after-commit callback support.
func (r *InventoryRepository) BeginTx(ctx context.Context) (interfaces.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// GetInventory reads a stock record outside any transaction.
// Returns (nil, nil) when the product has no record.
func (r *InventoryRepository) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	var inv models.Inventory
	query := `
		SELECT product_id, quantity, last_updated
		FROM inventory
		WHERE product_id = $1`

	err := r.db.GetContext(ctx, &inv, query, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory for product %d: %w", productID, err)
	}
	return &inv, nil
}

// GetInventoryForUpdate reads a stock record under a row lock held until
// the transaction ends. Returns (nil, nil) when the product has no record.
func (r *InventoryRepository) GetInventoryForUpdate(ctx context.Context, tx interfaces.Tx, productID int64) (*models.Inventory, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var inv models.Inventory
	query := `
		SELECT product_id, quantity, last_updated
		FROM inventory
		WHERE product_id = $1
		FOR UPDATE`

	err = sqlTx.GetContext(ctx, &inv, query, productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock inventory row for product %d: %w", productID, err)
	}
	return &inv, nil
}

// UpdateQuantity writes a new quantity for a row previously fetched with
// GetInventoryForUpdate.
func (r *InventoryRepository) UpdateQuantity(ctx context.Context, tx interfaces.Tx, inv *models.Inventory) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		UPDATE inventory
		SET quantity = $1, last_updated = NOW()
		WHERE product_id = $2`

	result, err := sqlTx.ExecContext(ctx, query, inv.Quantity, inv.ProductID)
	if err != nil {
		return fmt.Errorf("failed to update inventory for product %d: %w", inv.ProductID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return models.NewNotFoundError("inventory", inv.ProductID)
	}
	return nil
}

// SetQuantity overwrites the absolute quantity for an existing product.
// It never creates a record; a missing product yields NotFoundError.
func (r *InventoryRepository) SetQuantity(ctx context.Context, tx interfaces.Tx, productID int64, quantity int) (*models.Inventory, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var inv models.Inventory
	query := `
		UPDATE inventory
		SET quantity = $1, last_updated = NOW()
		WHERE product_id = $2
		RETURNING product_id, quantity, last_updated`

	err = sqlTx.GetContext(ctx, &inv, query, quantity, productID)
	if err == sql.ErrNoRows {
		return nil, models.NewNotFoundError("inventory", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set inventory for product %d: %w", productID, err)
	}
	return &inv, nil
}

// AlreadyApplied reports whether this (order, product, op) mutation was
// recorded by an earlier delivery of the same event.
func (r *InventoryRepository) AlreadyApplied(ctx context.Context, tx interfaces.Tx, orderID, productID int64, op string) (bool, error) {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return false, err
	}

	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM order_reservation
			WHERE order_id = $1 AND product_id = $2 AND op = $3
		)`

	if err := sqlTx.GetContext(ctx, &exists, query, orderID, productID, op); err != nil {
		return false, fmt.Errorf("failed to check reservation record for order %d: %w", orderID, err)
	}
	return exists, nil
}

// MarkApplied records a mutation in the same transaction that performs it,
// so the record and the ledger change commit or roll back together.
func (r *InventoryRepository) MarkApplied(ctx context.Context, tx interfaces.Tx, orderID, productID int64, op string) error {
	sqlTx, err := unwrapTx(tx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO order_reservation (order_id, product_id, op, applied_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (order_id, product_id, op) DO NOTHING`

	if _, err := sqlTx.ExecContext(ctx, query, orderID, productID, op); err != nil {
		return fmt.Errorf("failed to record reservation for order %d: %w", orderID, err)
	}
	return nil
}

func unwrapTx(tx interfaces.Tx) (*sqlx.Tx, error) {
	wrapped, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("unexpected transaction type %T", tx)
	}
	return wrapped.tx, nil
}

package interfaces

import (
	"context"
	"time"

	"github.com/FortiShop/product-inventory-service/internal/models"
)

// Tx is a database transaction carrying commit-scoped side effects.
// Callbacks registered with AfterCommit run only after a successful commit,
// in registration order; a rolled-back transaction never runs them.
type Tx interface {
	AfterCommit(fn func())
	Commit() error
	Rollback() error
}

// InventoryRepository defines the contract for the durable stock ledger
type InventoryRepository interface {
	// Transaction management
	BeginTx(ctx context.Context) (Tx, error)

	// Stock operations
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
	GetInventoryForUpdate(ctx context.Context, tx Tx, productID int64) (*models.Inventory, error)
	UpdateQuantity(ctx context.Context, tx Tx, inventory *models.Inventory) error
	SetQuantity(ctx context.Context, tx Tx, productID int64, quantity int) (*models.Inventory, error)

	// Idempotency ledger: one row per applied (orderId, productId, op)
	AlreadyApplied(ctx context.Context, tx Tx, orderID, productID int64, op string) (bool, error)
	MarkApplied(ctx context.Context, tx Tx, orderID, productID int64, op string) error
}

// CacheRepository defines the contract for the read-through stock cache
type CacheRepository interface {
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
	SetInventory(ctx context.Context, inventory *models.Inventory) error
	DeleteInventory(ctx context.Context, productID int64) error
	Close() error
}

// ProductLocker serializes mutations of a single product's stock record.
// Acquire blocks up to the wait timeout; a false result is the timeout
// outcome, not an error. Release is a no-op when the lease is not held.
type ProductLocker interface {
	Acquire(ctx context.Context, productID int64, wait, lease time.Duration) (*models.Lease, bool, error)
	Release(ctx context.Context, lease *models.Lease) error
}

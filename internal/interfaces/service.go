package interfaces

import (
	"context"

	"github.com/FortiShop/product-inventory-service/internal/models"
)

// ReservationService is the event-driven side of the reservation engine.
// DecreaseStock returns false for business failures (insufficient stock,
// lock timeout) which already produced a Failed event; errors are reserved
// for infrastructure problems that must trigger broker redelivery.
type ReservationService interface {
	DecreaseStock(ctx context.Context, orderID, productID int64, quantity int, traceID string) (bool, error)
	RestoreStock(ctx context.Context, orderID, productID int64, quantity int, traceID string) error
}

// InventoryService is the admin/read side of the reservation engine
type InventoryService interface {
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, bool, error)
	SetQuantity(ctx context.Context, productID int64, quantity int) (*models.Inventory, error)
}

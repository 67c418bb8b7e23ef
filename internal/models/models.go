package models

import (
	"errors"
	"fmt"
	"time"
)

// Kafka topics consumed and produced by the service
const (
	TopicOrderCreated  = "order.created"
	TopicPaymentFailed = "payment.failed"

	TopicInventoryReserved = "inventory.reserved"
	TopicInventoryFailed   = "inventory.failed"

	TopicOrderCreatedDLQ  = "order.created.dlq"
	TopicPaymentFailedDLQ = "payment.failed.dlq"
)

// Failure reasons carried on inventory.failed events
const (
	ReasonInsufficientStock     = "insufficient stock"
	ReasonLockAcquisitionFailed = "lock acquisition failed"
)

// Operations recorded in the per-item idempotency ledger
const (
	OpDecrease = "decrease"
	OpRestore  = "restore"
)

// ErrorCode represents stable error codes exposed on the admin API
type ErrorCode string

const (
	ErrorCodeProductNotFound ErrorCode = "P001"
	ErrorCodeUnauthorized    ErrorCode = "P002"
	ErrorCodeInvalidRequest  ErrorCode = "P003"
	ErrorCodeInternalError   ErrorCode = "P999"
)

// Domain Models

// Inventory represents the inventory table structure
type Inventory struct {
	ProductID   int64     `db:"product_id" json:"productId"`
	Quantity    int       `db:"quantity" json:"quantity"`
	LastUpdated time.Time `db:"last_updated" json:"lastUpdated"`
}

// Lease is a time-bounded grant of exclusive access to a product lock key.
// The token fences the release so an expired lease cannot delete a lock
// that has since been granted to another holder.
type Lease struct {
	Key   string
	Token string
}

// Inbound Events

// OrderItemInfo is a single line item of an order event
type OrderItemInfo struct {
	ProductID int64   `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderCreatedEvent is consumed from order.created; every line item fans out
// into an independent stock decrease
type OrderCreatedEvent struct {
	OrderID    int64           `json:"orderId"`
	MemberID   int64           `json:"memberId"`
	TotalPrice float64         `json:"totalPrice"`
	Address    string          `json:"address,omitempty"`
	Items      []OrderItemInfo `json:"items"`
	CreatedAt  string          `json:"createdAt"`
	TraceID    string          `json:"traceId"`
}

// PaymentFailedEvent is consumed from payment.failed; every line item fans
// out into an independent stock restoration
type PaymentFailedEvent struct {
	OrderID   int64           `json:"orderId"`
	Items     []OrderItemInfo `json:"items"`
	Reason    string          `json:"reason"`
	Timestamp string          `json:"timestamp"`
	TraceID   string          `json:"traceId"`
}

// Outbound Events

// InventoryReservedEvent is published to inventory.reserved keyed by orderId
type InventoryReservedEvent struct {
	OrderID   int64  `json:"orderId"`
	ProductID int64  `json:"productId"`
	Reserved  bool   `json:"reserved"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"traceId"`
}

// InventoryFailedEvent is published to inventory.failed keyed by orderId
type InventoryFailedEvent struct {
	OrderID   int64  `json:"orderId"`
	ProductID int64  `json:"productId"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
	TraceID   string `json:"traceId"`
}

// API Models

// SetInventoryRequest is the admin request body for absolute quantity edits
type SetInventoryRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

// InventoryResponse is the admin representation of a stock record
type InventoryResponse struct {
	ProductID   int64     `json:"productId"`
	Quantity    int       `json:"quantity"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// NewInventoryResponse maps a stock record onto the API shape
func NewInventoryResponse(inv *Inventory) *InventoryResponse {
	return &InventoryResponse{
		ProductID:   inv.ProductID,
		Quantity:    inv.Quantity,
		LastUpdated: inv.LastUpdated,
	}
}

// ErrorResponse is the structured error body returned by the admin API
type ErrorResponse struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds an error body with the current timestamp
func NewErrorResponse(code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Error Types

// NotFoundError indicates the referenced stock record does not exist.
// On the admin path this maps to a 404; on the event path it surfaces as a
// processing error so the dispatcher withholds the acknowledgment.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id %d not found", e.Resource, e.ID)
}

// NewNotFoundError creates a NotFoundError for the given resource
func NewNotFoundError(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// SystemError represents infrastructure failures (database, cache, broker)
type SystemError struct {
	Component string
	Message   string
	Cause     error
}

func (e *SystemError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is, or wraps, a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

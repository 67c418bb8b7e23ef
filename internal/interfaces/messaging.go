package interfaces

import (
	"context"
)

// EventPublisher defines the contract for the outcome event egress.
// Every reservation attempt must resolve to exactly one terminal signal,
// so PublishFailed is attempted even when no mutation happened.
type EventPublisher interface {
	PublishReserved(ctx context.Context, orderID, productID int64, traceID string) error
	PublishFailed(ctx context.Context, orderID, productID int64, reason, traceID string) error
	Close() error
}

// MessageConsumer defines the contract for the event ingress dispatcher
type MessageConsumer interface {
	ConsumeOrderCreated(ctx context.Context) error
	ConsumePaymentFailed(ctx context.Context) error
	WatchDeadLetters(ctx context.Context) error
	Close() error
}

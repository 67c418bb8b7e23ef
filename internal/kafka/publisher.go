package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/FortiShop/product-inventory-service/internal/models"
)

// Publisher emits reservation outcomes on the egress topics. Messages are
// keyed by order so every outcome for one order lands on one partition and
// downstream consumers see them in order.
type Publisher struct {
	reservedWriter *kafka.Writer
	failedWriter   *kafka.Writer
}

func NewPublisher(brokers []string) *Publisher {
	return &Publisher{
		reservedWriter: newWriter(brokers, models.TopicInventoryReserved),
		failedWriter:   newWriter(brokers, models.TopicInventoryFailed),
	}
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Compression:  kafka.Snappy,
	}
}

// PublishReserved emits a successful reservation for one line item.
func (p *Publisher) PublishReserved(ctx context.Context, orderID, productID int64, traceID string) error {
	event := models.InventoryReservedEvent{
		OrderID:   orderID,
		ProductID: productID,
		Reserved:  true,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   traceID,
	}

	if err := p.publish(ctx, p.reservedWriter, orderID, event); err != nil {
		return fmt.Errorf("failed to publish reserved event for order %d: %w", orderID, err)
	}

	log.Info().
		Int64("order_id", orderID).
		Int64("product_id", productID).
		Str("trace_id", traceID).
		Msg("Published inventory.reserved event")
	return nil
}

// PublishFailed emits a terminal reservation failure for one line item.
func (p *Publisher) PublishFailed(ctx context.Context, orderID, productID int64, reason, traceID string) error {
	event := models.InventoryFailedEvent{
		OrderID:   orderID,
		ProductID: productID,
		Reason:    reason,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   traceID,
	}

	if err := p.publish(ctx, p.failedWriter, orderID, event); err != nil {
		return fmt.Errorf("failed to publish failed event for order %d: %w", orderID, err)
	}

	log.Info().
		Int64("order_id", orderID).
		Int64("product_id", productID).
		Str("reason", reason).
		Str("trace_id", traceID).
		Msg("Published inventory.failed event")
	return nil
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, orderID int64, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(orderID, 10)),
		Value: value,
	})
}

// Close shuts down both writers. One writer failing to close does not
// skip the other; all failures are reported together.
func (p *Publisher) Close() error {
	return closeWriters(map[string]io.Closer{
		"reserved": p.reservedWriter,
		"failed":   p.failedWriter,
	})
}

func closeWriters(writers map[string]io.Closer) error {
	var errs []error
	for name, w := range writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s writer: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/FortiShop/product-inventory-service/internal/interfaces"
	"github.com/FortiShop/product-inventory-service/internal/metrics"
	"github.com/FortiShop/product-inventory-service/internal/models"
)

// permanentError marks failures no retry can fix, such as malformed
// payloads. They skip the backoff loop and go straight to the dead-letter
// topic.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// ConsumerConfig holds the retry policy applied before a message is
// rerouted to its dead-letter topic.
type ConsumerConfig struct {
	Brokers       []string
	ConsumerGroup string
	DLQGroup      string
	MaxRetries    int
	RetryBackoff  time.Duration
}

// Consumer drives stock mutations from the order topics. Offsets are
// committed manually: a message is acknowledged only once every line item
// reached a terminal outcome or the message was parked on its dead-letter
// topic.
type Consumer struct {
	orderReader   *kafka.Reader
	paymentReader *kafka.Reader
	dlqWriter     *kafka.Writer
	reservations  interfaces.ReservationService
	config        ConsumerConfig
}

func NewConsumer(config ConsumerConfig, reservations interfaces.ReservationService) *Consumer {
	return &Consumer{
		orderReader:   newReader(config, models.TopicOrderCreated),
		paymentReader: newReader(config, models.TopicPaymentFailed),
		// Topic is set per message so one writer serves both DLQ topics
		dlqWriter: &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  3,
		},
		reservations: reservations,
		config:       config,
	}
}

func newReader(config ConsumerConfig, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		Topic:   topic,
		GroupID: config.ConsumerGroup,

		MinBytes:    1,
		MaxBytes:    10e6, // 10MB max message size
		MaxWait:     1 * time.Second,
		StartOffset: kafka.LastOffset,

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error().Msgf("Kafka reader error ("+topic+"): "+msg, args...)
		}),
	})
}

// ConsumeOrderCreated processes order.created messages until ctx is done.
func (c *Consumer) ConsumeOrderCreated(ctx context.Context) error {
	log.Info().Str("topic", models.TopicOrderCreated).Msg("Starting to consume order events")
	return c.consume(ctx, c.orderReader, models.TopicOrderCreatedDLQ, c.handleOrderCreated)
}

// ConsumePaymentFailed processes payment.failed messages until ctx is done.
func (c *Consumer) ConsumePaymentFailed(ctx context.Context) error {
	log.Info().Str("topic", models.TopicPaymentFailed).Msg("Starting to consume payment events")
	return c.consume(ctx, c.paymentReader, models.TopicPaymentFailedDLQ, c.handlePaymentFailed)
}

func (c *Consumer) consume(ctx context.Context, reader *kafka.Reader, dlqTopic string, handler func(context.Context, kafka.Message) error) error {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping event consumption")
			return ctx.Err()
		default:
			message, err := reader.FetchMessage(ctx)
			if err != nil {
				if err == context.Canceled {
					return nil
				}
				log.Error().Err(err).Msg("Failed to fetch message")
				time.Sleep(time.Second) // Backoff on error
				continue
			}
			metrics.EventsConsumed.WithLabelValues(message.Topic).Inc()

			processErr := c.processWithRetry(ctx, message, handler)
			if processErr != nil {
				// Park the message and acknowledge it only if the
				// dead-letter write succeeded; otherwise Kafka redelivers
				if dlqErr := c.reroute(ctx, dlqTopic, message, processErr); dlqErr != nil {
					log.Error().Err(dlqErr).
						Str("topic", message.Topic).
						Int64("offset", message.Offset).
						Msg("Failed to reroute message to dead-letter topic")
					continue
				}
			}

			if err := reader.CommitMessages(ctx, message); err != nil {
				log.Error().Err(err).
					Str("topic", message.Topic).
					Int64("offset", message.Offset).
					Msg("Failed to commit message")
				// Processed but uncommitted: redelivery is handled by the
				// reservation records, so do not crash here
			}
		}
	}
}

// processWithRetry runs the handler with a fixed backoff between attempts.
func (c *Consumer) processWithRetry(ctx context.Context, message kafka.Message, handler func(context.Context, kafka.Message) error) error {
	var err error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		err = handler(ctx, message)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			log.Warn().Err(err).
				Str("topic", message.Topic).
				Int64("offset", message.Offset).
				Msg("Non-retryable error, skipping retries")
			return err
		}

		if attempt < c.config.MaxRetries {
			log.Warn().Err(err).
				Str("topic", message.Topic).
				Int64("offset", message.Offset).
				Int("attempt", attempt+1).
				Int("max_retries", c.config.MaxRetries).
				Dur("backoff", c.config.RetryBackoff).
				Msg("Message processing failed, retrying after backoff")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryBackoff):
			}
		}
	}
	return err
}

// handleOrderCreated fans an order out into one stock decrease per line
// item. An item that cannot reach a terminal outcome aborts the message so
// the whole event is retried; items that already committed skip their
// mutation on redelivery.
func (c *Consumer) handleOrderCreated(ctx context.Context, message kafka.Message) error {
	var event models.OrderCreatedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return &permanentError{fmt.Errorf("failed to unmarshal order.created event: %w", err)}
	}
	if len(event.Items) == 0 {
		return &permanentError{fmt.Errorf("order.created event for order %d has no items", event.OrderID)}
	}

	log.Info().
		Int64("order_id", event.OrderID).
		Int("items", len(event.Items)).
		Str("trace_id", event.TraceID).
		Msg("Processing order.created event")

	for _, item := range event.Items {
		if _, err := c.reservations.DecreaseStock(ctx, event.OrderID, item.ProductID, item.Quantity, event.TraceID); err != nil {
			return fmt.Errorf("failed to decrease stock for order %d product %d: %w", event.OrderID, item.ProductID, err)
		}
	}
	return nil
}

// handlePaymentFailed fans a failed payment out into one stock restore per
// line item.
func (c *Consumer) handlePaymentFailed(ctx context.Context, message kafka.Message) error {
	var event models.PaymentFailedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return &permanentError{fmt.Errorf("failed to unmarshal payment.failed event: %w", err)}
	}

	log.Info().
		Int64("order_id", event.OrderID).
		Int("items", len(event.Items)).
		Str("reason", event.Reason).
		Str("trace_id", event.TraceID).
		Msg("Processing payment.failed event")

	for _, item := range event.Items {
		if err := c.reservations.RestoreStock(ctx, event.OrderID, item.ProductID, item.Quantity, event.TraceID); err != nil {
			return fmt.Errorf("failed to restore stock for order %d product %d: %w", event.OrderID, item.ProductID, err)
		}
	}
	return nil
}

// reroute copies an exhausted message onto its dead-letter topic,
// preserving the key and recording the final error as a header.
func (c *Consumer) reroute(ctx context.Context, dlqTopic string, message kafka.Message, cause error) error {
	err := c.dlqWriter.WriteMessages(ctx, kafka.Message{
		Topic: dlqTopic,
		Key:   message.Key,
		Value: message.Value,
		Headers: []kafka.Header{
			{Key: "dlq-error", Value: []byte(cause.Error())},
			{Key: "dlq-source-topic", Value: []byte(message.Topic)},
		},
	})
	if err != nil {
		return err
	}

	metrics.EventsDeadLettered.WithLabelValues(message.Topic).Inc()
	log.Error().
		Str("source_topic", message.Topic).
		Str("dlq_topic", dlqTopic).
		Int64("offset", message.Offset).
		Err(cause).
		Msg("Message rerouted to dead-letter topic")
	return nil
}

// WatchDeadLetters consumes both dead-letter topics and surfaces parked
// messages in the logs. Nothing is reprocessed; replay is a manual
// operation.
func (c *Consumer) WatchDeadLetters(ctx context.Context) error {
	orderDLQ := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.config.Brokers,
		Topic:       models.TopicOrderCreatedDLQ,
		GroupID:     c.config.DLQGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		StartOffset: kafka.LastOffset,
	})
	paymentDLQ := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.config.Brokers,
		Topic:       models.TopicPaymentFailedDLQ,
		GroupID:     c.config.DLQGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		StartOffset: kafka.LastOffset,
	})
	defer orderDLQ.Close()
	defer paymentDLQ.Close()

	go c.watchDeadLetterTopic(ctx, paymentDLQ)
	c.watchDeadLetterTopic(ctx, orderDLQ)
	return ctx.Err()
}

func (c *Consumer) watchDeadLetterTopic(ctx context.Context, reader *kafka.Reader) {
	for {
		message, err := reader.FetchMessage(ctx)
		if err != nil {
			if err == context.Canceled {
				return
			}
			log.Error().Err(err).Msg("Failed to fetch dead-letter message")
			time.Sleep(time.Second)
			continue
		}

		log.Error().
			Str("topic", message.Topic).
			Int64("offset", message.Offset).
			Str("key", string(message.Key)).
			Str("value", string(message.Value)).
			Msg("Dead-lettered message")

		if err := reader.CommitMessages(ctx, message); err != nil {
			log.Error().Err(err).Msg("Failed to commit dead-letter message")
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.orderReader.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close order reader")
	}
	if err := c.paymentReader.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close payment reader")
	}
	return c.dlqWriter.Close()
}

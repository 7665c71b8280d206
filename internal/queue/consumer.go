package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrMalformedDelivery marks deliveries that can never be handled. They are
// dead-lettered without reaching the handler.
var ErrMalformedDelivery = errors.New("malformed delivery")

// RabbitMQConsumer drains one work queue per Consume call with manual acks.
// A delivery whose handler fails is rejected without requeue and lands on the
// queue's DLQ; retries happen in the handler before that.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume blocks until ctx is done, resubscribing with backoff whenever the
// channel or connection drops.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	wait := reconnectBackoff
	for {
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			wait = reconnectBackoff
			continue
		}

		c.logger.Warn("rabbitmq subscription lost; retrying",
			zap.Error(err),
			zap.String("queue", queue),
			zap.Duration("backoff", wait),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
		wait = nextBackoff(wait)
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos on %q: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %q closed", queue)
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery settles exactly one delivery: ack on success, reject without
// requeue otherwise. Only a failed settle is returned.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	logger := c.logger.With(
		zap.String("messageId", d.MessageId),
		zap.Bool("redelivered", d.Redelivered),
	)

	msg, err := decodeDelivery(d)
	if err != nil {
		logger.Warn("dead-lettering malformed delivery", zap.Error(err))
		return settle(d, false)
	}

	if err := handler(ctx, msg); err != nil {
		logger.Error("dead-lettering delivery: handler failed",
			zap.Error(err),
			zap.String("eventId", msg.EventID),
			zap.Int64("shipmentId", msg.ShipmentID),
		)
		return settle(d, false)
	}

	return settle(d, true)
}

func decodeDelivery(d amqp.Delivery) (ShipmentEventMessage, error) {
	var msg ShipmentEventMessage

	if d.ContentType != "" && d.ContentType != contentTypeJSON {
		return msg, fmt.Errorf("%w: unsupported content type %q", ErrMalformedDelivery, d.ContentType)
	}
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}
	if err := msg.Validate(); err != nil {
		return msg, fmt.Errorf("%w: %v", ErrMalformedDelivery, err)
	}
	return msg, nil
}

func settle(d amqp.Delivery, ok bool) error {
	if ok {
		if err := d.Ack(false); err != nil {
			return fmt.Errorf("failed to ack delivery %q: %w", d.MessageId, err)
		}
		return nil
	}
	if err := d.Reject(false); err != nil {
		return fmt.Errorf("failed to reject delivery %q: %w", d.MessageId, err)
	}
	return nil
}

// Close releases the shared connection.
func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	contentTypeJSON           = "application/json"
	shipmentStatusChangedType = "shipment.status_changed"
)

// RabbitMQPublisher sends shipment events to a work queue through the default
// exchange, so the routing key is the queue name.
type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, queue string, msg ShipmentEventMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}

	publishing, err := newPublishing(msg, p.now())
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck // best-effort channel close

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish shipment %d event to %q: %w", msg.ShipmentID, queue, err)
	}
	return nil
}

// Close releases the shared connection.
func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// newPublishing builds a persistent JSON publishing. Shipment id and status
// kind travel as headers too, so DLQ tooling can filter without decoding.
func newPublishing(msg ShipmentEventMessage, now time.Time) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid shipment event message: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal shipment event message: %w", err)
	}

	return amqp.Publishing{
		Headers: amqp.Table{
			"shipmentId": msg.ShipmentID,
			"statusKind": msg.Kind,
		},
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		Timestamp:    now.UTC(),
		MessageId:    msg.EventID,
		Type:         shipmentStatusChangedType,
		Body:         body,
	}, nil
}

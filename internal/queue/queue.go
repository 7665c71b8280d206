package queue

import (
	"context"
	"errors"
	"fmt"
)

// ErrQueueFull is returned by non-blocking publishers when no buffer space is
// left.
var ErrQueueFull = errors.New("event queue is full")

// ErrQueueClosed is returned after Close.
var ErrQueueClosed = errors.New("event queue is closed")

// Publisher publishes shipment event messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ShipmentEventMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg ShipmentEventMessage) error

// Consumer consumes shipment event messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

// ShipmentEventsQueue is the base name of the status change queues. Messages
// are spread over its partitions, see PartitionQueue.
const ShipmentEventsQueue = "shipment.events"

// DLQName returns the dead-letter queue name for a work queue, e.g.
// dlq.shipment.events.0.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// PartitionQueue names one partition of a base queue, e.g. shipment.events.2.
func PartitionQueue(base string, partition int) string {
	return fmt.Sprintf("%s.%d", base, partition)
}

// PartitionFor maps a shipment to its partition. Every event of one shipment
// lands on the same partition, which a single consumer drains in order.
func PartitionFor(shipmentID int64, partitions int) int {
	if partitions < 2 {
		return 0
	}
	p := shipmentID % int64(partitions)
	if p < 0 {
		p = -p
	}
	return int(p)
}

// WorkQueueNames returns the partition queues of the shipment event stream.
func WorkQueueNames(partitions int) []string {
	if partitions < 1 {
		partitions = 1
	}
	queues := make([]string, 0, partitions)
	for i := 0; i < partitions; i++ {
		queues = append(queues, PartitionQueue(ShipmentEventsQueue, i))
	}
	return queues
}

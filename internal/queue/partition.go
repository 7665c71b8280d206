package queue

import (
	"context"
	"fmt"
)

var _ Publisher = (*PartitionedPublisher)(nil)

// PartitionedPublisher routes each message to the partition of its shipment
// before handing it to the underlying transport.
type PartitionedPublisher struct {
	next       Publisher
	partitions int
}

func NewPartitionedPublisher(next Publisher, partitions int) (*PartitionedPublisher, error) {
	if next == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if partitions < 1 {
		partitions = 1
	}
	return &PartitionedPublisher{next: next, partitions: partitions}, nil
}

func (p *PartitionedPublisher) Publish(ctx context.Context, queue string, msg ShipmentEventMessage) error {
	partition := PartitionFor(msg.ShipmentID, p.partitions)
	return p.next.Publish(ctx, PartitionQueue(queue, partition), msg)
}

func (p *PartitionedPublisher) Close() error {
	return p.next.Close()
}

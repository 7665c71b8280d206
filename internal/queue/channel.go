package queue

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const defaultChannelBuffer = 256

var (
	_ Publisher = (*ChannelQueue)(nil)
	_ Consumer  = (*ChannelQueue)(nil)
)

// ChannelQueue is the in-process transport: one buffered channel per queue
// name. Publish never blocks. Failed handler runs are logged and dropped.
type ChannelQueue struct {
	buffer int
	logger *zap.Logger

	mu     sync.RWMutex
	queues map[string]chan ShipmentEventMessage
	closed bool
	done   chan struct{}
}

func NewChannelQueue(buffer int, logger *zap.Logger) *ChannelQueue {
	if buffer < 1 {
		buffer = defaultChannelBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChannelQueue{
		buffer: buffer,
		logger: logger,
		queues: make(map[string]chan ShipmentEventMessage),
		done:   make(chan struct{}),
	}
}

func (q *ChannelQueue) Publish(ctx context.Context, queue string, msg ShipmentEventMessage) error {
	if q == nil {
		return fmt.Errorf("channel queue is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid shipment event message: %w", err)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.queueLocked(queue) <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Consume runs handler for every message until ctx is canceled or the queue is
// closed. On close the messages still buffered are handled before returning.
func (q *ChannelQueue) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	if q == nil {
		return fmt.Errorf("channel queue is not initialized")
	}
	if queue == "" {
		return fmt.Errorf("queue name is required")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.mu.Lock()
	messages := q.queueLocked(queue)
	q.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messages:
			q.handle(ctx, msg, handler)
		case <-q.done:
			for {
				select {
				case msg := <-messages:
					q.handle(ctx, msg, handler)
				default:
					return nil
				}
			}
		}
	}
}

// Close stops accepting messages. Channels are never closed so a racing
// Publish cannot panic.
func (q *ChannelQueue) Close() error {
	if q == nil {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

// Len reports buffered messages for a queue.
func (q *ChannelQueue) Len(queue string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return len(q.queues[queue])
}

func (q *ChannelQueue) queueLocked(queue string) chan ShipmentEventMessage {
	messages, ok := q.queues[queue]
	if !ok {
		messages = make(chan ShipmentEventMessage, q.buffer)
		q.queues[queue] = messages
	}
	return messages
}

func (q *ChannelQueue) handle(ctx context.Context, msg ShipmentEventMessage, handler MessageHandler) {
	if err := handler(ctx, msg); err != nil {
		q.logger.Error("dropping message: handler failed",
			zap.Error(err),
			zap.String("eventId", msg.EventID),
			zap.Int64("shipmentId", msg.ShipmentID),
		)
	}
}

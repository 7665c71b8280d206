package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/observability"
	"github.com/kursadbilgin/medtransit/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	maxHandleAttempts    = 3
	baseRetryDelay       = 200 * time.Millisecond
	maxRetryDelay        = 5 * time.Second
	maxRetryJitterMillis = 100
)

// ShipmentEventHandler reacts to one committed status change.
type ShipmentEventHandler interface {
	Handle(ctx context.Context, event domain.ShipmentStatusChanged) error
}

// EventWorker consumes shipment status events and runs them through the
// notification glue.
type EventWorker struct {
	consumer    queue.Consumer
	handler     ShipmentEventHandler
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	randIntn    func(n int) int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewEventWorker(
	consumer queue.Consumer,
	handler ShipmentEventHandler,
	concurrency int,
	logger *zap.Logger,
) (*EventWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("event consumer is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventWorker{
		consumer:    consumer,
		handler:     handler,
		logger:      logger,
		concurrency: concurrency,
		randIntn:    rand.Intn,
		sleep:       sleepWithContext,
	}, nil
}

func (w *EventWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start runs one consumer per partition until context cancellation. Publishers
// must split the stream into the same number of partitions, see
// queue.PartitionedPublisher; a shipment's events are then handled in order.
func (w *EventWorker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i, queueName := range queue.WorkQueueNames(w.concurrency) {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("event worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)

			err := w.consumer.Consume(groupCtx, queueName, w.processMessage)
			if err != nil {
				w.logger.Error("event worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", queueName),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("event worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// processMessage retries transient failures with backoff. Missing references
// and invalid events are acknowledged without retry.
func (w *EventWorker) processMessage(ctx context.Context, msg queue.ShipmentEventMessage) error {
	w.metrics.IncEventWorkerInFlight()
	defer w.metrics.DecEventWorkerInFlight()

	event := msg.Event()

	var err error
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		err = w.handler.Handle(ctx, event)
		if err == nil {
			w.metrics.IncEventProcessed("ok")
			return nil
		}

		if isPermanentEventError(err) {
			w.metrics.IncEventProcessed("skipped")
			w.logger.Warn("skipping shipment event",
				zap.String("eventId", msg.EventID),
				zap.Int64("shipmentId", msg.ShipmentID),
				zap.Error(err),
			)
			return nil
		}

		if attempt == maxHandleAttempts {
			break
		}

		w.logger.Warn("shipment event failed, retrying",
			zap.String("eventId", msg.EventID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if sleepErr := w.sleep(ctx, w.computeRetryDelay(attempt)); sleepErr != nil {
			break
		}
	}

	w.metrics.IncEventProcessed("failed")
	return fmt.Errorf("%w: %w", domain.ErrDispatch, err)
}

func (w *EventWorker) computeRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	jitterMillis := 0
	if w.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = w.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func isPermanentEventError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

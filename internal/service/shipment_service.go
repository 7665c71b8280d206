package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/observability"
	"github.com/kursadbilgin/medtransit/internal/queue"
	"github.com/kursadbilgin/medtransit/internal/ratelimit"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"go.uber.org/zap"
)

const defaultEventPublishTimeout = 2 * time.Second

// ShipmentService is the single mutation path for shipment status.
type ShipmentService struct {
	shipments      repository.ShipmentRepository
	statuses       repository.StatusRepository
	guard          *PinGuard
	attempts       ratelimit.AttemptLimiter
	publisher      queue.Publisher
	logger         *zap.Logger
	metrics        *observability.Metrics
	now            func() time.Time
	newEventID     func() string
	publishTimeout time.Duration
}

// TransitionResult is the outcome of a committed transition. IssuedPIN is set
// only when this call generated a new PIN.
type TransitionResult struct {
	Shipment  *domain.Shipment
	Status    domain.StatusEntry
	IssuedPIN *string
}

type CreateShipmentInput struct {
	RequestID           *int64
	DonationID          *int64
	CarrierID           *int64
	CollectedAt         *time.Time
	EstimatedDeliveryAt *time.Time
	StatusName          string
}

// NewShipmentService wires the controller. attempts and publisher are
// optional: without a limiter every PIN attempt is checked, without a
// publisher no status events are emitted.
func NewShipmentService(
	shipments repository.ShipmentRepository,
	statuses repository.StatusRepository,
	guard *PinGuard,
	attempts ratelimit.AttemptLimiter,
	publisher queue.Publisher,
	logger *zap.Logger,
) (*ShipmentService, error) {
	if shipments == nil {
		return nil, fmt.Errorf("shipment repository is required")
	}
	if statuses == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	if guard == nil {
		guard = NewPinGuard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ShipmentService{
		shipments:      shipments,
		statuses:       statuses,
		guard:          guard,
		attempts:       attempts,
		publisher:      publisher,
		logger:         logger,
		now:            time.Now,
		newEventID:     uuid.NewString,
		publishTimeout: defaultEventPublishTimeout,
	}, nil
}

func (s *ShipmentService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Transition moves a shipment to the named catalog status. Distribution issues
// a fresh PIN; Delivered requires the outstanding PIN and clears it.
func (s *ShipmentService) Transition(
	ctx context.Context,
	shipmentID int64,
	statusName string,
	pin *string,
) (*TransitionResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if shipmentID <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", domain.ErrValidation)
	}
	if strings.TrimSpace(statusName) == "" {
		return nil, fmt.Errorf("%w: statusName is required", domain.ErrValidation)
	}

	catalog, err := s.statuses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load status catalog: %w", err)
	}

	logger := observability.WithContextLogger(s.logger, ctx)

	var (
		target    domain.StatusEntry
		issuedPIN *string
	)

	updated, err := s.shipments.MutateStatus(ctx, shipmentID, func(shipment *domain.Shipment) error {
		entry, err := catalog.Resolve(statusName)
		if err != nil {
			return err
		}
		target = entry

		switch entry.Kind() {
		case domain.StatusKindDistribution:
			if shipment.HasPIN() {
				logger.Warn("regenerating delivery pin; previously issued pin is no longer valid",
					zap.Int64("shipmentId", shipment.ID),
				)
			}
			generated := s.guard.Generate()
			shipment.PIN = &generated
			issuedPIN = &generated

		case domain.StatusKindDelivered:
			// Only guesses against an outstanding pin count toward the limit.
			if shipment.HasPIN() {
				if err := s.allowPinAttempt(ctx, shipment.ID); err != nil {
					return err
				}
			}
			supplied := ""
			if pin != nil {
				supplied = *pin
			}
			if err := s.guard.Validate(shipment.PIN, supplied); err != nil {
				return err
			}
			shipment.PIN = nil
		}

		shipment.StatusID = entry.ID
		return nil
	})
	if err != nil {
		if isPinRejection(err) {
			s.metrics.IncPinRejection(pinRejectionReason(err))
			logger.Info("delivery pin rejected",
				zap.Int64("shipmentId", shipmentID),
				zap.String("reason", pinRejectionReason(err)),
			)
		}
		return nil, err
	}

	kind := target.Kind()
	s.metrics.IncShipmentTransition(kind.String())
	logger.Info("shipment status changed",
		zap.Int64("shipmentId", updated.ID),
		zap.String("status", target.Name),
		zap.Bool("pinIssued", issuedPIN != nil),
	)

	s.emitStatusChanged(ctx, updated, target)

	return &TransitionResult{
		Shipment:  updated,
		Status:    target,
		IssuedPIN: issuedPIN,
	}, nil
}

// Create registers a shipment in its initial status, the Packing entry unless
// a name is given. A shipment cannot start at or past Distribution.
func (s *ShipmentService) Create(ctx context.Context, input CreateShipmentInput) (*domain.Shipment, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	catalog, err := s.statuses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load status catalog: %w", err)
	}

	entry, err := initialStatus(catalog, input.StatusName)
	if err != nil {
		return nil, err
	}

	shipment := &domain.Shipment{
		RequestID:           input.RequestID,
		DonationID:          input.DonationID,
		CarrierID:           input.CarrierID,
		StatusID:            entry.ID,
		CollectedAt:         input.CollectedAt,
		EstimatedDeliveryAt: input.EstimatedDeliveryAt,
	}
	if err := shipment.Validate(); err != nil {
		return nil, err
	}

	if err := s.shipments.Create(ctx, shipment); err != nil {
		return nil, err
	}
	return shipment, nil
}

func (s *ShipmentService) Get(ctx context.Context, id int64) (*domain.Shipment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", domain.ErrValidation)
	}
	return s.shipments.GetByID(ctx, id)
}

// Update edits carrier and dates. Status and PIN are out of its reach.
func (s *ShipmentService) Update(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: shipment id must be positive", domain.ErrValidation)
	}
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}

	current, err := s.shipments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	candidate := *current
	patch.Apply(&candidate)
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	return s.shipments.Update(ctx, id, patch)
}

func (s *ShipmentService) ListStatuses(ctx context.Context) (domain.StatusCatalog, error) {
	return s.statuses.List(ctx)
}

// StatusName resolves the catalog name of a status id for read projections.
func (s *ShipmentService) StatusName(ctx context.Context, statusID int64) (string, error) {
	catalog, err := s.statuses.List(ctx)
	if err != nil {
		return "", err
	}
	entry, ok := catalog.ByID(statusID)
	if !ok {
		return "", nil
	}
	return entry.Name, nil
}

func (s *ShipmentService) allowPinAttempt(ctx context.Context, shipmentID int64) error {
	if s.attempts == nil {
		return nil
	}

	allowed, err := s.attempts.Allow(ctx, fmt.Sprintf("shipment:%d", shipmentID))
	if err != nil {
		s.logger.Warn("pin attempt limiter unavailable, allowing attempt",
			zap.Int64("shipmentId", shipmentID),
			zap.Error(err),
		)
		return nil
	}
	if !allowed {
		return domain.ErrPinAttemptsExceeded
	}
	return nil
}

// emitStatusChanged hands the event to the queue. Failures never reach the
// caller; the committed status change stands.
func (s *ShipmentService) emitStatusChanged(ctx context.Context, shipment *domain.Shipment, status domain.StatusEntry) {
	if s.publisher == nil {
		return
	}

	event := domain.ShipmentStatusChanged{
		EventID:    s.newEventID(),
		ShipmentID: shipment.ID,
		RequestID:  shipment.RequestID,
		DonationID: shipment.DonationID,
		StatusID:   status.ID,
		StatusName: status.Name,
		Kind:       status.Kind(),
		OccurredAt: s.now().UTC(),
	}

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	err := s.publisher.Publish(publishCtx, queue.ShipmentEventsQueue, queue.NewShipmentEventMessage(event))
	if err == nil {
		return
	}

	reason := "publish_error"
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		reason = "queue_full"
	case errors.Is(err, queue.ErrQueueClosed):
		reason = "queue_closed"
	}
	s.metrics.IncEventDispatchFailure(reason)
	observability.WithContextLogger(s.logger, ctx).Error("failed to emit shipment status event",
		zap.Int64("shipmentId", shipment.ID),
		zap.String("eventId", event.EventID),
		zap.Error(fmt.Errorf("%w: %w", domain.ErrDispatch, err)),
	)
}

func initialStatus(catalog domain.StatusCatalog, name string) (domain.StatusEntry, error) {
	if strings.TrimSpace(name) == "" {
		if entry, ok := catalog.FirstOfKind(domain.StatusKindPacking); ok {
			return entry, nil
		}
		if len(catalog) == 0 {
			return domain.StatusEntry{}, fmt.Errorf("%w: status catalog is empty", domain.ErrValidation)
		}
		return catalog[0], nil
	}

	entry, err := catalog.Resolve(name)
	if err != nil {
		return domain.StatusEntry{}, err
	}
	switch entry.Kind() {
	case domain.StatusKindDistribution, domain.StatusKindDelivered:
		return domain.StatusEntry{}, fmt.Errorf("%w: a shipment cannot start in status %q", domain.ErrValidation, entry.Name)
	}
	return entry, nil
}

func isPinRejection(err error) bool {
	return errors.Is(err, domain.ErrPinMissing) ||
		errors.Is(err, domain.ErrPinRequired) ||
		errors.Is(err, domain.ErrPinMismatch) ||
		errors.Is(err, domain.ErrPinAttemptsExceeded)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/observability"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"go.uber.org/zap"
)

const (
	readRetention        = 5 * 24 * time.Hour
	maxRetention         = 30 * 24 * time.Hour
	maxStoredPerInbox    = 20
	recentListLimit      = 7
	evictionRuleRead     = "read_expired"
	evictionRuleAge      = "expired"
	evictionRuleOverflow = "overflow"
)

// Broadcaster pushes a freshly stored notification to live connections.
type Broadcaster interface {
	Broadcast(ctx context.Context, n domain.Notification) error
}

type NotificationService struct {
	notifications repository.NotificationRepository
	broadcaster   Broadcaster
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

type CreateNotificationInput struct {
	RecipientID int64
	Title       string
	Message     string
	Type        string
	Reference   *domain.Reference
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	broadcaster Broadcaster,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		broadcaster:   broadcaster,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Create persists an unread notification and hands it to the broadcaster.
// A failed broadcast is logged; the stored record stands.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	notification := &domain.Notification{
		RecipientID: input.RecipientID,
		Title:       strings.TrimSpace(input.Title),
		Message:     strings.TrimSpace(input.Message),
		Type:        strings.TrimSpace(input.Type),
		Read:        false,
		CreatedAt:   s.now().UTC(),
	}
	if input.Reference != nil {
		refID := input.Reference.ID
		refType := strings.TrimSpace(input.Reference.Type)
		notification.ReferenceID = &refID
		notification.ReferenceType = &refType
		if refType == "" {
			return nil, fmt.Errorf("%w: referenceType is required with referenceId", domain.ErrValidation)
		}
	}

	if err := notification.Validate(); err != nil {
		return nil, err
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, err
	}
	s.metrics.IncNotificationCreated(notification.Type)

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx, *notification); err != nil {
			observability.WithContextLogger(s.logger, ctx).Warn("failed to broadcast notification",
				zap.Int64("notificationId", notification.ID),
				zap.Int64("recipientId", notification.RecipientID),
				zap.Error(err),
			)
		}
	}

	return notification, nil
}

// ListRecent applies retention for the recipient, then returns the newest
// notifications first. Retention failures are logged and never hide the list.
func (s *NotificationService) ListRecent(ctx context.Context, recipientID int64) ([]domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if recipientID <= 0 {
		return nil, fmt.Errorf("%w: recipientId must be positive", domain.ErrValidation)
	}

	s.applyRetention(ctx, recipientID)

	return s.notifications.ListRecent(ctx, recipientID, recentListLimit)
}

func (s *NotificationService) MarkRead(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: notification id must be positive", domain.ErrValidation)
	}
	return s.notifications.MarkRead(ctx, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	if recipientID <= 0 {
		return 0, fmt.Errorf("%w: recipientId must be positive", domain.ErrValidation)
	}
	return s.notifications.MarkAllRead(ctx, recipientID)
}

func (s *NotificationService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: notification id must be positive", domain.ErrValidation)
	}
	return s.notifications.Delete(ctx, id)
}

// applyRetention runs the three eviction rules in order: read and older than
// five days, anything older than thirty days, then everything past the newest
// twenty.
func (s *NotificationService) applyRetention(ctx context.Context, recipientID int64) {
	logger := observability.WithContextLogger(s.logger, ctx)
	now := s.now().UTC()

	if deleted, err := s.notifications.DeleteReadOlderThan(ctx, recipientID, now.Add(-readRetention)); err != nil {
		logger.Error("retention: failed to delete old read notifications",
			zap.Int64("recipientId", recipientID),
			zap.Error(err),
		)
	} else {
		s.metrics.AddNotificationEvictions(evictionRuleRead, deleted)
	}

	if deleted, err := s.notifications.DeleteOlderThan(ctx, recipientID, now.Add(-maxRetention)); err != nil {
		logger.Error("retention: failed to delete expired notifications",
			zap.Int64("recipientId", recipientID),
			zap.Error(err),
		)
	} else {
		s.metrics.AddNotificationEvictions(evictionRuleAge, deleted)
	}

	if deleted, err := s.notifications.TrimToNewest(ctx, recipientID, maxStoredPerInbox); err != nil {
		logger.Error("retention: failed to trim notifications",
			zap.Int64("recipientId", recipientID),
			zap.Error(err),
		)
	} else {
		s.metrics.AddNotificationEvictions(evictionRuleOverflow, deleted)
	}
}

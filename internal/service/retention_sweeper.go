package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/medtransit/internal/observability"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"go.uber.org/zap"
)

const defaultSweepInterval = time.Hour

// RetentionSweeper periodically applies the age rules across all recipients,
// so inboxes nobody opens do not grow unbounded. The per-recipient cap is
// still enforced on read.
type RetentionSweeper struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	now           func() time.Time
}

func NewRetentionSweeper(
	notifications repository.NotificationRepository,
	interval time.Duration,
	logger *zap.Logger,
) (*RetentionSweeper, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetentionSweeper{
		notifications: notifications,
		logger:        logger,
		interval:      interval,
		now:           time.Now,
	}, nil
}

func (s *RetentionSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *RetentionSweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("retention sweeper initial run failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) error {
	now := s.now().UTC()

	readDeleted, expiredDeleted, err := s.notifications.PurgeExpired(ctx, now.Add(-readRetention), now.Add(-maxRetention))
	if err != nil {
		return fmt.Errorf("failed to purge expired notifications: %w", err)
	}

	s.metrics.AddNotificationEvictions(evictionRuleRead, readDeleted)
	s.metrics.AddNotificationEvictions(evictionRuleAge, expiredDeleted)

	if readDeleted > 0 || expiredDeleted > 0 {
		s.logger.Info("retention sweep removed notifications",
			zap.Int64("readExpired", readDeleted),
			zap.Int64("expired", expiredDeleted),
		)
	}
	return nil
}

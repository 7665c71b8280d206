package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListRecent(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	Delete(ctx context.Context, id int64) error

	DeleteReadOlderThan(ctx context.Context, recipientID int64, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, recipientID int64, cutoff time.Time) (int64, error)
	TrimToNewest(ctx context.Context, recipientID int64, keep int) (int64, error)

	// PurgeExpired applies the age rules to every recipient at once.
	PurgeExpired(ctx context.Context, readCutoff time.Time, cutoff time.Time) (readDeleted int64, expiredDeleted int64, err error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) ListRecent(ctx context.Context, recipientID int64, limit int) ([]domain.Notification, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications, nil
}

func (r *GormNotificationRepo) MarkRead(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepo) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&NotificationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) DeleteReadOlderThan(ctx context.Context, recipientID int64, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND is_read = ? AND created_at < ?", recipientID, true, cutoff).
		Delete(&NotificationModel{})
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepo) DeleteOlderThan(ctx context.Context, recipientID int64, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND created_at < ?", recipientID, cutoff).
		Delete(&NotificationModel{})
	return result.RowsAffected, result.Error
}

// TrimToNewest deletes everything but the keep newest rows of a recipient.
func (r *GormNotificationRepo) TrimToNewest(ctx context.Context, recipientID int64, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	newest := r.db.
		Model(&NotificationModel{}).
		Select("id").
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Limit(keep)

	result := r.db.WithContext(ctx).
		Where("recipient_id = ? AND id NOT IN (?)", recipientID, newest).
		Delete(&NotificationModel{})
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepo) PurgeExpired(ctx context.Context, readCutoff time.Time, cutoff time.Time) (int64, int64, error) {
	var readDeleted, expiredDeleted int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("is_read = ? AND created_at < ?", true, readCutoff).
			Delete(&NotificationModel{})
		if result.Error != nil {
			return result.Error
		}
		readDeleted = result.RowsAffected

		result = tx.
			Where("created_at < ?", cutoff).
			Delete(&NotificationModel{})
		if result.Error != nil {
			return result.Error
		}
		expiredDeleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return readDeleted, expiredDeleted, nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ShipmentMutation changes a locked shipment in place. Returning an error rolls
// the whole transaction back.
type ShipmentMutation func(s *domain.Shipment) error

type ShipmentRepository interface {
	Create(ctx context.Context, s *domain.Shipment) error
	GetByID(ctx context.Context, id int64) (*domain.Shipment, error)
	Update(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error)
	MutateStatus(ctx context.Context, id int64, mutate ShipmentMutation) (*domain.Shipment, error)
}

type GormShipmentRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormShipmentRepo(db *gorm.DB) *GormShipmentRepo {
	return &GormShipmentRepo{db: db, now: time.Now}
}

func (r *GormShipmentRepo) Create(ctx context.Context, s *domain.Shipment) error {
	model := shipmentModelFromDomain(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if s != nil {
		*s = *shipmentModelToDomain(model)
	}
	return nil
}

func (r *GormShipmentRepo) GetByID(ctx context.Context, id int64) (*domain.Shipment, error) {
	var model ShipmentModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return shipmentModelToDomain(&model), nil
}

func (r *GormShipmentRepo) Update(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error) {
	updates := map[string]any{"updated_at": r.now().UTC()}
	if patch.CarrierID != nil {
		updates["carrier_id"] = *patch.CarrierID
	}
	if patch.CollectedAt != nil {
		updates["collected_at"] = *patch.CollectedAt
	}
	if patch.EstimatedDeliveryAt != nil {
		updates["estimated_delivery_at"] = *patch.EstimatedDeliveryAt
	}

	result := r.db.WithContext(ctx).
		Model(&ShipmentModel{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// MutateStatus loads the shipment under a row lock, applies mutate and writes
// status, pin and updated_at back in the same transaction.
func (r *GormShipmentRepo) MutateStatus(ctx context.Context, id int64, mutate ShipmentMutation) (*domain.Shipment, error) {
	var updated *domain.Shipment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ShipmentModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		shipment := shipmentModelToDomain(&model)
		if err := mutate(shipment); err != nil {
			return err
		}
		shipment.UpdatedAt = r.now().UTC()

		if err := tx.Model(&ShipmentModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status_id":  shipment.StatusID,
				"pin":        shipment.PIN,
				"updated_at": shipment.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		updated = shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

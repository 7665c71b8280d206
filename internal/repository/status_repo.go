package repository

import (
	"context"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"gorm.io/gorm"
)

type StatusRepository interface {
	List(ctx context.Context) (domain.StatusCatalog, error)
}

type GormStatusRepo struct {
	db *gorm.DB
}

func NewGormStatusRepo(db *gorm.DB) *GormStatusRepo {
	return &GormStatusRepo{db: db}
}

func (r *GormStatusRepo) List(ctx context.Context) (domain.StatusCatalog, error) {
	var models []ShipmentStatusModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	catalog := make(domain.StatusCatalog, 0, len(models))
	for i := range models {
		catalog = append(catalog, statusModelToDomain(&models[i]))
	}
	return catalog, nil
}

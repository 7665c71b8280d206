package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"gorm.io/gorm"
)

// RecipientResolver finds the institution receiving a shipment.
type RecipientResolver interface {
	ReceivingInstitution(ctx context.Context, requestID *int64, donationID *int64) (int64, error)
}

type GormRecipientResolver struct {
	db *gorm.DB
}

func NewGormRecipientResolver(db *gorm.DB) *GormRecipientResolver {
	return &GormRecipientResolver{db: db}
}

// ReceivingInstitution prefers the logistics request, whose requester is the
// receiver, and falls back to the donation's receiving institution.
func (r *GormRecipientResolver) ReceivingInstitution(ctx context.Context, requestID *int64, donationID *int64) (int64, error) {
	if requestID != nil {
		var request LogisticsRequestModel
		err := r.db.WithContext(ctx).
			Select("id", "requesting_institution_id").
			First(&request, "id = ?", *requestID).Error
		if err == nil {
			return request.RequestingInstitutionID, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		if donationID == nil {
			return 0, fmt.Errorf("%w: logistics request %d", domain.ErrNotFound, *requestID)
		}
	}

	if donationID != nil {
		var donation DonationModel
		err := r.db.WithContext(ctx).
			Select("id", "receiving_institution_id").
			First(&donation, "id = ?", *donationID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("%w: donation %d", domain.ErrNotFound, *donationID)
		}
		if err != nil {
			return 0, err
		}
		return donation.ReceivingInstitutionID, nil
	}

	return 0, fmt.Errorf("%w: shipment has no request or donation reference", domain.ErrValidation)
}

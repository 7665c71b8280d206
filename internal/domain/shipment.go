package domain

import (
	"fmt"
	"time"
)

// Shipment is the tracked transfer of a medication batch between institutions.
// It points at either the logistics request or the donation it fulfils.
type Shipment struct {
	ID                  int64
	RequestID           *int64
	DonationID          *int64
	CarrierID           *int64
	StatusID            int64
	PIN                 *string
	CollectedAt         *time.Time
	EstimatedDeliveryAt *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasPIN reports whether a delivery PIN is currently outstanding.
func (s *Shipment) HasPIN() bool {
	return s != nil && s.PIN != nil && *s.PIN != ""
}

func (s *Shipment) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: shipment is required", ErrValidation)
	}
	if s.RequestID == nil && s.DonationID == nil {
		return fmt.Errorf("%w: requestId or donationId is required", ErrValidation)
	}
	if s.RequestID != nil && *s.RequestID <= 0 {
		return fmt.Errorf("%w: requestId must be positive", ErrValidation)
	}
	if s.DonationID != nil && *s.DonationID <= 0 {
		return fmt.Errorf("%w: donationId must be positive", ErrValidation)
	}
	if s.CarrierID != nil && *s.CarrierID <= 0 {
		return fmt.Errorf("%w: carrierId must be positive", ErrValidation)
	}
	if s.CollectedAt != nil && s.EstimatedDeliveryAt != nil && s.EstimatedDeliveryAt.Before(*s.CollectedAt) {
		return fmt.Errorf("%w: estimatedDeliveryAt is before collectedAt", ErrValidation)
	}
	return nil
}

// ShipmentPatch holds the operator editable fields. Status and PIN are not
// part of it; they only change through a status transition.
type ShipmentPatch struct {
	CarrierID           *int64
	CollectedAt         *time.Time
	EstimatedDeliveryAt *time.Time
}

func (p ShipmentPatch) IsEmpty() bool {
	return p.CarrierID == nil && p.CollectedAt == nil && p.EstimatedDeliveryAt == nil
}

// Apply copies the set fields onto the shipment.
func (p ShipmentPatch) Apply(s *Shipment) {
	if p.CarrierID != nil {
		s.CarrierID = p.CarrierID
	}
	if p.CollectedAt != nil {
		s.CollectedAt = p.CollectedAt
	}
	if p.EstimatedDeliveryAt != nil {
		s.EstimatedDeliveryAt = p.EstimatedDeliveryAt
	}
}

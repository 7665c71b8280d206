package domain

import (
	"fmt"
	"time"
)

// ShipmentStatusChanged is emitted after a status transition commits.
type ShipmentStatusChanged struct {
	EventID    string
	ShipmentID int64
	RequestID  *int64
	DonationID *int64
	StatusID   int64
	StatusName string
	Kind       StatusKind
	OccurredAt time.Time
}

func (e ShipmentStatusChanged) Validate() error {
	if e.ShipmentID <= 0 {
		return fmt.Errorf("%w: shipmentId must be positive", ErrValidation)
	}
	if e.RequestID == nil && e.DonationID == nil {
		return fmt.Errorf("%w: requestId or donationId is required", ErrValidation)
	}
	if e.StatusName == "" {
		return fmt.Errorf("%w: statusName is required", ErrValidation)
	}
	return nil
}

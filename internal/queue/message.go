package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
)

// ShipmentEventMessage is the broker payload for a committed status change.
type ShipmentEventMessage struct {
	EventID    string    `json:"eventId"`
	ShipmentID int64     `json:"shipmentId"`
	RequestID  *int64    `json:"requestId,omitempty"`
	DonationID *int64    `json:"donationId,omitempty"`
	StatusID   int64     `json:"statusId"`
	StatusName string    `json:"statusName"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewShipmentEventMessage(event domain.ShipmentStatusChanged) ShipmentEventMessage {
	return ShipmentEventMessage{
		EventID:    event.EventID,
		ShipmentID: event.ShipmentID,
		RequestID:  event.RequestID,
		DonationID: event.DonationID,
		StatusID:   event.StatusID,
		StatusName: event.StatusName,
		Kind:       event.Kind.String(),
		OccurredAt: event.OccurredAt,
	}
}

// Event rebuilds the domain event with the kind the producer resolved from the
// catalog entry. Messages without a kind fall back to the status name.
func (m ShipmentEventMessage) Event() domain.ShipmentStatusChanged {
	kind, ok := domain.ParseStatusKindString(m.Kind)
	if !ok {
		kind = domain.ParseStatusKind(m.StatusName)
	}

	return domain.ShipmentStatusChanged{
		EventID:    m.EventID,
		ShipmentID: m.ShipmentID,
		RequestID:  m.RequestID,
		DonationID: m.DonationID,
		StatusID:   m.StatusID,
		StatusName: m.StatusName,
		Kind:       kind,
		OccurredAt: m.OccurredAt,
	}
}

func (m ShipmentEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return fmt.Errorf("eventId is required")
	}
	if m.ShipmentID <= 0 {
		return fmt.Errorf("shipmentId must be positive")
	}
	if m.RequestID == nil && m.DonationID == nil {
		return fmt.Errorf("requestId or donationId is required")
	}
	if strings.TrimSpace(m.StatusName) == "" {
		return fmt.Errorf("statusName is required")
	}
	return nil
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// Notification types produced by the shipment flow. Other producers may use
// any non-empty type tag.
const (
	NotificationTypeShipmentStatus = "shipment_status"
	NotificationTypePinDelivery    = "pin_delivery"
)

const ReferenceTypeShipment = "shipment"

const (
	MaxTitleLength   = 255
	MaxTypeLength    = 64
	MaxMessageLength = 2000
)

// Notification is a persisted, recipient scoped event record. Only Read changes
// after creation.
type Notification struct {
	ID            int64
	RecipientID   int64
	Title         string
	Message       string
	Type          string
	Read          bool
	ReferenceID   *int64
	ReferenceType *string
	CreatedAt     time.Time
}

// Reference points a notification at a domain object for client routing.
type Reference struct {
	ID   int64
	Type string
}

func (n *Notification) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", ErrValidation)
	}
	if n.RecipientID <= 0 {
		return fmt.Errorf("%w: recipientId must be positive", ErrValidation)
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if strings.TrimSpace(n.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}

	if l := len([]rune(n.Title)); l > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters (got %d)", ErrValidation, MaxTitleLength, l)
	}
	if l := len([]rune(n.Message)); l > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxMessageLength, l)
	}
	if l := len(n.Type); l > MaxTypeLength {
		return fmt.Errorf("%w: type exceeds %d characters (got %d)", ErrValidation, MaxTypeLength, l)
	}

	if (n.ReferenceID == nil) != (n.ReferenceType == nil) {
		return fmt.Errorf("%w: referenceId and referenceType must be set together", ErrValidation)
	}
	return nil
}

package live

import (
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
)

type FrameType string

const (
	FrameConnected       FrameType = "connected"
	FrameNewNotification FrameType = "new_notification"
)

// Frame is one server-sent event payload.
type Frame struct {
	Type         FrameType            `json:"type"`
	Notification *NotificationPayload `json:"notification,omitempty"`
}

// NotificationPayload is the wire shape of a notification, shared by the
// stream and the REST listing.
type NotificationPayload struct {
	ID            int64     `json:"id"`
	RecipientID   int64     `json:"recipientId"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	Type          string    `json:"type"`
	Read          bool      `json:"read"`
	ReferenceID   *int64    `json:"referenceId,omitempty"`
	ReferenceType *string   `json:"referenceType,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

func NewNotificationPayload(n domain.Notification) NotificationPayload {
	return NotificationPayload{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		Title:         n.Title,
		Message:       n.Message,
		Type:          n.Type,
		Read:          n.Read,
		ReferenceID:   n.ReferenceID,
		ReferenceType: n.ReferenceType,
		CreatedAt:     n.CreatedAt,
	}
}

func (p NotificationPayload) Notification() domain.Notification {
	return domain.Notification{
		ID:            p.ID,
		RecipientID:   p.RecipientID,
		Title:         p.Title,
		Message:       p.Message,
		Type:          p.Type,
		Read:          p.Read,
		ReferenceID:   p.ReferenceID,
		ReferenceType: p.ReferenceType,
		CreatedAt:     p.CreatedAt,
	}
}

func connectedFrame() Frame {
	return Frame{Type: FrameConnected}
}

func notificationFrame(n domain.Notification) Frame {
	payload := NewNotificationPayload(n)
	return Frame{Type: FrameNewNotification, Notification: &payload}
}

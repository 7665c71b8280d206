package service

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"go.uber.org/zap"
)

// NotificationCreator is the part of the notification store the event glue
// needs.
type NotificationCreator interface {
	Create(ctx context.Context, input CreateNotificationInput) (*domain.Notification, error)
}

type notificationContent struct {
	Type    string
	Title   string
	Message string
}

// ShipmentEventNotifier turns committed status changes into notifications for
// the receiving institution.
type ShipmentEventNotifier struct {
	recipients    repository.RecipientResolver
	notifications NotificationCreator
	logger        *zap.Logger
}

func NewShipmentEventNotifier(
	recipients repository.RecipientResolver,
	notifications NotificationCreator,
	logger *zap.Logger,
) (*ShipmentEventNotifier, error) {
	if recipients == nil {
		return nil, fmt.Errorf("recipient resolver is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification creator is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ShipmentEventNotifier{
		recipients:    recipients,
		notifications: notifications,
		logger:        logger,
	}, nil
}

// Handle stores the notification for event, if its status kind produces one.
// The PIN itself is never part of the message.
func (n *ShipmentEventNotifier) Handle(ctx context.Context, event domain.ShipmentStatusChanged) error {
	if err := event.Validate(); err != nil {
		return err
	}

	content, ok := contentFor(event)
	if !ok {
		return nil
	}

	recipientID, err := n.recipients.ReceivingInstitution(ctx, event.RequestID, event.DonationID)
	if err != nil {
		return fmt.Errorf("failed to resolve receiving institution for shipment %d: %w", event.ShipmentID, err)
	}

	created, err := n.notifications.Create(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		Title:       content.Title,
		Message:     content.Message,
		Type:        content.Type,
		Reference: &domain.Reference{
			ID:   event.ShipmentID,
			Type: domain.ReferenceTypeShipment,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store shipment notification: %w", err)
	}

	n.logger.Info("shipment notification stored",
		zap.String("eventId", event.EventID),
		zap.Int64("shipmentId", event.ShipmentID),
		zap.Int64("recipientId", recipientID),
		zap.Int64("notificationId", created.ID),
		zap.String("type", created.Type),
	)
	return nil
}

func contentFor(event domain.ShipmentStatusChanged) (notificationContent, bool) {
	switch event.Kind {
	case domain.StatusKindInTransit:
		return notificationContent{
			Type:    domain.NotificationTypeShipmentStatus,
			Title:   "Envío en tránsito",
			Message: fmt.Sprintf("El envío #%d está en camino hacia su institución.", event.ShipmentID),
		}, true
	case domain.StatusKindDistribution:
		return notificationContent{
			Type:  domain.NotificationTypePinDelivery,
			Title: "PIN de entrega emitido",
			Message: fmt.Sprintf(
				"El envío #%d está en distribución. Se emitió un PIN de confirmación que deberá entregarse al recibir el envío.",
				event.ShipmentID,
			),
		}, true
	case domain.StatusKindDelivered:
		return notificationContent{
			Type:    domain.NotificationTypeShipmentStatus,
			Title:   "Envío entregado",
			Message: fmt.Sprintf("El envío #%d fue entregado y confirmado con su PIN.", event.ShipmentID),
		}, true
	default:
		return notificationContent{}, false
	}
}

package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/live"
	"github.com/kursadbilgin/medtransit/internal/service"
)

type NotificationService interface {
	Create(ctx context.Context, input service.CreateNotificationInput) (*domain.Notification, error)
	ListRecent(ctx context.Context, recipientID int64) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context, recipientID int64) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/notifications", h.ListNotifications)
	v1.Post("/notifications", h.CreateNotification)
	v1.Patch("/notifications/read-all", h.MarkAllRead)
	v1.Patch("/notifications/:id/read", h.MarkRead)
	v1.Delete("/notifications/:id", h.DeleteNotification)

	return nil
}

type createNotificationRequest struct {
	RecipientID   int64   `json:"recipientId"`
	Title         string  `json:"title"`
	Message       string  `json:"message"`
	Type          string  `json:"type"`
	ReferenceID   *int64  `json:"referenceId"`
	ReferenceType *string `json:"referenceType"`
}

type listNotificationsResponse struct {
	Notifications []live.NotificationPayload `json:"notifications"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input, err := requestToNotificationInput(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.UserContext(), input)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(live.NewNotificationPayload(*created))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	recipientID, err := parseRecipientID(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, err := h.service.ListRecent(c.UserContext(), recipientID)
	if err != nil {
		return toHTTPError(err)
	}

	payloads := make([]live.NotificationPayload, 0, len(notifications))
	for _, n := range notifications {
		payloads = append(payloads, live.NewNotificationPayload(n))
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{Notifications: payloads})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.service.MarkRead(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"id":   id,
		"read": true,
	})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	recipientID, err := parseRecipientID(c)
	if err != nil {
		return toHTTPError(err)
	}

	updated, err := h.service.MarkAllRead(c.UserContext(), recipientID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"recipientId": recipientID,
		"updated":     updated,
	})
}

func (h *NotificationHandler) DeleteNotification(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func requestToNotificationInput(req createNotificationRequest) (service.CreateNotificationInput, error) {
	input := service.CreateNotificationInput{
		RecipientID: req.RecipientID,
		Title:       req.Title,
		Message:     req.Message,
		Type:        req.Type,
	}

	if (req.ReferenceID == nil) != (req.ReferenceType == nil) {
		return service.CreateNotificationInput{}, fmt.Errorf("%w: referenceId and referenceType must be set together", domain.ErrValidation)
	}
	if req.ReferenceID != nil {
		input.Reference = &domain.Reference{ID: *req.ReferenceID, Type: *req.ReferenceType}
	}

	return input, nil
}

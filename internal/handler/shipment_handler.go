package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/service"
)

type ShipmentService interface {
	Create(ctx context.Context, input service.CreateShipmentInput) (*domain.Shipment, error)
	Get(ctx context.Context, id int64) (*domain.Shipment, error)
	Update(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error)
	Transition(ctx context.Context, shipmentID int64, statusName string, pin *string) (*service.TransitionResult, error)
	ListStatuses(ctx context.Context) (domain.StatusCatalog, error)
	StatusName(ctx context.Context, statusID int64) (string, error)
}

type ShipmentHandler struct {
	service ShipmentService
}

func NewShipmentHandler(service ShipmentService) (*ShipmentHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("shipment service is required")
	}
	return &ShipmentHandler{service: service}, nil
}

func RegisterShipmentRoutes(router fiber.Router, service ShipmentService) error {
	h, err := NewShipmentHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/shipment-statuses", h.ListStatuses)
	v1.Post("/shipments", h.CreateShipment)
	v1.Get("/shipments/:id", h.GetShipment)
	v1.Patch("/shipments/:id", h.UpdateShipment)
	v1.Post("/shipments/:id/status", h.TransitionStatus)

	return nil
}

type createShipmentRequest struct {
	RequestID           *int64     `json:"requestId"`
	DonationID          *int64     `json:"donationId"`
	CarrierID           *int64     `json:"carrierId"`
	CollectedAt         *time.Time `json:"collectedAt"`
	EstimatedDeliveryAt *time.Time `json:"estimatedDeliveryAt"`
	StatusName          string     `json:"statusName"`
}

type updateShipmentRequest struct {
	CarrierID           *int64     `json:"carrierId"`
	CollectedAt         *time.Time `json:"collectedAt"`
	EstimatedDeliveryAt *time.Time `json:"estimatedDeliveryAt"`
}

type transitionRequest struct {
	StatusName string  `json:"statusName"`
	PIN        *string `json:"pin"`
}

// shipmentResponse never carries the PIN; PinIssued only says one is
// outstanding.
type shipmentResponse struct {
	ID                  int64      `json:"id"`
	RequestID           *int64     `json:"requestId,omitempty"`
	DonationID          *int64     `json:"donationId,omitempty"`
	CarrierID           *int64     `json:"carrierId,omitempty"`
	StatusID            int64      `json:"statusId"`
	Status              string     `json:"status"`
	PinIssued           bool       `json:"pinIssued"`
	CollectedAt         *time.Time `json:"collectedAt,omitempty"`
	EstimatedDeliveryAt *time.Time `json:"estimatedDeliveryAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

type transitionResponse struct {
	Shipment shipmentResponse `json:"shipment"`
	PIN      *string          `json:"pin,omitempty"`
}

type statusResponse struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (h *ShipmentHandler) CreateShipment(c *fiber.Ctx) error {
	var req createShipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	created, err := h.service.Create(ctx, service.CreateShipmentInput{
		RequestID:           req.RequestID,
		DonationID:          req.DonationID,
		CarrierID:           req.CarrierID,
		CollectedAt:         req.CollectedAt,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
		StatusName:          req.StatusName,
	})
	if err != nil {
		return toHTTPError(err)
	}

	resp, err := h.project(ctx, created)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *ShipmentHandler) GetShipment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return toHTTPError(err)
	}

	ctx := c.UserContext()
	shipment, err := h.service.Get(ctx, id)
	if err != nil {
		return toHTTPError(err)
	}

	resp, err := h.project(ctx, shipment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ShipmentHandler) UpdateShipment(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return toHTTPError(err)
	}

	var req updateShipmentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	updated, err := h.service.Update(ctx, id, domain.ShipmentPatch{
		CarrierID:           req.CarrierID,
		CollectedAt:         req.CollectedAt,
		EstimatedDeliveryAt: req.EstimatedDeliveryAt,
	})
	if err != nil {
		return toHTTPError(err)
	}

	resp, err := h.project(ctx, updated)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *ShipmentHandler) TransitionStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return toHTTPError(err)
	}

	var req transitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.Transition(c.UserContext(), id, req.StatusName, req.PIN)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(transitionResponse{
		Shipment: toShipmentResponse(result.Shipment, result.Status.Name),
		PIN:      result.IssuedPIN,
	})
}

func (h *ShipmentHandler) ListStatuses(c *fiber.Ctx) error {
	catalog, err := h.service.ListStatuses(c.UserContext())
	if err != nil {
		return toHTTPError(err)
	}

	statuses := make([]statusResponse, 0, len(catalog))
	for _, entry := range catalog {
		statuses = append(statuses, statusResponse{
			ID:          entry.ID,
			Name:        entry.Name,
			Label:       entry.Label,
			Description: entry.Description,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"statuses": statuses,
	})
}

func (h *ShipmentHandler) project(ctx context.Context, shipment *domain.Shipment) (shipmentResponse, error) {
	name, err := h.service.StatusName(ctx, shipment.StatusID)
	if err != nil {
		return shipmentResponse{}, err
	}
	return toShipmentResponse(shipment, name), nil
}

func toShipmentResponse(s *domain.Shipment, statusName string) shipmentResponse {
	if s == nil {
		return shipmentResponse{}
	}

	return shipmentResponse{
		ID:                  s.ID,
		RequestID:           s.RequestID,
		DonationID:          s.DonationID,
		CarrierID:           s.CarrierID,
		StatusID:            s.StatusID,
		Status:              statusName,
		PinIssued:           s.HasPIN(),
		CollectedAt:         s.CollectedAt,
		EstimatedDeliveryAt: s.EstimatedDeliveryAt,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

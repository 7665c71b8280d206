package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/service"
	"github.com/kursadbilgin/medtransit/internal/transport"
	"go.uber.org/zap"
)

func TestShipmentIntegration_TransitionIssuesPIN(t *testing.T) {
	t.Parallel()

	pin := "4821"
	requestID := int64(11)
	svc := &stubShipmentService{
		transitionFn: func(ctx context.Context, id int64, statusName string, supplied *string) (*service.TransitionResult, error) {
			if id != 42 {
				t.Errorf("shipment id = %d, want 42", id)
			}
			if statusName != "Distribución" {
				t.Errorf("statusName = %q, want Distribución", statusName)
			}
			if supplied != nil {
				t.Errorf("pin = %q, want nil", *supplied)
			}
			return &service.TransitionResult{
				Shipment:  &domain.Shipment{ID: 42, RequestID: &requestID, StatusID: 4, PIN: &pin},
				Status:    testShipmentStatuses[3],
				IssuedPIN: &pin,
			}, nil
		},
	}

	app := newShipmentTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/shipments/42/status", `{"statusName":"Distribución"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var got struct {
		Shipment map[string]any `json:"shipment"`
		PIN      *string        `json:"pin"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if got.PIN == nil || *got.PIN != "4821" {
		t.Fatalf("pin = %v, want 4821", got.PIN)
	}
	if got.Shipment["status"] != "Distribución" {
		t.Fatalf("shipment.status = %v, want Distribución", got.Shipment["status"])
	}
	if got.Shipment["pinIssued"] != true {
		t.Fatalf("shipment.pinIssued = %v, want true", got.Shipment["pinIssued"])
	}
	if _, leaked := got.Shipment["pin"]; leaked {
		t.Fatalf("shipment projection must not carry the pin: %s", string(body))
	}
}

func TestShipmentIntegration_DeliveredOmitsPIN(t *testing.T) {
	t.Parallel()

	svc := &stubShipmentService{
		transitionFn: func(ctx context.Context, id int64, statusName string, supplied *string) (*service.TransitionResult, error) {
			if supplied == nil || *supplied != "4821" {
				t.Errorf("pin = %v, want 4821", supplied)
			}
			return &service.TransitionResult{
				Shipment: &domain.Shipment{ID: id, StatusID: 5},
				Status:   testShipmentStatuses[4],
			}, nil
		},
	}

	app := newShipmentTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/shipments/42/status", `{"statusName":"Entregado","pin":"4821"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if _, ok := got["pin"]; ok {
		t.Fatalf("pin must be omitted when none was issued: %s", string(body))
	}
	shipment := got["shipment"].(map[string]any)
	if shipment["pinIssued"] != false {
		t.Fatalf("shipment.pinIssued = %v, want false", shipment["pinIssued"])
	}
}

func TestShipmentIntegration_TransitionErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unknown shipment", err: fmt.Errorf("%w: shipment 999", domain.ErrNotFound), wantStatus: fiber.StatusNotFound},
		{name: "unknown status", err: &domain.UnknownStatusError{Name: "Perdido", Valid: []string{"Embalaje", "Entregado"}}, wantStatus: fiber.StatusBadRequest},
		{name: "validation", err: fmt.Errorf("%w: statusName is required", domain.ErrValidation), wantStatus: fiber.StatusBadRequest},
		{name: "pin required", err: domain.ErrPinRequired, wantStatus: fiber.StatusBadRequest},
		{name: "pin missing", err: domain.ErrPinMissing, wantStatus: fiber.StatusBadRequest},
		{name: "pin mismatch", err: domain.ErrPinMismatch, wantStatus: fiber.StatusUnauthorized},
		{name: "attempts exceeded", err: domain.ErrPinAttemptsExceeded, wantStatus: fiber.StatusTooManyRequests},
		{name: "persistence failure", err: errors.New("connection reset"), wantStatus: fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubShipmentService{
				transitionFn: func(context.Context, int64, string, *string) (*service.TransitionResult, error) {
					return nil, tt.err
				},
			}
			app := newShipmentTestApp(t, svc)

			resp, body := performRequest(t, app, http.MethodPost, "/v1/shipments/42/status", `{"statusName":"Entregado","pin":"0000"}`)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tt.wantStatus, string(body))
			}

			var got map[string]any
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatalf("json unmarshal error = %v", err)
			}
			if _, ok := got["error"]; !ok {
				t.Fatalf("body missing error: %s", string(body))
			}
		})
	}
}

func TestShipmentIntegration_UnknownStatusListsValidNames(t *testing.T) {
	t.Parallel()

	svc := &stubShipmentService{
		transitionFn: func(context.Context, int64, string, *string) (*service.TransitionResult, error) {
			return nil, &domain.UnknownStatusError{Name: "Perdido", Valid: []string{"Embalaje", "Entregado"}}
		},
	}
	app := newShipmentTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/shipments/42/status", `{"statusName":"Perdido"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}

	var got struct {
		Error         string   `json:"error"`
		ValidStatuses []string `json:"validStatuses"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(got.ValidStatuses) != 2 || got.ValidStatuses[0] != "Embalaje" || got.ValidStatuses[1] != "Entregado" {
		t.Fatalf("validStatuses = %v, want [Embalaje Entregado]", got.ValidStatuses)
	}
}

func TestShipmentIntegration_RejectsBadInput(t *testing.T) {
	t.Parallel()

	called := false
	svc := &stubShipmentService{
		transitionFn: func(context.Context, int64, string, *string) (*service.TransitionResult, error) {
			called = true
			return nil, errors.New("unexpected call")
		},
	}
	app := newShipmentTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/shipments/abc/status", `{"statusName":"Entregado"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("non-numeric id status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, app, http.MethodPost, "/v1/shipments/0/status", `{"statusName":"Entregado"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("zero id status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, app, http.MethodPost, "/v1/shipments/42/status", `{"statusName":`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400, body=%s", resp.StatusCode, string(body))
	}

	if called {
		t.Fatal("service must not be called for rejected input")
	}
}

func TestShipmentIntegration_CreateGetUpdate(t *testing.T) {
	t.Parallel()

	requestID := int64(11)
	carrierID := int64(3)
	stored := &domain.Shipment{
		ID:        42,
		RequestID: &requestID,
		StatusID:  1,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	svc := &stubShipmentService{
		createFn: func(ctx context.Context, input service.CreateShipmentInput) (*domain.Shipment, error) {
			if input.RequestID == nil || *input.RequestID != 11 {
				t.Errorf("requestId = %v, want 11", input.RequestID)
			}
			return stored, nil
		},
		getFn: func(ctx context.Context, id int64) (*domain.Shipment, error) {
			if id != 42 {
				return nil, fmt.Errorf("%w: shipment %d", domain.ErrNotFound, id)
			}
			return stored, nil
		},
		updateFn: func(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error) {
			if patch.CarrierID == nil || *patch.CarrierID != carrierID {
				t.Errorf("carrierId = %v, want 3", patch.CarrierID)
			}
			updated := *stored
			updated.CarrierID = patch.CarrierID
			return &updated, nil
		},
	}
	app := newShipmentTestApp(t, svc)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/shipments", `{"requestId":11}`)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create status = %d, want 201, body=%s", resp.StatusCode, string(body))
	}
	var created map[string]any
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if created["status"] != "Embalaje" {
		t.Fatalf("created status = %v, want Embalaje", created["status"])
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/shipments/42", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("get status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, app, http.MethodGet, "/v1/shipments/7", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("get unknown status = %d, want 404, body=%s", resp.StatusCode, string(body))
	}

	resp, body = performRequest(t, app, http.MethodPatch, "/v1/shipments/42", `{"carrierId":3}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("update status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	var updated map[string]any
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if updated["carrierId"] != float64(3) {
		t.Fatalf("carrierId = %v, want 3", updated["carrierId"])
	}
}

func TestShipmentIntegration_ListStatuses(t *testing.T) {
	t.Parallel()

	app := newShipmentTestApp(t, &stubShipmentService{})

	resp, body := performRequest(t, app, http.MethodGet, "/v1/shipment-statuses", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var got struct {
		Statuses []statusResponse `json:"statuses"`
	}
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(got.Statuses) != len(testShipmentStatuses) {
		t.Fatalf("statuses = %d, want %d", len(got.Statuses), len(testShipmentStatuses))
	}
	if got.Statuses[3].Name != "Distribución" {
		t.Fatalf("statuses[3] = %q, want Distribución", got.Statuses[3].Name)
	}
}

var testShipmentStatuses = domain.StatusCatalog{
	{ID: 1, Name: "Embalaje"},
	{ID: 2, Name: "Preparando"},
	{ID: 3, Name: "En tránsito"},
	{ID: 4, Name: "Distribución"},
	{ID: 5, Name: "Entregado"},
}

type stubShipmentService struct {
	createFn     func(ctx context.Context, input service.CreateShipmentInput) (*domain.Shipment, error)
	getFn        func(ctx context.Context, id int64) (*domain.Shipment, error)
	updateFn     func(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error)
	transitionFn func(ctx context.Context, id int64, statusName string, pin *string) (*service.TransitionResult, error)
}

func (s *stubShipmentService) Create(ctx context.Context, input service.CreateShipmentInput) (*domain.Shipment, error) {
	if s.createFn != nil {
		return s.createFn(ctx, input)
	}
	return nil, errors.New("not implemented")
}

func (s *stubShipmentService) Get(ctx context.Context, id int64) (*domain.Shipment, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (s *stubShipmentService) Update(ctx context.Context, id int64, patch domain.ShipmentPatch) (*domain.Shipment, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, id, patch)
	}
	return nil, errors.New("not implemented")
}

func (s *stubShipmentService) Transition(
	ctx context.Context,
	id int64,
	statusName string,
	pin *string,
) (*service.TransitionResult, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, id, statusName, pin)
	}
	return nil, errors.New("not implemented")
}

func (s *stubShipmentService) ListStatuses(context.Context) (domain.StatusCatalog, error) {
	return testShipmentStatuses, nil
}

func (s *stubShipmentService) StatusName(_ context.Context, statusID int64) (string, error) {
	entry, ok := testShipmentStatuses.ByID(statusID)
	if !ok {
		return "", nil
	}
	return entry.Name, nil
}

func newShipmentTestApp(t *testing.T, svc ShipmentService) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterShipmentRoutes(app, svc); err != nil {
		t.Fatalf("RegisterShipmentRoutes() error = %v", err)
	}

	return app
}

package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/medtransit/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantField  string
	}{
		{
			name:       "fiber error keeps code and message",
			err:        fiber.NewError(fiber.StatusNotFound, "not found: shipment 9"),
			wantStatus: fiber.StatusNotFound,
			wantError:  "not found: shipment 9",
		},
		{
			name:       "detailed error renders extra fields",
			err:        NewDetailedError(fiber.StatusBadRequest, "unknown status", fiber.Map{"validStatuses": []string{"Embalaje"}}),
			wantStatus: fiber.StatusBadRequest,
			wantError:  "unknown status",
			wantField:  "validStatuses",
		},
		{
			name:       "plain error hides details",
			err:        errors.New("pq: connection reset"),
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			raw, _ := io.ReadAll(resp.Body)
			var body map[string]any
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("json unmarshal error = %v, body=%s", err, string(raw))
			}
			if body["error"] != tt.wantError {
				t.Fatalf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantField != "" {
				if _, ok := body[tt.wantField]; !ok {
					t.Fatalf("body missing %q: %s", tt.wantField, string(raw))
				}
			}
		})
	}
}

func TestErrorHandlerLogsServerErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.New(core))})
	app.Get("/", func(c *fiber.Ctx) error { return errors.New("boom") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	_ = resp.Body.Close()

	entries := logs.FilterMessage("request error").All()
	if len(entries) != 1 {
		t.Fatalf("request error logs = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["status"]; got != int64(fiber.StatusInternalServerError) {
		t.Fatalf("logged status = %v, want 500", got)
	}
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	t.Parallel()

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(RequestContext())

	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got, _ = observability.RequestIDFromContext(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	_ = resp.Body.Close()

	if got != "req-123" {
		t.Fatalf("request id in context = %q, want req-123", got)
	}
}

package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/medtransit/internal/live"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultKeepAliveInterval = 15 * time.Second

type LiveRegistry interface {
	Subscribe(recipientID int64) (*live.Subscription, error)
	Unsubscribe(sub *live.Subscription)
}

// StreamHandler serves live notifications as server-sent events.
type StreamHandler struct {
	registry  LiveRegistry
	keepAlive time.Duration
	logger    *zap.Logger
}

func NewStreamHandler(registry LiveRegistry, keepAlive time.Duration, logger *zap.Logger) (*StreamHandler, error) {
	if registry == nil {
		return nil, fmt.Errorf("live registry is required")
	}
	if keepAlive <= 0 {
		keepAlive = defaultKeepAliveInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamHandler{
		registry:  registry,
		keepAlive: keepAlive,
		logger:    logger,
	}, nil
}

func RegisterStreamRoutes(router fiber.Router, registry LiveRegistry, keepAlive time.Duration, logger *zap.Logger) error {
	h, err := NewStreamHandler(registry, keepAlive, logger)
	if err != nil {
		return err
	}

	router.Get("/v1/notifications/stream", h.Stream)
	return nil
}

func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	recipientID, err := parseRecipientID(c)
	if err != nil {
		return toHTTPError(err)
	}

	sub, err := h.registry.Subscribe(recipientID)
	if err != nil {
		if errors.Is(err, live.ErrRegistryClosed) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return toHTTPError(err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	logger := h.logger.With(
		zap.String("subscriptionId", sub.ID),
		zap.Int64("recipientId", recipientID),
	)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.registry.Unsubscribe(sub)

		ticker := time.NewTicker(h.keepAlive)
		defer ticker.Stop()

		for {
			select {
			case frame := <-sub.Frames():
				if err := writeFrame(w, frame); err != nil {
					logger.Debug("live stream closed by client", zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					logger.Debug("live stream closed by client", zap.Error(err))
					return
				}
			case <-sub.Done():
				drainFrames(w, sub)
				return
			}
		}
	}))

	return nil
}

// drainFrames writes whatever was queued before the subscription ended.
func drainFrames(w *bufio.Writer, sub *live.Subscription) {
	for {
		select {
		case frame := <-sub.Frames():
			if err := writeFrame(w, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func writeFrame(w *bufio.Writer, frame live.Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := w.WriteString(": ping\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

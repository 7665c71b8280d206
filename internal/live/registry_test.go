package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/observability"
)

func TestRegistrySubscribeQueuesConnectedFrame(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(4, nil)
	sub, err := registry.Subscribe(7)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	frame := receiveFrame(t, sub)
	if frame.Type != FrameConnected {
		t.Fatalf("first frame type = %s, want %s", frame.Type, FrameConnected)
	}
	if frame.Notification != nil {
		t.Fatal("connected frame must not carry a notification")
	}
	if got := registry.Count(7); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestRegistrySubscribeRejectsInvalidRecipient(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(4, nil).Subscribe(0)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Subscribe(0) error = %v, want %v", err, domain.ErrValidation)
	}
}

func TestRegistryPublishTargetsRecipientOnly(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(4, nil)
	first, _ := registry.Subscribe(7)
	second, _ := registry.Subscribe(7)
	other, _ := registry.Subscribe(8)
	for _, sub := range []*Subscription{first, second, other} {
		receiveFrame(t, sub)
	}

	delivered := registry.Publish(domain.Notification{ID: 1, RecipientID: 7, Title: "t", Message: "m", Type: "shipment_status"})
	if delivered != 2 {
		t.Fatalf("Publish delivered = %d, want 2", delivered)
	}

	for _, sub := range []*Subscription{first, second} {
		frame := receiveFrame(t, sub)
		if frame.Type != FrameNewNotification || frame.Notification == nil || frame.Notification.ID != 1 {
			t.Fatalf("unexpected frame: %+v", frame)
		}
	}

	select {
	case frame := <-other.Frames():
		t.Fatalf("recipient 8 received %+v", frame)
	default:
	}
}

func TestRegistryPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(4, nil)
	if got := registry.Publish(domain.Notification{ID: 1, RecipientID: 99}); got != 0 {
		t.Fatalf("Publish delivered = %d, want 0", got)
	}
}

func TestRegistryDropsSlowSubscription(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(1, nil)
	registry.SetMetrics(observability.NewMetrics())

	sub, _ := registry.Subscribe(7)

	// buffer already holds the connected frame
	if got := registry.Publish(domain.Notification{ID: 1, RecipientID: 7}); got != 0 {
		t.Fatalf("Publish delivered = %d, want 0", got)
	}
	if got := registry.Count(7); got != 0 {
		t.Fatalf("Count = %d, want 0 after drop", got)
	}

	select {
	case <-sub.Done():
	default:
		t.Fatal("dropped subscription should be done")
	}
}

func TestRegistryUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(4, nil)
	sub, _ := registry.Subscribe(7)
	keep, _ := registry.Subscribe(7)

	registry.Unsubscribe(sub)
	registry.Unsubscribe(sub)
	registry.Unsubscribe(nil)

	if got := registry.Count(7); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
	select {
	case <-keep.Done():
		t.Fatal("remaining subscription must stay open")
	default:
	}
}

func TestRegistryClose(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(4, nil)
	sub, _ := registry.Subscribe(7)

	registry.Close()
	registry.Close()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription should end on close")
	}
	if _, err := registry.Subscribe(7); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("Subscribe after close error = %v, want %v", err, ErrRegistryClosed)
	}
	if err := registry.Broadcast(context.Background(), domain.Notification{RecipientID: 7}); err != nil {
		t.Fatalf("Broadcast after close error = %v", err)
	}
}

func receiveFrame(t *testing.T, sub *Subscription) Frame {
	t.Helper()

	select {
	case frame := <-sub.Frames():
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

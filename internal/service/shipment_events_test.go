package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kursadbilgin/medtransit/internal/domain"
	"github.com/kursadbilgin/medtransit/internal/repository"
)

func TestShipmentEventNotifierBuildsNotificationPerKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     domain.StatusKind
		wantType string
	}{
		{name: "in transit", kind: domain.StatusKindInTransit, wantType: domain.NotificationTypeShipmentStatus},
		{name: "distribution", kind: domain.StatusKindDistribution, wantType: domain.NotificationTypePinDelivery},
		{name: "delivered", kind: domain.StatusKindDelivered, wantType: domain.NotificationTypeShipmentStatus},
		{name: "packing", kind: domain.StatusKindPacking},
		{name: "preparing", kind: domain.StatusKindPreparing},
		{name: "other", kind: domain.StatusKindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := newMemNotificationRepo()
			broadcaster := &fakeBroadcaster{}
			store := newTestNotificationService(t, repo, broadcaster)
			notifier := newTestNotifier(t, store)

			requestID := int64(11)
			err := notifier.Handle(context.Background(), domain.ShipmentStatusChanged{
				EventID:    "evt-1",
				ShipmentID: 42,
				RequestID:  &requestID,
				StatusID:   1,
				StatusName: tt.kind.String(),
				Kind:       tt.kind,
			})
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			stored := repo.count(7)
			if tt.wantType == "" {
				if stored != 0 || len(broadcaster.all()) != 0 {
					t.Fatal("kind without notification must not store or broadcast")
				}
				return
			}

			if stored != 1 {
				t.Fatalf("stored = %d, want 1", stored)
			}
			n := broadcaster.all()[0]
			if n.Type != tt.wantType {
				t.Fatalf("type = %q, want %q", n.Type, tt.wantType)
			}
			if n.RecipientID != 7 {
				t.Fatalf("recipient = %d, want receiving institution 7", n.RecipientID)
			}
			if n.ReferenceID == nil || *n.ReferenceID != 42 || n.ReferenceType == nil || *n.ReferenceType != domain.ReferenceTypeShipment {
				t.Fatalf("reference = %v/%v, want 42/shipment", n.ReferenceID, n.ReferenceType)
			}
			if !strings.Contains(n.Message, "#42") {
				t.Fatalf("message %q should mention the shipment", n.Message)
			}
		})
	}
}

func TestShipmentEventNotifierNeverLeaksPin(t *testing.T) {
	t.Parallel()

	shipments := newMemShipmentRepo()
	requestID := int64(11)
	shipments.put(domain.Shipment{ID: 42, RequestID: &requestID, StatusID: 3})

	publisher := &fakePublisher{}
	controller := newTestShipmentService(t, shipments, nil, publisher)
	controller.guard.intN = func(n int) int { return 3821 }

	result, err := controller.Transition(context.Background(), 42, "Distribución", nil)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}

	repo := newMemNotificationRepo()
	broadcaster := &fakeBroadcaster{}
	notifier := newTestNotifier(t, newTestNotificationService(t, repo, broadcaster))

	for _, msg := range publisher.all() {
		if err := notifier.Handle(context.Background(), msg.Event()); err != nil {
			t.Fatalf("Handle() error = %v", err)
		}
	}

	sent := broadcaster.all()
	if len(sent) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(sent))
	}
	if strings.Contains(sent[0].Message, *result.IssuedPIN) || strings.Contains(sent[0].Title, *result.IssuedPIN) {
		t.Fatal("notification must not contain the delivery pin")
	}
}

func TestShipmentEventNotifierResolverErrors(t *testing.T) {
	t.Parallel()

	store := newTestNotificationService(t, newMemNotificationRepo(), nil)
	notifier, err := NewShipmentEventNotifier(&fakeRecipientResolver{
		resolveFn: func(ctx context.Context, requestID *int64, donationID *int64) (int64, error) {
			return 0, domain.ErrNotFound
		},
	}, store, nil)
	if err != nil {
		t.Fatalf("NewShipmentEventNotifier() error = %v", err)
	}

	donationID := int64(3)
	err = notifier.Handle(context.Background(), domain.ShipmentStatusChanged{
		EventID:    "evt-2",
		ShipmentID: 8,
		DonationID: &donationID,
		StatusName: "Entregado",
		Kind:       domain.StatusKindDelivered,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Handle() error = %v, want %v", err, domain.ErrNotFound)
	}

	err = notifier.Handle(context.Background(), domain.ShipmentStatusChanged{ShipmentID: 8, StatusName: "Entregado"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Handle(invalid) error = %v, want %v", err, domain.ErrValidation)
	}
}

func TestNewShipmentEventNotifierValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewShipmentEventNotifier(nil, &NotificationService{}, nil); err == nil {
		t.Fatal("expected error for nil resolver")
	}
	if _, err := NewShipmentEventNotifier(&fakeRecipientResolver{}, nil, nil); err == nil {
		t.Fatal("expected error for nil creator")
	}
}

func newTestNotifier(t *testing.T, store NotificationCreator) *ShipmentEventNotifier {
	t.Helper()

	notifier, err := NewShipmentEventNotifier(&fakeRecipientResolver{
		resolveFn: func(ctx context.Context, requestID *int64, donationID *int64) (int64, error) {
			if requestID != nil && *requestID == 11 {
				return 7, nil
			}
			return 0, domain.ErrNotFound
		},
	}, store, nil)
	if err != nil {
		t.Fatalf("NewShipmentEventNotifier() error = %v", err)
	}
	return notifier
}

type fakeRecipientResolver struct {
	resolveFn func(ctx context.Context, requestID *int64, donationID *int64) (int64, error)
}

var _ repository.RecipientResolver = (*fakeRecipientResolver)(nil)

func (f *fakeRecipientResolver) ReceivingInstitution(ctx context.Context, requestID *int64, donationID *int64) (int64, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, requestID, donationID)
	}
	return 1, nil
}

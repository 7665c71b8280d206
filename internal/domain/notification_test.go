package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	refID := int64(42)
	refType := ReferenceTypeShipment

	base := Notification{
		RecipientID: 7,
		Title:       "Envío en tránsito",
		Message:     "El envío #42 va en camino.",
		Type:        NotificationTypeShipmentStatus,
	}

	tests := []struct {
		name    string
		mutate  func(*Notification)
		wantErr bool
	}{
		{
			name: "valid notification",
			mutate: func(n *Notification) {
				// keep base
			},
		},
		{
			name: "valid with reference",
			mutate: func(n *Notification) {
				n.ReferenceID = &refID
				n.ReferenceType = &refType
			},
		},
		{
			name: "missing recipient",
			mutate: func(n *Notification) {
				n.RecipientID = 0
			},
			wantErr: true,
		},
		{
			name: "blank title",
			mutate: func(n *Notification) {
				n.Title = "   "
			},
			wantErr: true,
		},
		{
			name: "missing message",
			mutate: func(n *Notification) {
				n.Message = ""
			},
			wantErr: true,
		},
		{
			name: "missing type",
			mutate: func(n *Notification) {
				n.Type = ""
			},
			wantErr: true,
		},
		{
			name: "title over limit",
			mutate: func(n *Notification) {
				n.Title = strings.Repeat("á", MaxTitleLength+1)
			},
			wantErr: true,
		},
		{
			name: "rune-aware title at limit accepted",
			mutate: func(n *Notification) {
				n.Title = strings.Repeat("á", MaxTitleLength)
			},
		},
		{
			name: "reference id without type",
			mutate: func(n *Notification) {
				n.ReferenceID = &refID
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

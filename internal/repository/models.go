package repository

import (
	"time"

	"github.com/kursadbilgin/medtransit/internal/domain"
)

// ShipmentStatusModel is the persistence model for the status catalog.
type ShipmentStatusModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Name        string  `gorm:"type:varchar(64);not null;uniqueIndex"`
	Label       *string `gorm:"type:varchar(64)"`
	Description *string `gorm:"type:text"`
}

func (ShipmentStatusModel) TableName() string {
	return "shipment_statuses"
}

// ShipmentModel is the persistence model for the shipments table.
type ShipmentModel struct {
	ID                  int64      `gorm:"primaryKey;autoIncrement"`
	RequestID           *int64     `gorm:"index"`
	DonationID          *int64     `gorm:"index"`
	CarrierID           *int64     `gorm:"type:bigint"`
	StatusID            int64      `gorm:"not null"`
	PIN                 *string    `gorm:"column:pin;type:varchar(4)"`
	CollectedAt         *time.Time `gorm:"type:timestamptz"`
	EstimatedDeliveryAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (ShipmentModel) TableName() string {
	return "shipments"
}

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	RecipientID   int64     `gorm:"not null"`
	Title         string    `gorm:"type:varchar(255);not null"`
	Message       string    `gorm:"type:text;not null"`
	Type          string    `gorm:"type:varchar(64);not null"`
	IsRead        bool      `gorm:"not null;default:false"`
	ReferenceID   *int64    `gorm:"type:bigint"`
	ReferenceType *string   `gorm:"type:varchar(64)"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// LogisticsRequestModel is the read side of the requests owned by the
// request workflow. Only the requesting institution is needed here.
type LogisticsRequestModel struct {
	ID                      int64 `gorm:"primaryKey;autoIncrement"`
	RequestingInstitutionID int64 `gorm:"not null"`
	CreatedAt               time.Time
}

func (LogisticsRequestModel) TableName() string {
	return "logistics_requests"
}

// DonationModel is the read side of donations owned by the donation workflow.
type DonationModel struct {
	ID                     int64 `gorm:"primaryKey;autoIncrement"`
	ReceivingInstitutionID int64 `gorm:"not null"`
	CreatedAt              time.Time
}

func (DonationModel) TableName() string {
	return "donations"
}

func statusModelToDomain(m *ShipmentStatusModel) domain.StatusEntry {
	return domain.StatusEntry{
		ID:          m.ID,
		Name:        m.Name,
		Label:       m.Label,
		Description: m.Description,
	}
}

func shipmentModelFromDomain(s *domain.Shipment) *ShipmentModel {
	if s == nil {
		return nil
	}

	return &ShipmentModel{
		ID:                  s.ID,
		RequestID:           s.RequestID,
		DonationID:          s.DonationID,
		CarrierID:           s.CarrierID,
		StatusID:            s.StatusID,
		PIN:                 s.PIN,
		CollectedAt:         s.CollectedAt,
		EstimatedDeliveryAt: s.EstimatedDeliveryAt,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
	}
}

func shipmentModelToDomain(m *ShipmentModel) *domain.Shipment {
	if m == nil {
		return nil
	}

	return &domain.Shipment{
		ID:                  m.ID,
		RequestID:           m.RequestID,
		DonationID:          m.DonationID,
		CarrierID:           m.CarrierID,
		StatusID:            m.StatusID,
		PIN:                 m.PIN,
		CollectedAt:         m.CollectedAt,
		EstimatedDeliveryAt: m.EstimatedDeliveryAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:            n.ID,
		RecipientID:   n.RecipientID,
		Title:         n.Title,
		Message:       n.Message,
		Type:          n.Type,
		IsRead:        n.Read,
		ReferenceID:   n.ReferenceID,
		ReferenceType: n.ReferenceType,
		CreatedAt:     n.CreatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:            m.ID,
		RecipientID:   m.RecipientID,
		Title:         m.Title,
		Message:       m.Message,
		Type:          m.Type,
		Read:          m.IsRead,
		ReferenceID:   m.ReferenceID,
		ReferenceType: m.ReferenceType,
		CreatedAt:     m.CreatedAt,
	}
}

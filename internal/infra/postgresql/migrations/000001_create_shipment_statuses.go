package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func createShipmentStatusesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_shipment_statuses",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ShipmentStatusModel{}); err != nil {
				return err
			}
			statuses := defaultStatuses()
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&statuses).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ShipmentStatusModel{})
		},
	}
}

func defaultStatuses() []repository.ShipmentStatusModel {
	entry := func(name, label, description string) repository.ShipmentStatusModel {
		return repository.ShipmentStatusModel{Name: name, Label: &label, Description: &description}
	}

	return []repository.ShipmentStatusModel{
		entry("Embalaje", "Packing", "El medicamento se está embalando en la institución de origen."),
		entry("Preparando", "Preparing", "El envío está listo y espera la recogida del transportista."),
		entry("En tránsito", "In-Transit", "El transportista lleva el envío hacia la institución destino."),
		entry("Distribución", "Distribution", "Último tramo; se emite el PIN de entrega."),
		entry("Entregado", "Delivered", "Entrega confirmada con el PIN."),
	}
}

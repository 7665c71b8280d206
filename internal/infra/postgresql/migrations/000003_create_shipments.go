package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"gorm.io/gorm"
)

func createShipmentsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_shipments",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.ShipmentModel{}); err != nil {
				return err
			}
			statements := []string{
				`ALTER TABLE shipments ADD CONSTRAINT fk_shipments_status FOREIGN KEY (status_id) REFERENCES shipment_statuses (id)`,
				`ALTER TABLE shipments ADD CONSTRAINT chk_shipments_reference CHECK (request_id IS NOT NULL OR donation_id IS NOT NULL)`,
				`ALTER TABLE shipments ADD CONSTRAINT chk_shipments_pin CHECK (pin IS NULL OR pin ~ '^[0-9]{4}$')`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.ShipmentModel{})
		},
	}
}

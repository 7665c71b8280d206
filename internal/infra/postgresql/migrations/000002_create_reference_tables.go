package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/medtransit/internal/repository"
	"gorm.io/gorm"
)

// Requests and donations belong to other workflows; the tables are created only
// when absent so a fresh database can resolve shipment recipients.
func createReferenceTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_reference_tables",
		Migrate: func(tx *gorm.DB) error {
			for _, model := range []any{&repository.LogisticsRequestModel{}, &repository.DonationModel{}} {
				if tx.Migrator().HasTable(model) {
					continue
				}
				if err := tx.Migrator().CreateTable(model); err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return nil
		},
	}
}

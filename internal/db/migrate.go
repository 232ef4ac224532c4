package db

import (
	"fmt"

	"github.com/promptwell/promptwell/internal/models"
	"gorm.io/gorm"
)

// Migrate applies schema migrations for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.Setting{},
		&models.APIKey{},
		&models.CreditEntry{},
		&models.Tracking{},
		&models.BillingRule{},
	)
}

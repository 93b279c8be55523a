package storage

import (
	"fmt"

	"ratemylandlord-server/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the postgres database behind dsn.
func Connect(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_CONNECTION_STRING environment variable is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("error connection to db: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the service owns. Landlords stored
// without a city get defaultCity.
func Migrate(db *gorm.DB, defaultCity string) error {
	if err := db.AutoMigrate(
		&models.Landlord{}, // landlords first, reviews reference them
		&models.Review{},
		&models.User{},
		&models.Admin{},
		&models.AuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return Backfill(db, defaultCity)
}

// Backfill normalizes rows written before a column existed.
func Backfill(db *gorm.DB, defaultCity string) error {
	// Rows stored before verification existed have no status.
	if err := db.Model(&models.Review{}).
		Where("verification_status IS NULL OR verification_status = ''").
		Update("verification_status", models.VerificationUnverified).Error; err != nil {
		return fmt.Errorf("backfill verification status: %w", err)
	}
	if defaultCity == "" {
		return nil
	}
	if err := db.Model(&models.Landlord{}).
		Where("city IS NULL OR city = ''").
		Update("city", defaultCity).Error; err != nil {
		return fmt.Errorf("backfill landlord city: %w", err)
	}
	return nil
}

// InitializeDB connects and migrates in one step.
func InitializeDB(dsn, defaultCity string) (*gorm.DB, error) {
	db, err := Connect(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, defaultCity); err != nil {
		return nil, err
	}
	return db, nil
}

package database

import (
	"fmt"

	"scholarsphere/internal/domain/collections"
	"scholarsphere/internal/domain/media"
	"scholarsphere/internal/domain/users"
	"scholarsphere/internal/domain/works"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres. Driver errors are translated so that unique
// violations surface as gorm.ErrDuplicatedKey.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(db *gorm.DB) error {
	// REQUIRED for UUID generation
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("enable pgcrypto: %w", err)
	}

	if err := db.AutoMigrate(
		&users.Actor{},
		&users.User{},

		&media.FileResource{},

		&works.Work{},
		&works.WorkVersion{},
		&works.FileVersionMembership{},
		&works.Authorship{},

		&collections.Collection{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

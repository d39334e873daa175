package database

import (
	"fmt"

	"challenge-market/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Error),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// AutoMigrate runs automatic migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.UserBalance{},
		&models.LedgerEntry{},
		&models.Challenge{},
		&models.ChallengeOption{},
		&models.Bet{},
		&models.PayoutJob{},
		&models.Dispute{},
		&models.DisputeResolution{},
	)
}

// ForUpdate adds an exclusive row lock to the query. SQLite has a
// single-writer model and rejects FOR UPDATE syntax, so the clause is
// only applied on dialects that support it.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

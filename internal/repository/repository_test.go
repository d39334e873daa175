package repository

import (
	"context"
	"fmt"
	"testing"

	"challenge-market/internal/database"
	"challenge-market/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestListUserBalances(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	rows := []models.UserBalance{
		{UserID: 1, Asset: "USDT", Balance: decimal.NewFromInt(25)},
		{UserID: 1, Asset: "BRT", Balance: decimal.NewFromInt(100)},
		{UserID: 2, Asset: "BRT", Balance: decimal.NewFromInt(7)},
	}
	for i := range rows {
		if err := db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("failed to seed balance: %v", err)
		}
	}

	balances, err := repo.ListUserBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("failed to list balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 balance rows, got %d", len(balances))
	}
	// Sorted by asset, only the caller's rows.
	if balances[0].Asset != "BRT" || !balances[0].Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("unexpected first row: %s %s", balances[0].Asset, balances[0].Balance)
	}
	if balances[1].Asset != "USDT" || !balances[1].Balance.Equal(decimal.NewFromInt(25)) {
		t.Errorf("unexpected second row: %s %s", balances[1].Asset, balances[1].Balance)
	}
}

func TestListUserBalancesEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	balances, err := repo.ListUserBalances(context.Background(), 42)
	if err != nil {
		t.Fatalf("failed to list balances: %v", err)
	}
	if len(balances) != 0 {
		t.Errorf("expected no rows for unknown user, got %d", len(balances))
	}
}

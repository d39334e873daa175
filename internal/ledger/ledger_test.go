package ledger

import (
	"errors"
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

func fund(t *testing.T, db *gorm.DB, l *Ledger, userID uint, amount int64) {
	t.Helper()
	bal := models.UserBalance{UserID: userID, Asset: l.asset, Balance: decimal.NewFromInt(amount)}
	if err := db.Create(&bal).Error; err != nil {
		t.Fatalf("failed to fund user %d: %v", userID, err)
	}
}

func mustBalance(t *testing.T, db *gorm.DB, l *Ledger, userID uint) decimal.Decimal {
	t.Helper()
	bal, err := l.Balance(db, userID)
	if err != nil {
		t.Fatalf("failed to read balance for user %d: %v", userID, err)
	}
	return bal
}

func TestLockFundsInsufficient(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 10)

	_, err := l.LockFunds(db, 1, decimal.NewFromInt(11), models.LedgerTypeStakeLocked, EntryContext{})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := mustBalance(t, db, l, 1); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance changed on failed lock: %s", got)
	}
	var entries int64
	db.Model(&models.LedgerEntry{}).Count(&entries)
	if entries != 0 {
		t.Errorf("expected no journal entries, got %d", entries)
	}
}

func TestLockFundsRejectsNonPositive(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 10)

	if _, err := l.LockFunds(db, 1, decimal.Zero, models.LedgerTypeStakeLocked, EntryContext{}); err == nil {
		t.Fatal("expected error for zero amount")
	}
	if _, err := l.LockFunds(db, 1, decimal.NewFromInt(-5), models.LedgerTypeStakeLocked, EntryContext{}); err == nil {
		t.Fatal("expected error for negative amount")
	}
}

func TestEntrySnapshotsChain(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 100)

	if _, err := l.LockFunds(db, 1, decimal.NewFromInt(30), models.LedgerTypeStakeLocked, EntryContext{}); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if _, err := l.Credit(db, 1, decimal.NewFromInt(45), models.LedgerTypePayout, EntryContext{}); err != nil {
		t.Fatalf("credit failed: %v", err)
	}
	if _, err := l.Debit(db, 1, decimal.NewFromInt(15), models.LedgerTypePayoutReversal, EntryContext{}); err != nil {
		t.Fatalf("debit failed: %v", err)
	}

	var entries []models.LedgerEntry
	if err := db.Where("user_id = ?", 1).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	// Each entry's amount equals its own before/after delta, and the
	// snapshots chain: following before -> after links from the opening
	// balance visits every entry and lands on the current balance.
	replayed := decimal.NewFromInt(100)
	remaining := entries
	for len(remaining) > 0 {
		found := -1
		for i, entry := range remaining {
			if entry.BalanceBefore.Equal(replayed) {
				found = i
				break
			}
		}
		if found == -1 {
			t.Fatalf("no entry continues the chain at balance %s", replayed)
		}
		entry := remaining[found]
		if !entry.BalanceAfter.Sub(entry.BalanceBefore).Equal(entry.Amount) {
			t.Errorf("amount %s does not match snapshot delta %s -> %s",
				entry.Amount, entry.BalanceBefore, entry.BalanceAfter)
		}
		replayed = entry.BalanceAfter
		remaining = append(remaining[:found], remaining[found+1:]...)
	}

	if got := mustBalance(t, db, l, 1); !got.Equal(replayed) {
		t.Errorf("balance %s does not match replayed journal %s", got, replayed)
	}
	if !replayed.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected replayed balance 100, got %s", replayed)
	}
}

func TestDebitAllowsNegativeBalance(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 10)

	after, err := l.Debit(db, 1, decimal.NewFromInt(25), models.LedgerTypePayoutReversal, EntryContext{})
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !after.Equal(decimal.NewFromInt(-15)) {
		t.Errorf("expected balance -15, got %s", after)
	}
}

func TestTransfer(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 50)

	err := l.Transfer(db, 1, 2, decimal.NewFromInt(20), models.LedgerTypeRefund, EntryContext{})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	if got := mustBalance(t, db, l, 1); !got.Equal(decimal.NewFromInt(30)) {
		t.Errorf("expected payer balance 30, got %s", got)
	}
	// Payee row is created on demand.
	if got := mustBalance(t, db, l, 2); !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("expected payee balance 20, got %s", got)
	}
}

func TestTransferWithFee(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 100)

	net, fee, err := l.TransferWithFee(db, 1, 2, decimal.NewFromInt(80), decimal.RequireFromString("0.2"), EntryContext{})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !net.Equal(decimal.NewFromInt(64)) {
		t.Errorf("expected net 64, got %s", net)
	}
	if !fee.Equal(decimal.NewFromInt(16)) {
		t.Errorf("expected fee 16, got %s", fee)
	}

	// Payer disburses 80 gross and keeps the 16 fee.
	if got := mustBalance(t, db, l, 1); !got.Equal(decimal.NewFromInt(36)) {
		t.Errorf("expected payer balance 36, got %s", got)
	}
	if got := mustBalance(t, db, l, 2); !got.Equal(decimal.NewFromInt(64)) {
		t.Errorf("expected payee balance 64, got %s", got)
	}

	var commissions []models.LedgerEntry
	db.Where("user_id = ? AND type = ?", 1, models.LedgerTypeCommission).Find(&commissions)
	if len(commissions) != 1 || !commissions[0].Amount.Equal(fee) {
		t.Errorf("expected one commission entry of %s, got %v", fee, commissions)
	}
}

func TestTransferWithFeeZeroRate(t *testing.T) {
	db := setupTestDB(t)
	l := New("")
	fund(t, db, l, 1, 100)

	net, fee, err := l.TransferWithFee(db, 1, 2, decimal.NewFromInt(50), decimal.Zero, EntryContext{})
	if err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if !net.Equal(decimal.NewFromInt(50)) || !fee.IsZero() {
		t.Errorf("expected net 50 fee 0, got net %s fee %s", net, fee)
	}

	var commissions int64
	db.Model(&models.LedgerEntry{}).Where("type = ?", models.LedgerTypeCommission).Count(&commissions)
	if commissions != 0 {
		t.Errorf("expected no commission entries, got %d", commissions)
	}
}

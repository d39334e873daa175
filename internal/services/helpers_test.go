package services

import (
	"context"
	"fmt"
	"testing"

	"challenge-market/internal/database"
	"challenge-market/internal/ledger"
	"challenge-market/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPlatformID uint = 1000

var testFeeRate = decimal.RequireFromString("0.2")

type testEngine struct {
	db         *gorm.DB
	ledger     *ledger.Ledger
	challenges *ChallengeService
	stakes     *StakeService
	settlement *SettlementService
	disputes   *DisputeService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named in-memory database: every pooled connection in this test
	// shares it, and each test gets its own by name.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := setupTestDB(t)
	bank := ledger.New(models.DefaultAsset)
	log := zap.NewNop()
	notifier := NewLogNotifier(log)

	return &testEngine{
		db:         db,
		ledger:     bank,
		challenges: NewChallengeService(db, bank, testPlatformID, log),
		stakes:     NewStakeService(db, bank, testPlatformID, log),
		settlement: NewSettlementService(db, bank, testPlatformID, testFeeRate, notifier, log),
		disputes:   NewDisputeService(db, bank, testPlatformID, notifier, log),
	}
}

func (e *testEngine) fund(t *testing.T, userID uint, amount int64) {
	t.Helper()
	bal := models.UserBalance{
		UserID:  userID,
		Asset:   models.DefaultAsset,
		Balance: decimal.NewFromInt(amount),
	}
	if err := e.db.Create(&bal).Error; err != nil {
		t.Fatalf("failed to fund user %d: %v", userID, err)
	}
}

func (e *testEngine) balance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	bal, err := e.ledger.Balance(e.db, userID)
	if err != nil {
		t.Fatalf("failed to read balance for user %d: %v", userID, err)
	}
	return bal
}

// openChallenge creates a pool-based challenge with the given option
// labels and opens it for bets.
func (e *testEngine) openChallenge(t *testing.T, creatorID uint, options ...string) *models.Challenge {
	t.Helper()
	challenge := e.createChallenge(t, creatorID, &models.CreateChallengeRequest{
		Title:    "test challenge",
		Options:  options,
		MinStake: decimal.NewFromInt(1),
	})
	opened, err := e.challenges.Open(context.Background(), challenge.ID, creatorID)
	if err != nil {
		t.Fatalf("failed to open challenge: %v", err)
	}
	opened.Options = challenge.Options
	return opened
}

func (e *testEngine) createChallenge(t *testing.T, creatorID uint, req *models.CreateChallengeRequest) *models.Challenge {
	t.Helper()
	challenge, err := e.challenges.CreateChallenge(context.Background(), creatorID, req)
	if err != nil {
		t.Fatalf("failed to create challenge: %v", err)
	}
	return challenge
}

func (e *testEngine) placeBet(t *testing.T, challengeID, userID, optionID uint, amount int64) *models.Bet {
	t.Helper()
	bet, err := e.stakes.PlaceBet(context.Background(), challengeID, userID, &models.PlaceBetRequest{
		OptionID: optionID,
		Amount:   decimal.NewFromInt(amount),
	})
	if err != nil {
		t.Fatalf("failed to place bet: %v", err)
	}
	return bet
}

// settleAll drains every pending payout job.
func (e *testEngine) settleAll(t *testing.T) {
	t.Helper()
	if _, err := e.settlement.ProcessPending(context.Background()); err != nil {
		t.Fatalf("failed to process payout jobs: %v", err)
	}
}

func (e *testEngine) getBet(t *testing.T, id interface{}) *models.Bet {
	t.Helper()
	var bet models.Bet
	if err := e.db.Where("id = ?", id).First(&bet).Error; err != nil {
		t.Fatalf("failed to load bet: %v", err)
	}
	return &bet
}

func (e *testEngine) ledgerEntries(t *testing.T, challengeID uint, entryType models.LedgerEntryType) []models.LedgerEntry {
	t.Helper()
	var entries []models.LedgerEntry
	err := e.db.Where("challenge_id = ? AND type = ?", challengeID, entryType).
		Order("created_at ASC").Find(&entries).Error
	if err != nil {
		t.Fatalf("failed to load ledger entries: %v", err)
	}
	return entries
}

func assertDecimal(t *testing.T, got decimal.Decimal, want int64, what string) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("%s: expected %d, got %s", what, want, got)
	}
}

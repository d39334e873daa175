package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultAsset is the platform token every balance and stake is
// denominated in unless configured otherwise.
const DefaultAsset = "BRT"

type LedgerEntryType string

const (
	LedgerTypeStakeLocked         LedgerEntryType = "stake_locked"
	LedgerTypeStakePool           LedgerEntryType = "stake_pool"
	LedgerTypeCreatorPrizeReserve LedgerEntryType = "creator_prize_reserve"
	LedgerTypePayout              LedgerEntryType = "payout"
	LedgerTypeCommission          LedgerEntryType = "commission"
	LedgerTypeRefund              LedgerEntryType = "refund"
	LedgerTypePayoutReversal      LedgerEntryType = "payout_reversal"
)

// LedgerEntry is an immutable record of one balance mutation. Amount is
// signed; BalanceBefore and BalanceAfter snapshot the balance row around
// exactly that mutation. Entries are never updated or deleted: the
// journal is the source of truth when balances are suspect.
type LedgerEntry struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	Asset         string          `gorm:"size:20;not null;default:BRT" json:"asset"`
	Type          LedgerEntryType `gorm:"size:50;not null;index" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"`
	ChallengeID   *uint           `gorm:"index" json:"challenge_id,omitempty"`
	BetID         *uuid.UUID      `gorm:"type:uuid;index" json:"bet_id,omitempty"`
	Note          string          `gorm:"size:255" json:"note,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// UserBalance is the current balance per (user, asset). It is only
// mutated while holding an exclusive row lock, and every mutation is
// paired with exactly one LedgerEntry in the same transaction.
type UserBalance struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_user_asset" json:"user_id"`
	Asset     string          `gorm:"size:20;not null;default:BRT;uniqueIndex:idx_user_asset" json:"asset"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (UserBalance) TableName() string {
	return "user_balances"
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BetStatus string

const (
	BetStatusActive   BetStatus = "active"
	BetStatusWon      BetStatus = "won"
	BetStatusLost     BetStatus = "lost"
	BetStatusRefunded BetStatus = "refunded"
)

// Bet is a user's wager against one option of a challenge. An optional
// client-supplied idempotency key makes retried placements safe.
type Bet struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengeID    uint             `gorm:"not null;index" json:"challenge_id"`
	UserID         uint             `gorm:"not null;index" json:"user_id"`
	OptionID       uint             `gorm:"not null;index" json:"option_id"`
	Amount         decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"amount"`
	IdempotencyKey *string          `gorm:"size:255;uniqueIndex" json:"idempotency_key,omitempty"`
	Status         BetStatus        `gorm:"size:20;not null;default:active;index" json:"status"`
	Payout         *decimal.Decimal `gorm:"type:decimal(20,8)" json:"payout,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func (Bet) TableName() string {
	return "bets"
}

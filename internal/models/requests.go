package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// CreateChallengeRequest is the payload for creating a challenge.
type CreateChallengeRequest struct {
	Title            string           `json:"title" binding:"required"`
	Description      string           `json:"description"`
	Options          []string         `json:"options" binding:"required"`
	PayoutMode       PayoutMode       `json:"payout_mode"`
	CreatorPrize     decimal.Decimal  `json:"creator_prize"`
	MinStake         decimal.Decimal  `json:"min_stake"`
	MaxStake         *decimal.Decimal `json:"max_stake,omitempty"`
	AllowCreatorBet  bool             `json:"allow_creator_bet"`
	OpenAcceptingAt  *time.Time       `json:"open_accepting_at,omitempty"`
	CloseAcceptingAt *time.Time       `json:"close_accepting_at,omitempty"`
	Visibility       ChallengeVisibility `json:"visibility"`
}

// PlaceBetRequest is the payload for placing a stake.
type PlaceBetRequest struct {
	OptionID       uint            `json:"option_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	IdempotencyKey *string         `json:"idempotency_key,omitempty"`
}

// ResolveChallengeRequest names the winning option.
type ResolveChallengeRequest struct {
	WinningOptionID uint `json:"winning_option_id" binding:"required"`
}

// CreateDisputeRequest opens an appeal against a resolved challenge.
type CreateDisputeRequest struct {
	Reason   string         `json:"reason" binding:"required"`
	Evidence datatypes.JSON `json:"evidence,omitempty"`
}

// ResolveDisputeRequest carries the moderator decision.
type ResolveDisputeRequest struct {
	Decision           DisputeDecision `json:"decision" binding:"required"`
	Notes              string          `json:"notes"`
	NewWinningOptionID *uint           `json:"new_winning_option_id,omitempty"`
}

// OptionStats aggregates bets against a single option.
type OptionStats struct {
	OptionID uint            `json:"option_id"`
	Label    string          `json:"label"`
	BetCount int64           `json:"bet_count"`
	Total    decimal.Decimal `json:"total"`
}

// ChallengeStats aggregates bets across a whole challenge.
type ChallengeStats struct {
	BetCount int64           `json:"bet_count"`
	Pool     decimal.Decimal `json:"pool"`
}

// ChallengeSummary is a challenge plus its aggregate bet figures, used
// by list endpoints.
type ChallengeSummary struct {
	Challenge
	BetCount int64           `json:"bet_count"`
	Pool     decimal.Decimal `json:"pool"`
}

// ChallengeDetail is a challenge with per-option aggregates.
type ChallengeDetail struct {
	Challenge
	Stats       ChallengeStats `json:"stats"`
	OptionStats []OptionStats  `json:"option_stats"`
}

// PayoutReport is the settlement view of a resolved challenge.
type PayoutReport struct {
	Stats ChallengeStats `json:"stats"`
	Bets  []Bet          `json:"bets"`
}

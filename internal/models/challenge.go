package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ChallengeStatus string

const (
	ChallengeStatusDraft     ChallengeStatus = "draft"
	ChallengeStatusOpen      ChallengeStatus = "open"
	ChallengeStatusClosed    ChallengeStatus = "closed_for_bets"
	ChallengeStatusResolved  ChallengeStatus = "resolved"
	ChallengeStatusDisputed  ChallengeStatus = "disputed"
	ChallengeStatusCancelled ChallengeStatus = "cancelled"
)

type PayoutMode string

const (
	PayoutModePool         PayoutMode = "pool_based"
	PayoutModeCreatorPrize PayoutMode = "fixed_creator_prize"
)

type ChallengeVisibility string

const (
	VisibilityPublic  ChallengeVisibility = "public"
	VisibilityPrivate ChallengeVisibility = "private"
)

// Challenge represents a prediction contest with multiple mutually
// exclusive outcomes. At most one of its options may be marked winning.
type Challenge struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	CreatorID        uint                `gorm:"not null;index" json:"creator_id"`
	Title            string              `gorm:"size:255;not null" json:"title"`
	Description      string              `gorm:"type:text" json:"description"`
	PayoutMode       PayoutMode          `gorm:"size:50;not null;default:pool_based" json:"payout_mode"`
	CreatorPrize     decimal.Decimal     `gorm:"type:decimal(20,8);not null;default:0" json:"creator_prize"`
	MinStake         decimal.Decimal     `gorm:"type:decimal(20,8);not null" json:"min_stake"`
	MaxStake         *decimal.Decimal    `gorm:"type:decimal(20,8)" json:"max_stake,omitempty"`
	AllowCreatorBet  bool                `gorm:"not null;default:false" json:"allow_creator_bet"`
	OpenAcceptingAt  *time.Time          `json:"open_accepting_at,omitempty"`
	CloseAcceptingAt *time.Time          `json:"close_accepting_at,omitempty"`
	Visibility       ChallengeVisibility `gorm:"size:20;not null;default:public" json:"visibility"`
	Status           ChallengeStatus     `gorm:"size:50;not null;default:draft;index" json:"status"`
	WinningOptionID  *uint               `json:"winning_option_id,omitempty"`
	ResolverID       *uint               `json:"resolver_id,omitempty"`
	ResolvedAt       *time.Time          `json:"resolved_at,omitempty"`
	Options          []ChallengeOption   `gorm:"foreignKey:ChallengeID" json:"options,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (Challenge) TableName() string {
	return "challenges"
}

// ChallengeOption is one selectable outcome of a challenge. Options are
// never mutated by the engine once bets exist against them.
type ChallengeOption struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ChallengeID  uint      `gorm:"not null;index" json:"challenge_id"`
	Label        string    `gorm:"size:255;not null" json:"label"`
	DisplayOrder int       `gorm:"not null;default:0" json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

func (ChallengeOption) TableName() string {
	return "challenge_options"
}

// HasOption reports whether optionID belongs to the challenge. Options
// must be preloaded.
func (c *Challenge) HasOption(optionID uint) bool {
	for _, opt := range c.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

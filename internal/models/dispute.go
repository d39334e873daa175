package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
)

// DisputeDecision is a closed set of moderator outcomes. Anything that
// does not fit the automated branches goes through ManualAdjustment and
// is handled out of band.
type DisputeDecision string

const (
	DecisionConfirmResult    DisputeDecision = "confirm_result"
	DecisionReverseResult    DisputeDecision = "reverse_result"
	DecisionRefundAll        DisputeDecision = "refund_all"
	DecisionManualAdjustment DisputeDecision = "partial_adjustment"
)

// Valid reports whether d is one of the known decisions.
func (d DisputeDecision) Valid() bool {
	switch d {
	case DecisionConfirmResult, DecisionReverseResult, DecisionRefundAll, DecisionManualAdjustment:
		return true
	}
	return false
}

// Dispute is an appeal against a resolved challenge. At most one
// dispute per challenge may be open or under review at a time.
type Dispute struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengeID uint           `gorm:"not null;index" json:"challenge_id"`
	RaisedByID  uint           `gorm:"not null;index" json:"raised_by_id"`
	Reason      string         `gorm:"type:text;not null" json:"reason"`
	Evidence    datatypes.JSON `gorm:"type:jsonb" json:"evidence,omitempty"`
	Status      DisputeStatus  `gorm:"size:20;not null;default:open;index" json:"status"`
	Deadline    time.Time      `gorm:"not null" json:"deadline"`
	Escalated   bool           `gorm:"not null;default:false" json:"escalated"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Dispute) TableName() string {
	return "disputes"
}

// DisputeResolution records the moderator decision attached to a
// dispute. Exactly one resolution exists once the dispute is decided.
type DisputeResolution struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DisputeID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"dispute_id"`
	ModeratorID        uint            `gorm:"not null" json:"moderator_id"`
	Decision           DisputeDecision `gorm:"size:50;not null" json:"decision"`
	Notes              string          `gorm:"type:text" json:"notes"`
	NewWinningOptionID *uint           `json:"new_winning_option_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (DisputeResolution) TableName() string {
	return "dispute_resolutions"
}

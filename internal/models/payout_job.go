package models

import (
	"time"

	"github.com/google/uuid"
)

type PayoutJobStatus string

const (
	PayoutJobStatusPending PayoutJobStatus = "pending"
	PayoutJobStatusDone    PayoutJobStatus = "done"
	PayoutJobStatusFailed  PayoutJobStatus = "failed"
)

// PayoutJob is a deduplicated work item representing "settle this
// challenge". The idempotency key is derived from the challenge id and
// the trigger timestamp; the settlement engine consumes each key at
// most once.
type PayoutJob struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ChallengeID    uint            `gorm:"not null;index" json:"challenge_id"`
	IdempotencyKey string          `gorm:"size:255;not null;uniqueIndex" json:"idempotency_key"`
	Status         PayoutJobStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	Attempts       int             `gorm:"not null;default:0" json:"attempts"`
	LastError      *string         `gorm:"type:text" json:"last_error,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (PayoutJob) TableName() string {
	return "payout_jobs"
}

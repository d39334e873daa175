package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"challenge-market/internal/database"
	"challenge-market/internal/ledger"
	"challenge-market/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DisputeReviewWindow is the hard deadline a dispute must be decided
// within before it is escalated.
const DisputeReviewWindow = 72 * time.Hour

// DisputeService accepts appeals against resolved challenges and
// executes moderator decisions. Financial effects and the resolution
// record share one transaction.
type DisputeService struct {
	db             *gorm.DB
	ledger         *ledger.Ledger
	platformUserID uint
	notifier       Notifier
	logger         *zap.Logger
}

func NewDisputeService(db *gorm.DB, l *ledger.Ledger, platformUserID uint, notifier Notifier, logger *zap.Logger) *DisputeService {
	return &DisputeService{
		db:             db,
		ledger:         l,
		platformUserID: platformUserID,
		notifier:       notifier,
		logger:         logger,
	}
}

// CreateDispute opens an appeal against a resolved challenge. The
// caller must hold a bet on the challenge, and only one dispute may be
// live at a time.
func (s *DisputeService) CreateDispute(ctx context.Context, challengeID, userID uint, req *models.CreateDisputeRequest) (*models.Dispute, error) {
	if req.Reason == "" {
		return nil, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	dispute := &models.Dispute{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		RaisedByID:  userID,
		Reason:      req.Reason,
		Evidence:    req.Evidence,
		Status:      models.DisputeStatusOpen,
		Deadline:    time.Now().Add(DisputeReviewWindow),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenge, err := lockChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if challenge.Status != models.ChallengeStatusResolved {
			return fmt.Errorf("%w: disputes require a resolved challenge, found %s", ErrInvalidTransition, challenge.Status)
		}

		var betCount int64
		if err := tx.Model(&models.Bet{}).
			Where("challenge_id = ? AND user_id = ?", challengeID, userID).
			Count(&betCount).Error; err != nil {
			return err
		}
		if betCount == 0 {
			return ErrNoStanding
		}

		var liveCount int64
		if err := tx.Model(&models.Dispute{}).
			Where("challenge_id = ? AND status IN ?", challengeID,
				[]models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}).
			Count(&liveCount).Error; err != nil {
			return err
		}
		if liveCount > 0 {
			return ErrDuplicateDispute
		}

		if err := tx.Create(dispute).Error; err != nil {
			return err
		}

		challenge.Status = models.ChallengeStatusDisputed
		return tx.Omit(clause.Associations).Save(challenge).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute created",
		zap.String("dispute_id", dispute.ID.String()),
		zap.Uint("challenge_id", challengeID),
		zap.Uint("raised_by", userID),
	)
	return dispute, nil
}

// StartReview marks an open dispute as under review by a moderator.
func (s *DisputeService) StartReview(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute *models.Dispute
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		dispute, err = lockDispute(tx, disputeID)
		if err != nil {
			return err
		}
		if dispute.Status != models.DisputeStatusOpen {
			return fmt.Errorf("%w: review requires an open dispute, found %s", ErrInvalidTransition, dispute.Status)
		}
		dispute.Status = models.DisputeStatusUnderReview
		return tx.Save(dispute).Error
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute executes a moderator decision. The resolution row, the
// dispute flip to resolved, the challenge status change and any ledger
// effects are one unit of work.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID uuid.UUID, moderatorID uint, req *models.ResolveDisputeRequest) (*models.DisputeResolution, error) {
	if !req.Decision.Valid() {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrValidation, req.Decision)
	}
	if req.Decision == models.DecisionReverseResult && req.NewWinningOptionID == nil {
		return nil, fmt.Errorf("%w: reverse_result requires new_winning_option_id", ErrValidation)
	}

	resolution := &models.DisputeResolution{
		ID:                 uuid.New(),
		DisputeID:          disputeID,
		ModeratorID:        moderatorID,
		Decision:           req.Decision,
		Notes:              req.Notes,
		NewWinningOptionID: req.NewWinningOptionID,
	}

	var dispute *models.Dispute
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		dispute, err = lockDispute(tx, disputeID)
		if err != nil {
			return err
		}
		if dispute.Status == models.DisputeStatusResolved {
			return ErrDisputeResolved
		}

		challenge, err := lockChallenge(tx, dispute.ChallengeID)
		if err != nil {
			return err
		}
		if challenge.Status != models.ChallengeStatusDisputed {
			return fmt.Errorf("%w: dispute resolution requires a disputed challenge, found %s", ErrInvalidTransition, challenge.Status)
		}

		switch req.Decision {
		case models.DecisionConfirmResult:
			// Outcome stands, no ledger effect here. Re-enqueue
			// settlement: a payout job that ran while the challenge was
			// disputed retired without paying, so the confirmed outcome
			// still needs one. Harmless if settlement already happened.
			challenge.Status = models.ChallengeStatusResolved
			if err := EnqueuePayoutJob(tx, challenge.ID, time.Now()); err != nil {
				return err
			}

		case models.DecisionReverseResult:
			if !challenge.HasOption(*req.NewWinningOptionID) {
				return ErrOptionNotFound
			}
			if err := s.clawBackPayouts(tx, challenge); err != nil {
				return err
			}
			now := time.Now()
			challenge.WinningOptionID = req.NewWinningOptionID
			challenge.ResolverID = &moderatorID
			challenge.ResolvedAt = &now
			challenge.Status = models.ChallengeStatusResolved
			if err := EnqueuePayoutJob(tx, challenge.ID, now); err != nil {
				return err
			}

		case models.DecisionRefundAll:
			// No outcome is knowable. Undo any payouts already made,
			// then give everyone their stake back.
			if err := s.clawBackPayouts(tx, challenge); err != nil {
				return err
			}
			if err := refundChallengeBets(tx, s.ledger, s.platformUserID, challenge); err != nil {
				return err
			}
			challenge.Status = models.ChallengeStatusCancelled

		case models.DecisionManualAdjustment:
			// Recorded for out-of-band handling; no automated effect.
			challenge.Status = models.ChallengeStatusResolved
		}

		if err := tx.Omit(clause.Associations).Save(challenge).Error; err != nil {
			return err
		}
		if err := tx.Create(resolution).Error; err != nil {
			return err
		}

		dispute.Status = models.DisputeStatusResolved
		return tx.Save(dispute).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute resolved",
		zap.String("dispute_id", disputeID.String()),
		zap.String("decision", string(req.Decision)),
		zap.Uint("moderator_id", moderatorID),
	)
	s.notifier.DisputeResolved(ctx, dispute, resolution)
	return resolution, nil
}

// EscalateOverdue flags live disputes past their deadline. Escalation
// only: it never auto-decides.
func (s *DisputeService) EscalateOverdue(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Dispute{}).
		Where("status IN ? AND deadline < ? AND escalated = ?",
			[]models.DisputeStatus{models.DisputeStatusOpen, models.DisputeStatusUnderReview}, now, false).
		Update("escalated", true)
	if result.RowsAffected > 0 {
		s.logger.Warn("disputes escalated past review deadline", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, result.Error
}

// GetDispute retrieves a dispute by id.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := s.db.WithContext(ctx).Where("id = ?", disputeID).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

// clawBackPayouts recovers every recorded payout from previously won
// bets and resets settled bets to active so settlement can run again.
func (s *DisputeService) clawBackPayouts(tx *gorm.DB, challenge *models.Challenge) error {
	var bets []models.Bet
	err := tx.Where("challenge_id = ? AND status IN ?", challenge.ID,
		[]models.BetStatus{models.BetStatusWon, models.BetStatusLost}).
		Find(&bets).Error
	if err != nil {
		return err
	}

	for i := range bets {
		bet := &bets[i]
		if bet.Status == models.BetStatusWon && bet.Payout != nil && bet.Payout.Sign() > 0 {
			ec := ledger.EntryContext{ChallengeID: &challenge.ID, BetID: &bet.ID, Note: "payout clawback"}
			if _, err := s.ledger.Debit(tx, bet.UserID, *bet.Payout, models.LedgerTypePayoutReversal, ec); err != nil {
				return err
			}
			if _, err := s.ledger.Credit(tx, s.platformUserID, *bet.Payout, models.LedgerTypePayoutReversal, ec); err != nil {
				return err
			}
		}
		bet.Status = models.BetStatusActive
		bet.Payout = nil
		if err := tx.Save(bet).Error; err != nil {
			return err
		}
	}
	return nil
}

func lockDispute(tx *gorm.DB, disputeID uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	err := database.ForUpdate(tx).Where("id = ?", disputeID).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock dispute: %w", err)
	}
	return &dispute, nil
}

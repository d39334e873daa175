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

// ChallengeService owns challenge records, their options and the
// guarded lifecycle transitions. Every transition re-reads the
// challenge row under an exclusive lock before checking preconditions,
// so racing operations on the same challenge are strictly serialized.
type ChallengeService struct {
	db             *gorm.DB
	ledger         *ledger.Ledger
	platformUserID uint
	logger         *zap.Logger
}

func NewChallengeService(db *gorm.DB, l *ledger.Ledger, platformUserID uint, logger *zap.Logger) *ChallengeService {
	return &ChallengeService{
		db:             db,
		ledger:         l,
		platformUserID: platformUserID,
		logger:         logger,
	}
}

// CreateChallenge validates and inserts a new challenge in draft
// status. For fixed_creator_prize mode the prize is locked from the
// creator's balance before the insert, in the same transaction.
func (s *ChallengeService) CreateChallenge(ctx context.Context, creatorID uint, req *models.CreateChallengeRequest) (*models.Challenge, error) {
	if len(req.Options) < 2 {
		return nil, fmt.Errorf("%w: a challenge needs at least 2 options", ErrValidation)
	}

	mode := req.PayoutMode
	if mode == "" {
		mode = models.PayoutModePool
	}
	if mode != models.PayoutModePool && mode != models.PayoutModeCreatorPrize {
		return nil, fmt.Errorf("%w: unknown payout mode %q", ErrValidation, req.PayoutMode)
	}
	if mode == models.PayoutModeCreatorPrize && req.CreatorPrize.Sign() <= 0 {
		return nil, fmt.Errorf("%w: fixed_creator_prize requires a positive creator prize", ErrValidation)
	}
	if req.MinStake.Sign() <= 0 {
		return nil, fmt.Errorf("%w: min stake must be positive", ErrValidation)
	}
	if req.MaxStake != nil && req.MaxStake.LessThan(req.MinStake) {
		return nil, fmt.Errorf("%w: max stake below min stake", ErrValidation)
	}

	visibility := req.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}

	challenge := &models.Challenge{
		CreatorID:        creatorID,
		Title:            req.Title,
		Description:      req.Description,
		PayoutMode:       mode,
		CreatorPrize:     req.CreatorPrize,
		MinStake:         req.MinStake,
		MaxStake:         req.MaxStake,
		AllowCreatorBet:  req.AllowCreatorBet,
		OpenAcceptingAt:  req.OpenAcceptingAt,
		CloseAcceptingAt: req.CloseAcceptingAt,
		Visibility:       visibility,
		Status:           models.ChallengeStatusDraft,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(challenge).Error; err != nil {
			return fmt.Errorf("failed to create challenge: %w", err)
		}

		options := make([]models.ChallengeOption, 0, len(req.Options))
		for i, label := range req.Options {
			options = append(options, models.ChallengeOption{
				ChallengeID:  challenge.ID,
				Label:        label,
				DisplayOrder: i,
			})
		}
		if err := tx.Create(&options).Error; err != nil {
			return fmt.Errorf("failed to create options: %w", err)
		}
		challenge.Options = options

		if mode == models.PayoutModeCreatorPrize {
			ec := ledger.EntryContext{ChallengeID: &challenge.ID, Note: "creator prize reserve"}
			if _, err := s.ledger.LockFunds(tx, creatorID, req.CreatorPrize, models.LedgerTypeCreatorPrizeReserve, ec); err != nil {
				return err
			}
			if _, err := s.ledger.Credit(tx, s.platformUserID, req.CreatorPrize, models.LedgerTypeStakePool, ec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge created",
		zap.Uint("challenge_id", challenge.ID),
		zap.Uint("creator_id", creatorID),
		zap.String("payout_mode", string(mode)),
	)
	return challenge, nil
}

// Open moves a draft challenge to open. Creator only.
func (s *ChallengeService) Open(ctx context.Context, challengeID, actorID uint) (*models.Challenge, error) {
	return s.transition(ctx, challengeID, &actorID, models.ChallengeStatusDraft, models.ChallengeStatusOpen, nil)
}

// Close stops a challenge from accepting bets. Creator only.
func (s *ChallengeService) Close(ctx context.Context, challengeID, actorID uint) (*models.Challenge, error) {
	return s.transition(ctx, challengeID, &actorID, models.ChallengeStatusOpen, models.ChallengeStatusClosed, nil)
}

// Resolve names the winning option and enqueues a payout job. Creator
// only. The job is consumed by the settlement engine, directly or via
// the scheduler sweep.
func (s *ChallengeService) Resolve(ctx context.Context, challengeID, actorID, winningOptionID uint) (*models.Challenge, error) {
	return s.transition(ctx, challengeID, &actorID, models.ChallengeStatusClosed, models.ChallengeStatusResolved,
		func(tx *gorm.DB, challenge *models.Challenge) error {
			if !challenge.HasOption(winningOptionID) {
				return ErrOptionNotFound
			}

			now := time.Now()
			challenge.WinningOptionID = &winningOptionID
			challenge.ResolverID = &actorID
			challenge.ResolvedAt = &now

			return EnqueuePayoutJob(tx, challenge.ID, now)
		})
}

// Cancel voids a challenge before resolution, refunding every active
// bet and, in fixed prize mode, returning the creator reserve. Creator
// or moderator.
func (s *ChallengeService) Cancel(ctx context.Context, challengeID, actorID uint, isModerator bool) (*models.Challenge, error) {
	var challenge *models.Challenge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = lockChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if !isModerator && challenge.CreatorID != actorID {
			return ErrUnauthorized
		}

		switch challenge.Status {
		case models.ChallengeStatusDraft, models.ChallengeStatusOpen, models.ChallengeStatusClosed:
		default:
			return fmt.Errorf("%w: cannot cancel a %s challenge", ErrInvalidTransition, challenge.Status)
		}

		if err := refundChallengeBets(tx, s.ledger, s.platformUserID, challenge); err != nil {
			return err
		}

		challenge.Status = models.ChallengeStatusCancelled
		return tx.Omit(clause.Associations).Save(challenge).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge cancelled", zap.Uint("challenge_id", challengeID), zap.Uint("actor_id", actorID))
	return challenge, nil
}

// OpenDue bulk-opens drafts whose open_accepting_at has elapsed.
// Idempotent: rows already open match nothing.
func (s *ChallengeService) OpenDue(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("status = ? AND open_accepting_at IS NOT NULL AND open_accepting_at <= ?", models.ChallengeStatusDraft, now).
		Update("status", models.ChallengeStatusOpen)
	return result.RowsAffected, result.Error
}

// CloseDue bulk-closes open challenges whose close_accepting_at has
// elapsed.
func (s *ChallengeService) CloseDue(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Challenge{}).
		Where("status = ? AND close_accepting_at IS NOT NULL AND close_accepting_at <= ?", models.ChallengeStatusOpen, now).
		Update("status", models.ChallengeStatusClosed)
	return result.RowsAffected, result.Error
}

// transition runs one guarded status change under an exclusive row
// lock. actorID nil means the transition is scheduler-driven and skips
// the creator check. apply, when set, runs extra validation and
// mutation on the locked row before it is saved.
func (s *ChallengeService) transition(
	ctx context.Context,
	challengeID uint,
	actorID *uint,
	from, to models.ChallengeStatus,
	apply func(tx *gorm.DB, challenge *models.Challenge) error,
) (*models.Challenge, error) {
	var challenge *models.Challenge
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		challenge, err = lockChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if actorID != nil && challenge.CreatorID != *actorID {
			return ErrUnauthorized
		}
		if challenge.Status != from {
			return fmt.Errorf("%w: %s -> %s requires status %s, found %s",
				ErrInvalidTransition, from, to, from, challenge.Status)
		}

		challenge.Status = to
		if apply != nil {
			if err := apply(tx, challenge); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Save(challenge).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("challenge transitioned",
		zap.Uint("challenge_id", challengeID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return challenge, nil
}

// lockChallenge loads a challenge and its options under FOR UPDATE.
func lockChallenge(tx *gorm.DB, challengeID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	err := database.ForUpdate(tx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("id = ?", challengeID).
		First(&challenge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock challenge: %w", err)
	}
	return &challenge, nil
}

// EnqueuePayoutJob inserts a settlement work item keyed by challenge id
// and trigger time. A duplicate key is silently ignored, which makes
// enqueueing idempotent for a retried trigger carrying the same
// timestamp. Distinct triggers produce distinct jobs; that is safe
// because settling an already-settled challenge finds no active bets
// and retires the job without effect.
func EnqueuePayoutJob(tx *gorm.DB, challengeID uint, triggeredAt time.Time) error {
	job := models.PayoutJob{
		ID:             uuid.New(),
		ChallengeID:    challengeID,
		IdempotencyKey: fmt.Sprintf("settle:%d:%d", challengeID, triggeredAt.UnixNano()),
		Status:         models.PayoutJobStatusPending,
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&job).Error
}

// refundChallengeBets credits every active bet's stake back to its
// owner and marks the bet refunded. In fixed prize mode the creator
// reserve flows back as well.
func refundChallengeBets(tx *gorm.DB, l *ledger.Ledger, platformUserID uint, challenge *models.Challenge) error {
	var bets []models.Bet
	if err := tx.Where("challenge_id = ? AND status = ?", challenge.ID, models.BetStatusActive).Find(&bets).Error; err != nil {
		return err
	}

	for i := range bets {
		bet := &bets[i]
		ec := ledger.EntryContext{ChallengeID: &challenge.ID, BetID: &bet.ID, Note: "stake refund"}
		if err := l.Transfer(tx, platformUserID, bet.UserID, bet.Amount, models.LedgerTypeRefund, ec); err != nil {
			return err
		}
		bet.Status = models.BetStatusRefunded
		if err := tx.Save(bet).Error; err != nil {
			return err
		}
	}

	if challenge.PayoutMode == models.PayoutModeCreatorPrize && challenge.CreatorPrize.Sign() > 0 {
		ec := ledger.EntryContext{ChallengeID: &challenge.ID, Note: "creator prize refund"}
		if err := l.Transfer(tx, platformUserID, challenge.CreatorID, challenge.CreatorPrize, models.LedgerTypeRefund, ec); err != nil {
			return err
		}
	}
	return nil
}

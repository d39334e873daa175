package services

import (
	"context"
	"errors"
	"fmt"

	"challenge-market/internal/ledger"
	"challenge-market/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StakeService validates and records wagers. A bet insert, its balance
// lock and the challenge status check share one transaction, so a bet
// can never land on a challenge that is no longer open.
type StakeService struct {
	db             *gorm.DB
	ledger         *ledger.Ledger
	platformUserID uint
	logger         *zap.Logger
}

func NewStakeService(db *gorm.DB, l *ledger.Ledger, platformUserID uint, logger *zap.Logger) *StakeService {
	return &StakeService{
		db:             db,
		ledger:         l,
		platformUserID: platformUserID,
		logger:         logger,
	}
}

// PlaceBet places a stake against one option of an open challenge.
// When an idempotency key is supplied and a bet with that key already
// exists, the existing bet is returned unchanged, so retried client
// requests never double-charge.
func (s *StakeService) PlaceBet(ctx context.Context, challengeID, userID uint, req *models.PlaceBetRequest) (*models.Bet, error) {
	if req.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		if existing, err := s.findByKey(ctx, *req.IdempotencyKey); err != nil {
			return nil, err
		} else if existing != nil {
			return existing, nil
		}
	}

	bet := &models.Bet{
		ID:             uuid.New(),
		ChallengeID:    challengeID,
		UserID:         userID,
		OptionID:       req.OptionID,
		Amount:         req.Amount,
		IdempotencyKey: req.IdempotencyKey,
		Status:         models.BetStatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		challenge, err := lockChallenge(tx, challengeID)
		if err != nil {
			return err
		}
		if challenge.Status != models.ChallengeStatusOpen {
			return ErrChallengeNotOpen
		}
		if userID == challenge.CreatorID && !challenge.AllowCreatorBet {
			return ErrCreatorNotAllowed
		}
		if req.Amount.LessThan(challenge.MinStake) {
			return fmt.Errorf("%w: below min stake %s", ErrStakeOutOfRange, challenge.MinStake)
		}
		if challenge.MaxStake != nil && req.Amount.GreaterThan(*challenge.MaxStake) {
			return fmt.Errorf("%w: above max stake %s", ErrStakeOutOfRange, challenge.MaxStake)
		}
		if !challenge.HasOption(req.OptionID) {
			return ErrOptionNotFound
		}

		ec := ledger.EntryContext{ChallengeID: &challengeID, BetID: &bet.ID, Note: "stake placed"}
		if _, err := s.ledger.LockFunds(tx, userID, req.Amount, models.LedgerTypeStakeLocked, ec); err != nil {
			return err
		}
		// The pool account holds every locked stake so settlement never
		// disburses money the platform did not first receive.
		if _, err := s.ledger.Credit(tx, s.platformUserID, req.Amount, models.LedgerTypeStakePool, ec); err != nil {
			return err
		}

		return tx.Create(bet).Error
	})
	if err != nil {
		// A concurrent retry with the same key may have won the insert
		// race; surface that bet instead of the constraint violation.
		if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
			if existing, findErr := s.findByKey(ctx, *req.IdempotencyKey); findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.logger.Info("bet placed",
		zap.String("bet_id", bet.ID.String()),
		zap.Uint("challenge_id", challengeID),
		zap.Uint("user_id", userID),
		zap.String("amount", req.Amount.String()),
	)
	return bet, nil
}

func (s *StakeService) findByKey(ctx context.Context, key string) (*models.Bet, error) {
	var bet models.Bet
	err := s.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&bet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bet, nil
}

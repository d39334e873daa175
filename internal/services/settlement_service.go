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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxSettleAttempts = 5

// SettlementService computes and executes payouts for resolved
// challenges. Each PayoutJob is consumed at most once: the job row is
// locked and re-checked inside the same transaction as the financial
// effects, so a second run of the same key is a no-op.
type SettlementService struct {
	db             *gorm.DB
	ledger         *ledger.Ledger
	platformUserID uint
	feeRate        decimal.Decimal
	notifier       Notifier
	logger         *zap.Logger
}

func NewSettlementService(db *gorm.DB, l *ledger.Ledger, platformUserID uint, feeRate decimal.Decimal, notifier Notifier, logger *zap.Logger) *SettlementService {
	return &SettlementService{
		db:             db,
		ledger:         l,
		platformUserID: platformUserID,
		feeRate:        feeRate,
		notifier:       notifier,
		logger:         logger,
	}
}

// TriggerSettlement manually re-runs settlement for a resolved
// challenge. It enqueues a fresh job and services every pending job for
// the challenge immediately.
func (s *SettlementService) TriggerSettlement(ctx context.Context, challengeID uint) error {
	var challenge models.Challenge
	err := s.db.WithContext(ctx).Where("id = ?", challengeID).First(&challenge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrChallengeNotFound
	}
	if err != nil {
		return err
	}
	if challenge.Status != models.ChallengeStatusResolved {
		return fmt.Errorf("%w: settlement requires a resolved challenge, found %s", ErrInvalidTransition, challenge.Status)
	}

	// An existing pending job already covers this trigger; only enqueue
	// when there is none. Manual jobs carry a second-granularity key in
	// their own namespace, so retries landing in the same second dedupe
	// instead of piling up retired rows.
	var pendingCount int64
	err = s.db.WithContext(ctx).Model(&models.PayoutJob{}).
		Where("challenge_id = ? AND status = ?", challengeID, models.PayoutJobStatusPending).
		Count(&pendingCount).Error
	if err != nil {
		return err
	}
	if pendingCount == 0 {
		job := models.PayoutJob{
			ID:             uuid.New(),
			ChallengeID:    challengeID,
			IdempotencyKey: fmt.Sprintf("settle:%d:manual:%d", challengeID, time.Now().Unix()),
			Status:         models.PayoutJobStatusPending,
		}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&job).Error; err != nil {
			return err
		}
	}

	var jobs []models.PayoutJob
	err = s.db.WithContext(ctx).
		Where("challenge_id = ? AND status = ?", challengeID, models.PayoutJobStatusPending).
		Find(&jobs).Error
	if err != nil {
		return err
	}
	for i := range jobs {
		if err := s.SettleJob(ctx, jobs[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// ProcessPending services every pending payout job. Invoked by the
// lifecycle scheduler so a settlement survives the triggering process
// crashing before it could settle directly.
func (s *SettlementService) ProcessPending(ctx context.Context) (int, error) {
	var jobs []models.PayoutJob
	err := s.db.WithContext(ctx).
		Where("status = ?", models.PayoutJobStatusPending).
		Order("created_at ASC").
		Limit(100).
		Find(&jobs).Error
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range jobs {
		if err := s.SettleJob(ctx, jobs[i].ID); err != nil {
			s.logger.Error("payout job failed",
				zap.String("job_id", jobs[i].ID.String()),
				zap.Uint("challenge_id", jobs[i].ChallengeID),
				zap.Error(err),
			)
			s.recordFailure(ctx, &jobs[i], err)
			continue
		}
		settled++
	}
	return settled, nil
}

// SettleJob executes one payout job. All financial effects commit
// atomically with the job's pending->done flip; a job that is no longer
// pending is skipped.
func (s *SettlementService) SettleJob(ctx context.Context, jobID uuid.UUID) error {
	var challenge *models.Challenge
	var settledBets []models.Bet

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.PayoutJob
		err := database.ForUpdate(tx).Where("id = ?", jobID).First(&job).Error
		if err != nil {
			return fmt.Errorf("failed to lock payout job: %w", err)
		}
		if job.Status != models.PayoutJobStatusPending {
			return nil
		}

		challenge, err = lockChallenge(tx, job.ChallengeID)
		if err != nil {
			return err
		}

		if challenge.Status != models.ChallengeStatusResolved || challenge.WinningOptionID == nil {
			// The outcome changed under us (dispute, cancellation).
			// Log and retire the job rather than settling a stale state.
			s.logger.Warn("skipping payout job: challenge not resolved",
				zap.Uint("challenge_id", job.ChallengeID),
				zap.String("status", string(challenge.Status)),
			)
			return s.markDone(tx, &job)
		}

		var bets []models.Bet
		if err := tx.Where("challenge_id = ? AND status = ?", challenge.ID, models.BetStatusActive).
			Order("created_at ASC").Find(&bets).Error; err != nil {
			return err
		}
		if len(bets) == 0 {
			return s.markDone(tx, &job)
		}

		var winners, losers []*models.Bet
		for i := range bets {
			if bets[i].OptionID == *challenge.WinningOptionID {
				winners = append(winners, &bets[i])
			} else {
				losers = append(losers, &bets[i])
			}
		}

		if len(winners) == 0 {
			// Nobody picked the winning option. The platform did not
			// bet, so it does not keep the pool: everyone is refunded
			// in full, no fee.
			if err := refundChallengeBets(tx, s.ledger, s.platformUserID, challenge); err != nil {
				return err
			}
			settledBets = bets
			return s.markDone(tx, &job)
		}

		gross := s.grossShares(challenge, bets, winners)
		for i, winner := range winners {
			ec := ledger.EntryContext{ChallengeID: &challenge.ID, BetID: &winner.ID, Note: "settlement payout"}
			net, _, err := s.ledger.TransferWithFee(tx, s.platformUserID, winner.UserID, gross[i], s.feeRate, ec)
			if err != nil {
				return err
			}
			winner.Status = models.BetStatusWon
			winner.Payout = &net
			if err := tx.Save(winner).Error; err != nil {
				return err
			}
		}

		// Losers' stakes were locked away at placement; no further
		// ledger effect.
		for _, loser := range losers {
			loser.Status = models.BetStatusLost
			if err := tx.Save(loser).Error; err != nil {
				return err
			}
		}

		settledBets = bets
		return s.markDone(tx, &job)
	})
	if err != nil {
		return err
	}

	if challenge != nil && len(settledBets) > 0 {
		// Best effort: a failed notification never unwinds a payout.
		s.notifier.ChallengeSettled(ctx, challenge, settledBets)
	}
	return nil
}

// grossShares computes each winner's gross prize before the fee.
// pool_based distributes the whole pool pari-mutuel, proportional to
// stake among winning stakes; fixed_creator_prize splits the reserved
// prize equally. The last winner absorbs any division remainder so the
// shares always sum exactly to the distributable amount.
func (s *SettlementService) grossShares(challenge *models.Challenge, all []models.Bet, winners []*models.Bet) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(winners))

	if challenge.PayoutMode == models.PayoutModeCreatorPrize {
		n := decimal.NewFromInt(int64(len(winners)))
		each := challenge.CreatorPrize.Div(n)
		distributed := decimal.Zero
		for i := range winners {
			if i == len(winners)-1 {
				shares[i] = challenge.CreatorPrize.Sub(distributed)
			} else {
				shares[i] = each
				distributed = distributed.Add(each)
			}
		}
		return shares
	}

	pool := decimal.Zero
	for _, bet := range all {
		pool = pool.Add(bet.Amount)
	}
	winSum := decimal.Zero
	for _, w := range winners {
		winSum = winSum.Add(w.Amount)
	}

	distributed := decimal.Zero
	for i, w := range winners {
		if i == len(winners)-1 {
			shares[i] = pool.Sub(distributed)
			continue
		}
		share := w.Amount.Div(winSum).Mul(pool)
		shares[i] = share
		distributed = distributed.Add(share)
	}
	return shares
}

func (s *SettlementService) markDone(tx *gorm.DB, job *models.PayoutJob) error {
	now := time.Now()
	job.Status = models.PayoutJobStatusDone
	job.Attempts++
	job.ProcessedAt = &now
	return tx.Save(job).Error
}

// recordFailure bumps the attempt counter outside the rolled-back
// transaction. The settle transaction is all-or-nothing, so leaving the
// job pending keeps the retry safe; after too many attempts the job is
// parked as failed for manual attention.
func (s *SettlementService) recordFailure(ctx context.Context, job *models.PayoutJob, cause error) {
	msg := cause.Error()
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": msg,
	}
	if job.Attempts+1 >= maxSettleAttempts {
		updates["status"] = models.PayoutJobStatusFailed
	}
	if err := s.db.WithContext(ctx).Model(&models.PayoutJob{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		s.logger.Error("failed to record payout job failure", zap.Error(err))
	}
}

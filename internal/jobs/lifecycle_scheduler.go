package jobs

import (
	"context"
	"time"

	"challenge-market/internal/services"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LifecycleScheduler drives the time-gated challenge transitions and
// services pending payout jobs. Every sweep is idempotent, so an
// overlapping or repeated run has no extra effect.
type LifecycleScheduler struct {
	challengeService  *services.ChallengeService
	settlementService *services.SettlementService
	disputeService    *services.DisputeService
	cron              *cron.Cron
	logger            *zap.Logger
	baseCtx           context.Context
}

func NewLifecycleScheduler(
	challengeService *services.ChallengeService,
	settlementService *services.SettlementService,
	disputeService *services.DisputeService,
	logger *zap.Logger,
) *LifecycleScheduler {
	return &LifecycleScheduler{
		challengeService:  challengeService,
		settlementService: settlementService,
		disputeService:    disputeService,
		cron:              cron.New(),
		logger:            logger,
		baseCtx:           context.Background(),
	}
}

// Start registers the sweeps and begins the cron loop: challenge
// transitions and payout jobs every minute, dispute escalation hourly.
func (s *LifecycleScheduler) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.sweepLifecycle); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@every 1h", s.sweepDisputes); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("lifecycle scheduler started")
	return nil
}

// Stop halts the cron loop, waiting for running sweeps to finish.
func (s *LifecycleScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("lifecycle scheduler stopped")
}

func (s *LifecycleScheduler) sweepLifecycle() {
	ctx := s.baseCtx
	now := time.Now()

	opened, err := s.challengeService.OpenDue(ctx, now)
	if err != nil {
		s.logger.Error("failed to open due challenges", zap.Error(err))
	} else if opened > 0 {
		s.logger.Info("opened due challenges", zap.Int64("count", opened))
	}

	closed, err := s.challengeService.CloseDue(ctx, now)
	if err != nil {
		s.logger.Error("failed to close due challenges", zap.Error(err))
	} else if closed > 0 {
		s.logger.Info("closed due challenges", zap.Int64("count", closed))
	}

	settled, err := s.settlementService.ProcessPending(ctx)
	if err != nil {
		s.logger.Error("failed to process payout jobs", zap.Error(err))
	} else if settled > 0 {
		s.logger.Info("processed payout jobs", zap.Int("count", settled))
	}
}

func (s *LifecycleScheduler) sweepDisputes() {
	escalated, err := s.disputeService.EscalateOverdue(s.baseCtx, time.Now())
	if err != nil {
		s.logger.Error("failed to escalate overdue disputes", zap.Error(err))
		return
	}
	if escalated > 0 {
		s.logger.Info("escalated overdue disputes", zap.Int64("count", escalated))
	}
}

package services

import (
	"context"

	"challenge-market/internal/models"

	"go.uber.org/zap"
)

// Notifier is the best-effort side channel invoked after settlement and
// dispute resolution. Implementations must absorb their own failures:
// a notification that cannot be delivered never affects a financial
// outcome.
type Notifier interface {
	ChallengeSettled(ctx context.Context, challenge *models.Challenge, bets []models.Bet)
	DisputeResolved(ctx context.Context, dispute *models.Dispute, resolution *models.DisputeResolution)
}

// LogNotifier logs notification events instead of delivering them.
// Used in development and as the default when no delivery channel is
// configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) ChallengeSettled(ctx context.Context, challenge *models.Challenge, bets []models.Bet) {
	n.logger.Info("challenge settled",
		zap.Uint("challenge_id", challenge.ID),
		zap.Int("bets", len(bets)),
	)
}

func (n *LogNotifier) DisputeResolved(ctx context.Context, dispute *models.Dispute, resolution *models.DisputeResolution) {
	n.logger.Info("dispute resolved",
		zap.String("dispute_id", dispute.ID.String()),
		zap.Uint("challenge_id", dispute.ChallengeID),
		zap.String("decision", string(resolution.Decision)),
	)
}

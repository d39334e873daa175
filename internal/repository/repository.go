package repository

import (
	"context"

	"challenge-market/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetChallenge retrieves a challenge with its options.
func (r *Repository) GetChallenge(ctx context.Context, challengeID uint) (*models.Challenge, error) {
	var challenge models.Challenge
	err := r.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("id = ?", challengeID).
		First(&challenge).Error
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

type challengeAggregate struct {
	ChallengeID uint
	BetCount    int64
	Pool        decimal.Decimal
}

// ListChallenges retrieves challenges with aggregate bet counts and
// pool totals, optionally filtered by status and a title search.
func (r *Repository) ListChallenges(ctx context.Context, status *models.ChallengeStatus, search string, limit, offset int) ([]models.ChallengeSummary, error) {
	query := r.db.WithContext(ctx).Model(&models.Challenge{}).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("display_order ASC")
		}).
		Where("visibility = ?", models.VisibilityPublic)

	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if search != "" {
		query = query.Where("title LIKE ?", "%"+search+"%")
	}

	var challenges []models.Challenge
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&challenges).Error
	if err != nil {
		return nil, err
	}

	if len(challenges) == 0 {
		return []models.ChallengeSummary{}, nil
	}

	ids := make([]uint, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}

	var aggregates []challengeAggregate
	err = r.db.WithContext(ctx).Model(&models.Bet{}).
		Select("challenge_id, COUNT(*) AS bet_count, COALESCE(SUM(amount), 0) AS pool").
		Where("challenge_id IN ?", ids).
		Group("challenge_id").
		Scan(&aggregates).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]challengeAggregate, len(aggregates))
	for _, agg := range aggregates {
		byID[agg.ChallengeID] = agg
	}

	summaries := make([]models.ChallengeSummary, 0, len(challenges))
	for _, c := range challenges {
		agg := byID[c.ID]
		summaries = append(summaries, models.ChallengeSummary{
			Challenge: c,
			BetCount:  agg.BetCount,
			Pool:      agg.Pool,
		})
	}
	return summaries, nil
}

type optionAggregate struct {
	OptionID uint
	BetCount int64
	Total    decimal.Decimal
}

// GetChallengeDetail retrieves a challenge with per-option and total
// bet aggregates.
func (r *Repository) GetChallengeDetail(ctx context.Context, challengeID uint) (*models.ChallengeDetail, error) {
	challenge, err := r.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	var aggregates []optionAggregate
	err = r.db.WithContext(ctx).Model(&models.Bet{}).
		Select("option_id, COUNT(*) AS bet_count, COALESCE(SUM(amount), 0) AS total").
		Where("challenge_id = ?", challengeID).
		Group("option_id").
		Scan(&aggregates).Error
	if err != nil {
		return nil, err
	}

	byOption := make(map[uint]optionAggregate, len(aggregates))
	for _, agg := range aggregates {
		byOption[agg.OptionID] = agg
	}

	detail := &models.ChallengeDetail{
		Challenge: *challenge,
		Stats:     models.ChallengeStats{Pool: decimal.Zero},
	}
	for _, opt := range challenge.Options {
		agg := byOption[opt.ID]
		detail.OptionStats = append(detail.OptionStats, models.OptionStats{
			OptionID: opt.ID,
			Label:    opt.Label,
			BetCount: agg.BetCount,
			Total:    agg.Total,
		})
		detail.Stats.BetCount += agg.BetCount
		detail.Stats.Pool = detail.Stats.Pool.Add(agg.Total)
	}
	return detail, nil
}

// ListUserBets retrieves a user's bets, newest first.
func (r *Repository) ListUserBets(ctx context.Context, userID uint, status *models.BetStatus, limit, offset int) ([]models.Bet, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var bets []models.Bet
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

// ListChallengeBets retrieves every bet placed against a challenge.
func (r *Repository) ListChallengeBets(ctx context.Context, challengeID uint) ([]models.Bet, error) {
	var bets []models.Bet
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

// GetPayoutReport returns the settlement view of a challenge: pool
// totals plus every bet with its settled status and payout.
func (r *Repository) GetPayoutReport(ctx context.Context, challengeID uint) (*models.PayoutReport, error) {
	bets, err := r.ListChallengeBets(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	report := &models.PayoutReport{Bets: bets}
	report.Stats.Pool = decimal.Zero
	for _, bet := range bets {
		report.Stats.BetCount++
		report.Stats.Pool = report.Stats.Pool.Add(bet.Amount)
	}
	return report, nil
}

// ListChallengeDisputes retrieves every dispute raised against a
// challenge, newest first.
func (r *Repository) ListChallengeDisputes(ctx context.Context, challengeID uint) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.WithContext(ctx).
		Where("challenge_id = ?", challengeID).
		Order("created_at DESC").
		Find(&disputes).Error
	if err != nil {
		return nil, err
	}
	return disputes, nil
}

// ListLedgerEntries retrieves a user's journal in creation order.
// Replaying the entries reconstructs the exact balance history.
func (r *Repository) ListLedgerEntries(ctx context.Context, userID uint, limit, offset int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListUserBalances retrieves a user's current balance per asset. Users
// with no balance rows yet get an empty list, which reads as zero.
func (r *Repository) ListUserBalances(ctx context.Context, userID uint) ([]models.UserBalance, error) {
	var balances []models.UserBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("asset ASC").
		Find(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// GetUser retrieves a user row.
func (r *Repository) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

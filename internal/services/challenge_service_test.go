package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"challenge-market/internal/models"

	"github.com/shopspring/decimal"
)

func TestCreateChallengeValidation(t *testing.T) {
	e := newTestEngine(t)

	cases := []struct {
		name string
		req  models.CreateChallengeRequest
	}{
		{"single option", models.CreateChallengeRequest{
			Title: "x", Options: []string{"yes"}, MinStake: decimal.NewFromInt(1),
		}},
		{"unknown payout mode", models.CreateChallengeRequest{
			Title: "x", Options: []string{"yes", "no"}, PayoutMode: "jackpot", MinStake: decimal.NewFromInt(1),
		}},
		{"fixed mode without prize", models.CreateChallengeRequest{
			Title: "x", Options: []string{"yes", "no"}, PayoutMode: models.PayoutModeCreatorPrize, MinStake: decimal.NewFromInt(1),
		}},
		{"zero min stake", models.CreateChallengeRequest{
			Title: "x", Options: []string{"yes", "no"},
		}},
		{"max below min", models.CreateChallengeRequest{
			Title: "x", Options: []string{"yes", "no"},
			MinStake: decimal.NewFromInt(10), MaxStake: decimalPtr(5),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.challenges.CreateChallenge(context.Background(), 1, &tc.req)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestCreateChallengeFixedPrizeReserve(t *testing.T) {
	e := newTestEngine(t)
	e.fund(t, 1, 150)

	challenge := e.createChallenge(t, 1, &models.CreateChallengeRequest{
		Title:        "fixed",
		Options:      []string{"yes", "no"},
		PayoutMode:   models.PayoutModeCreatorPrize,
		CreatorPrize: decimal.NewFromInt(100),
		MinStake:     decimal.NewFromInt(1),
	})

	assertDecimal(t, e.balance(t, 1), 50, "creator balance after reserve")
	assertDecimal(t, e.balance(t, testPlatformID), 100, "platform holds the reserve")

	reserves := e.ledgerEntries(t, challenge.ID, models.LedgerTypeCreatorPrizeReserve)
	if len(reserves) != 1 {
		t.Fatalf("expected 1 reserve entry, got %d", len(reserves))
	}
	assertDecimal(t, reserves[0].Amount.Neg(), 100, "reserve entry amount")
}

func TestCreateChallengeFixedPrizeInsufficientFunds(t *testing.T) {
	e := newTestEngine(t)
	e.fund(t, 1, 40)

	_, err := e.challenges.CreateChallenge(context.Background(), 1, &models.CreateChallengeRequest{
		Title:        "fixed",
		Options:      []string{"yes", "no"},
		PayoutMode:   models.PayoutModeCreatorPrize,
		CreatorPrize: decimal.NewFromInt(100),
		MinStake:     decimal.NewFromInt(1),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The whole creation rolled back, including the challenge row.
	var count int64
	e.db.Model(&models.Challenge{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no challenge rows, got %d", count)
	}
}

func TestTransitionGuards(t *testing.T) {
	e := newTestEngine(t)
	challenge := e.createChallenge(t, 1, &models.CreateChallengeRequest{
		Title:    "guarded",
		Options:  []string{"yes", "no"},
		MinStake: decimal.NewFromInt(1),
	})

	// draft -> closed skips open.
	if _, err := e.challenges.Close(context.Background(), challenge.ID, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	// draft -> resolved skips everything.
	if _, err := e.challenges.Resolve(context.Background(), challenge.ID, 1, challenge.Options[0].ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	// Only the creator may transition.
	if _, err := e.challenges.Open(context.Background(), challenge.ID, 2); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := e.challenges.Open(context.Background(), challenge.ID, 1); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	// open -> open is not a transition.
	if _, err := e.challenges.Open(context.Background(), challenge.ID, 1); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestResolveUnknownOption(t *testing.T) {
	e := newTestEngine(t)
	challenge := e.openChallenge(t, 1, "yes", "no")
	other := e.openChallenge(t, 1, "yes", "no")

	if _, err := e.challenges.Close(context.Background(), challenge.ID, 1); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	_, err := e.challenges.Resolve(context.Background(), challenge.ID, 1, other.Options[0].ID)
	if !errors.Is(err, ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestResolveEnqueuesPayoutJob(t *testing.T) {
	e := newTestEngine(t)
	challenge := e.openChallenge(t, 1, "yes", "no")
	resolveChallenge(t, e, challenge.ID, 1, challenge.Options[0].ID)

	var jobs int64
	e.db.Model(&models.PayoutJob{}).Where("challenge_id = ?", challenge.ID).Count(&jobs)
	if jobs != 1 {
		t.Fatalf("expected 1 payout job, got %d", jobs)
	}
}

func TestCancelRefundsBets(t *testing.T) {
	e := newTestEngine(t)
	e.fund(t, 2, 100)
	e.fund(t, 3, 100)

	challenge := e.openChallenge(t, 1, "yes", "no")
	betA := e.placeBet(t, challenge.ID, 2, challenge.Options[0].ID, 30)
	e.placeBet(t, challenge.ID, 3, challenge.Options[1].ID, 45)

	got, err := e.challenges.Cancel(context.Background(), challenge.ID, 1, false)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got.Status != models.ChallengeStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	assertDecimal(t, e.balance(t, 2), 100, "bettor refunded")
	assertDecimal(t, e.balance(t, 3), 100, "bettor refunded")
	assertDecimal(t, e.balance(t, testPlatformID), 0, "platform holds nothing")

	if b := e.getBet(t, betA.ID); b.Status != models.BetStatusRefunded {
		t.Errorf("expected refunded bet, got %s", b.Status)
	}
}

func TestCancelAuthorization(t *testing.T) {
	e := newTestEngine(t)
	challenge := e.openChallenge(t, 1, "yes", "no")

	if _, err := e.challenges.Cancel(context.Background(), challenge.ID, 2, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
	// A moderator may cancel someone else's challenge.
	if _, err := e.challenges.Cancel(context.Background(), challenge.ID, 2, true); err != nil {
		t.Fatalf("moderator cancel failed: %v", err)
	}
}

func TestCancelResolvedChallenge(t *testing.T) {
	e := newTestEngine(t)
	challenge := e.openChallenge(t, 1, "yes", "no")
	resolveChallenge(t, e, challenge.ID, 1, challenge.Options[0].ID)

	_, err := e.challenges.Cancel(context.Background(), challenge.ID, 1, false)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestScheduledSweeps(t *testing.T) {
	e := newTestEngine(t)
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := e.createChallenge(t, 1, &models.CreateChallengeRequest{
		Title: "due", Options: []string{"yes", "no"},
		MinStake: decimal.NewFromInt(1), OpenAcceptingAt: &past, CloseAcceptingAt: &future,
	})
	notDue := e.createChallenge(t, 1, &models.CreateChallengeRequest{
		Title: "not due", Options: []string{"yes", "no"},
		MinStake: decimal.NewFromInt(1), OpenAcceptingAt: &future,
	})

	n, err := e.challenges.OpenDue(context.Background(), now)
	if err != nil {
		t.Fatalf("open sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 opened, got %d", n)
	}

	var got models.Challenge
	e.db.First(&got, due.ID)
	if got.Status != models.ChallengeStatusOpen {
		t.Errorf("expected open, got %s", got.Status)
	}
	got = models.Challenge{}
	e.db.First(&got, notDue.ID)
	if got.Status != models.ChallengeStatusDraft {
		t.Errorf("expected draft, got %s", got.Status)
	}

	n, err = e.challenges.CloseDue(context.Background(), future.Add(time.Minute))
	if err != nil {
		t.Fatalf("close sweep failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 closed, got %d", n)
	}
	got = models.Challenge{}
	e.db.First(&got, due.ID)
	if got.Status != models.ChallengeStatusClosed {
		t.Errorf("expected closed_for_bets, got %s", got.Status)
	}
}

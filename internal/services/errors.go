package services

import (
	"errors"

	"challenge-market/internal/ledger"
)

// Engine failures are detected synchronously inside the owning
// transaction and surfaced to the caller as typed errors before commit.
// None of them are retried internally.
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrOptionNotFound    = errors.New("option does not belong to challenge")
	ErrBetNotFound       = errors.New("bet not found")
	ErrDisputeNotFound   = errors.New("dispute not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrChallengeNotOpen  = errors.New("challenge is not open for bets")
	ErrUnauthorized      = errors.New("not allowed to perform this action")
	ErrCreatorNotAllowed = errors.New("creator may not bet on own challenge")
	ErrStakeOutOfRange   = errors.New("stake amount outside allowed range")
	ErrValidation        = errors.New("validation failed")
	ErrDuplicateDispute  = errors.New("challenge already has a live dispute")
	ErrDisputeResolved   = errors.New("dispute is already resolved")
	ErrNoStanding        = errors.New("caller has no bet on this challenge")
)

// ErrInsufficientFunds is the ledger's error, re-exported so callers
// only need this package to classify failures.
var ErrInsufficientFunds = ledger.ErrInsufficientFunds

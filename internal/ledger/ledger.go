package ledger

import (
	"errors"
	"fmt"

	"challenge-market/internal/database"
	"challenge-market/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInsufficientFunds is returned when a lock would take a balance
// below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// EntryContext carries the references stamped on each ledger entry.
type EntryContext struct {
	ChallengeID *uint
	BetID       *uuid.UUID
	Note        string
}

// Ledger owns per-user balances and the append-only journal. It has no
// ambient transaction: every operation takes the caller's *gorm.DB
// transaction handle so the stake, settlement and dispute engines can
// compose multiple ledger calls atomically.
type Ledger struct {
	asset string
}

func New(asset string) *Ledger {
	if asset == "" {
		asset = models.DefaultAsset
	}
	return &Ledger{asset: asset}
}

// Balance reads the current balance without locking. Missing rows read
// as zero.
func (l *Ledger) Balance(tx *gorm.DB, userID uint) (decimal.Decimal, error) {
	var bal models.UserBalance
	err := tx.Where("user_id = ? AND asset = ?", userID, l.asset).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Balance, nil
}

// LockFunds debits amount from the user under an exclusive row lock,
// failing with ErrInsufficientFunds if the balance does not cover it.
// entryType is stake_locked or creator_prize_reserve depending on what
// the funds are being held for.
func (l *Ledger) LockFunds(tx *gorm.DB, userID uint, amount decimal.Decimal, entryType models.LedgerEntryType, ec EntryContext) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("lock amount must be positive, got %s", amount)
	}

	bal, err := l.lockBalance(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if bal.Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}
	return l.mutate(tx, bal, amount.Neg(), entryType, ec)
}

// Credit increments the user's balance and journals the movement.
func (l *Ledger) Credit(tx *gorm.DB, userID uint, amount decimal.Decimal, entryType models.LedgerEntryType, ec EntryContext) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("credit amount must be positive, got %s", amount)
	}

	bal, err := l.lockBalance(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return l.mutate(tx, bal, amount, entryType, ec)
}

// Debit decrements the user's balance without a funds check. Used for
// clawbacks, which must succeed even if the account has since spent
// the payout.
func (l *Ledger) Debit(tx *gorm.DB, userID uint, amount decimal.Decimal, entryType models.LedgerEntryType, ec EntryContext) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	bal, err := l.lockBalance(tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return l.mutate(tx, bal, amount.Neg(), entryType, ec)
}

// Transfer moves amount from payer to payee, journaling both sides with
// the same entry type. Lock order is fixed payer-then-payee.
func (l *Ledger) Transfer(tx *gorm.DB, payerID, payeeID uint, amount decimal.Decimal, entryType models.LedgerEntryType, ec EntryContext) error {
	if _, err := l.Debit(tx, payerID, amount, entryType, ec); err != nil {
		return err
	}
	if _, err := l.Credit(tx, payeeID, amount, entryType, ec); err != nil {
		return err
	}
	return nil
}

// TransferWithFee disburses gross from payer to payee, with the payer
// retaining gross*feeRate as commission. Three movements are journaled,
// each a real balance delta: the payer disburses the gross prize
// (payout), earns the fee back (commission), and the payee receives the
// net (payout). Returns the net and fee amounts.
func (l *Ledger) TransferWithFee(tx *gorm.DB, payerID, payeeID uint, gross, feeRate decimal.Decimal, ec EntryContext) (net, fee decimal.Decimal, err error) {
	if gross.Sign() <= 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("gross amount must be positive, got %s", gross)
	}

	fee = gross.Mul(feeRate)
	net = gross.Sub(fee)

	// Payer before payee, always.
	payerBal, err := l.lockBalance(tx, payerID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if _, err = l.mutate(tx, payerBal, gross.Neg(), models.LedgerTypePayout, ec); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if fee.Sign() > 0 {
		if _, err = l.mutate(tx, payerBal, fee, models.LedgerTypeCommission, ec); err != nil {
			return decimal.Zero, decimal.Zero, err
		}
	}

	if _, err = l.Credit(tx, payeeID, net, models.LedgerTypePayout, ec); err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return net, fee, nil
}

// lockBalance loads the (user, asset) balance row under FOR UPDATE,
// creating a zero row inside the caller's transaction if none exists.
func (l *Ledger) lockBalance(tx *gorm.DB, userID uint) (*models.UserBalance, error) {
	var bal models.UserBalance
	err := database.ForUpdate(tx).Where("user_id = ? AND asset = ?", userID, l.asset).First(&bal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bal = models.UserBalance{UserID: userID, Asset: l.asset, Balance: decimal.Zero}
		if err := tx.Create(&bal).Error; err != nil {
			return nil, fmt.Errorf("failed to create balance row: %w", err)
		}
		return &bal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance row: %w", err)
	}
	return &bal, nil
}

// mutate applies one signed delta to a locked balance row and writes
// its paired ledger entry in the same transaction.
func (l *Ledger) mutate(tx *gorm.DB, bal *models.UserBalance, delta decimal.Decimal, entryType models.LedgerEntryType, ec EntryContext) (decimal.Decimal, error) {
	before := bal.Balance
	after := before.Add(delta)

	if err := tx.Model(&models.UserBalance{}).Where("id = ?", bal.ID).Update("balance", after).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	bal.Balance = after

	entry := models.LedgerEntry{
		ID:            uuid.New(),
		UserID:        bal.UserID,
		Asset:         l.asset,
		Type:          entryType,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		ChallengeID:   ec.ChallengeID,
		BetID:         ec.BetID,
		Note:          ec.Note,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to write ledger entry: %w", err)
	}
	return after, nil
}

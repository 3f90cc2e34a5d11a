package service

import (
	"context"
	"fmt"
)

const (
	GenerationCostPerImage = 3
	TrainingCost           = 50
)

// GenerationCost prices a submission by the requested image count, not the
// count actually sent to the provider.
func GenerationCost(requested int) int {
	return GenerationCostPerImage * requested
}

// Ledger moves credits on the user record. Every mutation is a single
// conditional statement in the store, so concurrent debits cannot overdraw.
type Ledger struct {
	users UserStore
}

func NewLedger(users UserStore) *Ledger {
	return &Ledger{users: users}
}

// Debit removes amount and returns the new balance. The balance is left
// untouched when it does not cover amount.
func (l *Ledger) Debit(ctx context.Context, userID int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: debit amount must be positive", ErrValidation)
	}
	ok, err := l.users.DebitCredits(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		balance, err := l.Balance(ctx, userID)
		if err != nil {
			return 0, err
		}
		return balance, ErrInsufficientCredits
	}
	return l.Balance(ctx, userID)
}

// Credit adds amount and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, userID int64, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: credit amount must be positive", ErrValidation)
	}
	ok, err := l.users.AddCredits(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return l.Balance(ctx, userID)
}

// Adjust applies a signed manual correction.
func (l *Ledger) Adjust(ctx context.Context, userID int64, delta int) (int, error) {
	switch {
	case delta > 0:
		return l.Credit(ctx, userID, delta)
	case delta < 0:
		return l.Debit(ctx, userID, -delta)
	default:
		return 0, fmt.Errorf("%w: delta must not be zero", ErrValidation)
	}
}

func (l *Ledger) Balance(ctx context.Context, userID int64) (int, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return user.Credits, nil
}

package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digkill/photostudio/internal/models"
)

func TestLedgerDebit(t *testing.T) {
	users := newFakeUsers(models.User{ID: 1, Credits: 10})
	ledger := NewLedger(users)
	ctx := context.Background()

	balance, err := ledger.Debit(ctx, 1, 4)
	require.NoError(t, err)
	require.Equal(t, 6, balance)

	balance, err = ledger.Debit(ctx, 1, 7)
	require.ErrorIs(t, err, ErrInsufficientCredits)
	require.Equal(t, 6, balance)
	require.Equal(t, 6, users.credits(1))

	_, err = ledger.Debit(ctx, 1, 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = ledger.Debit(ctx, 99, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerCreditAndAdjust(t *testing.T) {
	users := newFakeUsers(models.User{ID: 1, Credits: 5})
	ledger := NewLedger(users)
	ctx := context.Background()

	balance, err := ledger.Credit(ctx, 1, 20)
	require.NoError(t, err)
	require.Equal(t, 25, balance)

	balance, err = ledger.Adjust(ctx, 1, -25)
	require.NoError(t, err)
	require.Zero(t, balance)

	_, err = ledger.Adjust(ctx, 1, -1)
	require.ErrorIs(t, err, ErrInsufficientCredits)

	_, err = ledger.Adjust(ctx, 1, 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = ledger.Credit(ctx, 42, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	users := newFakeUsers(models.User{ID: 1, Credits: 30})
	ledger := NewLedger(users)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := ledger.Debit(context.Background(), 1, 12); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 2, succeeded)
	require.Equal(t, 6, users.credits(1))
}

func TestGenerationCost(t *testing.T) {
	require.Equal(t, 12, GenerationCost(4))
	require.Equal(t, 30, GenerationCost(10))
}

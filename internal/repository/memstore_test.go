package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

func newMemStore(t *testing.T) *MemStore {
	t.Helper()
	return NewMemStore(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newAccount(t *testing.T, store *MemStore, number, balance string) *domain.Account {
	t.Helper()
	account := &domain.Account{
		OwnerID:  1,
		Number:   number,
		Kind:     domain.AccountKindChecking,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
		Status:   domain.AccountStatusActive,
	}
	require.NoError(t, store.Accounts().CreateAccount(context.Background(), account))
	return account
}

func TestMemStoreRollbackRestoresEverything(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	a := newAccount(t, store, "0000000001", "100.00")
	b := newAccount(t, store, "0000000002", "50.00")

	boom := errors.NewAppError(errors.StorageFailure, "simulated commit failure")

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		if _, err := tx.Accounts().GetAccountForUpdate(ctx, a.ID); err != nil {
			return err
		}
		if _, err := tx.Accounts().GetAccountForUpdate(ctx, b.ID); err != nil {
			return err
		}
		if err := tx.Accounts().UpdateAccountBalance(ctx, a.ID, decimal.RequireFromString("70.00")); err != nil {
			return err
		}
		if err := tx.Accounts().UpdateAccountBalance(ctx, b.ID, decimal.RequireFromString("80.00")); err != nil {
			return err
		}
		sourceID, destID := a.ID, b.ID
		if err := tx.Transactions().CreateTransaction(ctx, &domain.Transaction{
			ID:                   uuid.New(),
			SourceAccountID:      &sourceID,
			DestinationAccountID: &destID,
			Amount:               decimal.RequireFromString("30.00"),
			Kind:                 domain.TransactionKindTransfer,
			Status:               domain.TransactionStatusCompleted,
		}); err != nil {
			return err
		}
		return boom
	})
	require.Equal(t, boom, err)

	// Balances and ledger are exactly as before the attempt.
	got, err := store.Accounts().GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("100.00")))

	got, err = store.Accounts().GetAccount(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("50.00")))

	entries, err := store.Transactions().ListByAccount(ctx, a.ID, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, entries)

	// All locks were released: the accounts can be locked again.
	err = store.WithTransaction(ctx, func(tx domain.Store) error {
		_, err := tx.Accounts().GetAccountForUpdate(ctx, a.ID)
		return err
	})
	require.NoError(t, err)
}

func TestMemStoreLockWaitTimesOut(t *testing.T) {
	store := NewMemStore(50*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()
	a := newAccount(t, store, "0000000001", "100.00")

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithTransaction(ctx, func(tx domain.Store) error {
			if _, err := tx.Accounts().GetAccountForUpdate(ctx, a.ID); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked
	defer close(release)

	err := store.WithTransaction(ctx, func(tx domain.Store) error {
		_, err := tx.Accounts().GetAccountForUpdate(ctx, a.ID)
		return err
	})
	assert.Equal(t, errors.ErrLockTimeout, err)
}

func TestMemStoreCompletedEntriesAreImmutable(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	a := newAccount(t, store, "0000000001", "100.00")

	accountID := a.ID
	pending := &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: &accountID,
		Amount:          decimal.RequireFromString("10.00"),
		Kind:            domain.TransactionKindWithdrawal,
		Status:          domain.TransactionStatusPending,
	}
	require.NoError(t, store.Transactions().CreateTransaction(ctx, pending))

	// Pending may transition once.
	require.NoError(t, store.Transactions().UpdateTransactionStatus(ctx, pending.ID, domain.TransactionStatusCompleted))

	// Completed never changes again.
	err := store.Transactions().UpdateTransactionStatus(ctx, pending.ID, domain.TransactionStatusCancelled)
	assert.Equal(t, errors.ErrEntryImmutable, err)
}

func TestMemStoreDuplicateNumberAndIdempotencyKey(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()
	a := newAccount(t, store, "0000000001", "0.00")

	dup := &domain.Account{OwnerID: 2, Number: "0000000001", Kind: domain.AccountKindSavings,
		Balance: decimal.Zero, Currency: "USD", Status: domain.AccountStatusActive}
	assert.Equal(t, errors.ErrDuplicateAccount, store.Accounts().CreateAccount(ctx, dup))

	key := uuid.New()
	accountID := a.ID
	first := &domain.Transaction{
		ID:                   uuid.New(),
		DestinationAccountID: &accountID,
		Amount:               decimal.RequireFromString("10.00"),
		Kind:                 domain.TransactionKindDeposit,
		Status:               domain.TransactionStatusCompleted,
		IdempotencyKey:       &key,
	}
	require.NoError(t, store.Transactions().CreateTransaction(ctx, first))

	second := &domain.Transaction{
		ID:                   uuid.New(),
		DestinationAccountID: &accountID,
		Amount:               decimal.RequireFromString("10.00"),
		Kind:                 domain.TransactionKindDeposit,
		Status:               domain.TransactionStatusCompleted,
		IdempotencyKey:       &key,
	}
	assert.Equal(t, errors.ErrDuplicateTransaction, store.Transactions().CreateTransaction(ctx, second))

	found, err := store.Transactions().GetTransactionByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
}

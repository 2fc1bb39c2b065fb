package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
	"retail-ledger/internal/repository"
)

func newTestService(t *testing.T) *AccountService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAccountService(repository.NewMemStore(time.Second, logger), logger)
}

func TestCreateAccountStartsEmptyAndActive(t *testing.T) {
	svc := newTestService(t)

	account, err := svc.CreateAccount(context.Background(), 7, domain.AccountKindSavings, "usd")
	require.NoError(t, err)

	assert.True(t, account.Balance.IsZero())
	assert.Equal(t, domain.AccountStatusActive, account.Status)
	assert.Equal(t, "USD", account.Currency)
	assert.Len(t, account.Number, 10)
	assert.NotZero(t, account.ID)
}

func TestCreateAccountValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, 0, domain.AccountKindChecking, "USD")
	assert.Error(t, err)

	_, err = svc.CreateAccount(ctx, 1, "money-market", "USD")
	assert.Error(t, err)

	_, err = svc.CreateAccount(ctx, 1, domain.AccountKindChecking, "DOLLARS")
	assert.Error(t, err)
}

func TestStatusTransitions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateAccount(ctx, 1, domain.AccountKindChecking, "USD")
	require.NoError(t, err)

	// Administrative freeze and thaw.
	account, err = svc.UpdateStatus(ctx, account.ID, domain.AccountStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusSuspended, account.Status)

	account, err = svc.UpdateStatus(ctx, account.ID, domain.AccountStatusActive)
	require.NoError(t, err)

	// Closure is terminal: no transition out of closed.
	account, err = svc.UpdateStatus(ctx, account.ID, domain.AccountStatusClosed)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, account.ID, domain.AccountStatusActive)
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.InvalidInput, appErr.Code)
}

func TestGetAccountRejectsBadIDs(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetAccount(ctx, "abc")
	assert.Error(t, err)

	_, err = svc.GetAccount(ctx, "-3")
	assert.Error(t, err)

	_, err = svc.GetAccount(ctx, "12345")
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.AccountNotFound, appErr.Code)
}

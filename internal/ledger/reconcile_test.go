package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail-ledger/internal/domain"
)

func entry(source, dest *int64, amount string, status domain.TransactionStatus) domain.Transaction {
	return domain.Transaction{
		ID:                   uuid.New(),
		SourceAccountID:      source,
		DestinationAccountID: dest,
		Amount:               decimal.RequireFromString(amount),
		Kind:                 domain.TransactionKindTransfer,
		Status:               status,
	}
}

func TestExpectedBalanceSignsEntriesByDirection(t *testing.T) {
	accountID := int64(1)
	other := int64(2)

	entries := []domain.Transaction{
		entry(&other, &accountID, "50.00", domain.TransactionStatusCompleted),  // credit
		entry(&accountID, &other, "20.00", domain.TransactionStatusCompleted),  // debit
		entry(nil, &accountID, "5.00", domain.TransactionStatusCompleted),      // deposit
		entry(&accountID, nil, "10.00", domain.TransactionStatusCompleted),     // withdrawal
		entry(&accountID, &other, "999.00", domain.TransactionStatusFailed),    // no effect
		entry(&other, &accountID, "999.00", domain.TransactionStatusPending),   // no effect
		entry(&other, &accountID, "999.00", domain.TransactionStatusCancelled), // no effect
	}

	got := ExpectedBalance(accountID, decimal.RequireFromString("100.00"), entries)
	assert.True(t, got.Equal(decimal.RequireFromString("125.00")), "got %s", got)
}

func TestCheckBalanceFlagsDivergence(t *testing.T) {
	accountID := int64(1)
	other := int64(2)
	entries := []domain.Transaction{
		entry(&other, &accountID, "50.00", domain.TransactionStatusCompleted),
	}

	account := &domain.Account{ID: accountID, Balance: decimal.RequireFromString("150.00")}
	require.NoError(t, CheckBalance(account, decimal.RequireFromString("100.00"), entries))

	account.Balance = decimal.RequireFromString("149.99")
	err := CheckBalance(account, decimal.RequireFromString("100.00"), entries)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "balance mismatch")
}

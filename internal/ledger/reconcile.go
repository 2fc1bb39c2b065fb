package ledger

import (
	"github.com/shopspring/decimal"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

// ExpectedBalance recomputes an account's balance from its opening balance
// and the signed amounts of its completed ledger entries. Pending, failed
// and cancelled entries carry no balance effect.
func ExpectedBalance(accountID int64, opening decimal.Decimal, entries []domain.Transaction) decimal.Decimal {
	balance := opening
	for _, e := range entries {
		if e.Status != domain.TransactionStatusCompleted {
			continue
		}
		balance = balance.Add(e.SignedAmountFor(accountID))
	}
	return balance
}

// CheckBalance asserts the core ledger invariant: opening balance plus the
// sum of completed entries equals the account's current balance.
func CheckBalance(account *domain.Account, opening decimal.Decimal, entries []domain.Transaction) error {
	expected := ExpectedBalance(account.ID, opening, entries)
	if !expected.Equal(account.Balance) {
		return errors.NewAppErrorf(errors.InternalError,
			"balance mismatch for account %d: ledger reconstructs %s, account holds %s",
			account.ID, expected, account.Balance)
	}
	return nil
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindTransfer   TransactionKind = "transfer"
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindWithdrawal TransactionKind = "withdrawal"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Transaction is one ledger entry: an append-only record of a money
// movement. Amount is always positive; direction is implied by which side
// is set. Deposits have no source, withdrawals no destination. Once
// completed, an entry never changes.
type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	SourceAccountID      *int64            `json:"source_account_id,omitempty"`
	DestinationAccountID *int64            `json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal   `json:"amount"`
	Kind                 TransactionKind   `json:"kind"`
	Status               TransactionStatus `json:"status"`
	Description          string            `json:"description,omitempty"`
	IdempotencyKey       *uuid.UUID        `json:"idempotency_key,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// SignedAmountFor returns the entry's effect on the given account's balance:
// negative for a debit, positive for a credit, zero if the account is not a
// party to the entry.
func (t *Transaction) SignedAmountFor(accountID int64) decimal.Decimal {
	if t.SourceAccountID != nil && *t.SourceAccountID == accountID {
		return t.Amount.Neg()
	}
	if t.DestinationAccountID != nil && *t.DestinationAccountID == accountID {
		return t.Amount
	}
	return decimal.Zero
}

type TransactionRepository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (*Transaction, error)
	// UpdateTransactionStatus transitions a pending entry to a terminal
	// status. Entries that already reached a terminal status are immutable.
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status TransactionStatus) error
	// ListByAccount returns every entry touching the account with a creation
	// time in [from, to], ordered by creation.
	ListByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]Transaction, error)
}

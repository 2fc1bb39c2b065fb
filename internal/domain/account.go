package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type AccountKind string

const (
	AccountKindChecking AccountKind = "checking"
	AccountKindSavings  AccountKind = "savings"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "active"
	AccountStatusInactive  AccountStatus = "inactive"
	AccountStatusSuspended AccountStatus = "suspended"
	AccountStatusClosed    AccountStatus = "closed"
)

// Account is the unit of locking and mutation. Balances are decimal and
// always rounded to the currency's minor unit; they never go negative.
type Account struct {
	ID        int64           `json:"account_id"`
	OwnerID   int64           `json:"owner_id"`
	Number    string          `json:"account_number"`
	Kind      AccountKind     `json:"kind"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	Status    AccountStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// ValidStatusTransition reports whether an account may move from its current
// status to next. Closed is terminal; accounts are never physically deleted.
func ValidStatusTransition(current, next AccountStatus) bool {
	if current == AccountStatusClosed {
		return false
	}
	switch next {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended, AccountStatusClosed:
		return next != current
	default:
		return false
	}
}

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id int64) (*Account, error)
	// GetAccountForUpdate acquires an exclusive lock on the account row for
	// the duration of the enclosing transaction. It may block up to the
	// store's configured lock timeout.
	GetAccountForUpdate(ctx context.Context, id int64) (*Account, error)
	UpdateAccountBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error
	UpdateAccountStatus(ctx context.Context, id int64, status AccountStatus) error
	AccountNumberExists(ctx context.Context, number string) (bool, error)
}

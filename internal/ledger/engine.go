package ledger

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

var entriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_entries_total",
	Help: "Ledger operations attempted, by kind and outcome",
}, []string{"kind", "outcome"})

// Engine is the only component that mutates account balances. Every money
// movement runs the same path: validate, lock the touched accounts in
// canonical order, re-validate under the locks, then commit the balance
// deltas and the completed ledger entry as one atomic unit.
type Engine struct {
	store  domain.Store
	logger *slog.Logger
}

func NewEngine(store domain.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		logger: logger,
	}
}

type TransferRequest struct {
	RequesterID          int64
	Privileged           bool
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               decimal.Decimal
	Description          string
	IdempotencyKey       *uuid.UUID
}

// Transfer debits the source account and credits the destination account by
// the same amount. Validation failures are reported before any mutation; a
// failure after lock acquisition rolls everything back, leaving balances
// and the ledger exactly as they were.
func (e *Engine) Transfer(ctx context.Context, req *TransferRequest) (*domain.Transaction, error) {
	e.logger.Info("Processing transfer",
		"source_account_id", req.SourceAccountID,
		"destination_account_id", req.DestinationAccountID,
		"amount", req.Amount,
		"requester_id", req.RequesterID)

	if !validAmount(req.Amount) {
		return nil, e.reject(domain.TransactionKindTransfer, errors.ErrInvalidAmount)
	}
	if req.SourceAccountID == req.DestinationAccountID {
		return nil, e.reject(domain.TransactionKindTransfer, errors.ErrSelfTransfer)
	}

	// A retried request with the same idempotency key returns the original
	// entry instead of moving money twice.
	if req.IdempotencyKey != nil {
		existing, err := e.store.Transactions().GetTransactionByIdempotencyKey(ctx, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			e.logger.Info("Returning existing entry for idempotency key",
				"idempotency_key", *req.IdempotencyKey,
				"transaction_id", existing.ID)
			return existing, nil
		}
	}

	// Unlocked pre-check. Values can change before the locks are held, so
	// everything here is re-verified under the locks; failing early keeps
	// obviously doomed requests off the lock path.
	src, err := e.getAccountNamed(ctx, e.store, req.SourceAccountID, "source")
	if err != nil {
		return nil, e.reject(domain.TransactionKindTransfer, err)
	}
	dst, err := e.getAccountNamed(ctx, e.store, req.DestinationAccountID, "destination")
	if err != nil {
		return nil, e.reject(domain.TransactionKindTransfer, err)
	}
	// Ownership of the destination is never required.
	if !req.Privileged && src.OwnerID != req.RequesterID {
		return nil, e.reject(domain.TransactionKindTransfer, errors.ErrAccessDenied)
	}
	if err := checkActive(src, "source"); err != nil {
		return nil, e.reject(domain.TransactionKindTransfer, err)
	}
	if err := checkActive(dst, "destination"); err != nil {
		return nil, e.reject(domain.TransactionKindTransfer, err)
	}
	if src.Balance.LessThan(req.Amount) {
		return nil, e.reject(domain.TransactionKindTransfer, errors.ErrInsufficientFunds)
	}

	sourceID := req.SourceAccountID
	destID := req.DestinationAccountID
	entry := &domain.Transaction{
		ID:                   uuid.New(),
		SourceAccountID:      &sourceID,
		DestinationAccountID: &destID,
		Amount:               req.Amount,
		Kind:                 domain.TransactionKindTransfer,
		Status:               domain.TransactionStatusCompleted,
		Description:          req.Description,
		IdempotencyKey:       req.IdempotencyKey,
	}

	err = e.store.WithTransaction(ctx, func(tx domain.Store) error {
		firstID, secondID := LockOrder(sourceID, destID)

		first, err := e.lockAccountNamed(ctx, tx, firstID, sideName(firstID, sourceID))
		if err != nil {
			return err
		}
		second, err := e.lockAccountNamed(ctx, tx, secondID, sideName(secondID, sourceID))
		if err != nil {
			return err
		}

		source, dest := first, second
		if source.ID != sourceID {
			source, dest = second, first
		}

		// Authoritative re-check: the loser of the lock race sees the
		// winner's committed state here.
		if err := checkActive(source, "source"); err != nil {
			return err
		}
		if err := checkActive(dest, "destination"); err != nil {
			return err
		}
		if source.Balance.LessThan(req.Amount) {
			return errors.ErrInsufficientFunds
		}

		if err := tx.Accounts().UpdateAccountBalance(ctx, source.ID, source.Balance.Sub(req.Amount)); err != nil {
			return err
		}
		if err := tx.Accounts().UpdateAccountBalance(ctx, dest.ID, dest.Balance.Add(req.Amount)); err != nil {
			return err
		}

		return tx.Transactions().CreateTransaction(ctx, entry)
	})

	if err != nil {
		e.logger.Error("Transfer failed", "error", err)
		return nil, e.reject(domain.TransactionKindTransfer, err)
	}

	entriesTotal.WithLabelValues(string(domain.TransactionKindTransfer), "completed").Inc()
	e.logger.Info("Transfer completed", "transaction_id", entry.ID)
	return entry, nil
}

type DepositRequest struct {
	AccountID   int64
	Amount      decimal.Decimal
	Description string
}

// Deposit credits an account from outside the system. It shares the
// engine's locked, invariant-checked path; the resulting entry has no
// source account.
func (e *Engine) Deposit(ctx context.Context, req *DepositRequest) (*domain.Transaction, error) {
	if !validAmount(req.Amount) {
		return nil, e.reject(domain.TransactionKindDeposit, errors.ErrInvalidAmount)
	}

	accountID := req.AccountID
	entry := &domain.Transaction{
		ID:                   uuid.New(),
		DestinationAccountID: &accountID,
		Amount:               req.Amount,
		Kind:                 domain.TransactionKindDeposit,
		Status:               domain.TransactionStatusCompleted,
		Description:          req.Description,
	}

	err := e.store.WithTransaction(ctx, func(tx domain.Store) error {
		account, err := e.lockAccountNamed(ctx, tx, accountID, "destination")
		if err != nil {
			return err
		}
		if err := checkActive(account, "destination"); err != nil {
			return err
		}
		if err := tx.Accounts().UpdateAccountBalance(ctx, accountID, account.Balance.Add(req.Amount)); err != nil {
			return err
		}
		return tx.Transactions().CreateTransaction(ctx, entry)
	})

	if err != nil {
		e.logger.Error("Deposit failed", "account_id", accountID, "error", err)
		return nil, e.reject(domain.TransactionKindDeposit, err)
	}

	entriesTotal.WithLabelValues(string(domain.TransactionKindDeposit), "completed").Inc()
	e.logger.Info("Deposit completed", "transaction_id", entry.ID, "account_id", accountID)
	return entry, nil
}

type WithdrawRequest struct {
	RequesterID int64
	Privileged  bool
	AccountID   int64
	Amount      decimal.Decimal
	Description string
}

// Withdraw debits an account toward the outside world. Same rules as the
// debit side of a transfer: ownership, active status, sufficient funds.
func (e *Engine) Withdraw(ctx context.Context, req *WithdrawRequest) (*domain.Transaction, error) {
	if !validAmount(req.Amount) {
		return nil, e.reject(domain.TransactionKindWithdrawal, errors.ErrInvalidAmount)
	}

	account, err := e.getAccountNamed(ctx, e.store, req.AccountID, "source")
	if err != nil {
		return nil, e.reject(domain.TransactionKindWithdrawal, err)
	}
	if !req.Privileged && account.OwnerID != req.RequesterID {
		return nil, e.reject(domain.TransactionKindWithdrawal, errors.ErrAccessDenied)
	}
	if err := e.checkTransferable(account, req.Amount, "source"); err != nil {
		return nil, e.reject(domain.TransactionKindWithdrawal, err)
	}

	accountID := req.AccountID
	entry := &domain.Transaction{
		ID:              uuid.New(),
		SourceAccountID: &accountID,
		Amount:          req.Amount,
		Kind:            domain.TransactionKindWithdrawal,
		Status:          domain.TransactionStatusCompleted,
		Description:     req.Description,
	}

	err = e.store.WithTransaction(ctx, func(tx domain.Store) error {
		locked, err := e.lockAccountNamed(ctx, tx, accountID, "source")
		if err != nil {
			return err
		}
		if err := e.checkTransferable(locked, req.Amount, "source"); err != nil {
			return err
		}
		if err := tx.Accounts().UpdateAccountBalance(ctx, accountID, locked.Balance.Sub(req.Amount)); err != nil {
			return err
		}
		return tx.Transactions().CreateTransaction(ctx, entry)
	})

	if err != nil {
		e.logger.Error("Withdrawal failed", "account_id", accountID, "error", err)
		return nil, e.reject(domain.TransactionKindWithdrawal, err)
	}

	entriesTotal.WithLabelValues(string(domain.TransactionKindWithdrawal), "completed").Inc()
	e.logger.Info("Withdrawal completed", "transaction_id", entry.ID, "account_id", accountID)
	return entry, nil
}

// Statement is the read-only reporting surface: the account's balance and
// its ordered ledger entries within [from, to].
type Statement struct {
	Account *domain.Account
	Entries []domain.Transaction
}

func (e *Engine) Statement(ctx context.Context, accountID int64, from, to time.Time) (*Statement, error) {
	account, err := e.store.Accounts().GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	entries, err := e.store.Transactions().ListByAccount(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}
	return &Statement{Account: account, Entries: entries}, nil
}

func (e *Engine) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	entry, err := e.store.Transactions().GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errors.NewAppError(errors.AccountNotFound, "ledger entry not found")
	}
	return entry, nil
}

// validAmount accepts strictly positive amounts expressible in the
// currency's minor unit (two decimal places).
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(2))
}

func (e *Engine) getAccountNamed(ctx context.Context, store domain.Store, id int64, side string) (*domain.Account, error) {
	account, err := store.Accounts().GetAccount(ctx, id)
	if err != nil {
		return nil, nameSide(err, side)
	}
	return account, nil
}

func (e *Engine) lockAccountNamed(ctx context.Context, tx domain.Store, id int64, side string) (*domain.Account, error) {
	account, err := tx.Accounts().GetAccountForUpdate(ctx, id)
	if err != nil {
		return nil, nameSide(err, side)
	}
	return account, nil
}

func checkActive(account *domain.Account, side string) error {
	if !account.IsActive() {
		return errors.NewAppErrorf(errors.AccountNotActive, "%s account is %s", side, account.Status)
	}
	return nil
}

// checkTransferable verifies the debit-side preconditions on an account
// snapshot: active status and a balance covering the amount.
func (e *Engine) checkTransferable(account *domain.Account, amount decimal.Decimal, side string) error {
	if err := checkActive(account, side); err != nil {
		return err
	}
	if account.Balance.LessThan(amount) {
		return errors.ErrInsufficientFunds
	}
	return nil
}

// nameSide rewrites a bare not-found error so the caller learns which side
// of the movement was missing.
func nameSide(err error, side string) error {
	if errCode(err) == errors.AccountNotFound {
		return errors.NewAppErrorf(errors.AccountNotFound, "%s account not found", side)
	}
	return err
}

func sideName(id, sourceID int64) string {
	if id == sourceID {
		return "source"
	}
	return "destination"
}

func (e *Engine) reject(kind domain.TransactionKind, err error) error {
	outcome := "error"
	if code := errCode(err); code != "" {
		outcome = string(code)
	}
	entriesTotal.WithLabelValues(string(kind), outcome).Inc()
	return err
}

func errCode(err error) errors.ErrorCode {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

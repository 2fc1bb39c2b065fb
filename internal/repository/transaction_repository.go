package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

type transactionRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransactionRepository(db SQLExecutor, logger *slog.Logger) domain.TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions
		(id, source_account_id, destination_account_id, amount, kind, status, description, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	now := time.Now()

	var source, dest sql.NullInt64
	if tx.SourceAccountID != nil {
		source = sql.NullInt64{Int64: *tx.SourceAccountID, Valid: true}
	}
	if tx.DestinationAccountID != nil {
		dest = sql.NullInt64{Int64: *tx.DestinationAccountID, Valid: true}
	}

	var idempotencyKey interface{}
	if tx.IdempotencyKey != nil {
		idempotencyKey = *tx.IdempotencyKey
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		tx.ID,
		source,
		dest,
		tx.Amount.String(),
		tx.Kind,
		tx.Status,
		tx.Description,
		idempotencyKey,
		now,
		now,
	)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			if pqErr.Constraint == "idx_transactions_idempotency_key" {
				r.logger.Warn("Duplicate idempotency key", "idempotency_key", tx.IdempotencyKey)
				return errors.ErrDuplicateTransaction
			}
		}
		r.logger.Error("Failed to create ledger entry",
			"source_account_id", tx.SourceAccountID,
			"destination_account_id", tx.DestinationAccountID,
			"amount", tx.Amount,
			"error", err)
		return errors.NewAppError(errors.StorageFailure, "failed to create ledger entry").WithDetails(err.Error())
	}

	tx.CreatedAt = now
	tx.UpdatedAt = now
	return nil
}

func (r *transactionRepository) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, source_account_id, destination_account_id, amount, kind, status, description, idempotency_key, created_at, updated_at
		FROM transactions WHERE id = $1
	`

	return r.scanTransaction(ctx, query, id)
}

func (r *transactionRepository) GetTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT id, source_account_id, destination_account_id, amount, kind, status, description, idempotency_key, created_at, updated_at
		FROM transactions WHERE idempotency_key = $1
	`

	return r.scanTransaction(ctx, query, key)
}

func (r *transactionRepository) scanTransaction(ctx context.Context, query string, arg interface{}) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	transaction, err := scanTransactionRow(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger entry", "arg", arg, "error", err)
		return nil, errors.NewAppError(errors.StorageFailure, "failed to get ledger entry").WithDetails(err.Error())
	}
	return transaction, nil
}

func scanTransactionRow(scan func(dest ...interface{}) error) (*domain.Transaction, error) {
	var transaction domain.Transaction
	var amountStr string
	var source, dest sql.NullInt64
	var idempotencyKey sql.NullString

	err := scan(
		&transaction.ID,
		&source,
		&dest,
		&amountStr,
		&transaction.Kind,
		&transaction.Status,
		&transaction.Description,
		&idempotencyKey,
		&transaction.CreatedAt,
		&transaction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, err
	}
	transaction.Amount = amount

	if source.Valid {
		id := source.Int64
		transaction.SourceAccountID = &id
	}
	if dest.Valid {
		id := dest.Int64
		transaction.DestinationAccountID = &id
	}
	if idempotencyKey.Valid {
		key, err := uuid.Parse(idempotencyKey.String)
		if err != nil {
			return nil, err
		}
		transaction.IdempotencyKey = &key
	}

	return &transaction, nil
}

// UpdateTransactionStatus only ever moves a pending entry to a terminal
// status; completed, failed and cancelled entries are immutable.
func (r *transactionRepository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	query := `
		UPDATE transactions SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), id, domain.TransactionStatusPending)
	if err != nil {
		r.logger.Error("Failed to update ledger entry status",
			"transaction_id", id, "status", status, "error", err)
		return errors.NewAppError(errors.StorageFailure, "failed to update ledger entry status").WithDetails(err.Error())
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewAppError(errors.StorageFailure, "failed to get rows affected").WithDetails(err.Error())
	}

	if rowsAffected == 0 {
		existing, err := r.GetTransactionByID(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return errors.NewAppError(errors.AccountNotFound, "ledger entry not found")
		}
		return errors.ErrEntryImmutable
	}

	r.logger.Info("Ledger entry status updated", "transaction_id", id, "status", status)
	return nil
}

func (r *transactionRepository) ListByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT id, source_account_id, destination_account_id, amount, kind, status, description, idempotency_key, created_at, updated_at
		FROM transactions
		WHERE (source_account_id = $1 OR destination_account_id = $1)
		  AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", "account_id", accountID, "error", err)
		return nil, errors.NewAppError(errors.StorageFailure, "failed to list ledger entries").WithDetails(err.Error())
	}
	defer rows.Close()

	var entries []domain.Transaction
	for rows.Next() {
		transaction, err := scanTransactionRow(rows.Scan)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "account_id", accountID, "error", err)
			return nil, errors.NewAppError(errors.StorageFailure, "failed to scan ledger entry").WithDetails(err.Error())
		}
		entries = append(entries, *transaction)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.StorageFailure, "failed to read ledger entries").WithDetails(err.Error())
	}

	return entries, nil
}

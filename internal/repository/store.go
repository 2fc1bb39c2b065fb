package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

// Store is the Postgres-backed unit of work. Account row locks are realized
// as SELECT ... FOR UPDATE inside a single database transaction; the
// configured lock timeout is applied with SET LOCAL so a contended row
// fails the attempt instead of waiting indefinitely.
type Store struct {
	executor    SQLExecutor
	logger      *slog.Logger
	lockTimeout time.Duration
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a new Store instance
func NewStore(db *sql.DB, lockTimeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		executor:    db,
		logger:      logger,
		lockTimeout: lockTimeout,
	}
}

// Accounts returns an AccountRepository using the current executor
func (s *Store) Accounts() domain.AccountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

// Transactions returns a TransactionRepository using the current executor
func (s *Store) Transactions() domain.TransactionRepository {
	return NewTransactionRepository(s.executor, s.logger)
}

// WithTransaction executes a function within a database transaction
func (s *Store) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	// Only sql.DB can begin transactions
	db, ok := s.executor.(*sql.DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewAppError(errors.StorageFailure, "failed to begin transaction").WithDetails(err.Error())
	}

	if s.lockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds())); err != nil {
			tx.Rollback()
			return errors.NewAppError(errors.StorageFailure, "failed to set lock timeout").WithDetails(err.Error())
		}
	}

	txStore := &Store{
		executor:    tx,
		logger:      s.logger,
		lockTimeout: s.lockTimeout,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewAppError(errors.StorageFailure, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}

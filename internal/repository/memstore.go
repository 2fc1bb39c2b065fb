package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

// MemStore is an in-memory domain.Store with the same locking and
// atomicity contract as the Postgres store: per-account exclusive locks
// with a bounded wait, and transactional writes that roll back together.
// It backs unit tests and local development without a database.
type MemStore struct {
	mu          sync.Mutex
	nextID      int64
	accounts    map[int64]*domain.Account
	numbers     map[string]int64
	entries     []*domain.Transaction
	entriesByID map[uuid.UUID]*domain.Transaction
	byIdemKey   map[uuid.UUID]uuid.UUID
	locks       map[int64]chan struct{}
	lockTimeout time.Duration
	logger      *slog.Logger
}

var _ domain.Store = (*MemStore)(nil)

func NewMemStore(lockTimeout time.Duration, logger *slog.Logger) *MemStore {
	return &MemStore{
		accounts:    make(map[int64]*domain.Account),
		numbers:     make(map[string]int64),
		entriesByID: make(map[uuid.UUID]*domain.Transaction),
		byIdemKey:   make(map[uuid.UUID]uuid.UUID),
		locks:       make(map[int64]chan struct{}),
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

func (s *MemStore) Accounts() domain.AccountRepository {
	return &memAccounts{store: s}
}

func (s *MemStore) Transactions() domain.TransactionRepository {
	return &memTransactions{store: s}
}

func (s *MemStore) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	tx := &memTx{store: s}
	defer tx.releaseLocks()

	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// acquireLock blocks until the account's lock channel accepts, the lock
// timeout elapses, or ctx is cancelled. The wait is bounded, never a spin.
func (s *MemStore) acquireLock(ctx context.Context, id int64) error {
	s.mu.Lock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return nil
	case <-timer.C:
		s.logger.Warn("Lock wait timed out", "account_id", id)
		return errors.ErrLockTimeout
	case <-ctx.Done():
		return errors.ErrLockTimeout
	}
}

func (s *MemStore) releaseLock(id int64) {
	s.mu.Lock()
	ch := s.locks[id]
	s.mu.Unlock()
	<-ch
}

// memTx is one in-flight transaction: the locks it holds and the undo log
// replayed in reverse if it fails.
type memTx struct {
	store *MemStore
	held  []int64
	undo  []func()
}

var _ domain.Store = (*memTx)(nil)

func (t *memTx) Accounts() domain.AccountRepository {
	return &memAccounts{store: t.store, tx: t}
}

func (t *memTx) Transactions() domain.TransactionRepository {
	return &memTransactions{store: t.store, tx: t}
}

func (t *memTx) WithTransaction(ctx context.Context, fn func(domain.Store) error) error {
	return errors.ErrCannotBeginTransaction
}

func (t *memTx) holds(id int64) bool {
	for _, held := range t.held {
		if held == id {
			return true
		}
	}
	return false
}

func (t *memTx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.releaseLock(t.held[i])
	}
	t.held = nil
}

type memAccounts struct {
	store *MemStore
	tx    *memTx
}

func (r *memAccounts) CreateAccount(ctx context.Context, account *domain.Account) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.numbers[account.Number]; exists {
		return errors.ErrDuplicateAccount
	}

	s.nextID++
	now := time.Now()
	account.ID = s.nextID
	account.CreatedAt = now
	account.UpdatedAt = now

	cp := *account
	s.accounts[cp.ID] = &cp
	s.numbers[cp.Number] = cp.ID

	if r.tx != nil {
		id, number := cp.ID, cp.Number
		r.tx.undo = append(r.tx.undo, func() {
			delete(s.accounts, id)
			delete(s.numbers, number)
		})
	}
	return nil
}

func (r *memAccounts) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAccounts) GetAccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	if r.tx == nil {
		return nil, errors.NewAppError(errors.InternalError, "row lock requires a transaction")
	}

	if !r.tx.holds(id) {
		if err := r.store.acquireLock(ctx, id); err != nil {
			return nil, err
		}
		r.tx.held = append(r.tx.held, id)
	}

	return r.GetAccount(ctx, id)
}

func (r *memAccounts) UpdateAccountBalance(ctx context.Context, id int64, newBalance decimal.Decimal) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	if newBalance.IsNegative() {
		return errors.ErrInsufficientFunds
	}

	if r.tx != nil {
		prevBalance, prevUpdated := a.Balance, a.UpdatedAt
		r.tx.undo = append(r.tx.undo, func() {
			a.Balance = prevBalance
			a.UpdatedAt = prevUpdated
		})
	}

	a.Balance = newBalance
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memAccounts) UpdateAccountStatus(ctx context.Context, id int64, status domain.AccountStatus) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}

	if r.tx != nil {
		prevStatus, prevUpdated := a.Status, a.UpdatedAt
		r.tx.undo = append(r.tx.undo, func() {
			a.Status = prevStatus
			a.UpdatedAt = prevUpdated
		})
	}

	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memAccounts) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.numbers[number]
	return exists, nil
}

type memTransactions struct {
	store *MemStore
	tx    *memTx
}

func (r *memTransactions) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.IdempotencyKey != nil {
		if _, exists := s.byIdemKey[*tx.IdempotencyKey]; exists {
			return errors.ErrDuplicateTransaction
		}
	}

	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	cp := copyTransaction(tx)
	s.entries = append(s.entries, cp)
	s.entriesByID[cp.ID] = cp
	if cp.IdempotencyKey != nil {
		s.byIdemKey[*cp.IdempotencyKey] = cp.ID
	}

	if r.tx != nil {
		id := cp.ID
		r.tx.undo = append(r.tx.undo, func() {
			delete(s.entriesByID, id)
			if cp.IdempotencyKey != nil {
				delete(s.byIdemKey, *cp.IdempotencyKey)
			}
			for i, e := range s.entries {
				if e.ID == id {
					s.entries = append(s.entries[:i], s.entries[i+1:]...)
					break
				}
			}
		})
	}
	return nil
}

func (r *memTransactions) GetTransactionByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entriesByID[id]
	if !ok {
		return nil, nil
	}
	return copyTransaction(e), nil
}

func (r *memTransactions) GetTransactionByIdempotencyKey(ctx context.Context, key uuid.UUID) (*domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byIdemKey[key]
	if !ok {
		return nil, nil
	}
	return copyTransaction(s.entriesByID[id]), nil
}

func (r *memTransactions) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entriesByID[id]
	if !ok {
		return errors.NewAppError(errors.AccountNotFound, "ledger entry not found")
	}
	if e.Status != domain.TransactionStatusPending {
		return errors.ErrEntryImmutable
	}

	if r.tx != nil {
		prevStatus, prevUpdated := e.Status, e.UpdatedAt
		r.tx.undo = append(r.tx.undo, func() {
			e.Status = prevStatus
			e.UpdatedAt = prevUpdated
		})
	}

	e.Status = status
	e.UpdatedAt = time.Now()
	return nil
}

func (r *memTransactions) ListByAccount(ctx context.Context, accountID int64, from, to time.Time) ([]domain.Transaction, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Transaction
	for _, e := range s.entries {
		touches := (e.SourceAccountID != nil && *e.SourceAccountID == accountID) ||
			(e.DestinationAccountID != nil && *e.DestinationAccountID == accountID)
		if !touches {
			continue
		}
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		out = append(out, *copyTransaction(e))
	}
	return out, nil
}

func copyTransaction(t *domain.Transaction) *domain.Transaction {
	cp := *t
	if t.SourceAccountID != nil {
		id := *t.SourceAccountID
		cp.SourceAccountID = &id
	}
	if t.DestinationAccountID != nil {
		id := *t.DestinationAccountID
		cp.DestinationAccountID = &id
	}
	if t.IdempotencyKey != nil {
		key := *t.IdempotencyKey
		cp.IdempotencyKey = &key
	}
	return &cp
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"retail-ledger/internal/domain"
	"retail-ledger/internal/errors"
)

// accountNumberAttempts bounds the collision-check loop on number
// generation; with 10 random digits collisions are rare but not impossible.
const accountNumberAttempts = 5

type AccountService struct {
	store  domain.Store
	logger *slog.Logger
}

func NewAccountService(store domain.Store, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger,
	}
}

// CreateAccount opens an account with a zero balance and a generated,
// collision-checked account number. Funding happens through the ledger
// engine, never at creation.
func (s *AccountService) CreateAccount(ctx context.Context, ownerID int64, kind domain.AccountKind, currency string) (*domain.Account, error) {
	s.logger.Info("Creating account", "owner_id", ownerID, "kind", kind, "currency", currency)

	if ownerID <= 0 {
		return nil, errors.NewAppError(errors.InvalidInput, "owner ID must be positive")
	}
	if kind != domain.AccountKindChecking && kind != domain.AccountKindSavings {
		return nil, errors.NewAppErrorf(errors.InvalidInput, "unknown account kind %q", kind)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, errors.NewAppError(errors.InvalidInput, "currency must be a 3-letter code")
	}

	number, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	account := &domain.Account{
		OwnerID:  ownerID,
		Number:   number,
		Kind:     kind,
		Balance:  decimal.Zero,
		Currency: currency,
		Status:   domain.AccountStatusActive,
	}

	if err := s.store.Accounts().CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created", "account_id", account.ID, "number", account.Number)
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	id, err := strconv.ParseInt(accountID, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.NewAppError(errors.InvalidInput, "account ID must be a positive integer")
	}

	return s.store.Accounts().GetAccount(ctx, id)
}

// UpdateStatus moves an account between lifecycle states. Closure is a
// status transition, not a delete, and is terminal.
func (s *AccountService) UpdateStatus(ctx context.Context, id int64, status domain.AccountStatus) (*domain.Account, error) {
	account, err := s.store.Accounts().GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if !domain.ValidStatusTransition(account.Status, status) {
		return nil, errors.NewAppErrorf(errors.InvalidInput,
			"cannot move account from %s to %s", account.Status, status)
	}

	if err := s.store.Accounts().UpdateAccountStatus(ctx, id, status); err != nil {
		return nil, err
	}

	account.Status = status
	return account, nil
}

func (s *AccountService) generateAccountNumber(ctx context.Context) (string, error) {
	for i := 0; i < accountNumberAttempts; i++ {
		number := fmt.Sprintf("%010d", rand.Int64N(10_000_000_000))
		exists, err := s.store.Accounts().AccountNumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		s.logger.Warn("Account number collision, regenerating", "number", number)
	}
	return "", errors.NewAppError(errors.InternalError, "could not generate a unique account number")
}

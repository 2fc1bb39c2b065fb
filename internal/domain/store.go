package domain

import "context"

// Store is the unit of work over accounts and the ledger. WithTransaction
// runs fn against a transactional view of the store: either every write fn
// performs becomes durable together, or none do. Row locks taken inside fn
// are released when fn returns.
type Store interface {
	Accounts() AccountRepository
	Transactions() TransactionRepository
	WithTransaction(ctx context.Context, fn func(Store) error) error
}

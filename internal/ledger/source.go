package ledger

import (
	"context"

	"github.com/jask/finledger/internal/daterange"
)

// Category filter values that are not category ids.
const (
	// NoCategoryExpense selects expenses without a category.
	NoCategoryExpense int64 = -1
	// NoCategoryIncome selects income without a category.
	NoCategoryIncome int64 = -2
)

// Query selects a filtered slice of the ledger. An empty AccountIDs means
// every account the user can see. Category ids 0..3 are the type roots and
// select every transaction of that type.
type Query struct {
	AccountIDs []int64
	Search     string
	Range      daterange.Range
	CategoryID *int64
	Currency   string
}

// Source reads the authoritative ledger.
type Source interface {
	Transactions(ctx context.Context, q Query, offset, limit int) ([]Transaction, error)
	Groups(ctx context.Context) ([]Group, error)
	Categories(ctx context.Context) ([]Category, error)
	Rules(ctx context.Context) ([]Rule, error)
	Summary(ctx context.Context, accountIDs []int64, r daterange.Range) ([]Summary, error)
	CategorySummary(ctx context.Context, typ TxType, accountIDs []int64, r daterange.Range) ([]CategorySum, error)
}

// Mutator writes to the authoritative ledger. Each call returns the stored
// transaction, which is what the cache patches itself with.
type Mutator interface {
	CreateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	UpdateTransaction(ctx context.Context, t Transaction) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) (Transaction, error)
}

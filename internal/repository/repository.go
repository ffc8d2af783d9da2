package repository

import (
	"context"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Querier is the data access contract used by the services. Methods that
// return a row count report how many rows a guarded UPDATE touched.
type Querier interface {
	UpsertOwner(ctx context.Context, owner *models.Owner) error
	GetOwner(ctx context.Context, id uuid.UUID) (*models.Owner, error)

	CreateAccount(ctx context.Context, account *models.Account) error
	AccountNumberExists(ctx context.Context, accountNumber string) (bool, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error)
	GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Account, error)
	GetAccountByNumberForUpdate(ctx context.Context, accountNumber string) (*models.Account, error)
	GetAccountByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*models.Account, error)
	AdjustBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) (int64, error)
	UpdateAccountStatus(ctx context.Context, accountNumber string, status domain.AccountStatus) (int64, error)
	UpdateTransactionPin(ctx context.Context, accountNumber, pinHash string) (int64, error)
	InsertClosedAccount(ctx context.Context, closed *models.ClosedAccount) error

	ReferenceExists(ctx context.Context, reference string) (bool, error)
	InsertTransaction(ctx context.Context, tx *models.Transaction) error
	ListAccountTransactions(ctx context.Context, arg ListAccountTransactionsParams) ([]models.Transaction, error)

	CountNegativeBalances(ctx context.Context) (int64, error)
	CountClosedAccountsWithFunds(ctx context.Context) (int64, error)
}

// Queries implements Querier on top of any DBTX.
type Queries struct {
	db DBTX
}

var _ Querier = (*Queries)(nil)

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

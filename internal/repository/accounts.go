package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `account_number, owner_id, balance, status, tier, COALESCE(transaction_pin, ''), created_at, updated_at`

func scanAccount(row pgx.Row) (*models.Account, error) {
	var (
		account models.Account
		status  string
		tier    int32
	)
	err := row.Scan(
		&account.AccountNumber,
		&account.OwnerID,
		&account.Balance,
		&status,
		&tier,
		&account.TransactionPinHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	account.Status = domain.NormalizeStatus(status)
	account.Tier = domain.Tier(tier)
	return &account, nil
}

// CreateAccount inserts a new account. A taken account number yields
// models.ErrDuplicateIdentifier so the caller can regenerate; a second account
// for the same owner yields models.ErrConflict.
func (q *Queries) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (account_number, owner_id, balance, status, tier, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (account_number) DO NOTHING
		RETURNING created_at, updated_at`
	err := q.db.QueryRow(ctx, query,
		account.AccountNumber,
		account.OwnerID,
		account.Balance,
		string(account.Status),
		int32(account.Tier),
	).Scan(&account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("account number %s: %w", account.AccountNumber, models.ErrDuplicateIdentifier)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", mapError(err))
	}
	return nil
}

func (q *Queries) AccountNumberExists(ctx context.Context, accountNumber string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE account_number = $1)`
	if err := q.db.QueryRow(ctx, query, accountNumber).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account number: %w", mapError(err))
	}
	return exists, nil
}

func (q *Queries) GetAccountByNumber(ctx context.Context, accountNumber string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	account, err := scanAccount(q.db.QueryRow(ctx, query, accountNumber))
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountNumber, mapError(err))
	}
	return account, nil
}

func (q *Queries) GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1`
	account, err := scanAccount(q.db.QueryRow(ctx, query, ownerID))
	if err != nil {
		return nil, fmt.Errorf("get account for owner %s: %w", ownerID, mapError(err))
	}
	return account, nil
}

// GetAccountByNumberForUpdate locks the account row until the surrounding transaction ends.
func (q *Queries) GetAccountByNumberForUpdate(ctx context.Context, accountNumber string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1 FOR UPDATE`
	account, err := scanAccount(q.db.QueryRow(ctx, query, accountNumber))
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", accountNumber, mapError(err))
	}
	return account, nil
}

func (q *Queries) GetAccountByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id = $1 FOR UPDATE`
	account, err := scanAccount(q.db.QueryRow(ctx, query, ownerID))
	if err != nil {
		return nil, fmt.Errorf("lock account for owner %s: %w", ownerID, mapError(err))
	}
	return account, nil
}

// AdjustBalance adds delta to the balance unless the result would be negative.
// It returns the number of rows updated (0 when the guard rejected the change).
func (q *Queries) AdjustBalance(ctx context.Context, accountNumber string, delta decimal.Decimal) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE account_number = $2 AND balance + $1 >= 0`
	tag, err := q.db.Exec(ctx, query, delta, accountNumber)
	if err != nil {
		return 0, fmt.Errorf("adjust balance %s: %w", accountNumber, mapError(err))
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) UpdateAccountStatus(ctx context.Context, accountNumber string, status domain.AccountStatus) (int64, error) {
	query := `UPDATE accounts SET status = $1, updated_at = NOW() WHERE account_number = $2`
	tag, err := q.db.Exec(ctx, query, string(status), accountNumber)
	if err != nil {
		return 0, fmt.Errorf("update account status %s: %w", accountNumber, mapError(err))
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) UpdateTransactionPin(ctx context.Context, accountNumber, pinHash string) (int64, error) {
	query := `UPDATE accounts SET transaction_pin = $1, updated_at = NOW() WHERE account_number = $2`
	tag, err := q.db.Exec(ctx, query, pinHash, accountNumber)
	if err != nil {
		return 0, fmt.Errorf("update transaction pin %s: %w", accountNumber, mapError(err))
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) InsertClosedAccount(ctx context.Context, closed *models.ClosedAccount) error {
	query := `
		INSERT INTO closed_accounts (account_number, owner_id, reason, closed_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING closed_at`
	err := q.db.QueryRow(ctx, query, closed.AccountNumber, closed.OwnerID, closed.Reason).Scan(&closed.ClosedAt)
	if err != nil {
		return fmt.Errorf("archive closed account %s: %w", closed.AccountNumber, mapError(err))
	}
	return nil
}

func (q *Queries) CountNegativeBalances(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM accounts WHERE balance < 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count negative balances: %w", mapError(err))
	}
	return n, nil
}

func (q *Queries) CountClosedAccountsWithFunds(ctx context.Context) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM accounts WHERE status = $1 AND balance <> 0`
	if err := q.db.QueryRow(ctx, query, string(domain.AccountStatusClosed)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count closed accounts with funds: %w", mapError(err))
	}
	return n, nil
}

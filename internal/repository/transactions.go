package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/jackc/pgx/v5"
)

func (q *Queries) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE reference = $1)`
	if err := q.db.QueryRow(ctx, query, reference).Scan(&exists); err != nil {
		return false, fmt.Errorf("check transaction reference: %w", mapError(err))
	}
	return exists, nil
}

// InsertTransaction appends a ledger entry. ON CONFLICT keeps a reference
// collision from aborting the surrounding transaction; it surfaces as
// models.ErrDuplicateIdentifier instead.
func (q *Queries) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (
			sender_account_number, receiver_account_number, sender_name, receiver_name,
			amount, reference, narration, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (reference) DO NOTHING
		RETURNING id, updated_at`
	err := q.db.QueryRow(ctx, query,
		tx.SenderAccountNumber,
		tx.ReceiverAccountNumber,
		tx.SenderName,
		tx.ReceiverName,
		tx.Amount,
		tx.Reference,
		tx.Narration,
		string(tx.Status),
		tx.CreatedAt,
	).Scan(&tx.ID, &tx.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("transaction reference %s: %w", tx.Reference, models.ErrDuplicateIdentifier)
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", mapError(err))
	}
	return nil
}

type ListAccountTransactionsParams struct {
	AccountNumber string
	Status        domain.TransactionStatus
	Start         time.Time
	End           time.Time
	Limit         int
	Offset        int
}

// ListAccountTransactions returns rows where the account is sender or
// receiver, newest first.
func (q *Queries) ListAccountTransactions(ctx context.Context, arg ListAccountTransactionsParams) ([]models.Transaction, error) {
	query := `
		SELECT id, sender_account_number, receiver_account_number, sender_name, receiver_name,
		       amount, reference, narration, status, created_at, updated_at
		FROM transactions
		WHERE status = $1
		  AND created_at BETWEEN $2 AND $3
		  AND (sender_account_number = $4 OR receiver_account_number = $4)
		ORDER BY created_at DESC, id DESC
		LIMIT $5 OFFSET $6`
	rows, err := q.db.Query(ctx, query, string(arg.Status), arg.Start, arg.End, arg.AccountNumber, arg.Limit, arg.Offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", mapError(err))
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t      models.Transaction
			status string
		)
		if err := rows.Scan(
			&t.ID,
			&t.SenderAccountNumber,
			&t.ReceiverAccountNumber,
			&t.SenderName,
			&t.ReceiverName,
			&t.Amount,
			&t.Reference,
			&t.Narration,
			&status,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Status = domain.TransactionStatus(status)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", mapError(err))
	}
	return out, nil
}

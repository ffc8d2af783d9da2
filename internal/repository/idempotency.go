package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

type IdempotencyKey struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
	CreatedAt      time.Time
}

type ReserveIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
}

type FinalizeIdempotencyKeyParams struct {
	IdempotencyKey string
	RequestHash    string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
}

const idempotencyColumns = `idempotency_key, request_hash, method, path, response_status, response_body, content_type, in_progress, created_at`

func scanIdempotencyKey(row pgx.Row) (*IdempotencyKey, error) {
	var k IdempotencyKey
	err := row.Scan(
		&k.IdempotencyKey,
		&k.RequestHash,
		&k.Method,
		&k.Path,
		&k.ResponseStatus,
		&k.ResponseBody,
		&k.ContentType,
		&k.InProgress,
		&k.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (*IdempotencyKey, error) {
	query := `SELECT ` + idempotencyColumns + ` FROM idempotency_keys WHERE idempotency_key = $1`
	row, err := scanIdempotencyKey(q.db.QueryRow(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", mapError(err))
	}
	return row, nil
}

// ReserveIdempotencyKey claims key for an in-flight request. It reports false
// when another request already holds the key.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, arg ReserveIdempotencyKeyParams) (bool, error) {
	query := `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING idempotency_key`
	var key string
	err := q.db.QueryRow(ctx, query, arg.IdempotencyKey, arg.RequestHash, arg.Method, arg.Path).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", mapError(err))
	}
	return true, nil
}

func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, arg FinalizeIdempotencyKeyParams) (*IdempotencyKey, error) {
	query := `
		UPDATE idempotency_keys
		SET response_status = $1, response_body = $2, content_type = $3, in_progress = FALSE
		WHERE idempotency_key = $4 AND request_hash = $5
		RETURNING ` + idempotencyColumns
	row, err := scanIdempotencyKey(q.db.QueryRow(ctx, query,
		arg.ResponseStatus,
		arg.ResponseBody,
		arg.ContentType,
		arg.IdempotencyKey,
		arg.RequestHash,
	))
	if err != nil {
		return nil, fmt.Errorf("finalize idempotency key: %w", mapError(err))
	}
	return row, nil
}

// DeleteIdempotencyKeysCreatedBefore removes keys reserved before cutoff,
// finished or not, and reports how many were removed.
func (q *Queries) DeleteIdempotencyKeysCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete idempotency keys: %w", mapError(err))
	}
	return tag.RowsAffected(), nil
}

// ReleaseIdempotencyKey drops an unfinished reservation so the key can be
// reused. Finished keys are left alone.
func (q *Queries) ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE idempotency_key = $1 AND request_hash = $2 AND in_progress`,
		key, requestHash)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", mapError(err))
	}
	return nil
}

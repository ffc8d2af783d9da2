package repository

import (
	"errors"
	"fmt"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation      = "23505"
	checkViolation       = "23514"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"

	balanceCheckConstraint = "accounts_balance_check"
)

// mapError translates driver errors into the error kinds of the models package.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", models.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", models.ErrConflict, pgErr.ConstraintName)
		case checkViolation:
			if pgErr.ConstraintName == balanceCheckConstraint {
				return fmt.Errorf("%w: %s", models.ErrInsufficientFunds, pgErr.ConstraintName)
			}
			return fmt.Errorf("%w: %s", models.ErrInvalidArgument, pgErr.ConstraintName)
		case serializationFailure, deadlockDetected:
			return fmt.Errorf("%w: %s", models.ErrConflict, pgErr.Message)
		}
		return err
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", models.ErrUnavailable, err)
	}
	return err
}

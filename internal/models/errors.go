package models

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAuthMismatch        = errors.New("value mismatch")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrAccountNotCleared   = errors.New("account not cleared")
	ErrAccountNotActivated = errors.New("account not activated")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrConflict            = errors.New("conflict")
	ErrUnavailable         = errors.New("unavailable")

	// ErrLedgerInconsistent means a ledger row was read for an account it does not involve.
	ErrLedgerInconsistent = errors.New("ledger inconsistency")

	// ErrDuplicateIdentifier is returned by the store when a generated
	// identifier lost an insert race; callers regenerate and retry.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

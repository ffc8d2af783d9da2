package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/ebanking-core/internal/identifier"
)

func requireExactlyOne(rows int64, operation string) error {
	if rows != 1 {
		return fmt.Errorf("%s affected %d rows", operation, rows)
	}
	return nil
}

// IdentifierSource is implemented by *identifier.Generator.
type IdentifierSource interface {
	AccountNumber(ctx context.Context, exists identifier.ExistsFunc) (string, error)
	TransactionReference(ctx context.Context, exists identifier.ExistsFunc) (string, error)
}

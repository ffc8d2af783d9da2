package service

import (
	"context"

	"github.com/ayo6706/ebanking-core/internal/async"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/repository"
)

// QueryStore defines the minimal data access contract required by services.
type QueryStore interface {
	Queries() repository.Querier
	RunInTx(ctx context.Context, fn func(q repository.Querier) error) error
}

// SecretVerifier hashes and match-tests transaction pins.
type SecretVerifier interface {
	Hash(raw string) (string, error)
	Matches(raw, digest string) bool
}

// Notifier delivers a balance alert to an account holder.
type Notifier interface {
	Notify(ctx context.Context, alert models.BalanceAlert) error
}

// StatementRenderer turns a statement into a printable document.
type StatementRenderer interface {
	Render(ctx context.Context, doc models.StatementDocument) ([]byte, error)
}

// TaskRunner hands work off to run after the caller returns.
type TaskRunner interface {
	Submit(ctx context.Context, name string, fn async.Func) *async.Task
}

package identifier

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/ayo6706/ebanking-core/internal/domain"
)

const (
	digits       = "0123456789"
	alphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// ExistsFunc reports whether a candidate identifier is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Generator draws random identifiers and retries until the store reports the
// candidate as free. There is no retry cap: a collision per draw is
// negligible, so the loop terminates in practice.
type Generator struct {
	mu     sync.Mutex
	source io.Reader
}

// New returns a Generator reading from source, or crypto/rand when source is nil.
func New(source io.Reader) *Generator {
	if source == nil {
		source = rand.Reader
	}
	return &Generator{source: source}
}

// AccountNumber returns a 10-digit numeric account number absent from the store.
func (g *Generator) AccountNumber(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, digits, domain.AccountNumberLength, exists)
}

// TransactionReference returns a 12-character alphanumeric reference absent from the store.
func (g *Generator) TransactionReference(ctx context.Context, exists ExistsFunc) (string, error) {
	return g.unique(ctx, alphanumeric, domain.TransactionReferenceLength, exists)
}

func (g *Generator) unique(ctx context.Context, alphabet string, length int, exists ExistsFunc) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := g.draw(alphabet, length)
		if err != nil {
			return "", err
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check identifier existence: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
}

func (g *Generator) draw(alphabet string, length int) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Bytes at or above limit are rejected so every symbol is equally likely.
	limit := 256 - 256%len(alphabet)
	out := make([]byte, length)
	buf := make([]byte, 1)
	for i := range out {
		for {
			if _, err := io.ReadFull(g.source, buf); err != nil {
				return "", fmt.Errorf("read random source: %w", err)
			}
			if int(buf[0]) < limit {
				out[i] = alphabet[int(buf[0])%len(alphabet)]
				break
			}
		}
	}
	return string(out), nil
}

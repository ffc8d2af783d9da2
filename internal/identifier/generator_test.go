package identifier

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accountNumberPattern = regexp.MustCompile(`^[0-9]{10}$`)
	referencePattern     = regexp.MustCompile(`^[a-z0-9]{12}$`)
)

func never(context.Context, string) (bool, error) { return false, nil }

// repeatBytes yields each byte n times; byte b selects alphabet symbol b.
func repeatBytes(n int, bs ...byte) *bytes.Reader {
	var buf []byte
	for _, b := range bs {
		buf = append(buf, bytes.Repeat([]byte{b}, n)...)
	}
	return bytes.NewReader(buf)
}

func TestAccountNumber_Format(t *testing.T) {
	g := New(nil)
	for i := 0; i < 50; i++ {
		n, err := g.AccountNumber(context.Background(), never)
		require.NoError(t, err)
		assert.Regexp(t, accountNumberPattern, n)
	}
}

func TestTransactionReference_Format(t *testing.T) {
	g := New(nil)
	for i := 0; i < 50; i++ {
		ref, err := g.TransactionReference(context.Background(), never)
		require.NoError(t, err)
		assert.Regexp(t, referencePattern, ref)
	}
}

func TestAccountNumber_RetriesWhileCandidateExists(t *testing.T) {
	g := New(repeatBytes(10, 0x00, 0x00, 0x07))
	taken := map[string]bool{"0000000000": true}
	calls := 0

	n, err := g.AccountNumber(context.Background(), func(_ context.Context, c string) (bool, error) {
		calls++
		return taken[c], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "7777777777", n)
	assert.Equal(t, 3, calls)
}

func TestTransactionReference_RetriesWhileCandidateExists(t *testing.T) {
	g := New(repeatBytes(12, 0x00, 0x01))
	n, err := g.TransactionReference(context.Background(), func(_ context.Context, c string) (bool, error) {
		return c == "aaaaaaaaaaaa", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbbbbbb", n)
}

func TestGenerator_SurfacesExistenceCheckFailure(t *testing.T) {
	storeDown := errors.New("connection refused")
	g := New(nil)

	_, err := g.AccountNumber(context.Background(), func(context.Context, string) (bool, error) {
		return false, storeDown
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeDown)
}

func TestGenerator_SurfacesRandomSourceFailure(t *testing.T) {
	g := New(bytes.NewReader(nil))
	_, err := g.AccountNumber(context.Background(), never)
	assert.Error(t, err)
}

func TestGenerator_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := New(nil)
	calls := 0

	_, err := g.TransactionReference(ctx, func(context.Context, string) (bool, error) {
		calls++
		if calls == 3 {
			cancel()
		}
		return true, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, calls)
}

func TestGenerator_RejectsBiasedBytes(t *testing.T) {
	src := append([]byte{0xff, 0xfa}, bytes.Repeat([]byte{0x03}, 10)...)
	g := New(bytes.NewReader(src))

	n, err := g.AccountNumber(context.Background(), never)
	require.NoError(t, err)
	assert.Equal(t, "3333333333", n)
}

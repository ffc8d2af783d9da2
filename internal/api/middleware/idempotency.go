package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/ayo6706/ebanking-core/internal/api/problem"
	"github.com/ayo6706/ebanking-core/internal/idempotency"
	"github.com/ayo6706/ebanking-core/internal/observability"
	"go.uber.org/zap"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	maxIdempotencyKeyLen = 128
	maxIdempotentBody    = 1 << 20
)

// IdempotencyStore is implemented by *idempotency.Store.
type IdempotencyStore interface {
	Lookup(ctx context.Context, key, requestHash string) (*idempotency.Record, error)
	Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error)
	Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*idempotency.Record, error)
	WaitForCompletion(ctx context.Context, key, requestHash string) (*idempotency.Record, error)
	Release(ctx context.Context, key, requestHash string) error
}

// IdempotencyMiddleware requires an Idempotency-Key on mutating requests and
// replays the stored response for a repeated key. Keys are scoped to the
// authenticated owner so two account holders never share a key space.
func IdempotencyMiddleware(store IdempotencyStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return &idempotencyGuard{store: store, logger: logger, next: next}
	}
}

type idempotencyGuard struct {
	store  IdempotencyStore
	logger *zap.Logger
	next   http.Handler
}

func (g *idempotencyGuard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		g.next.ServeHTTP(w, r)
		return
	}

	clientKey := r.Header.Get(IdempotencyKeyHeader)
	switch {
	case clientKey == "":
		g.reject(w, r, http.StatusBadRequest, "idempotency/missing-key", "Idempotency-Key header is required", "missing_key")
		return
	case len(clientKey) > maxIdempotencyKeyLen:
		g.reject(w, r, http.StatusBadRequest, "idempotency/invalid-key", "Idempotency-Key is too long", "invalid_key")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBody))
	if err != nil {
		g.reject(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body", "invalid_body")
		return
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := scopedKey(r, clientKey)
	hash := hashRequest(r.Method, r.URL.Path, body)

	if g.replayExisting(w, r, key, hash) {
		return
	}

	reserved, err := g.store.Reserve(r.Context(), key, hash, r.Method, r.URL.Path)
	if err != nil {
		g.logger.Error("idempotency reserve failed", zap.Error(err))
		g.reject(w, r, http.StatusInternalServerError, "idempotency/unavailable", "idempotency unavailable", "reserve_error")
		return
	}
	if !reserved {
		// Lost the race to a concurrent request with the same key.
		g.await(w, r, key, hash, "replay_after_reserve")
		return
	}
	observability.IncrementIdempotencyEvent("reserved")

	recorder := &bodyRecorder{ResponseWriter: w}
	completed := false
	defer func() {
		if !completed {
			g.release(r.Context(), key, hash, "released_on_panic")
		}
	}()
	g.next.ServeHTTP(recorder, r)
	completed = true

	if retryableStatus(recorder.status) {
		g.release(r.Context(), key, hash, "released")
		return
	}
	g.finalize(r.Context(), key, hash, recorder)
}

// retryableStatus reports responses the client is told to retry. They are not
// stored, so the retry runs the request again.
func retryableStatus(status int) bool {
	return status == http.StatusConflict || status >= http.StatusInternalServerError
}

// replayExisting answers the request from an earlier one with the same key.
// It reports false when the key is new and the request should run.
func (g *idempotencyGuard) replayExisting(w http.ResponseWriter, r *http.Request, key, hash string) bool {
	rec, err := g.store.Lookup(r.Context(), key, hash)
	switch {
	case err == nil:
		observability.IncrementIdempotencyEvent("replay")
		respondFromRecord(w, rec)
		return true
	case errors.Is(err, idempotency.ErrHashMismatch):
		g.reject(w, r, http.StatusConflict, "idempotency/key-conflict", "conflicting idempotency key", "hash_mismatch")
		return true
	case errors.Is(err, idempotency.ErrInProgress):
		g.await(w, r, key, hash, "replay_after_wait")
		return true
	case errors.Is(err, idempotency.ErrNotFound):
		return false
	default:
		observability.IncrementIdempotencyEvent("lookup_error")
		g.logger.Warn("idempotency lookup failed", zap.Error(err))
		return false
	}
}

func (g *idempotencyGuard) await(w http.ResponseWriter, r *http.Request, key, hash, event string) {
	rec, err := g.store.WaitForCompletion(r.Context(), key, hash)
	if err != nil {
		g.logger.Warn("idempotency wait failed", zap.Error(err))
		g.reject(w, r, http.StatusConflict, "idempotency/in-progress", "a request with this idempotency key is still processing", "in_progress_conflict")
		return
	}
	observability.IncrementIdempotencyEvent(event)
	respondFromRecord(w, rec)
}

func (g *idempotencyGuard) finalize(ctx context.Context, key, hash string, recorder *bodyRecorder) {
	status := recorder.status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := recorder.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	if _, err := g.store.Finalize(ctx, key, hash, status, recorder.body.Bytes(), contentType); err != nil {
		observability.IncrementIdempotencyEvent("finalize_error")
		g.logger.Warn("idempotency finalize failed", zap.Error(err), zap.String("key", key))
		return
	}
	observability.IncrementIdempotencyEvent("finalized")
}

func (g *idempotencyGuard) release(ctx context.Context, key, hash, event string) {
	if err := g.store.Release(context.WithoutCancel(ctx), key, hash); err != nil {
		observability.IncrementIdempotencyEvent("release_error")
		g.logger.Warn("idempotency release failed", zap.Error(err), zap.String("key", key))
		return
	}
	observability.IncrementIdempotencyEvent(event)
}

func (g *idempotencyGuard) reject(w http.ResponseWriter, r *http.Request, status int, slug, detail, event string) {
	observability.IncrementIdempotencyEvent(event)
	problem.Write(w, r, status, problem.Type(slug), "", detail)
}

func scopedKey(r *http.Request, clientKey string) string {
	if ownerID, ok := OwnerIDFromContext(r.Context()); ok {
		return ownerID.String() + ":" + clientKey
	}
	return "anonymous:" + clientKey
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// bodyRecorder tees the handler's response so it can be stored.
type bodyRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (br *bodyRecorder) WriteHeader(code int) {
	if br.status == 0 {
		br.status = code
	}
	br.ResponseWriter.WriteHeader(code)
}

func (br *bodyRecorder) Write(b []byte) (int, error) {
	if br.status == 0 {
		br.status = http.StatusOK
	}
	br.body.Write(b)
	return br.ResponseWriter.Write(b)
}

func respondFromRecord(w http.ResponseWriter, rec *idempotency.Record) {
	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("X-Idempotent-Replay", rec.ServedBy)
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

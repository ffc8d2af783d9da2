// Package idempotency records the responses of mutating requests so a retried
// request with the same key replays the first response instead of re-running.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const (
	cacheKeyPrefix      = "banking:idempotency:"
	defaultPollInterval = 50 * time.Millisecond

	servedByCache    = "redis"
	servedByDatabase = "postgres"
)

// Record is a finished response stored under a key.
type Record struct {
	Key         string `json:"key"`
	RequestHash string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
	ServedBy    string `json:"-"`
}

// KeyStore is the durable record of idempotency keys. *repository.Queries implements it.
type KeyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (*repository.IdempotencyKey, error)
	ReserveIdempotencyKey(ctx context.Context, arg repository.ReserveIdempotencyKeyParams) (bool, error)
	FinalizeIdempotencyKey(ctx context.Context, arg repository.FinalizeIdempotencyKeyParams) (*repository.IdempotencyKey, error)
	ReleaseIdempotencyKey(ctx context.Context, key, requestHash string) error
	DeleteIdempotencyKeysCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store keeps keys in postgres. Redis, when set, caches finished records for
// ttl; a cache failure only costs a database round trip.
type Store struct {
	cache redis.Cmdable
	keys  KeyStore
	ttl   time.Duration
	poll  time.Duration
	now   func() time.Time
}

func NewStore(cache redis.Cmdable, keys KeyStore, ttl time.Duration) *Store {
	return &Store{
		cache: cache,
		keys:  keys,
		ttl:   ttl,
		poll:  defaultPollInterval,
		now:   time.Now,
	}
}

// Lookup returns the finished record for key. It fails with ErrHashMismatch
// when key was used for a different request, ErrInProgress while the first
// request is still running and ErrNotFound for an unknown key.
func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if rec, ok := s.fromCache(ctx, key); ok {
		if rec.RequestHash != requestHash {
			return nil, ErrHashMismatch
		}
		return rec, nil
	}

	row, err := s.keys.GetIdempotencyKey(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	if row.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if row.InProgress {
		return nil, ErrInProgress
	}
	rec := recordFromRow(row)
	s.toCache(ctx, rec)
	return rec, nil
}

// Reserve claims key for the current request. False means another request
// holds it.
func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	ok, err := s.keys.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Finalize stores the response for a reserved key.
func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	row, err := s.keys.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finalize idempotency key: %w", err)
	}
	rec := recordFromRow(row)
	s.toCache(ctx, rec)
	return rec, nil
}

// Release gives up an unfinished reservation so a retry with the same key
// runs again. It is used when the request failed in a way the client should
// retry.
func (s *Store) Release(ctx context.Context, key, requestHash string) error {
	if err := s.keys.ReleaseIdempotencyKey(ctx, key, requestHash); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// WaitForCompletion polls until the request holding key finishes or ctx ends.
func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if !errors.Is(err, ErrInProgress) {
			return rec, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Purge deletes keys reserved more than ttl ago. Clients retrying after that
// window are treated as new requests.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	removed, err := s.keys.DeleteIdempotencyKeysCreatedBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return removed, nil
}

func recordFromRow(row *repository.IdempotencyKey) *Record {
	return &Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		ServedBy:    servedByDatabase,
	}
}

func (s *Store) fromCache(ctx context.Context, key string) (*Record, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, cacheKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("idempotency cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false
	}
	rec.ServedBy = servedByCache
	return &rec, true
}

func (s *Store) toCache(ctx context.Context, rec *Record) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		zap.L().Warn("idempotency cache encode failed", zap.String("key", rec.Key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, cacheKeyPrefix+rec.Key, payload, s.ttl).Err(); err != nil {
		zap.L().Warn("idempotency cache write failed", zap.String("key", rec.Key), zap.Error(err))
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/ebanking-core/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits unauthenticated routes per client IP.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests(rps, "client address")),
	)
}

// AuthRateLimiter limits authenticated routes per account holder. It must run
// after the authenticator; requests without an owner fall back to the IP.
func AuthRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(ownerOrIP),
		httprate.WithLimitHandler(tooManyRequests(rps, "account holder")),
	)
}

func ownerOrIP(r *http.Request) (string, error) {
	if ownerID, ok := OwnerIDFromContext(r.Context()); ok {
		return "owner:" + ownerID.String(), nil
	}
	return httprate.KeyByIP(r)
}

func tooManyRequests(rps int, scope string) http.HandlerFunc {
	detail := fmt.Sprintf("rate limit of %d requests per second exceeded for this %s", rps, scope)
	return func(w http.ResponseWriter, r *http.Request) {
		problem.WriteRetryable(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), detail, 1)
	}
}

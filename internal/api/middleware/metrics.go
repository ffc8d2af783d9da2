package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/ebanking-core/internal/observability"
	"github.com/go-chi/chi/v5"
)

const unmatchedRoute = "unmatched"

// MetricsMiddleware observes request latency labelled by chi route pattern.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rw, r)

		observability.ObserveHTTP(r.Method, routePattern(r), rw.statusCode(), time.Since(start))
	})
}

// routePattern returns the matched chi pattern. Unrouted paths share one
// label so scanners cannot grow the series set.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}

package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	TraceHeader      = "X-Trace-ID"
	maxTraceIDLength = 64
)

// TraceMiddleware propagates the caller's X-Trace-ID when it is a safe token
// and otherwise mints a new one. The id is echoed on the response.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if !validTraceID(traceID) {
			traceID = uuid.NewString()
			r.Header.Set(TraceHeader, traceID)
		}
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(contextWithTraceID(r.Context(), traceID)))
	})
}

// validTraceID accepts 1-64 characters of [A-Za-z0-9_-] so ids can be
// logged and echoed without escaping.
func validTraceID(id string) bool {
	if id == "" || len(id) > maxTraceIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func contextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceContextKey, traceID)
}

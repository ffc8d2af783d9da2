package middleware

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingMiddleware writes one structured line per request. Server errors log
// at error level, client errors at warn, health checks at debug.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rw, r)

			status := rw.statusCode()
			if ce := logger.Check(requestLogLevel(r.URL.Path, status), "http_request"); ce != nil {
				ce.Write(
					zap.String("method", r.Method),
					zap.String("route", routePattern(r)),
					zap.Int("status", status),
					zap.Int("bytes", rw.bytes),
					zap.String("trace_id", TraceIDFromContext(r.Context())),
					zap.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}

func requestLogLevel(path string, status int) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest:
		return zapcore.WarnLevel
	case strings.HasPrefix(path, "/health/") || path == "/metrics":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) statusCode() int {
	if sr.status == 0 {
		return http.StatusOK
	}
	return sr.status
}

func (sr *statusRecorder) wroteHeader() bool {
	return sr.status != 0
}

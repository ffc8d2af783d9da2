// Package problem writes RFC 7807 problem details.
package problem

import (
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.ebanking-core.dev/"
	traceHeader = "X-Trace-ID"
)

// Details represents RFC 7807 Problem Details with a trace_id extension.
type Details struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance"`
	TraceID  string `json:"trace_id,omitempty"`
}

// Type expands a slug such as "account/not-cleared" into a problem type URI.
func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors. The trace id is taken from the
// response header set by the trace middleware, then from the request.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	details := Details{
		Type:    problemType,
		Title:   title,
		Status:  status,
		Detail:  detail,
		TraceID: w.Header().Get(traceHeader),
	}
	if r != nil {
		details.Instance = r.URL.Path
		if details.TraceID == "" {
			details.TraceID = r.Header.Get(traceHeader)
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(details)
}

// WriteRetryable is Write plus a Retry-After header in whole seconds.
func WriteRetryable(w http.ResponseWriter, r *http.Request, status int, problemType, detail string, retryAfterSeconds int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	Write(w, r, status, problemType, "", detail)
}

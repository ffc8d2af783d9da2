package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/google/uuid"
)

const defaultPageSize = 20

// HistoryService is implemented by *service.HistoryService.
type HistoryService interface {
	History(ctx context.Context, ownerID uuid.UUID, start, end time.Time, page, pageSize int) ([]models.HistoryEntry, error)
	Statement(ctx context.Context, ownerID uuid.UUID, year int, month *int, page, pageSize int) ([]byte, error)
}

type HistoryHandler struct {
	svc HistoryService
	now func() time.Time
}

func NewHistoryHandler(svc HistoryService) *HistoryHandler {
	return &HistoryHandler{svc: svc, now: time.Now}
}

// History lists transfers in [start, end]. Both bounds are RFC 3339; start
// defaults to 30 days before end and end defaults to now.
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	q := r.URL.Query()
	end := h.now()
	if raw := q.Get("end"); raw != "" {
		if end, err = time.Parse(time.RFC3339, raw); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-query", "end must be an RFC 3339 timestamp")
			return
		}
	}
	start := end.AddDate(0, 0, -30)
	if raw := q.Get("start"); raw != "" {
		if start, err = time.Parse(time.RFC3339, raw); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-query", "start must be an RFC 3339 timestamp")
			return
		}
	}
	page, pageSize, ok := paging(w, r)
	if !ok {
		return
	}

	entries, err := h.svc.History(r.Context(), ownerID, start, end, page, pageSize)
	if err != nil {
		RespondServiceError(w, r, err, "transaction history")
		return
	}
	RespondJSON(w, http.StatusOK, entries)
}

// Statement returns the PDF statement for ?year= and optional ?month=.
func (h *HistoryHandler) Statement(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-query", "year is required")
		return
	}
	var month *int
	if raw := q.Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-query", "month must be a number")
			return
		}
		month = &m
	}
	page, pageSize, ok := paging(w, r)
	if !ok {
		return
	}

	pdf, err := h.svc.Statement(r.Context(), ownerID, year, month, page, pageSize)
	if err != nil {
		RespondServiceError(w, r, err, "statement")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// paging reads 0-based ?page= and ?page_size=; range checks belong to the service.
func paging(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	q := r.URL.Query()
	pageSize = defaultPageSize
	var err error
	if raw := q.Get("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-query", "page must be a number")
			return 0, 0, false
		}
	}
	if raw := q.Get("page_size"); raw != "" {
		if pageSize, err = strconv.Atoi(raw); err != nil {
			RespondError(w, r, http.StatusBadRequest, "request/invalid-query", "page_size must be a number")
			return 0, 0, false
		}
	}
	return page, pageSize, true
}

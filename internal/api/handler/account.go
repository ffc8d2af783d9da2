package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/ebanking-core/internal/async"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/google/uuid"
)

// AccountService is implemented by *service.AccountService.
type AccountService interface {
	RegisterOwner(ctx context.Context, ownerID uuid.UUID, fullName string) error
	OpenAccountAsync(ctx context.Context, ownerID uuid.UUID) *async.Task
	Overview(ctx context.Context, ownerID uuid.UUID) (*models.AccountOverview, error)
	CloseAccount(ctx context.Context, ownerID uuid.UUID, reason string) error
	UpdateTransactionPin(ctx context.Context, ownerID uuid.UUID, newPin string) error
}

type AccountHandler struct {
	svc AccountService
}

func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

type openAccountRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=120"`
}

type closeAccountRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type updatePinRequest struct {
	Pin string `json:"pin" validate:"required,numeric"`
}

// OpenAccount records the holder's name and hands account creation off to
// the background dispatcher. The response does not wait for the account.
func (h *AccountHandler) OpenAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req openAccountRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	if err := h.svc.RegisterOwner(r.Context(), ownerID, req.FullName); err != nil {
		RespondServiceError(w, r, err, "register owner")
		return
	}
	h.svc.OpenAccountAsync(r.Context(), ownerID)

	RespondJSON(w, http.StatusAccepted, map[string]string{
		"owner_id": ownerID.String(),
		"status":   "account opening in progress",
	})
}

func (h *AccountHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	overview, err := h.svc.Overview(r.Context(), ownerID)
	if err != nil {
		RespondServiceError(w, r, err, "account overview")
		return
	}
	RespondJSON(w, http.StatusOK, overview)
}

func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req closeAccountRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	if err := h.svc.CloseAccount(r.Context(), ownerID, req.Reason); err != nil {
		RespondServiceError(w, r, err, "close account")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "CLOSED"})
}

func (h *AccountHandler) UpdatePin(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req updatePinRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	if err := h.svc.UpdateTransactionPin(r.Context(), ownerID, req.Pin); err != nil {
		RespondServiceError(w, r, err, "update transaction pin")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

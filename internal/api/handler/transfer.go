package handler

import (
	"context"
	"net/http"

	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/service"
	"github.com/shopspring/decimal"
)

// TransferService is implemented by *service.TransferService.
type TransferService interface {
	Transfer(ctx context.Context, req service.TransferRequest) (*models.TransferConfirmation, error)
}

type TransferHandler struct {
	transfers TransferService
	accounts  AccountService
}

func NewTransferHandler(transfers TransferService, accounts AccountService) *TransferHandler {
	return &TransferHandler{transfers: transfers, accounts: accounts}
}

type transferRequest struct {
	SenderAccountNumber   string          `json:"sender_account_number" validate:"omitempty,len=10,numeric"`
	ReceiverAccountNumber string          `json:"receiver_account_number" validate:"required,len=10,numeric"`
	Amount                decimal.Decimal `json:"amount"`
	Pin                   string          `json:"pin" validate:"required"`
	Narration             string          `json:"narration" validate:"max=140"`
}

// MakeTransfer debits the caller's own account. A sender account number in
// the body must match the caller's account.
func (h *TransferHandler) MakeTransfer(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requestOwner(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "Unauthorized")
		return
	}

	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", err.Error())
		return
	}

	own, err := h.accounts.Overview(r.Context(), ownerID)
	if err != nil {
		RespondServiceError(w, r, err, "resolve sender account")
		return
	}
	if req.SenderAccountNumber != "" && req.SenderAccountNumber != own.AccountNumber {
		RespondError(w, r, http.StatusForbidden, "auth/insufficient-permissions", "insufficient permissions")
		return
	}

	confirmation, err := h.transfers.Transfer(r.Context(), service.TransferRequest{
		SenderAccountNumber:   own.AccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                req.Amount,
		Pin:                   req.Pin,
		Narration:             req.Narration,
	})
	if err != nil {
		RespondServiceError(w, r, err, "transfer")
		return
	}
	RespondJSON(w, http.StatusCreated, confirmation)
}

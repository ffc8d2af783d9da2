package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/observability"
	"github.com/ayo6706/ebanking-core/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TransferRequest struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                decimal.Decimal
	Pin                   string
	Narration             string
}

type TransferService struct {
	store    QueryStore
	ids      IdentifierSource
	verifier SecretVerifier
	notifier Notifier
	tasks    TaskRunner
	now      func() time.Time
}

func NewTransferService(store QueryStore, ids IdentifierSource, verifier SecretVerifier) *TransferService {
	return &TransferService{
		store:    store,
		ids:      ids,
		verifier: verifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNotifier sends one balance alert per party after each transfer,
// handed off through tasks.
func (s *TransferService) WithNotifier(notifier Notifier, tasks TaskRunner) *TransferService {
	s.notifier = notifier
	s.tasks = tasks
	return s
}

func (s *TransferService) WithClock(now func() time.Time) *TransferService {
	if now != nil {
		s.now = now
	}
	return s
}

type settledTransfer struct {
	tx              *models.Transaction
	sender          *models.Account
	receiver        *models.Account
	senderBalance   decimal.Decimal
	receiverBalance decimal.Decimal
}

// Transfer moves funds between two activated accounts and appends the ledger
// row. Balances and ledger commit together or not at all.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*models.TransferConfirmation, error) {
	req.SenderAccountNumber = strings.TrimSpace(req.SenderAccountNumber)
	req.ReceiverAccountNumber = strings.TrimSpace(req.ReceiverAccountNumber)

	if req.SenderAccountNumber == req.ReceiverAccountNumber {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", models.ErrInvalidArgument)
	}
	if !domain.IsPositive(req.Amount) {
		return nil, fmt.Errorf("%w: amount must be positive", models.ErrInvalidArgument)
	}

	queries := s.store.Queries()
	sender, err := queries.GetAccountByNumber(ctx, req.SenderAccountNumber)
	if err != nil {
		return nil, s.fail(err)
	}
	if !sender.IsActivated() {
		return nil, s.fail(fmt.Errorf("%w: sender account is %s", models.ErrAccountNotActivated, sender.Status))
	}
	if !s.verifier.Matches(req.Pin, sender.TransactionPinHash) {
		return nil, s.fail(fmt.Errorf("%w: transaction pin", models.ErrAuthMismatch))
	}

	receiver, err := queries.GetAccountByNumber(ctx, req.ReceiverAccountNumber)
	if err != nil {
		return nil, s.fail(err)
	}
	if !receiver.IsActivated() {
		return nil, s.fail(fmt.Errorf("%w: receiver account is %s", models.ErrAccountNotActivated, receiver.Status))
	}

	var settled *settledTransfer
	err = s.store.RunInTx(ctx, func(q repository.Querier) error {
		var err error
		settled, err = s.settle(ctx, q, req)
		return err
	})
	if err != nil {
		return nil, s.fail(err)
	}

	observability.IncrementTransfer("success")
	zap.L().Info("transfer completed",
		zap.String("reference", settled.tx.Reference),
		zap.String("sender", settled.tx.SenderAccountNumber),
		zap.String("receiver", settled.tx.ReceiverAccountNumber),
		zap.String("amount", domain.FormatAmount(settled.tx.Amount)))

	s.dispatchAlerts(ctx, settled)

	return &models.TransferConfirmation{
		Reference: settled.tx.Reference,
		Amount:    settled.tx.Amount,
		CreatedAt: settled.tx.CreatedAt,
	}, nil
}

func (s *TransferService) settle(ctx context.Context, q repository.Querier, req TransferRequest) (*settledTransfer, error) {
	// Lock in account-number order so opposing transfers cannot deadlock.
	first, second := req.SenderAccountNumber, req.ReceiverAccountNumber
	if first > second {
		first, second = second, first
	}
	locked := make(map[string]*models.Account, 2)
	for _, number := range []string{first, second} {
		account, err := q.GetAccountByNumberForUpdate(ctx, number)
		if err != nil {
			return nil, err
		}
		locked[number] = account
	}
	sender := locked[req.SenderAccountNumber]
	receiver := locked[req.ReceiverAccountNumber]

	if !sender.IsActivated() {
		return nil, fmt.Errorf("%w: sender account is %s", models.ErrAccountNotActivated, sender.Status)
	}
	if !receiver.IsActivated() {
		return nil, fmt.Errorf("%w: receiver account is %s", models.ErrAccountNotActivated, receiver.Status)
	}
	if !domain.CanDebit(sender.Balance, req.Amount) {
		return nil, models.ErrInsufficientFunds
	}

	rows, err := q.AdjustBalance(ctx, sender.AccountNumber, req.Amount.Neg())
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrInsufficientFunds
	}
	if err := requireExactlyOne(rows, "debit sender"); err != nil {
		return nil, err
	}
	rows, err = q.AdjustBalance(ctx, receiver.AccountNumber, req.Amount)
	if err != nil {
		return nil, err
	}
	if err := requireExactlyOne(rows, "credit receiver"); err != nil {
		return nil, err
	}

	senderOwner, err := q.GetOwner(ctx, sender.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load sender owner: %w", err)
	}
	receiverOwner, err := q.GetOwner(ctx, receiver.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load receiver owner: %w", err)
	}

	tx := &models.Transaction{
		SenderAccountNumber:   sender.AccountNumber,
		ReceiverAccountNumber: receiver.AccountNumber,
		SenderName:            senderOwner.FullName,
		ReceiverName:          receiverOwner.FullName,
		Amount:                req.Amount,
		Narration:             strings.TrimSpace(req.Narration),
		Status:                domain.TxStatusSuccess,
		CreatedAt:             s.now(),
	}
	for {
		tx.Reference, err = s.ids.TransactionReference(ctx, q.ReferenceExists)
		if err != nil {
			return nil, fmt.Errorf("generate transaction reference: %w", err)
		}
		err = q.InsertTransaction(ctx, tx)
		if errors.Is(err, models.ErrDuplicateIdentifier) {
			observability.IncrementIdentifierRegeneration("transaction_reference")
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	return &settledTransfer{
		tx:              tx,
		sender:          sender,
		receiver:        receiver,
		senderBalance:   sender.Balance.Sub(req.Amount),
		receiverBalance: receiver.Balance.Add(req.Amount),
	}, nil
}

func (s *TransferService) dispatchAlerts(ctx context.Context, settled *settledTransfer) {
	if s.notifier == nil || s.tasks == nil {
		return
	}
	alerts := []models.BalanceAlert{
		{
			OwnerID:       settled.sender.OwnerID,
			AccountNumber: settled.sender.AccountNumber,
			Direction:     domain.DirectionDebit,
			Amount:        settled.tx.Amount,
			Balance:       settled.senderBalance,
			Reference:     settled.tx.Reference,
			OccurredAt:    settled.tx.CreatedAt,
		},
		{
			OwnerID:       settled.receiver.OwnerID,
			AccountNumber: settled.receiver.AccountNumber,
			Direction:     domain.DirectionCredit,
			Amount:        settled.tx.Amount,
			Balance:       settled.receiverBalance,
			Reference:     settled.tx.Reference,
			OccurredAt:    settled.tx.CreatedAt,
		},
	}
	for _, alert := range alerts {
		name := "notify_" + strings.ToLower(string(alert.Direction))
		s.tasks.Submit(ctx, name, func(ctx context.Context) error {
			return s.notifier.Notify(ctx, alert)
		})
	}
}

func (s *TransferService) fail(err error) error {
	result := "error"
	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		result = "insufficient_funds"
	case errors.Is(err, models.ErrAuthMismatch):
		result = "auth_mismatch"
	case errors.Is(err, models.ErrAccountNotActivated):
		result = "not_activated"
	case errors.Is(err, models.ErrNotFound):
		result = "not_found"
	}
	observability.IncrementTransfer(result)
	return err
}

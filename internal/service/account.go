package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/ebanking-core/internal/async"
	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/observability"
	"github.com/ayo6706/ebanking-core/internal/repository"
	"github.com/ayo6706/ebanking-core/internal/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AccountService struct {
	store    QueryStore
	ids      IdentifierSource
	verifier SecretVerifier
	policy   security.PinPolicy
	tasks    TaskRunner
}

func NewAccountService(store QueryStore, ids IdentifierSource, verifier SecretVerifier, policy security.PinPolicy) *AccountService {
	return &AccountService{
		store:    store,
		ids:      ids,
		verifier: verifier,
		policy:   policy,
	}
}

// WithTasks enables OpenAccountAsync.
func (s *AccountService) WithTasks(tasks TaskRunner) *AccountService {
	s.tasks = tasks
	return s
}

// RegisterOwner records the display name snapshotted onto ledger rows.
func (s *AccountService) RegisterOwner(ctx context.Context, ownerID uuid.UUID, fullName string) error {
	fullName = strings.TrimSpace(fullName)
	if ownerID == uuid.Nil || fullName == "" {
		return fmt.Errorf("%w: owner id and full name are required", models.ErrInvalidArgument)
	}
	return s.store.Queries().UpsertOwner(ctx, &models.Owner{ID: ownerID, FullName: fullName})
}

// CreateAccount opens the owner's account with a fresh account number.
func (s *AccountService) CreateAccount(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	queries := s.store.Queries()
	for {
		number, err := s.ids.AccountNumber(ctx, queries.AccountNumberExists)
		if err != nil {
			return nil, fmt.Errorf("generate account number: %w", err)
		}

		account := &models.Account{
			AccountNumber: number,
			OwnerID:       ownerID,
			Balance:       decimal.Zero,
			Status:        domain.AccountStatusActivated,
			Tier:          domain.TierLevel1,
		}
		err = queries.CreateAccount(ctx, account)
		if errors.Is(err, models.ErrDuplicateIdentifier) {
			observability.IncrementIdentifierRegeneration("account_number")
			continue
		}
		if err != nil {
			return nil, err
		}
		zap.L().Info("account opened",
			zap.String("owner_id", ownerID.String()),
			zap.String("account_number", number))
		return account, nil
	}
}

// OpenAccountAsync hands CreateAccount to the task runner. Failures are
// logged by the runner and never reach the caller of OpenAccountAsync.
func (s *AccountService) OpenAccountAsync(ctx context.Context, ownerID uuid.UUID) *async.Task {
	if s.tasks == nil {
		return async.Completed("open_account", fmt.Errorf("%w: task runner not configured", models.ErrUnavailable))
	}
	return s.tasks.Submit(ctx, "open_account", func(ctx context.Context) error {
		_, err := s.CreateAccount(ctx, ownerID)
		return err
	})
}

func (s *AccountService) Overview(ctx context.Context, ownerID uuid.UUID) (*models.AccountOverview, error) {
	account, err := s.store.Queries().GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &models.AccountOverview{
		Balance:       account.Balance,
		AccountNumber: account.AccountNumber,
		Tier:          account.Tier.String(),
		Status:        string(account.Status),
	}, nil
}

// CloseAccount moves a zero-balance account to CLOSED and archives it.
// A non-zero balance is rejected before anything is written.
func (s *AccountService) CloseAccount(ctx context.Context, ownerID uuid.UUID, reason string) error {
	return s.store.RunInTx(ctx, func(q repository.Querier) error {
		account, err := q.GetAccountByOwnerForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		if !account.Balance.IsZero() {
			return fmt.Errorf("%w: balance is %s", models.ErrAccountNotCleared, domain.FormatAmount(account.Balance))
		}
		if !domain.CanTransition(account.Status, domain.AccountStatusClosed) {
			return fmt.Errorf("%w: account is %s", models.ErrAccountNotActivated, account.Status)
		}

		rows, err := q.UpdateAccountStatus(ctx, account.AccountNumber, domain.AccountStatusClosed)
		if err != nil {
			return err
		}
		if err := requireExactlyOne(rows, "close account"); err != nil {
			return err
		}
		if err := q.InsertClosedAccount(ctx, &models.ClosedAccount{
			AccountNumber: account.AccountNumber,
			OwnerID:       account.OwnerID,
			Reason:        strings.TrimSpace(reason),
		}); err != nil {
			return err
		}

		zap.L().Info("account closed",
			zap.String("owner_id", ownerID.String()),
			zap.String("account_number", account.AccountNumber))
		return nil
	})
}

// UpdateTransactionPin replaces the pin digest. The raw pin is never stored.
func (s *AccountService) UpdateTransactionPin(ctx context.Context, ownerID uuid.UUID, newPin string) error {
	queries := s.store.Queries()
	account, err := queries.GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if !account.IsActivated() {
		return fmt.Errorf("%w: account is %s", models.ErrAccountNotActivated, account.Status)
	}
	if err := s.policy.Validate(newPin); err != nil {
		return fmt.Errorf("%w: %w", models.ErrInvalidArgument, err)
	}

	digest, err := s.verifier.Hash(newPin)
	if err != nil {
		return err
	}
	rows, err := queries.UpdateTransactionPin(ctx, account.AccountNumber, digest)
	if err != nil {
		return err
	}
	return requireExactlyOne(rows, "update transaction pin")
}

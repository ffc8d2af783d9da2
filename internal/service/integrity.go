package service

import (
	"context"
	"fmt"

	"github.com/ayo6706/ebanking-core/internal/observability"
	"go.uber.org/zap"
)

type IntegrityReport struct {
	NegativeBalances        int64
	ClosedAccountsWithFunds int64
}

// Healthy reports whether no invariant violation was found.
func (r IntegrityReport) Healthy() bool {
	return r.NegativeBalances == 0 && r.ClosedAccountsWithFunds == 0
}

// IntegrityService verifies account ledger invariants.
type IntegrityService struct {
	store QueryStore
}

func NewIntegrityService(store QueryStore) *IntegrityService {
	return &IntegrityService{store: store}
}

// Run checks that no balance is negative and no closed account holds funds.
func (s *IntegrityService) Run(ctx context.Context) (IntegrityReport, error) {
	queries := s.store.Queries()

	negative, err := queries.CountNegativeBalances(ctx)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("run negative balance check: %w", err)
	}
	closedWithFunds, err := queries.CountClosedAccountsWithFunds(ctx)
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("run closed account check: %w", err)
	}

	report := IntegrityReport{NegativeBalances: negative, ClosedAccountsWithFunds: closedWithFunds}
	observability.SetIntegrityViolations("negative_balance", negative)
	observability.SetIntegrityViolations("closed_with_funds", closedWithFunds)

	if !report.Healthy() {
		zap.L().Error("CRITICAL: ledger integrity violation detected",
			zap.Int64("negative_balances", negative),
			zap.Int64("closed_accounts_with_funds", closedWithFunds))
		return report, nil
	}

	zap.L().Info("Ledger integrity verified")
	return report, nil
}

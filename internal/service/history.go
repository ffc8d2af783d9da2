package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/repository"
	"github.com/google/uuid"
)

const (
	DefaultMaxPageSize  = 100
	statementDateLayout = "2006-01-02T15:04:05"
)

type HistoryService struct {
	store       QueryStore
	renderer    StatementRenderer
	location    *time.Location
	maxPageSize int
}

func NewHistoryService(store QueryStore, maxPageSize int) *HistoryService {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	return &HistoryService{
		store:       store,
		location:    time.UTC,
		maxPageSize: maxPageSize,
	}
}

func (s *HistoryService) WithRenderer(renderer StatementRenderer) *HistoryService {
	s.renderer = renderer
	return s
}

// WithLocation sets the zone used for statement periods and printed dates.
func (s *HistoryService) WithLocation(loc *time.Location) *HistoryService {
	if loc != nil {
		s.location = loc
	}
	return s
}

// QueryHistory returns one page of successful ledger rows involving
// accountNumber with createdAt in [start, end], newest first. Pages are 0-based.
func (s *HistoryService) QueryHistory(ctx context.Context, accountNumber string, start, end time.Time, page, pageSize int) ([]models.Transaction, error) {
	if page < 0 {
		return nil, fmt.Errorf("%w: page must not be negative", models.ErrInvalidArgument)
	}
	if pageSize <= 0 || pageSize > s.maxPageSize {
		return nil, fmt.Errorf("%w: page size must be between 1 and %d", models.ErrInvalidArgument, s.maxPageSize)
	}
	if page > math.MaxInt/pageSize {
		return nil, fmt.Errorf("%w: page %d is out of range", models.ErrInvalidArgument, page)
	}
	if start.After(end) {
		return nil, fmt.Errorf("%w: start is after end", models.ErrInvalidArgument)
	}

	rows, err := s.store.Queries().ListAccountTransactions(ctx, repository.ListAccountTransactionsParams{
		AccountNumber: accountNumber,
		Status:        domain.TxStatusSuccess,
		Start:         start,
		End:           end,
		Limit:         pageSize,
		Offset:        page * pageSize,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no transactions in range", models.ErrNotFound)
	}
	return rows, nil
}

// Classify reports the direction of tx as seen from viewpoint.
func Classify(tx models.Transaction, viewpoint string) (domain.Direction, error) {
	switch viewpoint {
	case tx.ReceiverAccountNumber:
		return domain.DirectionCredit, nil
	case tx.SenderAccountNumber:
		return domain.DirectionDebit, nil
	default:
		return "", fmt.Errorf("%w: transaction %s does not involve %s", models.ErrLedgerInconsistent, tx.Reference, viewpoint)
	}
}

// FormatHistory classifies rows for viewpoint, preserving their order.
func FormatHistory(rows []models.Transaction, viewpoint string) ([]models.HistoryEntry, error) {
	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, tx := range rows {
		direction, err := Classify(tx, viewpoint)
		if err != nil {
			return nil, err
		}
		entries = append(entries, models.HistoryEntry{
			DateTime:     tx.CreatedAt,
			Amount:       tx.Amount,
			SenderName:   tx.SenderName,
			ReceiverName: tx.ReceiverName,
			Direction:    direction,
		})
	}
	return entries, nil
}

func (s *HistoryService) History(ctx context.Context, ownerID uuid.UUID, start, end time.Time, page, pageSize int) ([]models.HistoryEntry, error) {
	account, err := s.store.Queries().GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.QueryHistory(ctx, account.AccountNumber, start, end, page, pageSize)
	if err != nil {
		return nil, err
	}
	return FormatHistory(rows, account.AccountNumber)
}

// Statement renders the owner's transactions for a year, or a month of it.
func (s *HistoryService) Statement(ctx context.Context, ownerID uuid.UUID, year int, month *int, page, pageSize int) ([]byte, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("%w: statement renderer not configured", models.ErrUnavailable)
	}
	period, err := domain.StatementPeriod(year, month, s.location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidArgument, err)
	}

	queries := s.store.Queries()
	account, err := queries.GetAccountByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.QueryHistory(ctx, account.AccountNumber, period.Start, period.End, page, pageSize)
	if err != nil {
		return nil, err
	}

	holder := ""
	owner, err := queries.GetOwner(ctx, ownerID)
	switch {
	case err == nil:
		holder = owner.FullName
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	doc := models.StatementDocument{
		Period:        period.Label(month != nil),
		AccountNumber: account.AccountNumber,
		HolderName:    holder,
		Rows:          make([]models.StatementRow, 0, len(rows)),
	}
	for _, tx := range rows {
		doc.Rows = append(doc.Rows, models.StatementRow{
			Reference:   tx.Reference,
			Date:        tx.CreatedAt.In(s.location).Format(statementDateLayout),
			Amount:      domain.FormatAmount(tx.Amount),
			Sender:      tx.SenderName,
			Receiver:    tx.ReceiverName,
			Description: tx.Narration,
		})
	}
	return s.renderer.Render(ctx, doc)
}

package models

import (
	"time"

	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Owner is the identity-layer view needed to snapshot display names.
type Owner struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Account struct {
	AccountNumber      string               `json:"account_number"`
	OwnerID            uuid.UUID            `json:"owner_id"`
	Balance            decimal.Decimal      `json:"balance"`
	Status             domain.AccountStatus `json:"status"`
	Tier               domain.Tier          `json:"tier"`
	TransactionPinHash string               `json:"-"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// IsActivated reports whether the account may send or receive funds.
func (a *Account) IsActivated() bool {
	return a != nil && a.Status == domain.AccountStatusActivated
}

// HasPin reports whether a transaction pin digest has been set.
func (a *Account) HasPin() bool {
	return a != nil && a.TransactionPinHash != ""
}

// Transaction is an immutable ledger entry for one completed transfer.
type Transaction struct {
	ID                    int64                    `json:"id"`
	SenderAccountNumber   string                   `json:"sender_account_number"`
	ReceiverAccountNumber string                   `json:"receiver_account_number"`
	SenderName            string                   `json:"sender_name"`
	ReceiverName          string                   `json:"receiver_name"`
	Amount                decimal.Decimal          `json:"amount"`
	Reference             string                   `json:"reference"`
	Narration             string                   `json:"narration"`
	Status                domain.TransactionStatus `json:"status"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

// ClosedAccount archives an account at the moment it was closed.
type ClosedAccount struct {
	AccountNumber string    `json:"account_number"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Reason        string    `json:"reason"`
	ClosedAt      time.Time `json:"closed_at"`
}

type AccountOverview struct {
	Balance       decimal.Decimal `json:"balance"`
	AccountNumber string          `json:"account_number"`
	Tier          string          `json:"tier"`
	Status        string          `json:"status"`
}

type TransferConfirmation struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// HistoryEntry is a ledger row classified relative to a viewpoint account.
type HistoryEntry struct {
	DateTime     time.Time        `json:"date_time"`
	Amount       decimal.Decimal  `json:"amount"`
	SenderName   string           `json:"sender_name"`
	ReceiverName string           `json:"receiver_name"`
	Direction    domain.Direction `json:"direction"`
}

// BalanceAlert is delivered to one party after a transfer commits.
type BalanceAlert struct {
	OwnerID       uuid.UUID        `json:"owner_id"`
	AccountNumber string           `json:"account_number"`
	Direction     domain.Direction `json:"direction"`
	Amount        decimal.Decimal  `json:"amount"`
	Balance       decimal.Decimal  `json:"balance"`
	Reference     string           `json:"reference"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// StatementRow columns are in print order.
type StatementRow struct {
	Reference   string
	Date        string
	Amount      string
	Sender      string
	Receiver    string
	Description string
}

// StatementHeaders matches the StatementRow field order.
var StatementHeaders = []string{"Reference Number", "Transaction Date", "Amount", "Sender", "Recipient", "Description"}

type StatementDocument struct {
	Period        string
	AccountNumber string
	HolderName    string
	Rows          []StatementRow
}

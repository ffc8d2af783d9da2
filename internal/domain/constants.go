package domain

import "strings"

// AccountStatus is the lifecycle state of a customer account.
type AccountStatus string

const (
	AccountStatusActivated AccountStatus = "ACTIVATED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

// Tier is the ordinal service level of an account. New accounts start at TierLevel1.
type Tier int

const (
	TierLevel1 Tier = iota + 1
	TierLevel2
	TierLevel3
)

func (t Tier) String() string {
	switch t {
	case TierLevel1:
		return "LEVEL1"
	case TierLevel2:
		return "LEVEL2"
	case TierLevel3:
		return "LEVEL3"
	default:
		return "UNKNOWN"
	}
}

// TransactionStatus is the status of a ledger entry.
type TransactionStatus string

const (
	TxStatusSuccess TransactionStatus = "SUCCESS"
	TxStatusFailed  TransactionStatus = "FAILED"
	TxStatusPending TransactionStatus = "PENDING"
)

// Direction is computed per viewpoint account; the ledger itself stores none.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

const (
	AccountNumberLength        = 10
	TransactionReferenceLength = 12
	DefaultPinLength           = 4
)

var accountTransitions = map[AccountStatus]map[AccountStatus]struct{}{
	AccountStatusActivated: {
		AccountStatusClosed: {},
	},
	AccountStatusClosed: {},
}

// NormalizeStatus upper-cases and trims a stored status value.
func NormalizeStatus(status string) AccountStatus {
	return AccountStatus(strings.ToUpper(strings.TrimSpace(status)))
}

// CanTransition reports whether an account may move from current to next.
// Transitions only ever move toward CLOSED.
func CanTransition(current, next AccountStatus) bool {
	nextStates, ok := accountTransitions[current]
	if !ok {
		return false
	}
	_, ok = nextStates[next]
	return ok
}

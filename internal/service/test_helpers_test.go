package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/ebanking-core/internal/async"
	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/identifier"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/ayo6706/ebanking-core/internal/repository"
	"github.com/ayo6706/ebanking-core/internal/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memoryState is the table contents of memoryStore.
type memoryState struct {
	owners       map[uuid.UUID]models.Owner
	accounts     map[string]models.Account
	transactions []models.Transaction
	closed       map[string]models.ClosedAccount
	nextTxID     int64
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		owners:       make(map[uuid.UUID]models.Owner, len(s.owners)),
		accounts:     make(map[string]models.Account, len(s.accounts)),
		transactions: append([]models.Transaction(nil), s.transactions...),
		closed:       make(map[string]models.ClosedAccount, len(s.closed)),
		nextTxID:     s.nextTxID,
	}
	for k, v := range s.owners {
		out.owners[k] = v
	}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	for k, v := range s.closed {
		out.closed[k] = v
	}
	return out
}

// memoryStore is an in-memory QueryStore. RunInTx holds a single lock for the
// whole transaction and commits a working copy only when fn succeeds, which
// gives the same serializability the row locks give in Postgres.
type memoryStore struct {
	mu    sync.Mutex
	state *memoryState

	hookMu               sync.Mutex
	accountNumberRaces   int
	referenceRaces       int
	insertTransactionErr error
	getOwnerErr          error
	closedInserts        int
	beforeTx             func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: &memoryState{
		owners:   map[uuid.UUID]models.Owner{},
		accounts: map[string]models.Account{},
		closed:   map[string]models.ClosedAccount{},
	}}
}

func (m *memoryStore) Queries() repository.Querier {
	return &memoryQueries{store: m}
}

func (m *memoryStore) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	m.hookMu.Lock()
	before := m.beforeTx
	m.beforeTx = nil
	m.hookMu.Unlock()
	if before != nil {
		before()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(&memoryQueries{store: m, tx: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

// takeHook decrements *counter and reports whether it was positive.
func (m *memoryStore) takeHook(counter *int) bool {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	if *counter > 0 {
		*counter--
		return true
	}
	return false
}

func (m *memoryStore) account(number string) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.accounts[number]
}

func (m *memoryStore) transactions() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Transaction(nil), m.state.transactions...)
}

func (m *memoryStore) closedAccount(number string) (models.ClosedAccount, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.closed[number]
	return c, ok
}

func (m *memoryStore) totalBalance() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, a := range m.state.accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// setBeforeTx runs fn once, at the start of the next RunInTx.
func (m *memoryStore) setBeforeTx(fn func()) {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()
	m.beforeTx = fn
}

func (m *memoryStore) seedTransaction(tx models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.nextTxID++
	tx.ID = m.state.nextTxID
	m.state.transactions = append(m.state.transactions, tx)
}

type memoryQueries struct {
	store *memoryStore
	tx    *memoryState
}

var _ repository.Querier = (*memoryQueries)(nil)

func (q *memoryQueries) with(fn func(st *memoryState) error) error {
	if q.tx != nil {
		return fn(q.tx)
	}
	q.store.mu.Lock()
	defer q.store.mu.Unlock()
	return fn(q.store.state)
}

func (q *memoryQueries) UpsertOwner(_ context.Context, owner *models.Owner) error {
	return q.with(func(st *memoryState) error {
		existing, ok := st.owners[owner.ID]
		if ok {
			owner.CreatedAt = existing.CreatedAt
		} else {
			owner.CreatedAt = time.Now().UTC()
		}
		st.owners[owner.ID] = *owner
		return nil
	})
}

func (q *memoryQueries) GetOwner(_ context.Context, id uuid.UUID) (*models.Owner, error) {
	q.store.hookMu.Lock()
	injected := q.store.getOwnerErr
	q.store.hookMu.Unlock()
	if injected != nil {
		return nil, injected
	}
	var out *models.Owner
	err := q.with(func(st *memoryState) error {
		owner, ok := st.owners[id]
		if !ok {
			return fmt.Errorf("get owner %s: %w", id, models.ErrNotFound)
		}
		out = &owner
		return nil
	})
	return out, err
}

func (q *memoryQueries) CreateAccount(_ context.Context, account *models.Account) error {
	if q.store.takeHook(&q.store.accountNumberRaces) {
		return fmt.Errorf("account number %s: %w", account.AccountNumber, models.ErrDuplicateIdentifier)
	}
	return q.with(func(st *memoryState) error {
		if _, ok := st.accounts[account.AccountNumber]; ok {
			return fmt.Errorf("account number %s: %w", account.AccountNumber, models.ErrDuplicateIdentifier)
		}
		for _, a := range st.accounts {
			if a.OwnerID == account.OwnerID {
				return fmt.Errorf("%w: accounts_owner_id_key", models.ErrConflict)
			}
		}
		now := time.Now().UTC()
		account.CreatedAt, account.UpdatedAt = now, now
		st.accounts[account.AccountNumber] = *account
		return nil
	})
}

func (q *memoryQueries) AccountNumberExists(_ context.Context, accountNumber string) (bool, error) {
	var exists bool
	err := q.with(func(st *memoryState) error {
		_, exists = st.accounts[accountNumber]
		return nil
	})
	return exists, err
}

func (q *memoryQueries) GetAccountByNumber(_ context.Context, accountNumber string) (*models.Account, error) {
	var out *models.Account
	err := q.with(func(st *memoryState) error {
		account, ok := st.accounts[accountNumber]
		if !ok {
			return fmt.Errorf("get account %s: %w", accountNumber, models.ErrNotFound)
		}
		out = &account
		return nil
	})
	return out, err
}

func (q *memoryQueries) GetAccountByOwner(_ context.Context, ownerID uuid.UUID) (*models.Account, error) {
	var out *models.Account
	err := q.with(func(st *memoryState) error {
		for _, a := range st.accounts {
			if a.OwnerID == ownerID {
				account := a
				out = &account
				return nil
			}
		}
		return fmt.Errorf("get account for owner %s: %w", ownerID, models.ErrNotFound)
	})
	return out, err
}

func (q *memoryQueries) GetAccountByNumberForUpdate(ctx context.Context, accountNumber string) (*models.Account, error) {
	return q.GetAccountByNumber(ctx, accountNumber)
}

func (q *memoryQueries) GetAccountByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	return q.GetAccountByOwner(ctx, ownerID)
}

func (q *memoryQueries) AdjustBalance(_ context.Context, accountNumber string, delta decimal.Decimal) (int64, error) {
	var rows int64
	err := q.with(func(st *memoryState) error {
		account, ok := st.accounts[accountNumber]
		if !ok {
			return nil
		}
		next := account.Balance.Add(delta)
		if next.IsNegative() {
			return nil
		}
		account.Balance = next
		account.UpdatedAt = time.Now().UTC()
		st.accounts[accountNumber] = account
		rows = 1
		return nil
	})
	return rows, err
}

func (q *memoryQueries) UpdateAccountStatus(_ context.Context, accountNumber string, status domain.AccountStatus) (int64, error) {
	var rows int64
	err := q.with(func(st *memoryState) error {
		account, ok := st.accounts[accountNumber]
		if !ok {
			return nil
		}
		account.Status = status
		st.accounts[accountNumber] = account
		rows = 1
		return nil
	})
	return rows, err
}

func (q *memoryQueries) UpdateTransactionPin(_ context.Context, accountNumber, pinHash string) (int64, error) {
	var rows int64
	err := q.with(func(st *memoryState) error {
		account, ok := st.accounts[accountNumber]
		if !ok {
			return nil
		}
		account.TransactionPinHash = pinHash
		st.accounts[accountNumber] = account
		rows = 1
		return nil
	})
	return rows, err
}

func (q *memoryQueries) InsertClosedAccount(_ context.Context, closed *models.ClosedAccount) error {
	q.store.hookMu.Lock()
	q.store.closedInserts++
	q.store.hookMu.Unlock()
	return q.with(func(st *memoryState) error {
		if _, ok := st.closed[closed.AccountNumber]; ok {
			return fmt.Errorf("%w: closed_accounts_pkey", models.ErrConflict)
		}
		closed.ClosedAt = time.Now().UTC()
		st.closed[closed.AccountNumber] = *closed
		return nil
	})
}

func (q *memoryQueries) ReferenceExists(_ context.Context, reference string) (bool, error) {
	var exists bool
	err := q.with(func(st *memoryState) error {
		for _, tx := range st.transactions {
			if tx.Reference == reference {
				exists = true
				break
			}
		}
		return nil
	})
	return exists, err
}

func (q *memoryQueries) InsertTransaction(_ context.Context, tx *models.Transaction) error {
	q.store.hookMu.Lock()
	injected := q.store.insertTransactionErr
	q.store.hookMu.Unlock()
	if injected != nil {
		return injected
	}
	if q.store.takeHook(&q.store.referenceRaces) {
		return fmt.Errorf("transaction reference %s: %w", tx.Reference, models.ErrDuplicateIdentifier)
	}
	return q.with(func(st *memoryState) error {
		for _, existing := range st.transactions {
			if existing.Reference == tx.Reference {
				return fmt.Errorf("transaction reference %s: %w", tx.Reference, models.ErrDuplicateIdentifier)
			}
		}
		st.nextTxID++
		tx.ID = st.nextTxID
		tx.UpdatedAt = tx.CreatedAt
		st.transactions = append(st.transactions, *tx)
		return nil
	})
}

func (q *memoryQueries) ListAccountTransactions(_ context.Context, arg repository.ListAccountTransactionsParams) ([]models.Transaction, error) {
	var out []models.Transaction
	err := q.with(func(st *memoryState) error {
		var matched []models.Transaction
		for _, tx := range st.transactions {
			if tx.Status != arg.Status {
				continue
			}
			if tx.CreatedAt.Before(arg.Start) || tx.CreatedAt.After(arg.End) {
				continue
			}
			if tx.SenderAccountNumber != arg.AccountNumber && tx.ReceiverAccountNumber != arg.AccountNumber {
				continue
			}
			matched = append(matched, tx)
		}
		sort.SliceStable(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return matched[i].ID > matched[j].ID
		})
		if arg.Offset >= len(matched) {
			return nil
		}
		end := arg.Offset + arg.Limit
		if end > len(matched) {
			end = len(matched)
		}
		out = matched[arg.Offset:end]
		return nil
	})
	return out, err
}

func (q *memoryQueries) CountNegativeBalances(context.Context) (int64, error) {
	var n int64
	err := q.with(func(st *memoryState) error {
		for _, a := range st.accounts {
			if a.Balance.IsNegative() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (q *memoryQueries) CountClosedAccountsWithFunds(context.Context) (int64, error) {
	var n int64
	err := q.with(func(st *memoryState) error {
		for _, a := range st.accounts {
			if a.Status == domain.AccountStatusClosed && !a.Balance.IsZero() {
				n++
			}
		}
		return nil
	})
	return n, err
}

// plainVerifier skips bcrypt's cost in tests.
type plainVerifier struct{}

func (plainVerifier) Hash(raw string) (string, error) { return "digest:" + raw, nil }

func (plainVerifier) Matches(raw, digest string) bool {
	return digest != "" && digest == "digest:"+raw
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.BalanceAlert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, alert models.BalanceAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return n.err
}

func (n *recordingNotifier) received() []models.BalanceAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.BalanceAlert(nil), n.alerts...)
}

// inlineRunner runs submitted work before Submit returns.
type inlineRunner struct {
	mu    sync.Mutex
	names []string
}

func (r *inlineRunner) Submit(ctx context.Context, name string, fn async.Func) *async.Task {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	return async.Completed(name, fn(ctx))
}

type fixture struct {
	store    *memoryStore
	ids      *identifier.Generator
	accounts *AccountService
}

func newFixture() *fixture {
	store := newMemoryStore()
	ids := identifier.New(nil)
	return &fixture{
		store:    store,
		ids:      ids,
		accounts: NewAccountService(store, ids, plainVerifier{}, securityPolicy()),
	}
}

// openFunded registers an owner, opens the account, sets pin "1234" and
// credits balance.
func (f *fixture) openFunded(t *testing.T, name string, balance int64) *models.Account {
	t.Helper()
	ctx := context.Background()
	ownerID := uuid.New()
	require.NoError(t, f.accounts.RegisterOwner(ctx, ownerID, name))
	account, err := f.accounts.CreateAccount(ctx, ownerID)
	require.NoError(t, err)
	require.NoError(t, f.accounts.UpdateTransactionPin(ctx, ownerID, "1234"))
	if balance > 0 {
		rows, err := f.store.Queries().AdjustBalance(ctx, account.AccountNumber, decimal.NewFromInt(balance))
		require.NoError(t, err)
		require.Equal(t, int64(1), rows)
	}
	loaded, err := f.store.Queries().GetAccountByNumber(ctx, account.AccountNumber)
	require.NoError(t, err)
	return loaded
}

func securityPolicy() security.PinPolicy {
	return security.PinPolicy{Length: domain.DefaultPinLength}
}

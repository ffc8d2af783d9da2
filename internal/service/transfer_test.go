package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayo6706/ebanking-core/internal/async"
	"github.com/ayo6706/ebanking-core/internal/domain"
	"github.com/ayo6706/ebanking-core/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTransferService(f *fixture) *TransferService {
	return NewTransferService(f.store, f.ids, plainVerifier{})
}

func transferReq(from, to *models.Account, amount int64) TransferRequest {
	return TransferRequest{
		SenderAccountNumber:   from.AccountNumber,
		ReceiverAccountNumber: to.AccountNumber,
		Amount:                decimal.NewFromInt(amount),
		Pin:                   "1234",
		Narration:             "rent",
	}
}

func TestTransfer(t *testing.T) {
	f := newFixture()
	ayo := f.openFunded(t, "Ayo Bello", 100)
	david := f.openFunded(t, "David Eze", 0)

	fixed := time.Date(2024, 2, 10, 9, 30, 0, 0, time.UTC)
	svc := newTransferService(f).WithClock(func() time.Time { return fixed })

	confirmation, err := svc.Transfer(context.Background(), transferReq(ayo, david, 50))
	require.NoError(t, err)
	assert.Regexp(t, `^[a-z0-9]{12}$`, confirmation.Reference)
	assert.True(t, confirmation.Amount.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, fixed, confirmation.CreatedAt)

	assert.True(t, f.store.account(ayo.AccountNumber).Balance.Equal(decimal.NewFromInt(50)))
	assert.True(t, f.store.account(david.AccountNumber).Balance.Equal(decimal.NewFromInt(50)))

	ledger := f.store.transactions()
	require.Len(t, ledger, 1)
	row := ledger[0]
	assert.Equal(t, confirmation.Reference, row.Reference)
	assert.Equal(t, ayo.AccountNumber, row.SenderAccountNumber)
	assert.Equal(t, david.AccountNumber, row.ReceiverAccountNumber)
	assert.Equal(t, "Ayo Bello", row.SenderName)
	assert.Equal(t, "David Eze", row.ReceiverName)
	assert.Equal(t, domain.TxStatusSuccess, row.Status)
	assert.Equal(t, "rent", row.Narration)
}

func TestTransfer_ExactBalance(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 75)
	b := f.openFunded(t, "B", 0)

	_, err := newTransferService(f).Transfer(context.Background(), transferReq(a, b, 75))
	require.NoError(t, err)
	assert.True(t, f.store.account(a.AccountNumber).Balance.IsZero())
}

func TestTransfer_Rejections(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 0)
	closed := f.openFunded(t, "Closed", 0)
	require.NoError(t, f.accounts.CloseAccount(context.Background(), closed.OwnerID, ""))
	ghost := &models.Account{AccountNumber: "0000000000"}

	tests := []struct {
		name string
		req  TransferRequest
		want error
	}{
		{"same account", transferReq(a, a, 10), models.ErrInvalidArgument},
		{"zero amount", transferReq(a, b, 0), models.ErrInvalidArgument},
		{"negative amount", transferReq(a, b, -5), models.ErrInvalidArgument},
		{"unknown sender", transferReq(ghost, b, 10), models.ErrNotFound},
		{"unknown receiver", transferReq(a, ghost, 10), models.ErrNotFound},
		{"closed sender", transferReq(closed, b, 10), models.ErrAccountNotActivated},
		{"closed receiver", transferReq(a, closed, 10), models.ErrAccountNotActivated},
		{"insufficient funds", transferReq(a, b, 101), models.ErrInsufficientFunds},
		{"wrong pin", func() TransferRequest { r := transferReq(a, b, 10); r.Pin = "0000"; return r }(), models.ErrAuthMismatch},
	}

	svc := newTransferService(f)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}

	assert.True(t, f.store.account(a.AccountNumber).Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, f.store.account(b.AccountNumber).Balance.IsZero())
	assert.Empty(t, f.store.transactions())
}

func TestTransfer_UnsetPinIsMismatch(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 0)

	rows, err := f.store.Queries().UpdateTransactionPin(context.Background(), a.AccountNumber, "")
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)

	_, err = newTransferService(f).Transfer(context.Background(), transferReq(a, b, 10))
	require.ErrorIs(t, err, models.ErrAuthMismatch)
}

func TestTransfer_PinCheckedBeforeReceiverLookup(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)

	req := TransferRequest{
		SenderAccountNumber:   a.AccountNumber,
		ReceiverAccountNumber: "9999999999",
		Amount:                decimal.NewFromInt(1),
		Pin:                   "0000",
	}
	_, err := newTransferService(f).Transfer(context.Background(), req)
	require.ErrorIs(t, err, models.ErrAuthMismatch)
}

func TestTransfer_LedgerFailureRollsBackBalances(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 0)
	boom := errors.New("ledger write failed")
	f.store.insertTransactionErr = boom

	_, err := newTransferService(f).Transfer(context.Background(), transferReq(a, b, 40))
	require.ErrorIs(t, err, boom)

	assert.True(t, f.store.account(a.AccountNumber).Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, f.store.account(b.AccountNumber).Balance.IsZero())
	assert.Empty(t, f.store.transactions())
}

func TestTransfer_RegeneratesReferenceAfterInsertRace(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 0)
	f.store.referenceRaces = 3

	confirmation, err := newTransferService(f).Transfer(context.Background(), transferReq(a, b, 10))
	require.NoError(t, err)
	assert.Equal(t, 0, f.store.referenceRaces)
	require.Len(t, f.store.transactions(), 1)
	assert.Equal(t, confirmation.Reference, f.store.transactions()[0].Reference)
}

func TestTransfer_NotifiesBothParties(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 5)
	notifier := &recordingNotifier{}
	runner := &inlineRunner{}

	confirmation, err := newTransferService(f).WithNotifier(notifier, runner).Transfer(context.Background(), transferReq(a, b, 30))
	require.NoError(t, err)

	alerts := notifier.received()
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.DirectionDebit, alerts[0].Direction)
	assert.Equal(t, a.AccountNumber, alerts[0].AccountNumber)
	assert.True(t, alerts[0].Balance.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, domain.DirectionCredit, alerts[1].Direction)
	assert.Equal(t, b.AccountNumber, alerts[1].AccountNumber)
	assert.True(t, alerts[1].Balance.Equal(decimal.NewFromInt(35)))
	for _, alert := range alerts {
		assert.Equal(t, confirmation.Reference, alert.Reference)
	}
	assert.Equal(t, []string{"notify_debit", "notify_credit"}, runner.names)
}

func TestTransfer_NotificationFailureDoesNotFailTransfer(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 0)
	notifier := &recordingNotifier{err: errors.New("broker down")}

	dispatcher := async.NewDispatcher(1, 4)
	stop := dispatcher.Run()

	_, err := newTransferService(f).WithNotifier(notifier, dispatcher).Transfer(context.Background(), transferReq(a, b, 10))
	require.NoError(t, err)

	stop()
	assert.Len(t, notifier.received(), 2)
	assert.True(t, f.store.account(b.AccountNumber).Balance.Equal(decimal.NewFromInt(10)))
}

func TestTransfer_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	f := newFixture()
	const n = 10
	sender := f.openFunded(t, "Sender", n)
	receiver := f.openFunded(t, "Receiver", 0)
	svc := newTransferService(f)

	var wg sync.WaitGroup
	var succeeded, insufficient atomic.Int32
	for i := 0; i < n+1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), transferReq(sender, receiver, 1))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, models.ErrInsufficientFunds):
				insufficient.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(n), succeeded.Load())
	assert.Equal(t, int32(1), insufficient.Load())
	assert.True(t, f.store.account(sender.AccountNumber).Balance.IsZero())
	assert.True(t, f.store.account(receiver.AccountNumber).Balance.Equal(decimal.NewFromInt(n)))
	assert.Len(t, f.store.transactions(), n)
}

func TestTransfer_OpposingTransfersConserveTotal(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 100)
	svc := newTransferService(f)
	total := f.store.totalBalance()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(context.Background(), transferReq(a, b, 7))
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(context.Background(), transferReq(b, a, 3))
		}()
	}
	wg.Wait()

	assert.True(t, total.Equal(f.store.totalBalance()))
	assert.False(t, f.store.account(a.AccountNumber).Balance.IsNegative())
	assert.False(t, f.store.account(b.AccountNumber).Balance.IsNegative())

	references := map[string]bool{}
	for _, tx := range f.store.transactions() {
		assert.False(t, references[tx.Reference])
		references[tx.Reference] = true
	}
}

func TestTransfer_ReceiverClosedAfterPreCheck(t *testing.T) {
	f := newFixture()
	a := f.openFunded(t, "A", 100)
	b := f.openFunded(t, "B", 0)
	ctx := context.Background()

	f.store.setBeforeTx(func() {
		require.NoError(t, f.accounts.CloseAccount(ctx, b.OwnerID, "moving"))
	})

	_, err := newTransferService(f).Transfer(ctx, transferReq(a, b, 40))
	require.ErrorIs(t, err, models.ErrAccountNotActivated)

	assert.True(t, f.store.account(a.AccountNumber).Balance.Equal(decimal.NewFromInt(100)))
	closed := f.store.account(b.AccountNumber)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)
	assert.True(t, closed.Balance.IsZero())
	assert.Empty(t, f.store.transactions())
}

func TestTransfer_ConcurrentCloseNeverStrandsFunds(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture()
		a := f.openFunded(t, "A", 100)
		b := f.openFunded(t, "B", 0)
		ctx := context.Background()
		svc := newTransferService(f)

		var wg sync.WaitGroup
		var transferErr, closeErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, transferErr = svc.Transfer(ctx, transferReq(a, b, 30))
		}()
		go func() {
			defer wg.Done()
			closeErr = f.accounts.CloseAccount(ctx, b.OwnerID, "")
		}()
		wg.Wait()

		receiver := f.store.account(b.AccountNumber)
		if receiver.Status == domain.AccountStatusClosed {
			require.NoError(t, closeErr)
			require.ErrorIs(t, transferErr, models.ErrAccountNotActivated)
			assert.True(t, receiver.Balance.IsZero())
			assert.True(t, f.store.account(a.AccountNumber).Balance.Equal(decimal.NewFromInt(100)))
		} else {
			require.NoError(t, transferErr)
			require.ErrorIs(t, closeErr, models.ErrAccountNotCleared)
			assert.True(t, receiver.Balance.Equal(decimal.NewFromInt(30)))
		}
		assert.True(t, f.store.totalBalance().Equal(decimal.NewFromInt(100)))
	}
}

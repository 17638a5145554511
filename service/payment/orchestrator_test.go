package payment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
	"github.com/solpay/gateway/service/nats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPayment_NotFound(t *testing.T) {
	svc := newTestService(newMockStore(), newMockGateway(), &mockFeed{})

	_, err := svc.CheckPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestCheckPayment_PendingUnpaid(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusPending)
	store.putUser("user-1", testOutputWallet, nil)

	gw := newMockGateway()
	// Deposit below the 95% threshold of 1 SOL.
	gw.setBalance(p.WalletAddress, 900_000_000)

	svc := newTestService(store, gw, &mockFeed{})
	status, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)

	assert.Equal(t, db.StatusPending, status.Status)
	assert.False(t, status.PaymentReceived)
	assert.False(t, status.FundsSent)
	assert.Equal(t, 0, store.markCompletedN)
	assert.Equal(t, 0, gw.sentCount())
}

func TestCheckPayment_PendingPaid_FullProgression(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusPending)
	store.putUser("user-1", testOutputWallet, nil)

	gw := newMockGateway()
	gw.setBalance(p.WalletAddress, 1_000_000_000)

	events := nats.NewMockPublisher()
	svc := NewService(store, gw, &mockFeed{}, events, nil, testConfig(), testLogger())

	status, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)

	// One check advanced the payment all the way to funds_sent.
	assert.Equal(t, db.StatusCompleted, status.Status)
	assert.True(t, status.PaymentReceived)
	assert.True(t, status.FundsSent)
	assert.Equal(t, 1, gw.sentCount())

	persisted := store.get(p.PaymentID)
	assert.Equal(t, db.StatusCompleted, persisted.Status)
	assert.True(t, persisted.FundsSent)

	published := events.GetPublishedEvents()
	require.Len(t, published, 2)
	assert.Equal(t, nats.EventPaymentCompleted, published[0].Type)
	assert.Equal(t, nats.EventFundsForwarded, published[1].Type)
}

func TestCheckPayment_CompletedRetriesForward(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusCompleted)
	store.putUser("user-1", testOutputWallet, nil)

	gw := newMockGateway()
	gw.setBalance(p.WalletAddress, 1_000_000_000)

	svc := newTestService(store, gw, &mockFeed{})
	status, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)

	assert.True(t, status.FundsSent)
	assert.Equal(t, 1, gw.sentCount())
	// No status transition was attempted: the payment was already completed.
	assert.Equal(t, 0, store.markCompletedN)
}

func TestCheckPayment_ForwardFailureLeavesStateRetryable(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusCompleted)
	// No output wallet: the forward attempt must fail.

	gw := newMockGateway()
	gw.setBalance(p.WalletAddress, 1_000_000_000)

	svc := newTestService(store, gw, &mockFeed{})
	status, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)

	assert.Equal(t, db.StatusCompleted, status.Status)
	assert.False(t, status.FundsSent)
	assert.Equal(t, 0, store.markFundsSentN)

	// Configure the wallet; the next poll succeeds.
	store.putUser("user-1", testOutputWallet, nil)
	status, err = svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.True(t, status.FundsSent)
}

func TestCheckPayment_TerminalStateIsIdempotent(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusCompleted)
	p.FundsSent = true
	store.put(p)
	store.putUser("user-1", testOutputWallet, nil)

	gw := newMockGateway()
	gw.setBalance(p.WalletAddress, 1_000_000_000)

	svc := newTestService(store, gw, &mockFeed{})

	first, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)
	second, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, first.FundsSent)
	assert.Equal(t, 0, gw.sentCount())
	assert.Equal(t, 0, store.markFundsSentN)
}

func TestCheckPayment_MarkCompletedErrorLeavesPending(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusPending)
	store.putUser("user-1", testOutputWallet, nil)
	store.markCompletedErr = errors.New("store unavailable")

	gw := newMockGateway()
	gw.setBalance(p.WalletAddress, 1_000_000_000)

	svc := newTestService(store, gw, &mockFeed{})
	status, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)

	// The check completed with a consistent snapshot and no forwarding.
	assert.Equal(t, db.StatusPending, status.Status)
	assert.False(t, status.FundsSent)
	assert.Equal(t, 0, gw.sentCount())
}

func TestCheckPayment_ConcurrentChecksForwardExactlyOnce(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusCompleted)
	store.putUser("user-1", testOutputWallet, nil)

	gw := newMockGateway()
	gw.setBalance(p.WalletAddress, 1_000_000_000)

	svc := newTestService(store, gw, &mockFeed{})

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.CheckPayment(context.Background(), p.PaymentID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gw.sentCount(), "exactly one forwarding transaction must be broadcast")
	assert.Equal(t, 1, store.markFundsSentWins)
	assert.True(t, store.get(p.PaymentID).FundsSent)
}

func TestCheckPayment_OverpaymentForwardsEverything(t *testing.T) {
	store := newMockStore()
	p := seedForwardablePayment(t, store, db.StatusPending)
	p.SolAmount = decimal.NewFromInt(1)
	store.put(p)
	feePct := decimal.Zero
	store.putUser("user-1", testOutputWallet, &feePct)

	gw := newMockGateway()
	// Deposit of 2 SOL against an expected 1 SOL: the whole balance moves.
	gw.setBalance(p.WalletAddress, 2_000_000_000)

	svc := newTestService(store, gw, &mockFeed{})
	status, err := svc.CheckPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)
	require.True(t, status.FundsSent)

	_, to, lamports := decodeTransfer(t, gw.lastSent(), 0)
	assert.Equal(t, testOutputWallet, to)
	assert.Equal(t, uint64(2_000_000_000-5_000), lamports)
}

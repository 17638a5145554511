package db

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestPayment(t *testing.T, store *TestStore, paymentID string) *Payment {
	t.Helper()

	p, err := store.CreatePayment(context.Background(), CreatePaymentParams{
		PaymentID:     paymentID,
		WalletAddress: paymentID,
		SolAmount:     decimal.RequireFromString("1.250000000"),
		UserID:        "user-1",
		PrivateKey:    "5J3mBbAH58CpQ3Y5RNJpUKPE62SQ5tfcvU2JpbnkeyhfsYB1Jcn",
	})
	require.NoError(t, err)
	return p
}

func TestCreateAndGetPayment(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	created := createTestPayment(t, store, "So11111111111111111111111111111111111111112")

	assert.Equal(t, StatusPending, created.Status)
	assert.False(t, created.FundsSent)
	assert.True(t, created.SolAmount.Equal(decimal.RequireFromString("1.25")))

	got, err := store.GetPayment(context.Background(), created.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, created.PaymentID, got.PaymentID)
	assert.Equal(t, created.WalletAddress, got.WalletAddress)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.SolAmount.Equal(created.SolAmount))
}

func TestGetPayment_NotFound(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	_, err := store.GetPayment(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMarkCompleted_OnlyOnce(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	p := createTestPayment(t, store, "So11111111111111111111111111111111111111112")

	updated, err := store.MarkCompleted(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.True(t, updated)

	// Second transition is a no-op.
	updated, err = store.MarkCompleted(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.False(t, updated)

	got, err := store.GetPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestMarkFundsSent_OptimisticGuard(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	p := createTestPayment(t, store, "So11111111111111111111111111111111111111112")

	updated, err := store.MarkFundsSent(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.True(t, updated)

	// Only one caller can ever win the conditional update.
	updated, err = store.MarkFundsSent(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.False(t, updated)

	got, err := store.GetPayment(context.Background(), p.PaymentID)
	require.NoError(t, err)
	assert.True(t, got.FundsSent)
}

func TestUserConfig_Roundtrip(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	_, err := store.GetUserConfig(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	uc, err := store.UpsertUserConfig(context.Background(), UpsertUserConfigParams{
		UserID:        "user-1",
		OutputWallet:  "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
		FeePercentage: decimal.RequireFromString("3.5"),
	})
	require.NoError(t, err)
	require.NotNil(t, uc.OutputWallet)
	assert.Equal(t, "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA", *uc.OutputWallet)
	require.NotNil(t, uc.FeePercentage)
	assert.True(t, uc.FeePercentage.Equal(decimal.RequireFromString("3.5")))

	// Upsert overwrites in place.
	uc, err = store.UpsertUserConfig(context.Background(), UpsertUserConfigParams{
		UserID:        "user-1",
		OutputWallet:  "SysvarRent111111111111111111111111111111111",
		FeePercentage: decimal.Zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "SysvarRent111111111111111111111111111111111", *uc.OutputWallet)
	assert.True(t, uc.FeePercentage.Equal(decimal.Zero))
}

func TestListPayments(t *testing.T) {
	store := NewTestStore(t)
	defer store.Close()
	store.Cleanup(t)

	createTestPayment(t, store, "So11111111111111111111111111111111111111112")
	createTestPayment(t, store, "SysvarRent111111111111111111111111111111111")

	payments, err := store.ListPayments(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, payments, 2)

	payments, err = store.ListPayments(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

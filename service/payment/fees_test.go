package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestResolveFeePercentage(t *testing.T) {
	defaultPct := testConfig().DefaultFeePercentage

	tests := []struct {
		name  string
		setup func(store *mockStore)
		want  decimal.Decimal
	}{
		{
			name: "configured value wins",
			setup: func(store *mockStore) {
				pct := decimal.RequireFromString("1.5")
				store.putUser("user-1", testOutputWallet, &pct)
			},
			want: decimal.RequireFromString("1.5"),
		},
		{
			name: "zero is a valid configured value",
			setup: func(store *mockStore) {
				pct := decimal.Zero
				store.putUser("user-1", testOutputWallet, &pct)
			},
			want: decimal.Zero,
		},
		{
			name:  "unknown user falls back to default",
			setup: func(store *mockStore) {},
			want:  defaultPct,
		},
		{
			name: "unset value falls back to default",
			setup: func(store *mockStore) {
				store.putUser("user-1", testOutputWallet, nil)
			},
			want: defaultPct,
		},
		{
			name: "negative value falls back to default",
			setup: func(store *mockStore) {
				pct := decimal.RequireFromString("-1")
				store.putUser("user-1", testOutputWallet, &pct)
			},
			want: defaultPct,
		},
		{
			name: "100 percent falls back to default",
			setup: func(store *mockStore) {
				pct := decimal.NewFromInt(100)
				store.putUser("user-1", testOutputWallet, &pct)
			},
			want: defaultPct,
		},
		{
			name: "store error falls back to default",
			setup: func(store *mockStore) {
				store.getUserErr = errors.New("store unavailable")
			},
			want: defaultPct,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockStore()
			tt.setup(store)
			svc := newTestService(store, newMockGateway(), &mockFeed{})

			got := svc.resolveFeePercentage(context.Background(), "user-1")
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

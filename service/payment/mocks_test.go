package payment

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockStore is an in-memory Store with the same conditional-update semantics
// as the real pgx-backed store.
type mockStore struct {
	mu       sync.Mutex
	payments map[string]*db.Payment
	users    map[string]*db.UserConfig

	getPaymentErr     error
	getUserErr        error
	markCompletedErr  error
	markFundsSentErr  error
	markCompletedN    int
	markFundsSentN    int
	markFundsSentWins int
}

func newMockStore() *mockStore {
	return &mockStore{
		payments: make(map[string]*db.Payment),
		users:    make(map[string]*db.UserConfig),
	}
}

func (m *mockStore) put(p *db.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.PaymentID] = &cp
}

func (m *mockStore) putUser(userID, outputWallet string, feePct *decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uc := &db.UserConfig{UserID: userID, FeePercentage: feePct}
	if outputWallet != "" {
		uc.OutputWallet = &outputWallet
	}
	m.users[userID] = uc
}

func (m *mockStore) CreatePayment(ctx context.Context, params db.CreatePaymentParams) (*db.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &db.Payment{
		PaymentID:     params.PaymentID,
		WalletAddress: params.WalletAddress,
		SolAmount:     params.SolAmount,
		Status:        db.StatusPending,
		UserID:        params.UserID,
		PrivateKey:    params.PrivateKey,
	}
	m.payments[p.PaymentID] = p
	cp := *p
	return &cp, nil
}

func (m *mockStore) GetPayment(ctx context.Context, paymentID string) (*db.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getPaymentErr != nil {
		return nil, m.getPaymentErr
	}
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, db.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) MarkCompleted(ctx context.Context, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCompletedN++
	if m.markCompletedErr != nil {
		return false, m.markCompletedErr
	}
	p, ok := m.payments[paymentID]
	if !ok || p.Status != db.StatusPending {
		return false, nil
	}
	p.Status = db.StatusCompleted
	return true, nil
}

func (m *mockStore) MarkFundsSent(ctx context.Context, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markFundsSentN++
	if m.markFundsSentErr != nil {
		return false, m.markFundsSentErr
	}
	p, ok := m.payments[paymentID]
	if !ok || p.FundsSent {
		return false, nil
	}
	p.FundsSent = true
	m.markFundsSentWins++
	return true, nil
}

func (m *mockStore) GetUserConfig(ctx context.Context, userID string) (*db.UserConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getUserErr != nil {
		return nil, m.getUserErr
	}
	uc, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, db.ErrNotFound)
	}
	cp := *uc
	return &cp, nil
}

func (m *mockStore) get(paymentID string) *db.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.payments[paymentID]
	cp := *p
	return &cp
}

// mockGateway is a chain gateway with injectable balances and broadcast
// behavior. It records every broadcast transaction.
type mockGateway struct {
	mu         sync.Mutex
	balances   map[string]uint64
	balanceErr error
	hashErr    error
	sendErr    error
	sent       []*solana.Transaction
}

func newMockGateway() *mockGateway {
	return &mockGateway{balances: make(map[string]uint64)}
}

func (g *mockGateway) setBalance(address string, lamports uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[address] = lamports
}

func (g *mockGateway) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.balanceErr != nil {
		return 0, g.balanceErr
	}
	return g.balances[account.String()], nil
}

func (g *mockGateway) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	if g.hashErr != nil {
		return solana.Hash{}, g.hashErr
	}
	var h solana.Hash
	copy(h[:], []byte("mock-blockhash-0123456789abcdef0"))
	return h, nil
}

func (g *mockGateway) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return solana.Signature{}, g.sendErr
	}
	g.sent = append(g.sent, tx)
	var sig solana.Signature
	copy(sig[:], []byte("mock-signature"))
	return sig, nil
}

func (g *mockGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

func (g *mockGateway) lastSent() *solana.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.sent) == 0 {
		return nil
	}
	return g.sent[len(g.sent)-1]
}

// mockFeed returns a fixed SOL/USD price.
type mockFeed struct {
	price decimal.Decimal
	err   error
}

func (f *mockFeed) Price(ctx context.Context) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.price, nil
}

func testConfig() Config {
	return Config{
		FeeAccount:           solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
		NetworkFeeReserve:    5000,
		DefaultFeePercentage: decimal.RequireFromString("2.0"),
	}
}

func newTestService(store Store, gw Gateway, feed PriceFeed) *Service {
	return NewService(store, gw, feed, nil, nil, testConfig(), testLogger())
}

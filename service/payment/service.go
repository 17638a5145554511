// Package payment implements the payment lifecycle: creating custodial
// payments, verifying deposits against the chain, and forwarding received
// funds to the user's payout wallet.
package payment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
	"github.com/solpay/gateway/service/metrics"
	"github.com/solpay/gateway/service/nats"
)

// Store is the subset of database operations the payment core needs.
// *db.Store satisfies this; tests substitute mocks.
type Store interface {
	CreatePayment(ctx context.Context, params db.CreatePaymentParams) (*db.Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*db.Payment, error)
	MarkCompleted(ctx context.Context, paymentID string) (bool, error)
	MarkFundsSent(ctx context.Context, paymentID string) (bool, error)
	GetUserConfig(ctx context.Context, userID string) (*db.UserConfig, error)
}

// Gateway is the chain gateway: balance lookup, blockhash fetch, broadcast.
// *solana.Client (service/solana) satisfies this.
type Gateway interface {
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// PriceFeed provides the current SOL/USD price.
type PriceFeed interface {
	Price(ctx context.Context) (decimal.Decimal, error)
}

// Config holds the process-wide settings the payment core needs. It is
// constructed once at startup and never mutated.
type Config struct {
	// FeeAccount receives the service-fee leg of every forwarding transaction.
	FeeAccount solana.PublicKey

	// NetworkFeeReserve is the fixed lamport amount withheld from every
	// forwarding transaction to cover the chain's own fee.
	NetworkFeeReserve uint64

	// DefaultFeePercentage applies when a user has no configured fee.
	DefaultFeePercentage decimal.Decimal
}

// Service drives the payment lifecycle state machine.
type Service struct {
	store   Store
	gateway Gateway
	feed    PriceFeed
	events  nats.Publisher // optional; nil disables event publishing
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config

	locks keyedMutex
}

// NewService creates the payment service. The events publisher and metrics
// may be nil.
func NewService(store Store, gateway Gateway, feed PriceFeed, events nats.Publisher, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		feed:    feed,
		events:  events,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// publishEvent publishes a lifecycle event on a best-effort basis.
// Event delivery must never affect payment state.
func (s *Service) publishEvent(ctx context.Context, event *nats.PaymentEvent) {
	if s.events == nil {
		return
	}
	err := s.events.PublishPaymentEvent(ctx, event)
	if s.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		s.metrics.RecordNATSEventPublished(event.Type, status)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment event",
			"type", event.Type,
			"payment_id", event.PaymentID,
			"error", err,
		)
	}
}

// keyedMutex provides per-payment mutual exclusion so that concurrent status
// checks for the same payment cannot both reach the forwarder.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/solpay/gateway/service/db"
	"github.com/solpay/gateway/service/nats"
)

// ErrPriceUnavailable marks a payment creation failure caused by the price
// feed rather than the caller's input or local state.
var ErrPriceUnavailable = errors.New("price unavailable")

// CreatePayment generates a fresh custodial keypair and persists a new
// pending payment. The public address doubles as the payment ID and the
// deposit address. The expected SOL amount is computed from the current
// price feed quote; no payment can be created without a price.
func (s *Service) CreatePayment(ctx context.Context, usdAmount decimal.Decimal, userID string) (*db.Payment, error) {
	if !usdAmount.IsPositive() {
		return nil, fmt.Errorf("usd amount must be positive, got %s", usdAmount)
	}
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	price, err := s.feed.Price(ctx)
	if err != nil {
		s.recordCreated("error")
		return nil, fmt.Errorf("failed to fetch SOL price: %w: %w", ErrPriceUnavailable, err)
	}

	// SolAmount is stored with 9 decimal places, matching lamport resolution.
	solAmount := usdAmount.DivRound(price, 9)

	wallet := solana.NewWallet()
	address := wallet.PublicKey().String()

	p, err := s.store.CreatePayment(ctx, db.CreatePaymentParams{
		PaymentID:     address,
		WalletAddress: address,
		SolAmount:     solAmount,
		UserID:        userID,
		PrivateKey:    wallet.PrivateKey.String(),
	})
	if err != nil {
		s.recordCreated("error")
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}

	s.logger.InfoContext(ctx, "payment created",
		"payment_id", p.PaymentID,
		"user_id", userID,
		"usd_amount", usdAmount.String(),
		"sol_amount", solAmount.String(),
	)
	s.recordCreated("success")
	s.publishEvent(ctx, nats.NewPaymentEvent(
		nats.EventPaymentCreated, p.PaymentID, p.UserID, p.SolAmount.String(), p.Status, p.FundsSent,
	))

	return p, nil
}

func (s *Service) recordCreated(status string) {
	if s.metrics != nil {
		s.metrics.RecordPaymentCreated(status)
	}
}

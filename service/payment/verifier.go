package payment

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

var (
	lamportsPerSOL = decimal.New(1, 9)

	// paymentTolerance allows 5% downward slippage between the quote taken at
	// creation time and the amount actually deposited.
	paymentTolerance = decimal.RequireFromString("0.95")
)

// isPaid reports whether the deposit address holds at least 95% of the
// expected amount. Any gateway error is treated as "not yet paid": transient
// RPC failures must not corrupt state, and the next poll retries.
func (s *Service) isPaid(ctx context.Context, address string, expected decimal.Decimal) bool {
	account, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		s.logger.ErrorContext(ctx, "invalid deposit address", "address", address, "error", err)
		return false
	}

	lamports, err := s.gateway.Balance(ctx, account)
	if err != nil {
		s.logger.WarnContext(ctx, "balance check failed, treating as unpaid",
			"address", address,
			"error", err,
		)
		return false
	}

	balanceSOL := decimal.NewFromUint64(lamports).Div(lamportsPerSOL)
	threshold := expected.Mul(paymentTolerance)

	paid := balanceSOL.GreaterThanOrEqual(threshold)
	s.logger.DebugContext(ctx, "verified deposit balance",
		"address", address,
		"balance_sol", balanceSOL.String(),
		"expected_sol", expected.String(),
		"paid", paid,
	)
	return paid
}

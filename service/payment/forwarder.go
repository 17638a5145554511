package payment

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
)

// forward moves the custodial balance to the user's payout wallet, splitting
// off the configured service fee to the fee account. It returns true only
// when the outbound transaction was accepted for broadcast. All failures are
// logged and reported as false; retries happen through re-polling, never
// inside this call.
func (s *Service) forward(ctx context.Context, paymentID, userID string) bool {
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load payment for forwarding",
			"payment_id", paymentID,
			"error", err,
		)
		return s.forwardFailed("load_payment")
	}

	payerKey, err := solana.PrivateKeyFromBase58(p.PrivateKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to decode custodial private key",
			"payment_id", paymentID,
			"error", err,
		)
		return s.forwardFailed("bad_key")
	}
	payer := payerKey.PublicKey()

	recipient, ok := s.resolveOutputWallet(ctx, paymentID, userID)
	if !ok {
		return s.forwardFailed("no_output_wallet")
	}

	balance, err := s.gateway.Balance(ctx, payer)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch custodial balance",
			"payment_id", paymentID,
			"error", err,
		)
		return s.forwardFailed("balance")
	}

	feePct := s.resolveFeePercentage(ctx, userID)
	feeLamports := feeAmount(balance, feePct)

	// Signed arithmetic so an underfunded address cannot wrap around.
	transferLamports := int64(balance) - int64(s.cfg.NetworkFeeReserve) - int64(feeLamports)
	if transferLamports <= 0 {
		s.logger.ErrorContext(ctx, "insufficient balance to cover fees and transfer",
			"payment_id", paymentID,
			"user_id", userID,
			"balance", balance,
			"fee_lamports", feeLamports,
			"reserve", s.cfg.NetworkFeeReserve,
		)
		return s.forwardFailed("insufficient_balance")
	}

	instructions := []solana.Instruction{
		system.NewTransferInstruction(uint64(transferLamports), payer, recipient).Build(),
	}
	if feeLamports > 0 {
		instructions = append(instructions,
			system.NewTransferInstruction(feeLamports, payer, s.cfg.FeeAccount).Build(),
		)
	}

	// Fetch the blockhash immediately before signing to avoid staleness
	// rejection by the cluster.
	blockhash, err := s.gateway.LatestBlockhash(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch blockhash",
			"payment_id", paymentID,
			"error", err,
		)
		return s.forwardFailed("blockhash")
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build forwarding transaction",
			"payment_id", paymentID,
			"error", err,
		)
		return s.forwardFailed("build")
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &payerKey
		}
		return nil
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to sign forwarding transaction",
			"payment_id", paymentID,
			"error", err,
		)
		return s.forwardFailed("sign")
	}

	sig, err := s.gateway.SendTransaction(ctx, tx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to broadcast forwarding transaction",
			"payment_id", paymentID,
			"user_id", userID,
			"error", err,
		)
		return s.forwardFailed("broadcast")
	}

	s.logger.InfoContext(ctx, "funds forwarded",
		"payment_id", paymentID,
		"user_id", userID,
		"signature", sig.String(),
		"transfer_lamports", transferLamports,
		"fee_lamports", feeLamports,
	)
	if s.metrics != nil {
		s.metrics.RecordForwardAttempt("success")
		s.metrics.RecordForwardedLamports("principal", uint64(transferLamports))
		if feeLamports > 0 {
			s.metrics.RecordForwardedLamports("fee", feeLamports)
		}
	}
	return true
}

// resolveOutputWallet resolves and validates the user's payout address.
func (s *Service) resolveOutputWallet(ctx context.Context, paymentID, userID string) (solana.PublicKey, bool) {
	uc, err := s.store.GetUserConfig(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch user output wallet",
			"payment_id", paymentID,
			"user_id", userID,
			"error", err,
		)
		return solana.PublicKey{}, false
	}
	if uc.OutputWallet == nil {
		s.logger.ErrorContext(ctx, "output wallet not configured",
			"payment_id", paymentID,
			"user_id", userID,
		)
		return solana.PublicKey{}, false
	}

	recipient, err := solana.PublicKeyFromBase58(*uc.OutputWallet)
	if err != nil {
		s.logger.ErrorContext(ctx, "configured output wallet is not a valid address",
			"payment_id", paymentID,
			"user_id", userID,
			"output_wallet", *uc.OutputWallet,
			"error", err,
		)
		return solana.PublicKey{}, false
	}
	return recipient, true
}

func (s *Service) forwardFailed(reason string) bool {
	if s.metrics != nil {
		s.metrics.RecordForwardAttempt(reason)
	}
	return false
}

// feeAmount computes floor(balance * pct / 100) in lamports.
func feeAmount(balance uint64, pct decimal.Decimal) uint64 {
	if !pct.IsPositive() {
		return 0
	}
	fee := decimal.NewFromUint64(balance).Mul(pct).Div(decimal.NewFromInt(100)).Floor()
	return uint64(fee.IntPart())
}

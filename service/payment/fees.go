package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// resolveFeePercentage looks up the user's configured fee percentage.
// It never fails: a missing record, an unset value, an out-of-range value, or
// a store error all fall back to the process default. Forwarding must never
// stall because of missing optional configuration.
func (s *Service) resolveFeePercentage(ctx context.Context, userID string) decimal.Decimal {
	uc, err := s.store.GetUserConfig(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch user fee percentage, using default",
			"user_id", userID,
			"default", s.cfg.DefaultFeePercentage.String(),
			"error", err,
		)
		return s.cfg.DefaultFeePercentage
	}

	if uc.FeePercentage == nil {
		return s.cfg.DefaultFeePercentage
	}

	pct := *uc.FeePercentage
	if pct.IsNegative() || pct.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		s.logger.WarnContext(ctx, "configured fee percentage out of range, using default",
			"user_id", userID,
			"fee_percentage", pct.String(),
		)
		return s.cfg.DefaultFeePercentage
	}

	return pct
}

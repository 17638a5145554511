package payment

import (
	"context"

	"github.com/solpay/gateway/service/db"
	"github.com/solpay/gateway/service/nats"
)

// Status is the consistent snapshot returned by every status check.
type Status struct {
	PaymentID       string
	Status          string
	PaymentReceived bool
	FundsSent       bool
}

// CheckPayment drives the lifecycle state machine for one payment:
//
//	(pending, false)   -> verify deposit; on success complete, then forward
//	(completed, false) -> forward again (a prior attempt failed)
//	(completed, true)  -> terminal, no action
//
// Checks are idempotent: repeated polling either makes forward progress or is
// a no-op. A keyed mutex serializes checks per payment so concurrent polls
// cannot both reach the forwarder; the conditional funds_sent update in the
// store is the durable guard underneath it.
func (s *Service) CheckPayment(ctx context.Context, paymentID string) (*Status, error) {
	unlock := s.locks.lock(paymentID)
	defer unlock()

	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch {
	case p.Status == db.StatusPending:
		if s.isPaid(ctx, p.WalletAddress, p.SolAmount) {
			transitioned, err := s.store.MarkCompleted(ctx, p.PaymentID)
			if err != nil {
				// Transient store failure: state is unchanged, the next poll
				// retries the transition.
				s.logger.WarnContext(ctx, "failed to mark payment completed",
					"payment_id", p.PaymentID,
					"error", err,
				)
				break
			}
			p.Status = db.StatusCompleted
			if transitioned {
				s.logger.InfoContext(ctx, "payment completed",
					"payment_id", p.PaymentID,
					"user_id", p.UserID,
				)
				s.publishEvent(ctx, nats.NewPaymentEvent(
					nats.EventPaymentCompleted, p.PaymentID, p.UserID, p.SolAmount.String(), p.Status, p.FundsSent,
				))
			}
			s.forwardAndMark(ctx, p)
		}

	case p.Status == db.StatusCompleted && !p.FundsSent:
		s.forwardAndMark(ctx, p)

	default:
		// Terminal: funds already forwarded.
		s.logger.DebugContext(ctx, "payment already processed",
			"payment_id", p.PaymentID,
			"status", p.Status,
		)
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentCheck(stateLabel(p))
	}

	return &Status{
		PaymentID:       p.PaymentID,
		Status:          p.Status,
		PaymentReceived: p.Status == db.StatusCompleted,
		FundsSent:       p.FundsSent,
	}, nil
}

// forwardAndMark invokes the forwarder and, on success, flips funds_sent via
// the conditional update. The caller must hold the payment's lock.
func (s *Service) forwardAndMark(ctx context.Context, p *db.Payment) {
	if p.FundsSent {
		return
	}

	if !s.forward(ctx, p.PaymentID, p.UserID) {
		return
	}

	won, err := s.store.MarkFundsSent(ctx, p.PaymentID)
	if err != nil {
		// The transaction is already broadcast; the flag will be retried on
		// the next poll. Logged loudly because a crash here risks a second
		// forwarding attempt against an already-drained address.
		s.logger.ErrorContext(ctx, "forwarded funds but failed to mark funds_sent",
			"payment_id", p.PaymentID,
			"error", err,
		)
		return
	}

	p.FundsSent = true
	if won {
		s.publishEvent(ctx, nats.NewPaymentEvent(
			nats.EventFundsForwarded, p.PaymentID, p.UserID, p.SolAmount.String(), p.Status, p.FundsSent,
		))
	}
}

func stateLabel(p *db.Payment) string {
	switch {
	case p.Status == db.StatusPending:
		return "pending"
	case !p.FundsSent:
		return "completed"
	default:
		return "funds_sent"
	}
}

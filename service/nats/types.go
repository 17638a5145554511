package nats

import (
	"time"

	"github.com/google/uuid"
)

// Event types published over the payment lifecycle.
const (
	EventPaymentCreated   = "payment.created"
	EventPaymentCompleted = "payment.completed"
	EventFundsForwarded   = "payment.funds_forwarded"
)

// PaymentEvent is a payment lifecycle event published to JetStream.
type PaymentEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	UserID    string    `json:"user_id"`
	SolAmount string    `json:"sol_amount,omitempty"`
	Status    string    `json:"status"`
	FundsSent bool      `json:"funds_sent"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPaymentEvent creates an event with a fresh event ID and timestamp.
func NewPaymentEvent(eventType, paymentID, userID, solAmount, status string, fundsSent bool) *PaymentEvent {
	return &PaymentEvent{
		EventID:   uuid.New().String(),
		Type:      eventType,
		PaymentID: paymentID,
		UserID:    userID,
		SolAmount: solAmount,
		Status:    status,
		FundsSent: fundsSent,
		Timestamp: time.Now().UTC(),
	}
}

package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPaymentEvent(t *testing.T) {
	before := time.Now().UTC()
	event := NewPaymentEvent(EventPaymentCompleted, "deposit111", "user-1", "0.25", "completed", false)
	after := time.Now().UTC()

	_, err := uuid.Parse(event.EventID)
	require.NoError(t, err)

	assert.Equal(t, EventPaymentCompleted, event.Type)
	assert.Equal(t, "deposit111", event.PaymentID)
	assert.Equal(t, "user-1", event.UserID)
	assert.Equal(t, "0.25", event.SolAmount)
	assert.Equal(t, "completed", event.Status)
	assert.False(t, event.FundsSent)
	assert.False(t, event.Timestamp.Before(before))
	assert.False(t, event.Timestamp.After(after))
}

func TestNewPaymentEvent_UniqueIDs(t *testing.T) {
	a := NewPaymentEvent(EventPaymentCreated, "deposit111", "user-1", "1", "pending", false)
	b := NewPaymentEvent(EventPaymentCreated, "deposit111", "user-1", "1", "pending", false)
	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestMockPublisher(t *testing.T) {
	pub := NewMockPublisher()

	event := NewPaymentEvent(EventFundsForwarded, "deposit111", "user-1", "1", "completed", true)
	require.NoError(t, pub.PublishPaymentEvent(context.Background(), event))

	published := pub.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, event.EventID, published[0].EventID)

	pub.SetPublishError(errors.New("nats down"))
	assert.Error(t, pub.PublishPaymentEvent(context.Background(), event))
	assert.Len(t, pub.GetPublishedEvents(), 1)

	require.NoError(t, pub.Close())
	assert.True(t, pub.IsClosed())
}

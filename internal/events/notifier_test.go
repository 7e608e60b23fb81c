package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestNotifyPublishesUnderEventType(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewNotifier(pub, zap.NewNop())

	n.Notify(context.Background(), BillingEvent{
		Type:       RoutingSubscriptionCreated,
		UserID:     "1",
		CustomerID: "cus_123",
		Status:     "active",
		OccurredAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	require.Equal(t, []string{RoutingSubscriptionCreated}, pub.keys)
	var decoded BillingEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &decoded))
	assert.Equal(t, "cus_123", decoded.CustomerID)
	assert.Equal(t, "active", decoded.Status)
}

func TestNotifySwallowsPublishErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	n := NewNotifier(pub, zap.NewNop())

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), BillingEvent{Type: RoutingPaymentRecorded})
	})
	assert.Len(t, pub.keys, 1)

	var nilNotifier *Notifier
	assert.NotPanics(t, func() {
		nilNotifier.Notify(context.Background(), BillingEvent{Type: RoutingPaymentRecorded})
	})
}

func TestNoopPublisher(t *testing.T) {
	p := NewNoopPublisher(zap.NewNop())
	assert.NoError(t, p.Publish(context.Background(), "x", []byte("{}")))
	assert.NoError(t, p.Close())
}

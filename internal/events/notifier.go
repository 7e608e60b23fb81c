package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	RoutingSubscriptionCreated       = "subscription.created"
	RoutingSubscriptionStatusChanged = "subscription.status_changed"
	RoutingPaymentRecorded           = "payment.recorded"
)

// BillingEvent is the outbound notification emitted after a billing change commits.
type BillingEvent struct {
	Type                 string    `json:"type"`
	UserID               string    `json:"userId"`
	CustomerID           string    `json:"customerId"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId,omitempty"`
	Status               string    `json:"status,omitempty"`
	SourceEventID        string    `json:"sourceEventId,omitempty"`
	OccurredAt           time.Time `json:"occurredAt"`
}

// Notifier publishes billing events. Delivery is best effort: the local
// records are already committed when it runs, so failures are only logged.
type Notifier struct {
	publisher Publisher
	log       *zap.Logger
}

func NewNotifier(publisher Publisher, log *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, log: log.Named("events.notifier")}
}

func (n *Notifier) Notify(ctx context.Context, evt BillingEvent) {
	if n == nil || n.publisher == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		n.log.Warn("failed to encode billing event", zap.String("type", evt.Type), zap.Error(err))
		return
	}
	if err := n.publisher.Publish(ctx, evt.Type, payload); err != nil {
		n.log.Warn("failed to publish billing event",
			zap.String("type", evt.Type),
			zap.String("customer_id", evt.CustomerID),
			zap.Error(err),
		)
	}
}

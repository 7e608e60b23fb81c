package domain

import (
	"context"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
)

type CreateSubscriptionRequest struct {
	CustomerID string
	PlanID     snowflake.ID
	IsManual   int
}

// CreateSubscriptionResponse returns the gateway subscription object as the
// gateway sent it, plus the local mirror.
type CreateSubscriptionResponse struct {
	Subscription *Subscription
	Gateway      json.RawMessage
	ClientSecret string
}

type CurrentSubscription struct {
	Subscription *Subscription `json:"subscription"`
	Active       bool          `json:"active"`
}

type Service interface {
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)
	GetCurrent(ctx context.Context, userID snowflake.ID) (*CurrentSubscription, error)
}

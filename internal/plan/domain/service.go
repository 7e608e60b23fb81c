package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// GatewayPrice identifies the provider product and recurring price billed for a plan.
type GatewayPrice struct {
	ProductID string
	PriceID   string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
	Update(ctx context.Context, req UpdateRequest) (*Plan, error)
	Delete(ctx context.Context, id snowflake.ID) error
	GetByUserType(ctx context.Context, userType int) (*Plan, error)
	GetActiveByID(ctx context.Context, id snowflake.ID) (*Plan, error)
	// EnsureGatewayPrice returns the stored product and price for the plan,
	// provisioning and persisting them when the plan has none yet.
	EnsureGatewayPrice(ctx context.Context, plan *Plan) (*GatewayPrice, error)
}

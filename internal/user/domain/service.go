package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	Email    string
	Password string
	Role     string
	UserType int
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error)
}

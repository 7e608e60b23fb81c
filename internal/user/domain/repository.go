package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByStripeCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*User, error)
	FindByStripeCustomerIDForUpdate(ctx context.Context, db *gorm.DB, customerID string) (*User, error)
	UpdateStripeCustomerID(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string) error
	UpdateSubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, state SubscriptionState) error
}

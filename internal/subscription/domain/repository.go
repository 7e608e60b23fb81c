package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByStripeID(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*Subscription, error)
	FindByStripeIDForUpdate(ctx context.Context, db *gorm.DB, stripeSubscriptionID string) (*Subscription, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, update StatusUpdate) error
}

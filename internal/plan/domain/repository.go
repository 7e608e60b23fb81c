package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindDuplicate(ctx context.Context, db *gorm.DB, name string, interval int, amount float64) (*Plan, error)
	ListByStatus(ctx context.Context, db *gorm.DB, status int) ([]Plan, error)
	FindActiveByUserType(ctx context.Context, db *gorm.DB, userType int) (*Plan, error)
	Update(ctx context.Context, db *gorm.DB, plan *Plan) error
	UpdateGatewayIDs(ctx context.Context, db *gorm.DB, id snowflake.ID, productID, priceID string) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}

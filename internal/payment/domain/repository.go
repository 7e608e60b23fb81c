package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/pkg/db/option"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertPayment reports false when a payment for the same event already exists.
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, opts ...option.QueryOption) ([]*Payment, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, outcome string, processedAt time.Time) error
	// ListUnprocessed returns ledger rows still pending, oldest first.
	ListUnprocessed(ctx context.Context, db *gorm.DB, receivedBefore time.Time, limit int) ([]*EventRecord, error)
}

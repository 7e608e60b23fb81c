package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/inspectconnect/internal/migration"
	"github.com/smallbiznis/inspectconnect/internal/payment/domain"
	"github.com/smallbiznis/inspectconnect/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var receivedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func newEvent(node *snowflake.Node, providerEventID string) *domain.EventRecord {
	return &domain.EventRecord{
		ID:              node.Generate(),
		Provider:        "stripe",
		ProviderEventID: providerEventID,
		EventType:       "invoice.payment_succeeded",
		CustomerID:      "cus_123",
		Payload:         datatypes.JSON(`{"id":"` + providerEventID + `"}`),
		ReceivedAt:      receivedAt,
	}
}

func newPayment(node *snowflake.Node, eventID string) *domain.Payment {
	return &domain.Payment{
		ID:          node.Generate(),
		UserID:      node.Generate(),
		EventID:     eventID,
		EventType:   "invoice.payment_succeeded",
		CustomerID:  "cus_123",
		Amount:      4999,
		Currency:    "usd",
		Status:      domain.StatusPaid,
		ProcessedAt: receivedAt,
		CreatedAt:   receivedAt,
	}
}

func TestInsertEventIgnoresRedelivery(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.Provide()

	inserted, err := repo.InsertEvent(ctx, db, newEvent(node, "evt_1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertEvent(ctx, db, newEvent(node, "evt_1"))
	require.NoError(t, err)
	assert.False(t, inserted)

	stored, err := repo.FindEvent(ctx, db, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.ProcessedAt)
	assert.Equal(t, "cus_123", stored.CustomerID)
}

func TestInsertPaymentIgnoresSameEvent(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.Provide()

	first := newPayment(node, "evt_1")
	inserted, err := repo.InsertPayment(ctx, db, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertPayment(ctx, db, newPayment(node, "evt_1"))
	require.NoError(t, err)
	assert.False(t, inserted)

	items, err := repo.ListByUser(ctx, db, first.UserID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, first.ID, items[0].ID)
}

// mysql has no ON CONFLICT; the dialector must render its own upsert.
func TestInsertsRenderMySQLUpsert(t *testing.T) {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/inspectconnect?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	require.NoError(t, db.Callback().Create().After("gorm:create").Register("test:capture_sql", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := repository.Provide()

	_, err = repo.InsertEvent(context.Background(), db, newEvent(node, "evt_1"))
	require.NoError(t, err)
	_, err = repo.InsertPayment(context.Background(), db, newPayment(node, "evt_1"))
	require.NoError(t, err)

	require.Len(t, statements, 2)
	for _, stmt := range statements {
		assert.Contains(t, stmt, "ON DUPLICATE KEY UPDATE")
		assert.NotContains(t, stmt, "ON CONFLICT")
	}
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/inspectconnect/internal/cache"
	"github.com/smallbiznis/inspectconnect/internal/clock"
	"github.com/smallbiznis/inspectconnect/internal/gateway/gatewaytest"
	"github.com/smallbiznis/inspectconnect/internal/migration"
	"github.com/smallbiznis/inspectconnect/internal/plan/domain"
	"github.com/smallbiznis/inspectconnect/internal/plan/repository"
	"github.com/smallbiznis/inspectconnect/internal/plan/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newService(t *testing.T) (domain.Service, *gatewaytest.Fake, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	gw := gatewaytest.New()
	svc := service.New(service.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:    repository.Provide(),
		Gateway: gw,
		Cache:   cache.NewPlanCache(),
	})
	return svc, gw, db
}

func proPlan() domain.CreateRequest {
	return domain.CreateRequest{
		Name:      "Pro",
		Amount:    49.99,
		TrialDays: 7,
		UserType:  1,
		Interval:  domain.IntervalMonthly,
	}
}

func TestCreateProvisionsGatewayProduct(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newService(t)

	plan, err := svc.Create(ctx, proPlan())
	require.NoError(t, err)

	assert.Equal(t, "pro", plan.Slug)
	assert.Equal(t, domain.DefaultCurrency, plan.Currency)
	assert.Equal(t, domain.StatusActive, plan.Status)
	assert.Equal(t, 1, plan.IntervalCount)
	assert.NotEmpty(t, plan.StripeProductID)
	assert.NotEmpty(t, plan.StripePriceID)

	require.Len(t, gw.ProductInputs, 1)
	assert.Equal(t, plan.ID.String(), gw.ProductInputs[0].PlanID)
	assert.Equal(t, 49.99, gw.ProductInputs[0].Amount)
}

func TestCreateRejectsLocalDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newService(t)

	_, err := svc.Create(ctx, proPlan())
	require.NoError(t, err)

	_, err = svc.Create(ctx, proPlan())
	assert.ErrorIs(t, err, domain.ErrPlanAlreadyExists)
	assert.Len(t, gw.ProductInputs, 1)
}

func TestCreateRejectsExistingGatewayProduct(t *testing.T) {
	ctx := context.Background()
	svc, gw, _ := newService(t)
	gw.ExistingProducts["Pro"] = "prod_existing"

	_, err := svc.Create(ctx, proPlan())
	assert.ErrorIs(t, err, domain.ErrPlanAlreadyExists)
	assert.Empty(t, gw.ProductInputs)
}

func TestCreateReportsGatewayFailure(t *testing.T) {
	ctx := context.Background()
	svc, gw, db := newService(t)
	gw.CreateProductErr = errors.New("boom")

	_, err := svc.Create(ctx, proPlan())
	assert.ErrorIs(t, err, domain.ErrCreateProduct)

	var count int64
	require.NoError(t, db.Model(&domain.Plan{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateValidatesInput(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	req := proPlan()
	req.Name = "  "
	_, err := svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	req = proPlan()
	req.Interval = 3
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	req = proPlan()
	req.Amount = 0
	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestListReturnsActivePlansOnly(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.List(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPlansFound)

	_, err = svc.Create(ctx, proPlan())
	require.NoError(t, err)

	inactive := proPlan()
	inactive.Name = "Legacy"
	status := domain.StatusInactive
	inactive.Status = &status
	_, err = svc.Create(ctx, inactive)
	require.NoError(t, err)

	plans, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Pro", plans[0].Name)
}

func TestUpdateClearsGatewayIDsWhenBillingChanges(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	plan, err := svc.Create(ctx, proPlan())
	require.NoError(t, err)

	description := "Renamed only"
	updated, err := svc.Update(ctx, domain.UpdateRequest{ID: plan.ID, Description: &description})
	require.NoError(t, err)
	assert.Equal(t, plan.StripePriceID, updated.StripePriceID)

	amount := 59.99
	updated, err = svc.Update(ctx, domain.UpdateRequest{ID: plan.ID, Amount: &amount})
	require.NoError(t, err)
	assert.Empty(t, updated.StripePriceID)
	assert.Empty(t, updated.StripeProductID)

	price, err := svc.EnsureGatewayPrice(ctx, updated)
	require.NoError(t, err)
	assert.NotEmpty(t, price.PriceID)

	stored, err := svc.GetActiveByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, price.PriceID, stored.StripePriceID)
	assert.Equal(t, 59.99, stored.Amount)
}

func TestUpdateAndDeleteMissingPlan(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	name := "Nope"
	_, err := svc.Update(ctx, domain.UpdateRequest{ID: 42, Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, 42), domain.ErrNotFound)
}

func TestDeleteInvalidatesCatalog(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	plan, err := svc.Create(ctx, proPlan())
	require.NoError(t, err)

	plans, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	require.NoError(t, svc.Delete(ctx, plan.ID))

	_, err = svc.List(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPlansFound)
}

func TestGetByUserType(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	_, err := svc.GetByUserType(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByUserType(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidUserType)

	created, err := svc.Create(ctx, proPlan())
	require.NoError(t, err)

	plan, err := svc.GetByUserType(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, created.ID, plan.ID)
}

func TestGetActiveByIDRejectsInactivePlan(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newService(t)

	req := proPlan()
	status := domain.StatusInactive
	req.Status = &status
	plan, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.GetActiveByID(ctx, plan.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

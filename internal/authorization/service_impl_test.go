package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeAdminCatalog(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, snowflake.ID(1), "admin", ObjectSubscriptionPlan, ActionPlanCreate))
	assert.NoError(t, svc.Authorize(ctx, snowflake.ID(1), "admin", ObjectSubscription, ActionSubscriptionCreate))

	err := svc.Authorize(ctx, snowflake.ID(2), "user", ObjectSubscriptionPlan, ActionPlanCreate)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.NoError(t, svc.Authorize(ctx, snowflake.ID(2), "user", ObjectSubscriptionPlan, ActionPlanView))
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, snowflake.ID(3), "admin", ObjectSubscriptionPlan, ActionPlanDelete))

	err := svc.Authorize(ctx, snowflake.ID(3), "user", ObjectSubscriptionPlan, ActionPlanDelete)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, 0, "user", ObjectPayment, ActionPaymentView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, "user", " ", ActionPaymentView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, "user", ObjectPayment, ""), ErrInvalidAction)
}

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	ctx := context.Background()

	client, err := NewRedisClient(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)

	limiter, err := NewBillingLimiter(config.Config{}, nil, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())

	res, err := limiter.AllowWebhook(ctx, "127.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowAPI(ctx, "42")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	token, ok, err := limiter.TryLockCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, token)
	assert.NoError(t, limiter.ReleaseCustomer(ctx, "cus_123", token))

	var nilLimiter *BillingLimiter
	_, ok, err = nilLimiter.TryLockCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnabledLimiterRequiresRedisAddr(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}
	_, err := NewRedisClient(cfg)
	assert.Error(t, err)
}

type memoryLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if _, held := m.values[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	m.values[key] = value.(string)
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *memoryLockStore) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	if m.values[keys[0]] == args[0] {
		delete(m.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestCustomerLockSerializesCustomer(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock := NewCustomerLock(store, func() time.Duration { return 5 * time.Second })

	token, ok, err := lock.Acquire(ctx, " cus_1 ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)
	assert.Equal(t, token, store.values["inspectconnect:webhook:lock:customer:cus_1"])
	assert.Equal(t, 5*time.Second, store.ttls["inspectconnect:webhook:lock:customer:cus_1"])

	_, ok, err = lock.Acquire(ctx, "cus_1")
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := lock.Acquire(ctx, "cus_2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEqual(t, token, other)

	require.NoError(t, lock.Release(ctx, "cus_1", "stale-token"))
	_, ok, err = lock.Acquire(ctx, "cus_1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Release(ctx, "cus_1", token))
	_, ok, err = lock.Acquire(ctx, "cus_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCustomerLockErrors(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()
	lock := NewCustomerLock(store, nil)

	_, _, err := lock.Acquire(ctx, "  ")
	assert.ErrorIs(t, err, ErrLockCustomerEmpty)

	store.err = errors.New("connection refused")
	_, ok, err := lock.Acquire(ctx, "cus_1")
	assert.Error(t, err)
	assert.False(t, ok)

	var unset *CustomerLock
	_, _, err = unset.Acquire(ctx, "cus_1")
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, unset.Release(ctx, "cus_1", "token"))
	assert.Nil(t, NewCustomerLock(nil, nil))
}

func TestCustomerLockTTLFollowsBillingConfig(t *testing.T) {
	billing := config.DefaultBillingConfig()
	billing.LockTTL = 5 * time.Second
	holder := config.NewStaticBillingConfigHolder(billing)
	lock := NewCustomerLock(newMemoryLockStore(), func() time.Duration { return holder.Get().LockTTL })
	assert.Equal(t, 5*time.Second, lock.TTL())

	lock = NewCustomerLock(newMemoryLockStore(), func() time.Duration { return 0 })
	assert.Equal(t, config.DefaultBillingConfig().LockTTL, lock.TTL())
}

func TestBucketHelpers(t *testing.T) {
	assert.Equal(t, 4*time.Second, defaultBucketTTL(50, 100))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
	assert.Equal(t, 2.5, castToFloat("2.5"))
	assert.Equal(t, float64(3), castToFloat(int64(3)))
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Zero(t, castToFloat("nope"))
}

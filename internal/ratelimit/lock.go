package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inspectconnect/internal/config"
)

const customerLockPrefix = "inspectconnect:webhook:lock:customer:"

// Deletes the key only while it still holds the caller's lease token.
const releaseCustomerScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrLockNotConfigured = errors.New("customer_lock_not_configured")
	ErrLockCustomerEmpty = errors.New("customer_lock_customer_empty")
)

// lockStore is the part of the redis client the customer lock needs.
type lockStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// CustomerLock is a lease on one gateway customer's webhook stream. The lease
// expires on its own so a crashed holder never blocks the customer for longer
// than the TTL.
type CustomerLock struct {
	store lockStore
	ttl   func() time.Duration
}

// NewCustomerLock reads the TTL on every acquire so billing config reloads
// apply to the next delivery.
func NewCustomerLock(store lockStore, ttl func() time.Duration) *CustomerLock {
	if store == nil {
		return nil
	}
	return &CustomerLock{store: store, ttl: ttl}
}

// Acquire returns a lease token when the customer was free.
func (l *CustomerLock) Acquire(ctx context.Context, customerID string) (string, bool, error) {
	if l == nil || l.store == nil {
		return "", false, ErrLockNotConfigured
	}
	key, err := customerLockKey(customerID)
	if err != nil {
		return "", false, err
	}

	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, token, l.TTL()).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lease if it is still ours. An expired lease that another
// delivery has since taken is left alone.
func (l *CustomerLock) Release(ctx context.Context, customerID, token string) error {
	if l == nil || l.store == nil || token == "" {
		return nil
	}
	key, err := customerLockKey(customerID)
	if err != nil {
		return err
	}
	return l.store.Eval(ctx, releaseCustomerScript, []string{key}, token).Err()
}

func (l *CustomerLock) TTL() time.Duration {
	if l != nil && l.ttl != nil {
		if ttl := l.ttl(); ttl > 0 {
			return ttl
		}
	}
	return config.DefaultBillingConfig().LockTTL
}

func customerLockKey(customerID string) (string, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return "", ErrLockCustomerEmpty
	}
	return customerLockPrefix + customerID, nil
}

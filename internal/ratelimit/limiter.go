package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inspectconnect/internal/config"
)

const (
	keyWebhookSource   = "inspectconnect:webhook:source:%s"
	keyAPIUser         = "inspectconnect:api:user:%s"
)

// BillingLimiter throttles webhook and API traffic and serializes webhook
// deliveries per gateway customer. A nil or disabled limiter allows everything.
type BillingLimiter struct {
	enabled bool

	bucket  *TokenBucket
	locker  *CustomerLock
	billing *config.BillingConfigHolder

	webhookRate  float64
	webhookBurst int
	apiRate      float64
	apiBurst     int
}

func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	}), nil
}

func NewBillingLimiter(cfg config.Config, client *redis.Client, billing *config.BillingConfigHolder) (*BillingLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return &BillingLimiter{billing: billing}, nil
	}
	if limitCfg.WebhookRate <= 0 || limitCfg.WebhookBurst <= 0 {
		return nil, errors.New("webhook rate limit must be positive")
	}
	if limitCfg.APIRate <= 0 || limitCfg.APIBurst <= 0 {
		return nil, errors.New("api rate limit must be positive")
	}

	return &BillingLimiter{
		enabled:      true,
		bucket:       NewTokenBucket(client),
		locker:       NewCustomerLock(client, func() time.Duration { return billing.Get().LockTTL }),
		billing:      billing,
		webhookRate:  limitCfg.WebhookRate,
		webhookBurst: limitCfg.WebhookBurst,
		apiRate:      limitCfg.APIRate,
		apiBurst:     limitCfg.APIBurst,
	}, nil
}

func (l *BillingLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *BillingLimiter) AllowWebhook(ctx context.Context, source string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyWebhookSource, strings.TrimSpace(source)), l.webhookRate, l.webhookBurst)
}

func (l *BillingLimiter) AllowAPI(ctx context.Context, userID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAPIUser, strings.TrimSpace(userID)), l.apiRate, l.apiBurst)
}

// TryLockCustomer takes the webhook lock for a gateway customer. The returned
// token must be passed to ReleaseCustomer.
func (l *BillingLimiter) TryLockCustomer(ctx context.Context, customerID string) (string, bool, error) {
	if !l.Enabled() {
		return "", true, nil
	}
	if strings.TrimSpace(customerID) == "" {
		return "", true, nil
	}
	return l.locker.Acquire(ctx, customerID)
}

func (l *BillingLimiter) ReleaseCustomer(ctx context.Context, customerID, token string) error {
	if !l.Enabled() {
		return nil
	}
	return l.locker.Release(ctx, customerID, token)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"
)

func TestLoadReadsStripeSettings(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET_KEY", "whsec_123")
	t.Setenv("STRIPE_BREAKER_TIMEOUT", "5s")
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg := Load()

	assert.Equal(t, "sk_test_123", cfg.Stripe.SecretKey)
	assert.Equal(t, "whsec_123", cfg.Stripe.WebhookSecret)
	assert.Equal(t, DefaultStripeAPIVersion, cfg.Stripe.APIVersion)
	assert.Equal(t, stripego.APIVersion, cfg.Stripe.APIVersion)
	assert.Equal(t, 5*time.Second, cfg.Stripe.BreakerTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := Config{}
	assert.ErrorIs(t, cfg.Validate(), ErrMissingStripeSecretKey)

	cfg.Stripe.SecretKey = "sk_test"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
}

func TestBillingConfigDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 7, cfg.DaysUntilDueFallback)
	assert.Equal(t, "usd", cfg.DefaultCurrency)
	assert.Equal(t, 30*time.Second, cfg.LockTTL)
}

func TestBillingConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("billing:\n  daysUntilDueFallback: 14\n  defaultCurrency: EUR\n  lockTTL: 10s\n  ignoredEventTypes:\n    - charge.succeeded\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	holder, err := NewBillingConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 14, cfg.DaysUntilDueFallback)
	assert.Equal(t, "eur", cfg.DefaultCurrency)
	assert.Equal(t, 10*time.Second, cfg.LockTTL)
	assert.True(t, cfg.IsIgnored("charge.succeeded"))
	assert.False(t, cfg.IsIgnored("invoice.payment_succeeded"))
}

func TestBillingConfigRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("billing:\n  daysUntilDueFallback: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "billing.yml"), content, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	_, err = NewBillingConfigHolder(zap.NewNop())
	assert.Error(t, err)
}

package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BillingConfig is the operator-tunable billing policy.
type BillingConfig struct {
	DaysUntilDueFallback int           `mapstructure:"daysUntilDueFallback"`
	DefaultCurrency      string        `mapstructure:"defaultCurrency"`
	LockTTL              time.Duration `mapstructure:"lockTTL"`
	IgnoredEventTypes    []string      `mapstructure:"ignoredEventTypes"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DaysUntilDueFallback: 7,
		DefaultCurrency:      "usd",
		LockTTL:              30 * time.Second,
		IgnoredEventTypes:    []string{},
	}
}

// IsIgnored reports whether webhook events of this type are acknowledged without processing.
func (c BillingConfig) IsIgnored(eventType string) bool {
	eventType = strings.TrimSpace(eventType)
	for _, ignored := range c.IgnoredEventTypes {
		if strings.EqualFold(strings.TrimSpace(ignored), eventType) {
			return true
		}
	}
	return false
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder(log *zap.Logger) (*BillingConfigHolder, error) {
	log = log.Named("billing.config")
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/inspectconnect")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INSPECTCONNECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.daysUntilDueFallback", defaults.DaysUntilDueFallback)
	v.SetDefault("billing.defaultCurrency", defaults.DefaultCurrency)
	v.SetDefault("billing.lockTTL", defaults.LockTTL)
	v.SetDefault("billing.ignoredEventTypes", defaults.IgnoredEventTypes)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	cfg = normalizeBillingConfig(cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Warn("billing config reload failed", zap.Error(err))
				return
			}
			updated = normalizeBillingConfig(updated)
			if err := validateBillingConfig(updated); err != nil {
				log.Warn("invalid billing config ignored", zap.Error(err))
				return
			}
			holder.current.Store(updated)
			log.Info("billing config reloaded", zap.String("file", e.Name))
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func normalizeBillingConfig(cfg BillingConfig) BillingConfig {
	cfg.DefaultCurrency = strings.ToLower(strings.TrimSpace(cfg.DefaultCurrency))
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.DaysUntilDueFallback <= 0 {
		return errors.New("billing.daysUntilDueFallback must be positive")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return errors.New("billing.defaultCurrency must be an ISO currency code")
	}
	if cfg.LockTTL <= 0 {
		return errors.New("billing.lockTTL must be positive")
	}
	return nil
}

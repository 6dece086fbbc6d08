package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CheckoutConfig carries the storefront settings that can change without a restart.
type CheckoutConfig struct {
	MaxLineItems   int             `mapstructure:"maxLineItems"`
	OrderRateLimit OrderRateLimits `mapstructure:"orderRateLimit"`
}

type OrderRateLimits struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		MaxLineItems: 50,
		OrderRateLimit: OrderRateLimits{
			Enabled: true,
			Rate:    0.2,
			Burst:   5,
		},
	}
}

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
}

func NewCheckoutConfigHolder(log *zap.Logger) (*CheckoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("storefront")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/storefront")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return loadCheckoutConfig(v, log)
}

// StaticCheckoutConfig returns a holder that never reloads.
func StaticCheckoutConfig(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func loadCheckoutConfig(v *viper.Viper, log *zap.Logger) (*CheckoutConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("checkout.config")

	defaults := DefaultCheckoutConfig()
	v.SetDefault("checkout.maxLineItems", defaults.MaxLineItems)
	v.SetDefault("checkout.orderRateLimit.enabled", defaults.OrderRateLimit.Enabled)
	v.SetDefault("checkout.orderRateLimit.rate", defaults.OrderRateLimit.Rate)
	v.SetDefault("checkout.orderRateLimit.burst", defaults.OrderRateLimit.Burst)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	var cfg CheckoutConfig
	if err := v.UnmarshalKey("checkout", &cfg); err != nil {
		return nil, err
	}
	if err := validateCheckoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CheckoutConfig
		if err := v.UnmarshalKey("checkout", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateCheckoutConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	if h == nil {
		return DefaultCheckoutConfig()
	}
	cfg, ok := h.current.Load().(CheckoutConfig)
	if !ok {
		return DefaultCheckoutConfig()
	}
	return cfg
}

func validateCheckoutConfig(cfg CheckoutConfig) error {
	if cfg.MaxLineItems <= 0 {
		return errors.New("checkout.maxLineItems must be positive")
	}
	if cfg.OrderRateLimit.Enabled {
		if cfg.OrderRateLimit.Rate <= 0 {
			return errors.New("checkout.orderRateLimit.rate must be positive")
		}
		if cfg.OrderRateLimit.Burst <= 0 {
			return errors.New("checkout.orderRateLimit.burst must be positive")
		}
	}
	return nil
}

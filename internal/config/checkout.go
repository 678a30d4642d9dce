package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// CheckoutConfig carries the operator-tunable knobs of the checkout flow.
// FeePercent is kept as the raw string operators type into the settings
// file; it may use comma decimals ("2,5") and is parsed at point of use.
type CheckoutConfig struct {
	FeePercent    string        `mapstructure:"feePercent"`
	ChannelsTTL   time.Duration `mapstructure:"channelsTTL"`
	DefaultExpiry time.Duration `mapstructure:"defaultExpiry"`
}

func DefaultCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		FeePercent:    "0",
		ChannelsTTL:   5 * time.Minute,
		DefaultExpiry: 24 * time.Hour,
	}
}

type CheckoutConfigHolder struct {
	current atomic.Value // holds CheckoutConfig
}

func NewCheckoutConfigHolder() (*CheckoutConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("checkout")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/kelaspay/config") // Volume-mounted config
	v.AddConfigPath("/etc/kelaspay")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("KELASPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultCheckoutConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("checkout.feePercent", defaults.FeePercent)
		v.SetDefault("checkout.channelsTTL", defaults.ChannelsTTL)
		v.SetDefault("checkout.defaultExpiry", defaults.DefaultExpiry)
	}

	var cfg CheckoutConfig
	if err := v.UnmarshalKey("checkout", &cfg); err != nil {
		return nil, err
	}
	applyCheckoutDefaults(&cfg, defaults)
	if err := validateCheckoutConfig(cfg); err != nil {
		return nil, err
	}

	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated CheckoutConfig
		if err := v.UnmarshalKey("checkout", &updated); err != nil {
			log.Printf("[checkout-config] reload failed: %v", err)
			return
		}
		applyCheckoutDefaults(&updated, defaults)
		if err := validateCheckoutConfig(updated); err != nil {
			log.Printf("[checkout-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[checkout-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticCheckoutConfigHolder wraps a fixed config for callers that do
// not watch a settings file.
func NewStaticCheckoutConfigHolder(cfg CheckoutConfig) *CheckoutConfigHolder {
	holder := &CheckoutConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *CheckoutConfigHolder) Get() CheckoutConfig {
	return h.current.Load().(CheckoutConfig)
}

func applyCheckoutDefaults(cfg *CheckoutConfig, defaults CheckoutConfig) {
	if cfg.FeePercent == "" {
		cfg.FeePercent = defaults.FeePercent
	}
	if cfg.ChannelsTTL <= 0 {
		cfg.ChannelsTTL = defaults.ChannelsTTL
	}
	if cfg.DefaultExpiry <= 0 {
		cfg.DefaultExpiry = defaults.DefaultExpiry
	}
}

func validateCheckoutConfig(cfg CheckoutConfig) error {
	if cfg.DefaultExpiry < time.Minute {
		return errors.New("checkout.defaultExpiry must be at least one minute")
	}
	return nil
}

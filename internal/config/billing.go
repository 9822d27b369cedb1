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

// BillingConfig tunes the billing engine without a redeploy.
type BillingConfig struct {
	// TaxCategory names the rule category excluded from the running subtotal.
	TaxCategory       string        `mapstructure:"taxCategory"`
	BillNumberPrefix  string        `mapstructure:"billNumberPrefix"`
	DefaultTripStatus string        `mapstructure:"defaultTripStatus"`
	GenerationLockTTL time.Duration `mapstructure:"generationLockTTL"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		TaxCategory:       "Tax",
		BillNumberPrefix:  "BILL",
		DefaultTripStatus: "Completed",
		GenerationLockTTL: 30 * time.Second,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(withDefaults(cfg))
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/dutybill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DUTYBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.taxCategory", defaults.TaxCategory)
	v.SetDefault("billing.billNumberPrefix", defaults.BillNumberPrefix)
	v.SetDefault("billing.defaultTripStatus", defaults.DefaultTripStatus)
	v.SetDefault("billing.generationLockTTL", defaults.GenerationLockTTL)

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
	cfg = withDefaults(cfg)
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	if fileLoaded {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated BillingConfig
			if err := v.UnmarshalKey("billing", &updated); err != nil {
				log.Printf("[billing-config] reload failed: %v", err)
				return
			}
			updated = withDefaults(updated)
			if err := validateBillingConfig(updated); err != nil {
				log.Printf("[billing-config] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[billing-config] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func withDefaults(cfg BillingConfig) BillingConfig {
	defaults := DefaultBillingConfig()
	cfg.TaxCategory = strings.TrimSpace(cfg.TaxCategory)
	if cfg.TaxCategory == "" {
		cfg.TaxCategory = defaults.TaxCategory
	}
	cfg.BillNumberPrefix = strings.TrimSpace(cfg.BillNumberPrefix)
	if cfg.BillNumberPrefix == "" {
		cfg.BillNumberPrefix = defaults.BillNumberPrefix
	}
	cfg.DefaultTripStatus = strings.TrimSpace(cfg.DefaultTripStatus)
	if cfg.DefaultTripStatus == "" {
		cfg.DefaultTripStatus = defaults.DefaultTripStatus
	}
	if cfg.GenerationLockTTL == 0 {
		cfg.GenerationLockTTL = defaults.GenerationLockTTL
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if strings.ContainsAny(cfg.BillNumberPrefix, " \t") {
		return errors.New("billing.billNumberPrefix cannot contain whitespace")
	}
	if cfg.GenerationLockTTL < 0 {
		return errors.New("billing.generationLockTTL cannot be negative")
	}
	return nil
}

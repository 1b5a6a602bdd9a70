package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingDefaults are tenant-independent pricing knobs. They are loaded from
// an optional pricing.yml and hot-reloaded so operators can tune them without
// a restart.
type PricingDefaults struct {
	DefaultVatRate      string `mapstructure:"defaultVatRate"`
	InvoiceCounterFloor int64  `mapstructure:"invoiceCounterFloor"`
	SlotMinutes         int    `mapstructure:"slotMinutes"`
}

func DefaultPricingDefaults() PricingDefaults {
	return PricingDefaults{
		DefaultVatRate:      "21",
		InvoiceCounterFloor: 1000,
		SlotMinutes:         60,
	}
}

type PricingDefaultsHolder struct {
	current atomic.Value // holds PricingDefaults
}

func NewPricingDefaultsHolder() (*PricingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/quotedesk/config")
	v.AddConfigPath("/etc/quotedesk")
	v.AddConfigPath(".")

	v.SetEnvPrefix("QUOTEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingDefaults()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("pricing.defaultVatRate", defaults.DefaultVatRate)
		v.SetDefault("pricing.invoiceCounterFloor", defaults.InvoiceCounterFloor)
		v.SetDefault("pricing.slotMinutes", defaults.SlotMinutes)
	}

	var cfg PricingDefaults
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	applyPricingFallbacks(&cfg, defaults)
	if err := validatePricingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &PricingDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingDefaults
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		applyPricingFallbacks(&updated, defaults)
		if err := validatePricingDefaults(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PricingDefaultsHolder) Get() PricingDefaults {
	return h.current.Load().(PricingDefaults)
}

// StaticPricingDefaults wraps fixed values without file watching, for tests
// and tools that do not run the fx app.
func StaticPricingDefaults(cfg PricingDefaults) *PricingDefaultsHolder {
	holder := &PricingDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func applyPricingFallbacks(cfg *PricingDefaults, defaults PricingDefaults) {
	if strings.TrimSpace(cfg.DefaultVatRate) == "" {
		cfg.DefaultVatRate = defaults.DefaultVatRate
	}
	if cfg.InvoiceCounterFloor == 0 {
		cfg.InvoiceCounterFloor = defaults.InvoiceCounterFloor
	}
	if cfg.SlotMinutes == 0 {
		cfg.SlotMinutes = defaults.SlotMinutes
	}
}

func validatePricingDefaults(cfg PricingDefaults) error {
	if cfg.InvoiceCounterFloor < 0 {
		return errors.New("pricing.invoiceCounterFloor cannot be negative")
	}
	if cfg.SlotMinutes <= 0 || cfg.SlotMinutes > 24*60 {
		return errors.New("pricing.slotMinutes out of range")
	}
	return nil
}

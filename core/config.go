package core

import (
	"fmt"
	"strings"
	"time"
)

type EngineConfig struct {
	TickInterval        time.Duration `koanf:"tick_interval" mapstructure:"tick_interval"`
	ClientBookingOffset time.Duration `koanf:"client_booking_offset" mapstructure:"client_booking_offset"`
	ClientFallbackDelay time.Duration `koanf:"client_fallback_delay" mapstructure:"client_fallback_delay"`
	ClientBatchSize     int           `koanf:"client_batch_size" mapstructure:"client_batch_size"`
	ClientExpiry        time.Duration `koanf:"client_expiry" mapstructure:"client_expiry"`
	NudgeDelay          time.Duration `koanf:"nudge_delay" mapstructure:"nudge_delay"`
	NudgeBatchSize      int           `koanf:"nudge_batch_size" mapstructure:"nudge_batch_size"`
	CheckinDelay        time.Duration `koanf:"checkin_delay" mapstructure:"checkin_delay"`
	CheckinBatchSize    int           `koanf:"checkin_batch_size" mapstructure:"checkin_batch_size"`
}

type PricingConfig struct {
	DefaultCents  int            `koanf:"default_cents" mapstructure:"default_cents"`
	ByServiceType map[string]int `koanf:"by_service_type" mapstructure:"by_service_type"`
}

type TokenConfig struct {
	Secret string        `koanf:"secret" mapstructure:"secret"`
	TTL    time.Duration `koanf:"ttl" mapstructure:"ttl"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	BaseURL     string        `koanf:"base_url" mapstructure:"base_url"`
	LeadTTL     time.Duration `koanf:"lead_ttl" mapstructure:"lead_ttl"`
	Engine      EngineConfig  `koanf:"engine" mapstructure:"engine"`
	Pricing     PricingConfig `koanf:"pricing" mapstructure:"pricing"`
	Token       TokenConfig   `koanf:"token" mapstructure:"token"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "leads",
		LeadTTL:     24 * time.Hour,
		Engine: EngineConfig{
			TickInterval:        60 * time.Second,
			ClientBookingOffset: 15 * time.Minute,
			ClientFallbackDelay: 30 * time.Minute,
			ClientBatchSize:     10,
			ClientExpiry:        24 * time.Hour,
			NudgeDelay:          15 * time.Minute,
			NudgeBatchSize:      10,
			CheckinDelay:        10 * time.Minute,
			CheckinBatchSize:    50,
		},
		Pricing: PricingConfig{
			DefaultCents: 2000,
			ByServiceType: map[string]int{
				"skincare":  1800,
				"makeup":    1200,
				"esthetics": 1200,
				"cleaning":  1000,
				"bodywork":  1500,
				"beauty":    1200,
				"massage":   1500,
			},
		},
		Token: TokenConfig{
			TTL: 48 * time.Hour,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.LeadTTL < 0 {
		return fmt.Errorf("core: lead_ttl must not be negative")
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Pricing.DefaultCents <= 0 {
		return fmt.Errorf("core: pricing default_cents must be positive")
	}
	for serviceType, cents := range c.Pricing.ByServiceType {
		if cents <= 0 {
			return fmt.Errorf("core: pricing for %q must be positive", serviceType)
		}
	}
	if c.Token.TTL < 0 {
		return fmt.Errorf("core: token ttl must not be negative")
	}
	return nil
}

func (c EngineConfig) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("core: engine tick_interval must be positive")
	}
	if c.ClientBookingOffset <= 0 || c.ClientFallbackDelay <= 0 {
		return fmt.Errorf("core: client follow-up delays must be positive")
	}
	if c.ClientExpiry <= 0 {
		return fmt.Errorf("core: client_expiry must be positive")
	}
	if c.NudgeDelay <= 0 || c.CheckinDelay <= 0 {
		return fmt.Errorf("core: nudge_delay and checkin_delay must be positive")
	}
	if c.ClientBatchSize <= 0 || c.NudgeBatchSize <= 0 || c.CheckinBatchSize <= 0 {
		return fmt.Errorf("core: engine batch sizes must be positive")
	}
	return nil
}

// PriceCents resolves the unlock price for a service type.
func (c PricingConfig) PriceCents(serviceType string) int {
	key := strings.ToLower(strings.TrimSpace(serviceType))
	if cents, ok := c.ByServiceType[key]; ok && cents > 0 {
		return cents
	}
	if c.DefaultCents > 0 {
		return c.DefaultCents
	}
	return DefaultConfig().Pricing.DefaultCents
}

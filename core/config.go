package core

import (
	"fmt"
	"strings"
	"time"
)

type RefreshConfig struct {
	LeadWindowMinutes int `koanf:"lead_window_minutes" mapstructure:"lead_window_minutes"`
	LockTTLSeconds    int `koanf:"lock_ttl_seconds" mapstructure:"lock_ttl_seconds"`
}

type SyncConfig struct {
	DefaultFrequencyMinutes int `koanf:"default_frequency_minutes" mapstructure:"default_frequency_minutes"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Refresh     RefreshConfig `koanf:"refresh" mapstructure:"refresh"`
	Sync        SyncConfig    `koanf:"sync" mapstructure:"sync"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "bankfeed",
		Refresh: RefreshConfig{
			LeadWindowMinutes: int(DefaultCredentialRefreshWindow.Minutes()),
			LockTTLSeconds:    int(defaultRefreshLockTTL.Seconds()),
		},
		Sync: SyncConfig{
			DefaultFrequencyMinutes: DefaultSyncFrequencyMinutes,
		},
	}
}

// RefreshLeadWindow converts the configured lead window to a duration,
// falling back to the package default when the knob is unset.
func (c Config) RefreshLeadWindow() time.Duration {
	if c.Refresh.LeadWindowMinutes > 0 {
		return time.Duration(c.Refresh.LeadWindowMinutes) * time.Minute
	}
	return DefaultCredentialRefreshWindow
}

// RefreshLockTTL converts the configured lock TTL to a duration,
// falling back to the package default when the knob is unset.
func (c Config) RefreshLockTTL() time.Duration {
	if c.Refresh.LockTTLSeconds > 0 {
		return time.Duration(c.Refresh.LockTTLSeconds) * time.Second
	}
	return defaultRefreshLockTTL
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Refresh.LeadWindowMinutes < 0 {
		return fmt.Errorf("core: refresh.lead_window_minutes cannot be negative")
	}
	if c.Sync.DefaultFrequencyMinutes < 0 {
		return fmt.Errorf("core: sync.default_frequency_minutes cannot be negative")
	}
	return nil
}

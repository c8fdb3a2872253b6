package config

import (
	"fmt"
)

// Validate checks the configuration for fatal problems. Config errors abort
// startup.
func Validate(cfg *Config) error {
	if cfg.Database.PostgresURL == "" {
		return fmt.Errorf("database.postgres_url is required")
	}
	if cfg.General.MaxDepth < 0 {
		return fmt.Errorf("general.max_depth must be >= 0, got %d", cfg.General.MaxDepth)
	}
	if cfg.General.MaxBodySizeMB <= 0 {
		return fmt.Errorf("general.max_body_size_mb must be > 0, got %d", cfg.General.MaxBodySizeMB)
	}

	networks := map[string]*NetworkConfig{
		"tor":      &cfg.Tor,
		"i2p":      &cfg.I2P,
		"zeronet":  &cfg.Zeronet,
		"hyphanet": &cfg.Hyphanet,
		"lokinet":  &cfg.Lokinet,
	}
	anyEnabled := false
	for name, nc := range networks {
		if !nc.Enabled {
			continue
		}
		anyEnabled = true
		if len(nc.Proxies()) == 0 {
			return fmt.Errorf("%s is enabled but has no proxies configured", name)
		}
		if nc.MaxConcurrency <= 0 {
			return fmt.Errorf("%s.max_concurrency must be > 0 when enabled", name)
		}
	}
	if !anyEnabled {
		return fmt.Errorf("no networks enabled")
	}
	return nil
}

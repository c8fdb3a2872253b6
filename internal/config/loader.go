package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// After unmarshalling, the SCALE_LEVEL schedule and per-network env
// overrides are applied on top.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("toml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("VEILCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.AddConfigPath("./config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".veilcrawl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing config file is fine when no explicit path was given.
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyScaleLevel(cfg, os.Getenv)

	return cfg, nil
}

// setDefaults registers default values in viper so partial config files work.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("general.data_dir", cfg.General.DataDir)
	v.SetDefault("general.max_depth", cfg.General.MaxDepth)
	v.SetDefault("general.max_pages_per_domain", cfg.General.MaxPagesPerDomain)
	v.SetDefault("general.max_body_size_mb", cfg.General.MaxBodySizeMB)

	networks := map[string]*NetworkConfig{
		"tor":      &cfg.Tor,
		"i2p":      &cfg.I2P,
		"zeronet":  &cfg.Zeronet,
		"hyphanet": &cfg.Hyphanet,
		"lokinet":  &cfg.Lokinet,
	}
	for name, nc := range networks {
		v.SetDefault(name+".enabled", nc.Enabled)
		v.SetDefault(name+".socks_proxies", nc.SocksProxies)
		v.SetDefault(name+".http_proxies", nc.HTTPProxies)
		v.SetDefault(name+".max_concurrency", nc.MaxConcurrency)
		v.SetDefault(name+".min_delay_seconds", nc.MinDelaySeconds)
		v.SetDefault(name+".connect_timeout_seconds", nc.ConnectTimeoutSeconds)
		v.SetDefault(name+".request_timeout_seconds", nc.RequestTimeoutSeconds)
	}

	v.SetDefault("database.postgres_url", cfg.Database.PostgresURL)

	v.SetDefault("extraction.extract_emails", cfg.Extraction.ExtractEmails)
	v.SetDefault("extraction.extract_crypto", cfg.Extraction.ExtractCrypto)
	v.SetDefault("extraction.extract_phones", cfg.Extraction.ExtractPhones)
	v.SetDefault("extraction.extract_pgp", cfg.Extraction.ExtractPGP)
	v.SetDefault("extraction.extract_usernames", cfg.Extraction.ExtractUsernames)

	v.SetDefault("frontier.max_retries", cfg.Frontier.MaxRetries)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

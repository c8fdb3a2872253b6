package config

import (
	"os"
	"path/filepath"
	"testing"
)

func getenvFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.PostgresURL = ""
	if err := Validate(cfg); err == nil {
		t.Error("missing postgres_url accepted")
	}

	cfg = DefaultConfig()
	cfg.Tor.Enabled = true
	cfg.Tor.SocksProxies = nil
	if err := Validate(cfg); err == nil {
		t.Error("enabled network without proxies accepted")
	}

	cfg = DefaultConfig()
	cfg.Tor.Enabled = false
	cfg.I2P.Enabled = false
	cfg.Zeronet.Enabled = false
	cfg.Hyphanet.Enabled = false
	cfg.Lokinet.Enabled = false
	if err := Validate(cfg); err == nil {
		t.Error("all networks disabled accepted")
	}
}

func TestScaleLevelSchedule(t *testing.T) {
	cfg := DefaultConfig()
	ApplyScaleLevel(cfg, getenvFrom(map[string]string{"SCALE_LEVEL": "3"}))

	if cfg.General.MaxDepth != 10 || cfg.General.MaxPagesPerDomain != 200 {
		t.Errorf("level 3 globals: depth=%d pages=%d", cfg.General.MaxDepth, cfg.General.MaxPagesPerDomain)
	}
	if cfg.Tor.MaxConcurrency != 64 {
		t.Errorf("tor workers = %d, want 64", cfg.Tor.MaxConcurrency)
	}
	if len(cfg.Tor.SocksProxies) != 6 {
		t.Errorf("tor instances = %d, want 6", len(cfg.Tor.SocksProxies))
	}
	if cfg.Tor.SocksProxies[0] != "tor1:9050" || cfg.Tor.SocksProxies[5] != "tor6:9050" {
		t.Errorf("tor gateway names = %v", cfg.Tor.SocksProxies)
	}
	if len(cfg.Hyphanet.HTTPProxies) != 3 || cfg.Hyphanet.MaxConcurrency != 6 {
		t.Errorf("hyphanet i/w = %d/%d", len(cfg.Hyphanet.HTTPProxies), cfg.Hyphanet.MaxConcurrency)
	}
	if len(cfg.Lokinet.SocksProxies) != 3 || cfg.Lokinet.MaxConcurrency != 12 {
		t.Errorf("lokinet i/w = %d/%d", len(cfg.Lokinet.SocksProxies), cfg.Lokinet.MaxConcurrency)
	}
}

func TestScaleLevelCaps(t *testing.T) {
	cfg := DefaultConfig()
	ApplyScaleLevel(cfg, getenvFrom(map[string]string{"SCALE_LEVEL": "5"}))

	if len(cfg.Hyphanet.HTTPProxies) != 3 {
		t.Errorf("hyphanet instances capped at 3, got %d", len(cfg.Hyphanet.HTTPProxies))
	}
	if len(cfg.Lokinet.SocksProxies) != 4 {
		t.Errorf("lokinet instances capped at 4, got %d", len(cfg.Lokinet.SocksProxies))
	}
	if cfg.General.MaxDepth != 25 || cfg.General.MaxPagesPerDomain != 1000 {
		t.Errorf("level 5 globals: depth=%d pages=%d", cfg.General.MaxDepth, cfg.General.MaxPagesPerDomain)
	}
}

func TestPerNetworkEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	ApplyScaleLevel(cfg, getenvFrom(map[string]string{
		"SCALE_LEVEL":   "2",
		"TOR_WORKERS":   "7",
		"I2P_ENABLED":   "false",
		"TOR_INSTANCES": "3",
		"MAX_DEPTH":     "4",
	}))

	if cfg.Tor.MaxConcurrency != 7 {
		t.Errorf("TOR_WORKERS override = %d", cfg.Tor.MaxConcurrency)
	}
	if cfg.I2P.Enabled {
		t.Error("I2P_ENABLED=false not applied")
	}
	if len(cfg.Tor.SocksProxies) != 3 {
		t.Errorf("TOR_INSTANCES override = %v", cfg.Tor.SocksProxies)
	}
	if cfg.General.MaxDepth != 4 {
		t.Errorf("MAX_DEPTH override = %d", cfg.General.MaxDepth)
	}
}

func TestGatewayAddrs(t *testing.T) {
	got := GatewayAddrs("zeronet", 2)
	if len(got) != 2 || got[0] != "zeronet1:43110" || got[1] != "zeronet2:43110" {
		t.Errorf("GatewayAddrs = %v", got)
	}
}

func TestProbeAddr(t *testing.T) {
	if got := ProbeAddr("i2p", getenvFrom(nil)); got != "i2p1:4444" {
		t.Errorf("default probe addr = %q", got)
	}
	if got := ProbeAddr("i2p", getenvFrom(map[string]string{"I2P_PROXY": "10.0.0.5:4444"})); got != "10.0.0.5:4444" {
		t.Errorf("env probe addr = %q", got)
	}
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	content := `
[general]
max_depth = 7

[tor]
enabled = true
socks_proxies = ["gw1:9050"]
max_concurrency = 2

[database]
postgres_url = "postgres://u:p@h/db"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.MaxDepth != 7 {
		t.Errorf("max_depth = %d", cfg.General.MaxDepth)
	}
	if len(cfg.Tor.SocksProxies) != 1 || cfg.Tor.SocksProxies[0] != "gw1:9050" {
		t.Errorf("socks_proxies = %v", cfg.Tor.SocksProxies)
	}
	if cfg.Database.PostgresURL != "postgres://u:p@h/db" {
		t.Errorf("postgres_url = %q", cfg.Database.PostgresURL)
	}
	// Untouched sections keep defaults.
	if cfg.Hyphanet.MaxConcurrency != 2 {
		t.Errorf("hyphanet default lost: %d", cfg.Hyphanet.MaxConcurrency)
	}
}

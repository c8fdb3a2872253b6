package config

import (
	"fmt"
	"strconv"
	"strings"
)

// scaleEntry is one row of the SCALE_LEVEL schedule: gateway instance count
// and worker count per network, plus global depth and per-domain page caps.
type scaleEntry struct {
	torInstances, torWorkers           int
	i2pInstances, i2pWorkers           int
	hyphanetInstances, hyphanetWorkers int
	lokinetInstances, lokinetWorkers   int
	maxDepth                           int
	maxPagesPerDomain                  int
}

// Hyphanet instances are capped at 3 (a Freenet node is heavy) and Lokinet
// at 4; the schedule already respects those caps.
var scaleSchedule = map[int]scaleEntry{
	1: {2, 16, 1, 4, 1, 2, 1, 4, 5, 50},
	2: {4, 48, 2, 8, 2, 4, 2, 8, 8, 100},
	3: {6, 64, 3, 12, 3, 6, 3, 12, 10, 200},
	4: {8, 96, 4, 16, 3, 8, 4, 16, 15, 500},
	5: {10, 128, 5, 20, 3, 10, 4, 20, 25, 1000},
}

// Default gateway ports per network, used when generating instance
// hostnames like tor1:9050, tor2:9050, ...
var gatewayPorts = map[string]int{
	"tor":      9050,
	"i2p":      4444,
	"zeronet":  43110,
	"hyphanet": 8888,
	"lokinet":  1080,
}

// ApplyScaleLevel overlays the SCALE_LEVEL schedule and per-network env
// overrides onto cfg. getenv is injected so tests can run without touching
// the process environment.
func ApplyScaleLevel(cfg *Config, getenv func(string) string) {
	if lvl, err := strconv.Atoi(getenv("SCALE_LEVEL")); err == nil {
		if entry, ok := scaleSchedule[lvl]; ok {
			cfg.General.MaxDepth = entry.maxDepth
			cfg.General.MaxPagesPerDomain = entry.maxPagesPerDomain

			cfg.Tor.MaxConcurrency = entry.torWorkers
			cfg.Tor.SocksProxies = GatewayAddrs("tor", entry.torInstances)
			cfg.I2P.MaxConcurrency = entry.i2pWorkers
			cfg.I2P.HTTPProxies = GatewayAddrs("i2p", entry.i2pInstances)
			cfg.Hyphanet.MaxConcurrency = entry.hyphanetWorkers
			cfg.Hyphanet.HTTPProxies = GatewayAddrs("hyphanet", entry.hyphanetInstances)
			cfg.Lokinet.MaxConcurrency = entry.lokinetWorkers
			cfg.Lokinet.SocksProxies = GatewayAddrs("lokinet", entry.lokinetInstances)
		}
	}

	networks := map[string]*NetworkConfig{
		"TOR":      &cfg.Tor,
		"I2P":      &cfg.I2P,
		"ZERONET":  &cfg.Zeronet,
		"HYPHANET": &cfg.Hyphanet,
		"LOKINET":  &cfg.Lokinet,
	}
	for prefix, nc := range networks {
		if v := getenv(prefix + "_ENABLED"); v != "" {
			nc.Enabled = v == "true" || v == "1"
		}
		if n, err := strconv.Atoi(getenv(prefix + "_WORKERS")); err == nil && n >= 0 {
			nc.MaxConcurrency = n
		}
		if n, err := strconv.Atoi(getenv(prefix + "_INSTANCES")); err == nil && n > 0 {
			name := strings.ToLower(prefix)
			addrs := GatewayAddrs(name, n)
			if len(nc.SocksProxies) > 0 {
				nc.SocksProxies = addrs
			} else {
				nc.HTTPProxies = addrs
			}
		}
	}

	if n, err := strconv.Atoi(getenv("MAX_DEPTH")); err == nil && n > 0 {
		cfg.General.MaxDepth = n
	}
}

// GatewayAddrs generates the conventional gateway hostnames for a network:
// {network}1:{port} .. {network}N:{port}.
func GatewayAddrs(network string, n int) []string {
	port := gatewayPorts[network]
	addrs := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		addrs = append(addrs, fmt.Sprintf("%s%d:%d", network, i, port))
	}
	return addrs
}

// ProbeAddr returns the readiness-probe gateway address for a network,
// honoring the {NET}_PROXY env var with a {network}1:{port} fallback.
func ProbeAddr(network string, getenv func(string) string) string {
	if v := getenv(strings.ToUpper(network) + "_PROXY"); v != "" {
		return v
	}
	return fmt.Sprintf("%s1:%d", network, gatewayPorts[network])
}

package netdrv

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Network readiness probes. A gateway with an open port is not necessarily
// usable: FProxy serves a setup wizard until the node is configured, and the
// I2P HTTP proxy answers with error pages until tunnels are built. Hyphanet
// and I2P therefore get an HTTP probe that inspects the response body; for
// ZeroNet and Lokinet a TCP connect is authoritative enough.

// notReadyPhrases maps a network to body phrases that mean "port open but
// network not ready".
var notReadyPhrases = map[string][]string{
	"hyphanet": {"Set Up Freenet", "First Time Wizard"},
	"i2p":      {"Proxy error", "Can't create connection", "Host is down"},
}

// ProbeReady checks whether a network's gateway is operational. addr is
// host:port of the gateway to probe.
func ProbeReady(ctx context.Context, network, addr string) bool {
	switch network {
	case "hyphanet", "i2p":
		return probeHTTP(ctx, network, addr)
	default:
		return probeTCP(ctx, addr)
	}
}

// NeedsGate reports whether workers of this network must wait for a
// readiness probe before crawling. Tor gateways are assumed usable as soon
// as the SOCKS port accepts connections, which the fetch path verifies
// itself.
func NeedsGate(network string) bool {
	return network != "tor"
}

func probeHTTP(ctx context.Context, network, addr string) bool {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/", nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}
	text := string(body)
	for _, phrase := range notReadyPhrases[network] {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

func probeTCP(ctx context.Context, addr string) bool {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

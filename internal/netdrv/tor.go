package netdrv

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// TorDriver fetches .onion hidden services through SOCKS5 gateways. Hostname
// resolution happens inside the SOCKS tunnel (the dialer passes the .onion
// name through), so DNS never leaks.
type TorDriver struct {
	pool           *clientPool
	maxConcurrency int
	minDelay       time.Duration
	maxPages       int
	logger         *slog.Logger
}

// torAttemptTimeouts is the per-attempt timeout schedule by retry index.
var torAttemptTimeouts = []time.Duration{
	10 * time.Second, 20 * time.Second, 30 * time.Second, 60 * time.Second,
}

// NewTorDriver builds a Tor driver with one client per SOCKS gateway.
func NewTorDriver(socksAddrs []string, maxConcurrency, minDelaySeconds, connectTimeoutSeconds, requestTimeoutSeconds, maxPagesPerDomain int, logger *slog.Logger) (*TorDriver, error) {
	if len(socksAddrs) == 0 {
		return nil, types.ProxyError("no tor socks proxies configured")
	}

	pool := &clientPool{}
	for _, addr := range socksAddrs {
		dialer, err := socksDialer(addr, time.Duration(connectTimeoutSeconds)*time.Second)
		if err != nil {
			return nil, err
		}
		pool.clients = append(pool.clients, newGatewayClient(transportOptions{
			dialContext:    dialer,
			connectTimeout: time.Duration(connectTimeoutSeconds) * time.Second,
		}, time.Duration(requestTimeoutSeconds)*time.Second))
	}

	return &TorDriver{
		pool:           pool,
		maxConcurrency: maxConcurrency,
		minDelay:       time.Duration(minDelaySeconds) * time.Second,
		maxPages:       maxPagesPerDomain,
		logger:         logger.With("component", "tor_driver"),
	}, nil
}

// socksDialer returns a DialContext routed through a SOCKS5 proxy with
// remote name resolution.
func socksDialer(addr string, connectTimeout time.Duration) (func(ctx context.Context, network, address string) (net.Conn, error), error) {
	d, err := proxy.SOCKS5("tcp", addr, nil, &net.Dialer{Timeout: connectTimeout})
	if err != nil {
		return nil, types.ProxyError(err.Error())
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return func(_ context.Context, network, address string) (net.Conn, error) {
			return d.Dial(network, address)
		}, nil
	}
	return cd.DialContext, nil
}

func (d *TorDriver) Name() string { return "tor" }

func (d *TorDriver) CanHandle(u *url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".onion")
}

func (d *TorDriver) Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error) {
	_, client := d.pool.next()

	idx := cfg.RetryCount
	if idx >= len(torAttemptTimeouts) {
		idx = len(torAttemptTimeouts) - 1
	}
	timeout := torAttemptTimeouts[idx]

	d.logger.Debug("fetching via tor", "url", u.String(), "timeout", timeout)
	resp, err := doFetch(ctx, client, u.String(), u, cfg, "tor", u.Hostname(), timeout)
	if err != nil {
		d.logger.Debug("tor fetch failed", "url", u.String(), "error", err)
		return nil, err
	}
	return resp, nil
}

func (d *TorDriver) MaxConcurrency() int        { return d.maxConcurrency }
func (d *TorDriver) DefaultDelay() time.Duration { return d.minDelay }

// RetryPolicy: onion services that stay down are usually gone for good;
// never wipe the dead list.
func (d *TorDriver) RetryPolicy() (bool, int) { return false, 0 }

func (d *TorDriver) MaxRetries() int { return 3 }

func (d *TorDriver) MaxPagesPerDomain() int { return d.maxPages }

// ClassifyError leans "dead": a v3 onion that fails repeatedly has almost
// always been taken down, not merely congested.
func (d *TorDriver) ClassifyError(msg string) string {
	lower := strings.ToLower(msg)
	if containsAny(lower, "timeout", "ttl expired", "connection refused") {
		return FailureUnreachable
	}
	return FailureDead
}

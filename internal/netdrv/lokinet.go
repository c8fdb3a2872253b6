package netdrv

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// LokinetDriver fetches .loki SNApps through a Lokinet SOCKS5 proxy.
type LokinetDriver struct {
	pool           *clientPool
	maxConcurrency int
	minDelay       time.Duration
	requestTimeout time.Duration
	maxPages       int
	logger         *slog.Logger
}

// NewLokinetDriver builds a Lokinet driver with one client per SOCKS
// gateway.
func NewLokinetDriver(socksAddrs []string, maxConcurrency, minDelaySeconds, connectTimeoutSeconds, requestTimeoutSeconds, maxPagesPerDomain int, logger *slog.Logger) (*LokinetDriver, error) {
	if len(socksAddrs) == 0 {
		return nil, types.ProxyError("no lokinet socks proxies configured")
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

	return &LokinetDriver{
		pool:           pool,
		maxConcurrency: maxConcurrency,
		minDelay:       time.Duration(minDelaySeconds) * time.Second,
		requestTimeout: time.Duration(requestTimeoutSeconds) * time.Second,
		maxPages:       maxPagesPerDomain,
		logger:         logger.With("component", "lokinet_driver"),
	}, nil
}

func (d *LokinetDriver) Name() string { return "lokinet" }

func (d *LokinetDriver) CanHandle(u *url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".loki")
}

func (d *LokinetDriver) Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error) {
	_, client := d.pool.next()
	d.logger.Debug("fetching via lokinet", "url", u.String())
	return doFetch(ctx, client, u.String(), u, cfg, "lokinet", u.Hostname(), d.requestTimeout)
}

func (d *LokinetDriver) MaxConcurrency() int         { return d.maxConcurrency }
func (d *LokinetDriver) DefaultDelay() time.Duration { return d.minDelay }

// RetryPolicy: clear dead URLs on startup; the network is small enough that
// a periodic re-clear adds little.
func (d *LokinetDriver) RetryPolicy() (bool, int) { return true, 0 }

func (d *LokinetDriver) MaxRetries() int { return 4 }

// MaxPagesPerDomain: the Lokinet site population is tiny; cap lower so one
// SNApp cannot dominate the crawl.
func (d *LokinetDriver) MaxPagesPerDomain() int { return d.maxPages }

// ClassifyError defaults to "unreachable": SNApps flap with their
// operator's uptime.
func (d *LokinetDriver) ClassifyError(msg string) string {
	lower := strings.ToLower(msg)
	if containsAny(lower, "404", "not found", "no such name", "name not resolved") {
		return FailureDead
	}
	return FailureUnreachable
}

package netdrv

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// ZeronetDriver fetches .bit zites through a ZeroNet UI proxy. The proxy is
// not an HTTP CONNECT proxy; requests are rewritten to
// http://{proxy}/{host}{path} and sent directly.
type ZeronetDriver struct {
	pool           *clientPool
	proxyBases     []string
	maxConcurrency int
	minDelay       time.Duration
	requestTimeout time.Duration
	maxPages       int
	logger         *slog.Logger
}

// NewZeronetDriver builds a ZeroNet driver with one client per proxy.
func NewZeronetDriver(proxyAddrs []string, maxConcurrency, minDelaySeconds, connectTimeoutSeconds, requestTimeoutSeconds, maxPagesPerDomain int, logger *slog.Logger) (*ZeronetDriver, error) {
	if len(proxyAddrs) == 0 {
		return nil, types.ProxyError("no zeronet http proxies configured")
	}

	pool := &clientPool{}
	bases := make([]string, 0, len(proxyAddrs))
	for _, addr := range proxyAddrs {
		pool.clients = append(pool.clients, newGatewayClient(transportOptions{
			connectTimeout: time.Duration(connectTimeoutSeconds) * time.Second,
		}, time.Duration(requestTimeoutSeconds)*time.Second))
		bases = append(bases, "http://"+addr)
	}

	return &ZeronetDriver{
		pool:           pool,
		proxyBases:     bases,
		maxConcurrency: maxConcurrency,
		minDelay:       time.Duration(minDelaySeconds) * time.Second,
		requestTimeout: time.Duration(requestTimeoutSeconds) * time.Second,
		maxPages:       maxPagesPerDomain,
		logger:         logger.With("component", "zeronet_driver"),
	}, nil
}

func (d *ZeronetDriver) Name() string { return "zeronet" }

func (d *ZeronetDriver) CanHandle(u *url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".bit")
}

// proxyURL rewrites http://talk.bit/page?q=1 to
// http://zeronet1:43110/talk.bit/page?q=1.
func (d *ZeronetDriver) proxyURL(u *url.URL, idx int) string {
	query := ""
	if u.RawQuery != "" {
		query = "?" + u.RawQuery
	}
	return d.proxyBases[idx] + "/" + u.Hostname() + u.Path + query
}

func (d *ZeronetDriver) Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error) {
	idx, client := d.pool.next()
	proxyURL := d.proxyURL(u, idx)
	d.logger.Debug("fetching via zeronet", "url", u.String(), "proxy_url", proxyURL)
	return doFetch(ctx, client, proxyURL, u, cfg, "zeronet", u.Hostname(), d.requestTimeout)
}

func (d *ZeronetDriver) MaxConcurrency() int         { return d.maxConcurrency }
func (d *ZeronetDriver) DefaultDelay() time.Duration { return d.minDelay }

// RetryPolicy: zites reappear when any peer comes online; re-clear daily.
func (d *ZeronetDriver) RetryPolicy() (bool, int) { return false, 86400 }

func (d *ZeronetDriver) MaxRetries() int { return 4 }

func (d *ZeronetDriver) MaxPagesPerDomain() int { return d.maxPages }

// ClassifyError defaults to "unreachable": a zite with zero seeders today
// may have one tomorrow.
func (d *ZeronetDriver) ClassifyError(msg string) string {
	lower := strings.ToLower(msg)
	if containsAny(lower, "404", "invalid address", "not a valid address") {
		return FailureDead
	}
	return FailureUnreachable
}

package netdrv

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// HyphanetDriver fetches freesites through FProxy, the HTTP gateway of a
// Hyphanet (formerly Freenet) node. Freesite URLs carry cryptographic keys
// instead of hostnames:
//
//	hyphanet:USK@<key>/<name>/<version>/
//	hyphanet:SSK@<key>/<name>
//	hyphanet:CHK@<key>
//
// The legacy freenet: scheme is accepted as an alias. The driver rewrites
// keys into gateway URLs like http://hyphanet1:8888/USK@<key>/<name>/<ver>/.
type HyphanetDriver struct {
	pool           *clientPool
	proxyBases     []string
	maxConcurrency int
	minDelay       time.Duration
	maxPages       int
	logger         *slog.Logger
}

// NewHyphanetDriver builds a Hyphanet driver with one client per FProxy.
func NewHyphanetDriver(proxyAddrs []string, maxConcurrency, minDelaySeconds, connectTimeoutSeconds, requestTimeoutSeconds, maxPagesPerDomain int, logger *slog.Logger) (*HyphanetDriver, error) {
	if len(proxyAddrs) == 0 {
		return nil, types.ProxyError("no hyphanet http proxies configured")
	}

	pool := &clientPool{}
	bases := make([]string, 0, len(proxyAddrs))
	for _, addr := range proxyAddrs {
		pool.clients = append(pool.clients, newGatewayClient(transportOptions{
			connectTimeout: time.Duration(connectTimeoutSeconds) * time.Second,
		}, time.Duration(requestTimeoutSeconds)*time.Second))
		bases = append(bases, "http://"+addr)
	}

	return &HyphanetDriver{
		pool:           pool,
		proxyBases:     bases,
		maxConcurrency: maxConcurrency,
		minDelay:       time.Duration(minDelaySeconds) * time.Second,
		maxPages:       maxPagesPerDomain,
		logger:         logger.With("component", "hyphanet_driver"),
	}, nil
}

func (d *HyphanetDriver) Name() string { return "hyphanet" }

func (d *HyphanetDriver) CanHandle(u *url.URL) bool {
	return u.Scheme == "hyphanet" || u.Scheme == "freenet"
}

// ExtractSiteName returns the freesite identity for a key URL: the site name
// segment of USK@key/sitename/edition/, or a truncated key prefix when the
// key has no name part.
func ExtractSiteName(u *url.URL) string {
	keyPath := keyPathOf(u)
	parts := strings.Split(keyPath, "/")
	if len(parts) >= 2 && parts[1] != "" {
		return parts[1]
	}
	if len(parts) > 0 && parts[0] != "" {
		if len(parts[0]) > 20 {
			return parts[0][:20]
		}
		return parts[0]
	}
	return "unknown"
}

// keyPathOf strips the scheme from a hyphanet:/freenet: URL, leaving the
// raw key path.
func keyPathOf(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	raw := u.String()
	for _, scheme := range []string{"hyphanet:", "freenet:"} {
		if rest, ok := strings.CutPrefix(raw, scheme); ok {
			return strings.TrimPrefix(rest, "/")
		}
	}
	return strings.TrimPrefix(u.Path, "/")
}

func (d *HyphanetDriver) Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error) {
	idx, client := d.pool.next()
	proxyURL := d.proxyBases[idx] + "/" + keyPathOf(u)

	// Progressive timeout: Hyphanet routing is slow and improves with
	// retries as the node learns the network.
	timeout := time.Duration(10+10*cfg.RetryCount) * time.Second

	d.logger.Debug("fetching via hyphanet",
		"url", u.String(), "proxy_url", proxyURL, "timeout", timeout, "retry", cfg.RetryCount)

	resp, err := doFetch(ctx, client, proxyURL, u, cfg, "hyphanet", ExtractSiteName(u), timeout)
	if err != nil {
		return nil, err
	}

	// FProxy serves error pages as 200 OK HTML. Detect them by title so
	// they are not stored as real freesites.
	if title := detectFProxyError(resp.Body); title != "" {
		d.logger.Debug("fproxy error page", "url", u.String(), "title", title)
		return nil, types.NetworkError(fmt.Sprintf("FProxy error page: %s", title))
	}

	return resp, nil
}

func (d *HyphanetDriver) MaxConcurrency() int         { return d.maxConcurrency }
func (d *HyphanetDriver) DefaultDelay() time.Duration { return d.minDelay }

// RetryPolicy: keys are permanent but fetches fail until the data routes;
// re-clear unreachable entries every 3 hours.
func (d *HyphanetDriver) RetryPolicy() (bool, int) { return false, 10800 }

// MaxRetries is high because initial attempts on a cold node routinely fail
// even for keys that exist.
func (d *HyphanetDriver) MaxRetries() int { return 12 }

func (d *HyphanetDriver) MaxPagesPerDomain() int { return d.maxPages }

// ClassifyError: malformed keys are dead; routing failures are unreachable
// and worth retrying as network conditions improve.
func (d *HyphanetDriver) ClassifyError(msg string) string {
	lower := strings.ToLower(msg)
	if containsAny(lower, "invalid key", "malformed", "bad key", "404") {
		return FailureDead
	}
	return FailureUnreachable
}

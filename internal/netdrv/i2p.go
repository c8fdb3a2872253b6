package netdrv

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// I2PDriver fetches eepsites through the router's HTTP proxy.
type I2PDriver struct {
	pool           *clientPool
	maxConcurrency int
	minDelay       time.Duration
	requestTimeout time.Duration
	maxPages       int
	logger         *slog.Logger
}

// NewI2PDriver builds an I2P driver with one client per HTTP proxy.
func NewI2PDriver(proxyAddrs []string, maxConcurrency, minDelaySeconds, connectTimeoutSeconds, requestTimeoutSeconds, maxPagesPerDomain int, logger *slog.Logger) (*I2PDriver, error) {
	if len(proxyAddrs) == 0 {
		return nil, types.ProxyError("no i2p http proxies configured")
	}

	pool := &clientPool{}
	for _, addr := range proxyAddrs {
		proxyURL, err := url.Parse("http://" + addr)
		if err != nil {
			return nil, types.ProxyError(err.Error())
		}
		pool.clients = append(pool.clients, newGatewayClient(transportOptions{
			proxyURL:       proxyURL,
			connectTimeout: time.Duration(connectTimeoutSeconds) * time.Second,
		}, time.Duration(requestTimeoutSeconds)*time.Second))
	}

	return &I2PDriver{
		pool:           pool,
		maxConcurrency: maxConcurrency,
		minDelay:       time.Duration(minDelaySeconds) * time.Second,
		requestTimeout: time.Duration(requestTimeoutSeconds) * time.Second,
		maxPages:       maxPagesPerDomain,
		logger:         logger.With("component", "i2p_driver"),
	}, nil
}

func (d *I2PDriver) Name() string { return "i2p" }

func (d *I2PDriver) CanHandle(u *url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".i2p")
}

func (d *I2PDriver) Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error) {
	_, client := d.pool.next()
	d.logger.Debug("fetching via i2p", "url", u.String())
	return doFetch(ctx, client, u.String(), u, cfg, "i2p", u.Hostname(), d.requestTimeout)
}

func (d *I2PDriver) MaxConcurrency() int         { return d.maxConcurrency }
func (d *I2PDriver) DefaultDelay() time.Duration { return d.minDelay }

// RetryPolicy: I2P integrates peers over time; clear dead URLs on startup
// and re-clear every hour as tunnels improve.
func (d *I2PDriver) RetryPolicy() (bool, int) { return true, 3600 }

func (d *I2PDriver) MaxRetries() int { return 4 }

func (d *I2PDriver) MaxPagesPerDomain() int { return d.maxPages }

// ClassifyError leans "unreachable": most I2P failures are tunnel or peer
// conditions that clear as the network warms up.
func (d *I2PDriver) ClassifyError(msg string) string {
	lower := strings.ToLower(msg)
	if containsAny(lower, "404", "not found", "invalid destination", "bad hostname") {
		return FailureDead
	}
	return FailureUnreachable
}

var b32AddrRE = regexp.MustCompile(`([a-z2-7]{52,56})\.b32\.i2p`)

// ExtractBase32Address finds the cryptographic .b32.i2p form of an eepsite
// in the response: the X-I2P-DestB32 header if the proxy provides it,
// otherwise the first base32 address in the body. Returns a full URL or "".
func ExtractBase32Address(headers map[string]string, body string) string {
	for _, key := range []string{"x-i2p-destb32", "x-i2p-dest-b32"} {
		if dest := strings.TrimSpace(headers[key]); len(dest) >= 52 && strings.Contains(dest, ".b32.i2p") {
			return "http://" + dest + "/"
		}
	}
	if m := b32AddrRE.FindString(body); m != "" {
		return "http://" + m + "/"
	}
	return ""
}

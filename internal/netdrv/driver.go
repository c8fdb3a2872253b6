// Package netdrv contains the per-overlay network drivers. Every driver
// bridges the crawler to one anonymity network through its local gateway
// proxies and owns that network's reliability policy: retry budget, timeout
// schedule, error classification, and per-domain page cap.
package netdrv

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// Driver is the capability set every overlay network driver exposes. The
// orchestrator decides how many workers call Fetch concurrently; the only
// shared mutable state inside a driver is its round-robin client counter.
type Driver interface {
	// Name returns the network identifier ("tor", "i2p", ...).
	Name() string

	// CanHandle reports whether this driver fetches the given URL
	// (scheme/TLD match).
	CanHandle(u *url.URL) bool

	// Fetch retrieves one URL through a gateway.
	Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error)

	// MaxConcurrency is the worker count allocated to this network.
	MaxConcurrency() int

	// DefaultDelay is the per-worker inter-request pause (may be zero).
	DefaultDelay() time.Duration

	// RetryPolicy returns whether transient dead URLs are wiped on boot
	// and the interval (seconds) of the background re-clear task
	// (0 = never).
	RetryPolicy() (clearOnStartup bool, periodicRetrySecs int)

	// MaxRetries is the retry budget before a URL is declared dead.
	MaxRetries() int

	// MaxPagesPerDomain is the hard per-domain page cap.
	MaxPagesPerDomain() int

	// ClassifyError partitions a terminal failure message into "dead"
	// (404, invalid key, gone) or "unreachable" (timeout, tunnel,
	// no peers). Unreachable entries may be resurrected later.
	ClassifyError(msg string) string
}

// Failure classes for ClassifyError.
const (
	FailureDead        = "dead"
	FailureUnreachable = "unreachable"
)

// clientPool is a set of HTTP clients, one per configured gateway, selected
// by an atomic round-robin counter.
type clientPool struct {
	clients []*http.Client
	counter atomic.Uint64
}

func (p *clientPool) next() (int, *http.Client) {
	idx := int(p.counter.Add(1) % uint64(len(p.clients)))
	return idx, p.clients[idx]
}

// transportOptions tunes the shared transport for a gateway client.
type transportOptions struct {
	proxyURL       *url.URL // HTTP proxy, nil for direct/dialer transports
	dialContext    func(ctx context.Context, network, addr string) (net.Conn, error)
	connectTimeout time.Duration
}

// newGatewayClient builds one HTTP client for a gateway with the shared
// policy: bounded idle pool, keepalive, up to 10 redirects, no TLS
// verification (overlay services routinely use self-signed certs), and
// manual decompression so brotli responses are handled.
func newGatewayClient(opts transportOptions, requestTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: opts.connectTimeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
		DisableCompression:  true,
	}
	if opts.proxyURL != nil {
		transport.Proxy = http.ProxyURL(opts.proxyURL)
	}
	if opts.dialContext != nil {
		transport.DialContext = opts.dialContext
	}

	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("max redirects (10) reached")
			}
			return nil
		},
	}
}

// doFetch performs one GET through the given client and assembles the
// response: lower-cased headers, size-guarded body, decompression, and
// timing. requestURL is what goes on the wire (gateway-rewritten for
// zeronet/hyphanet); reportURL is what the response is attributed to.
func doFetch(ctx context.Context, client *http.Client, requestURL string, reportURL *url.URL,
	cfg *types.FetchConfig, network, domain string, timeout time.Duration) (*types.FetchResponse, error) {

	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &types.CrawlError{Kind: types.KindInvalidURL, Msg: err.Error()}
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := client.Do(req)
	if err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded {
			return nil, &types.CrawlError{Kind: types.KindTimeout, Msg: fmt.Sprintf("%s after %s", requestURL, timeout)}
		}
		return nil, types.NetworkError(err.Error())
	}
	defer resp.Body.Close()

	headers := copyHeadersLower(resp.Header)

	body, err := readBodyLimited(resp, cfg.MaxBodySize)
	if err != nil {
		return nil, err
	}

	finalURL := reportURL
	if resp.Request != nil && resp.Request.URL != nil && requestURL == reportURL.String() {
		finalURL = resp.Request.URL
	}

	return &types.FetchResponse{
		URL:            reportURL,
		FinalURL:       finalURL,
		Status:         resp.StatusCode,
		Headers:        headers,
		Body:           body,
		ContentType:    headers["content-type"],
		FetchedAt:      time.Now().UTC(),
		Network:        network,
		ResponseTimeMS: time.Since(start).Milliseconds(),
		Domain:         domain,
	}, nil
}

// copyHeadersLower flattens response headers into a map with lower-cased
// names. Multi-valued headers keep their first value.
func copyHeadersLower(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		if len(vals) > 0 {
			out[strings.ToLower(k)] = vals[0]
		}
	}
	return out
}

// readBodyLimited reads the full (decompressed) body, failing with
// BodyTooLarge once the size cap is exceeded.
func readBodyLimited(resp *http.Response, maxSize int) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, types.NetworkError(err.Error())
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fr := flate.NewReader(reader)
		defer fr.Close()
		reader = fr
	case "br":
		reader = brotli.NewReader(reader)
	}

	body, err := io.ReadAll(io.LimitReader(reader, int64(maxSize)+1))
	if err != nil {
		return nil, types.NetworkError(err.Error())
	}
	if len(body) > maxSize {
		return nil, types.BodyTooLargeError(len(body), maxSize)
	}
	return body, nil
}

// fproxyErrorTitles are <title> phrases FProxy uses on HTML error pages it
// serves with HTTP 200.
var fproxyErrorTitles = []string{
	"not found",
	"Not found",
	"Invalid Key",
	"Set Up Freenet",
	"Route not found",
	"Data not found",
	"Permanent Redirect",
}

// detectFProxyError inspects a response body's <title> for known FProxy
// error phrases. Returns the offending title, or "" for a real page.
func detectFProxyError(body []byte) string {
	text := string(body)
	start := strings.Index(text, "<title>")
	if start < 0 {
		return ""
	}
	rest := text[start+len("<title>"):]
	end := strings.Index(rest, "</title>")
	if end < 0 {
		return ""
	}
	title := rest[:end]
	for _, phrase := range fproxyErrorTitles {
		if strings.Contains(title, phrase) {
			return title
		}
	}
	return ""
}

// containsAny reports whether s contains any of the substrings. Used by the
// per-network error classifiers.
func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

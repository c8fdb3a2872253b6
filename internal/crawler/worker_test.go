package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/config"
	"github.com/veilcrawl/veilcrawl/internal/frontier"
	"github.com/veilcrawl/veilcrawl/internal/netdrv"
	"github.com/veilcrawl/veilcrawl/internal/types"
)

// stubDriver is a scriptable tor-like driver for orchestrator tests.
type stubDriver struct {
	fetchErr   error
	body       string
	status     int
	fetchCalls int
	maxRetries int
	maxPages   int
}

func (d *stubDriver) Name() string { return "tor" }

func (d *stubDriver) CanHandle(u *url.URL) bool {
	return strings.HasSuffix(u.Hostname(), ".onion")
}

func (d *stubDriver) Fetch(_ context.Context, u *url.URL, _ *types.FetchConfig) (*types.FetchResponse, error) {
	d.fetchCalls++
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
	status := d.status
	if status == 0 {
		status = 200
	}
	return &types.FetchResponse{
		URL:         u,
		FinalURL:    u,
		Status:      status,
		Headers:     map[string]string{"content-type": "text/html"},
		Body:        []byte(d.body),
		ContentType: "text/html",
		FetchedAt:   time.Now(),
		Network:     "tor",
		Domain:      u.Hostname(),
	}, nil
}

func (d *stubDriver) MaxConcurrency() int          { return 1 }
func (d *stubDriver) DefaultDelay() time.Duration  { return 0 }
func (d *stubDriver) RetryPolicy() (bool, int)     { return false, 0 }
func (d *stubDriver) MaxRetries() int              { return d.maxRetries }
func (d *stubDriver) MaxPagesPerDomain() int       { return d.maxPages }
func (d *stubDriver) ClassifyError(msg string) string {
	if strings.Contains(strings.ToLower(msg), "timeout") {
		return netdrv.FailureUnreachable
	}
	return netdrv.FailureDead
}

// memStore records PageStore calls in memory.
type memStore struct {
	mu           sync.Mutex
	pages        []*types.PageData
	correlations []types.Correlation
	dead         map[string]string // url -> failure_type
}

func newMemStore() *memStore {
	return &memStore{dead: make(map[string]string)}
}

func (m *memStore) StorePage(_ context.Context, page *types.PageData) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages = append(m.pages, page)
	return int64(len(m.pages)), nil
}

func (m *memStore) StoreCorrelation(_ context.Context, domain, ctype, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.correlations = append(m.correlations, types.Correlation{Domain: domain, Type: ctype, Value: value})
	return nil
}

func (m *memStore) MarkDead(_ context.Context, rawURL, _, _ string, _ int, _, failureType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead[rawURL] = failureType
	return nil
}

func (m *memStore) LoadDeadURLs(context.Context) ([]string, error) { return nil, nil }

func (m *memStore) ClearDeadURLsForNetwork(context.Context, string) (int64, error) { return 0, nil }

func newTestCrawler(d netdrv.Driver, store PageStore) *Crawler {
	cfg := &config.Config{
		General: config.GeneralConfig{MaxDepth: 3, MaxPagesPerDomain: 100, MaxBodySizeMB: 10},
	}
	return New(cfg, []netdrv.Driver{d}, store, slog.Default())
}

func onionJob(t *testing.T, path string, retry int) *types.CrawlJob {
	t.Helper()
	u, err := url.Parse("http://" + strings.Repeat("a", 56) + ".onion" + path)
	if err != nil {
		t.Fatal(err)
	}
	return &types.CrawlJob{
		URL:        u,
		Network:    "tor",
		Priority:   frontier.CalculatePriority(u, 0),
		RetryCount: retry,
	}
}

func TestDeadURLNeverFetched(t *testing.T) {
	driver := &stubDriver{maxRetries: 3, maxPages: 100}
	c := newTestCrawler(driver, newMemStore())

	job := onionJob(t, "/p", 0)
	c.deadURLs.Insert(job.URL.String())

	c.processJob(context.Background(), 0, driver, job)
	if driver.fetchCalls != 0 {
		t.Errorf("dead URL was fetched %d times", driver.fetchCalls)
	}
}

func TestRetryBudgetThenDead(t *testing.T) {
	driver := &stubDriver{fetchErr: types.NetworkError("connection refused"), maxRetries: 3, maxPages: 100}
	store := newMemStore()
	c := newTestCrawler(driver, store)

	job := onionJob(t, "/p", 0)
	basePriority := job.Priority
	c.frontier.Push(job)

	// Drive the job through every retry until it dies.
	attempts := 0
	for {
		j := c.frontier.PopForNetwork("tor")
		if j == nil {
			break
		}
		attempts++
		wantPriority := basePriority
		for i := 0; i < j.RetryCount; i++ {
			wantPriority *= 0.5
		}
		if j.Priority != wantPriority {
			t.Errorf("attempt %d priority = %v, want %v", attempts, j.Priority, wantPriority)
		}
		c.processJob(context.Background(), 0, driver, j)
	}

	if attempts != 4 { // initial + 3 retries
		t.Errorf("attempts = %d, want 4", attempts)
	}
	if ft := store.dead[job.URL.String()]; ft != "dead" {
		t.Errorf("failure type = %q, want dead (connection refused leans dead)", ft)
	}
	if !c.deadURLs.Contains(job.URL.String()) {
		t.Error("URL not in in-memory dead set")
	}
}

func TestBodyTooLargeIsTerminal(t *testing.T) {
	driver := &stubDriver{fetchErr: types.BodyTooLargeError(20_000_000, 10_000_000), maxRetries: 3, maxPages: 100}
	store := newMemStore()
	c := newTestCrawler(driver, store)

	job := onionJob(t, "/big", 0)
	c.processJob(context.Background(), 0, driver, job)

	if c.frontier.NetworkLen("tor") != 0 {
		t.Error("oversized body was re-queued for retry")
	}
	if _, ok := store.dead[job.URL.String()]; !ok {
		t.Error("oversized body not dead-listed")
	}
}

func TestPerDomainCap(t *testing.T) {
	driver := &stubDriver{body: "<html><body>ok</body></html>", maxRetries: 3, maxPages: 2}
	store := newMemStore()
	c := newTestCrawler(driver, store)

	for _, path := range []string{"/a", "/b", "/c"} {
		c.processJob(context.Background(), 0, driver, onionJob(t, path, 0))
	}

	if got := len(c.results); got != 2 {
		t.Errorf("results sent = %d, want 2 (cap)", got)
	}
	if c.stats.DomainsCapped.Load() != 1 {
		t.Errorf("domains capped = %d, want 1", c.stats.DomainsCapped.Load())
	}
}

func TestSuccessfulPageFlow(t *testing.T) {
	onion2 := strings.Repeat("b", 56) + ".onion"
	driver := &stubDriver{
		body:       `<html><body><a href="http://` + onion2 + `/next">next</a></body></html>`,
		maxRetries: 3,
		maxPages:   100,
	}
	c := newTestCrawler(driver, newMemStore())

	c.processJob(context.Background(), 0, driver, onionJob(t, "/start", 0))

	if len(c.results) != 1 {
		t.Fatalf("results = %d, want 1", len(c.results))
	}
	result := <-c.results
	if len(result.Page.Links) != 1 {
		t.Errorf("page links = %d", len(result.Page.Links))
	}

	// The discovered link and the infra probes for the source domain all
	// land in the tor queue.
	if c.frontier.NetworkLen("tor") == 0 {
		t.Error("no discovered URLs enqueued")
	}
	found := false
	for {
		j := c.frontier.PopForNetwork("tor")
		if j == nil {
			break
		}
		if j.URL.Hostname() == onion2 {
			found = true
			if j.Depth != 1 {
				t.Errorf("discovered depth = %d, want 1", j.Depth)
			}
			// onion2 has never been probed: new-domain boost applies.
			if j.Priority <= frontier.CalculatePriority(j.URL, 1) {
				t.Errorf("new-domain boost missing: priority = %v", j.Priority)
			}
		}
	}
	if !found {
		t.Error("discovered link not enqueued")
	}
}

func TestRobotsProbeHandledInline(t *testing.T) {
	driver := &stubDriver{
		body:       "User-agent: *\nDisallow: /hidden\n",
		maxRetries: 3,
		maxPages:   100,
	}
	c := newTestCrawler(driver, newMemStore())

	c.processJob(context.Background(), 0, driver, onionJob(t, "/robots.txt", 0))

	if len(c.results) != 0 {
		t.Error("robots.txt stored as a page")
	}
	j := c.frontier.PopForNetwork("tor")
	if j == nil || j.URL.Path != "/hidden" {
		t.Errorf("disallowed path not enqueued: %+v", j)
	}
}

func TestFaviconProbeStoresCorrelation(t *testing.T) {
	driver := &stubDriver{body: "\x00\x01icon-bytes", maxRetries: 3, maxPages: 100}
	store := newMemStore()
	c := newTestCrawler(driver, store)

	c.processJob(context.Background(), 0, driver, onionJob(t, "/favicon.ico", 0))

	if len(c.results) != 0 {
		t.Error("favicon stored as a page")
	}
	if len(store.correlations) != 1 || store.correlations[0].Type != "favicon_hash" {
		t.Errorf("correlations = %+v", store.correlations)
	}
}

func TestNonHTMLSkipped(t *testing.T) {
	driver := &stubDriver{body: "%PDF-1.4", maxRetries: 3, maxPages: 100}
	c := newTestCrawler(driver, newMemStore())

	job := onionJob(t, "/file.pdf", 0)
	// Force a non-HTML content type through the stub.
	driverPDF := &pdfDriver{stubDriver: driver}
	c.drivers = []netdrv.Driver{driverPDF}
	c.processJob(context.Background(), 0, driverPDF, job)

	if len(c.results) != 0 {
		t.Error("non-HTML response reached the storage sink")
	}
}

// pdfDriver wraps stubDriver and reports a PDF content type.
type pdfDriver struct{ *stubDriver }

func (d *pdfDriver) Fetch(ctx context.Context, u *url.URL, cfg *types.FetchConfig) (*types.FetchResponse, error) {
	resp, err := d.stubDriver.Fetch(ctx, u, cfg)
	if err != nil {
		return nil, err
	}
	resp.ContentType = "application/pdf"
	resp.Headers["content-type"] = "application/pdf"
	return resp, nil
}

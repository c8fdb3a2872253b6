package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/config"
	"github.com/veilcrawl/veilcrawl/internal/discovery"
	"github.com/veilcrawl/veilcrawl/internal/netdrv"
	"github.com/veilcrawl/veilcrawl/internal/parser"
	"github.com/veilcrawl/veilcrawl/internal/types"
)

// runWorker is one crawl worker, bound to a single network for its whole
// life. It waits for the network's gateway to become ready, then loops:
// pop, fetch, classify, parse, discover, enqueue, store. A worker never pops
// another network's queue, so a slow Hyphanet fetch cannot starve Tor.
func (c *Crawler) runWorker(ctx context.Context, workerID int, driver netdrv.Driver) {
	network := driver.Name()
	logger := c.logger.With("worker_id", workerID, "network", network)

	if netdrv.NeedsGate(network) {
		if !c.waitForNetwork(ctx, workerID, network) {
			return // shutdown while waiting
		}
	}

	logger.Info("worker started")
	idleCount := 0
	delay := driver.DefaultDelay()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down")
			return
		default:
		}

		job := c.frontier.PopForNetwork(network)
		if job == nil {
			idleCount++
			if idleCount%30 == 1 {
				logger.Info("queue empty, waiting for URLs", "idle_count", idleCount)
			}
			if !sleepCtx(ctx, 2*time.Second) {
				return
			}
			continue
		}
		idleCount = 0

		c.processJob(ctx, workerID, driver, job)

		if delay > 0 && !sleepCtx(ctx, delay) {
			return
		}
	}
}

// waitForNetwork blocks until the network's gateway passes its readiness
// probe. There is no timeout: a gateway that takes an hour to bootstrap
// still becomes useful. Returns false only on shutdown.
func (c *Crawler) waitForNetwork(ctx context.Context, workerID int, network string) bool {
	logger := c.logger.With("worker_id", workerID, "network", network)
	logger.Info("waiting for network to be ready")

	addr := config.ProbeAddr(network, c.getenv)
	attempts := 0
	for {
		if netdrv.ProbeReady(ctx, network, addr) {
			logger.Info("network is ready")
			return true
		}
		attempts++
		if attempts%10 == 1 {
			logger.Info("still waiting for network", "attempts", attempts)
		}
		if !sleepCtx(ctx, 30*time.Second) {
			return false
		}
	}
}

// processJob handles one job end to end.
func (c *Crawler) processJob(ctx context.Context, workerID int, driver netdrv.Driver, job *types.CrawlJob) {
	logger := c.logger.With("worker_id", workerID, "url", job.URL.String())

	// Dead URLs are never fetched, for the lifetime of the store.
	if c.deadURLs.Contains(job.URL.String()) {
		return
	}

	logger.Info("fetching", "depth", job.Depth, "retry", job.RetryCount)

	fetchCfg := *c.fetchCfg
	fetchCfg.RetryCount = job.RetryCount

	resp, err := driver.Fetch(ctx, job.URL, &fetchCfg)
	if err != nil {
		c.handleFetchError(ctx, logger, driver, job, err)
		return
	}
	c.stats.FetchesOK.Add(1)
	c.frontier.RecordHostVisit(resp.Domain)

	rawHTML := string(resp.Body)
	urlPath := job.URL.Path

	// Probe endpoints are handled inline, not stored as pages.
	switch {
	case strings.HasSuffix(urlPath, "/robots.txt") && resp.Status < 400:
		extra := discovery.ParseRobotsTxt(rawHTML, job.URL)
		logger.Info("robots.txt URLs", "count", len(extra))
		c.enqueueRaw(extra, job.Depth, job.URL)
		return
	case strings.Contains(urlPath, "sitemap") && strings.HasSuffix(urlPath, ".xml") && resp.Status < 400:
		extra := discovery.ParseSitemap(rawHTML)
		logger.Info("sitemap URLs", "count", len(extra))
		c.enqueueRaw(extra, job.Depth, job.URL)
		return
	case strings.HasSuffix(urlPath, "/favicon.ico") && resp.Status < 400:
		corr := discovery.HashFavicon(resp.Domain, resp.Body)
		if err := c.store.StoreCorrelation(ctx, corr.Domain, corr.Type, corr.Value); err != nil {
			logger.Error("favicon correlation store failed", "error", err)
		}
		return
	}

	// Missing content type is assumed HTML; anything else is skipped.
	if resp.ContentType != "" && !strings.Contains(resp.ContentType, "text/html") {
		return
	}

	page, err := parser.ParseResponse(resp)
	if err != nil {
		logger.Warn("parse error", "error", err)
		return
	}
	c.stats.PagesParsed.Add(1)

	// Per-domain cap: one site must not monopolize the crawl.
	count := c.domainCount(resp.Domain).Add(1) - 1
	maxPages := driver.MaxPagesPerDomain()
	if int(count) >= maxPages {
		c.stats.DomainsCapped.Add(1)
		logger.Warn("domain exceeded page limit, skipping",
			"domain", resp.Domain, "count", count, "max", maxPages)
		return
	}

	discovered, correlations := c.runDiscovery(logger, job, resp, page, rawHTML)

	if job.Depth < c.maxDepth {
		c.enqueueDiscovered(discovered, job, logger)
	}

	// Hand off to the storage sink; drop rather than deadlock if the sink
	// is wedged behind a slow database.
	result := &CrawlResult{Page: page, Correlations: correlations}
	select {
	case c.results <- result:
	case <-time.After(storeSendTimeout):
		c.stats.ResultsDropped.Add(1)
		logger.Warn("storage channel full, dropping result to prevent deadlock")
	case <-ctx.Done():
	}
}

// runDiscovery executes every discovery stage for a parsed page and returns
// the candidate URLs plus correlation records.
func (c *Crawler) runDiscovery(logger *slog.Logger, job *types.CrawlJob, resp *types.FetchResponse, page *types.PageData, rawHTML string) ([]string, []types.Correlation) {

	var discovered []string

	// 1. Source mining over the raw HTML
	mined := discovery.MineSource(rawHTML, job.URL)
	if len(mined) > 0 {
		logger.Info("source miner URLs", "count", len(mined))
	}
	discovered = append(discovered, mined...)

	// 2. Correlation fingerprints
	correlations := discovery.ExtractCorrelations(resp.Domain, rawHTML, resp.Headers)
	if len(correlations) > 0 {
		logger.Info("correlations", "count", len(correlations))
	}

	// 2.5 Base32 discovery when visiting a human-readable eepsite
	host := job.URL.Hostname()
	if strings.HasSuffix(host, ".i2p") && !strings.HasSuffix(host, ".b32.i2p") {
		if b32 := netdrv.ExtractBase32Address(resp.Headers, rawHTML); b32 != "" {
			logger.Info("discovered i2p base32 address", "b32", b32)
			discovered = append(discovered, b32)
		}
	}

	// 3. Search-form spidering
	if page.Metadata.HasSearchForm {
		forms := discovery.FindSearchForms(rawHTML, job.URL)
		formURLs := discovery.GenerateSearchURLs(forms)
		if len(formURLs) > 0 {
			logger.Info("form spider URLs", "count", len(formURLs))
		}
		discovered = append(discovered, formURLs...)
	}

	// 4. Numeric pattern mutation over the page's links
	linkURLs := make([]string, 0, len(page.Links))
	for _, l := range page.Links {
		linkURLs = append(linkURLs, l.URL)
	}
	mutated := discovery.MutatePatterns(linkURLs, 2)
	if len(mutated) > 0 {
		logger.Info("pattern mutator URLs", "count", len(mutated))
	}
	discovered = append(discovered, mutated...)

	// 5. Infrastructure probes, once per domain. Hyphanet keys have no
	// probe-able domain root.
	scheme := job.URL.Scheme
	if scheme != "hyphanet" && scheme != "freenet" && c.markProbed(resp.Domain) {
		if baseURL, err := url.Parse(scheme + "://" + resp.Domain); err == nil {
			probes := discovery.GenerateProbes(baseURL)
			logger.Info("infra probes queued", "domain", resp.Domain, "count", len(probes))
			for _, p := range probes {
				discovered = append(discovered, p.ProbeURL)
			}
		}
	}

	// 6. Standard links
	discovered = append(discovered, linkURLs...)

	return discovered, correlations
}

// enqueueDiscovered builds one batch from a page's discovered URLs: in-page
// dedup, dead filter, priority adjustments, then a single push_batch.
func (c *Crawler) enqueueDiscovered(discovered []string, job *types.CrawlJob, logger *slog.Logger) {
	seenThisPage := make(map[string]struct{}, len(discovered))
	batch := make([]*types.CrawlJob, 0, len(discovered))

	for _, urlStr := range discovered {
		if _, dup := seenThisPage[urlStr]; dup {
			continue
		}
		seenThisPage[urlStr] = struct{}{}

		if c.deadURLs.Contains(urlStr) {
			continue
		}

		newJob := makeCrawlJob(urlStr, job.Depth, job.URL, c.drivers)
		if newJob == nil {
			continue
		}

		if linkDomain := newJob.URL.Hostname(); linkDomain != "" {
			// Never-probed domains are almost certainly unvisited; surface
			// them far ahead of more pages from known sites.
			if !c.isProbed(linkDomain) {
				newJob.Priority *= 1000.0
			}
			// Deprioritize domains closing in on their page cap. The hard
			// stop happens at fetch time; this just spends budget elsewhere.
			if v, ok := c.domainPages.Load(linkDomain); ok {
				pageCount := v.(*atomic.Int64).Load()
				for _, d := range c.drivers {
					if d.CanHandle(newJob.URL) {
						if int(pageCount) > d.MaxPagesPerDomain()/2 {
							newJob.Priority *= 0.1
						}
						break
					}
				}
			}
		}
		batch = append(batch, newJob)
	}

	if len(batch) == 0 {
		return
	}
	enqueued := c.frontier.PushBatch(batch)
	if enqueued > 0 {
		c.stats.URLsEnqueued.Add(int64(enqueued))
		logger.Info("URLs enqueued", "enqueued", enqueued)
	}
}

// enqueueRaw pushes probe-derived URLs (robots.txt, sitemaps) one by one.
func (c *Crawler) enqueueRaw(urls []string, depth int, sourceURL *url.URL) {
	for _, urlStr := range urls {
		if job := makeCrawlJob(urlStr, depth, sourceURL, c.drivers); job != nil {
			if c.frontier.Push(job) {
				c.stats.URLsEnqueued.Add(1)
			}
		}
	}
}

// handleFetchError re-queues a failed job at half priority while the retry
// budget lasts, then dead-lists the URL with its failure classification.
// Oversized bodies are terminal immediately.
func (c *Crawler) handleFetchError(ctx context.Context, logger *slog.Logger, driver netdrv.Driver, job *types.CrawlJob, err error) {
	c.stats.FetchesFailed.Add(1)

	if !types.IsBodyTooLarge(err) && job.RetryCount < driver.MaxRetries() {
		logger.Warn("fetch failed, will retry", "retry", job.RetryCount, "error", err)
		c.stats.Retries.Add(1)
		c.frontier.Push(job.Retry())
		return
	}

	errMsg := err.Error()
	failureType := driver.ClassifyError(errMsg)
	domain := job.URL.Hostname()
	if domain == "" {
		domain = "unknown"
	}
	logger.Warn("fetch failed permanently",
		"retries", job.RetryCount, "failure_type", failureType, "error", errMsg)

	c.stats.DeadMarked.Add(1)
	c.deadURLs.Insert(job.URL.String())
	if err := c.store.MarkDead(ctx, job.URL.String(), job.Network, domain, job.RetryCount, errMsg, failureType); err != nil {
		logger.Warn("mark dead failed", "error", err)
	}
}

// sleepCtx sleeps unless ctx is cancelled first. Returns false on cancel.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Package crawler is the crawl orchestrator: it owns the worker pool, the
// network readiness gates, the discovery pipeline, the storage sink, and the
// per-network retry-policy tasks.
package crawler

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/config"
	"github.com/veilcrawl/veilcrawl/internal/frontier"
	"github.com/veilcrawl/veilcrawl/internal/netdrv"
	"github.com/veilcrawl/veilcrawl/internal/types"
)

// PageStore is the persistence contract the crawler consumes. The Postgres
// implementation lives in internal/storage.
type PageStore interface {
	StorePage(ctx context.Context, page *types.PageData) (int64, error)
	StoreCorrelation(ctx context.Context, domain, correlationType, value string) error
	MarkDead(ctx context.Context, url, network, domain string, retryCount int, lastError, failureType string) error
	LoadDeadURLs(ctx context.Context) ([]string, error)
	ClearDeadURLsForNetwork(ctx context.Context, network string) (int64, error)
}

// CrawlResult bundles one parsed page with its correlation records on the
// way to the storage sink.
type CrawlResult struct {
	Page         *types.PageData
	Correlations []types.Correlation
}

const (
	// resultChannelSize bounds the storage channel; workers drop results
	// rather than block forever when the database cannot keep up.
	resultChannelSize = 10000

	// storeSendTimeout is how long a worker waits on a full channel.
	storeSendTimeout = 30 * time.Second

	// lowCapacityThreshold triggers the slow-database warning.
	lowCapacityThreshold = 1000

	// stallThreshold is how long the sink may sit idle before warning.
	stallThreshold = 5 * time.Minute
)

// Crawler wires the frontier, drivers, discovery, and storage together.
type Crawler struct {
	cfg      *config.Config
	logger   *slog.Logger
	frontier *frontier.Frontier
	drivers  []netdrv.Driver
	store    PageStore
	stats    *Stats

	// deadURLs mirrors the dead_urls table for cheap sharded-lock worker
	// checks.
	deadURLs *frontier.ConcurrentSet

	// probedDomains tracks hosts whose infrastructure probes were already
	// emitted this session. One shot per domain.
	probedMu      sync.Mutex
	probedDomains map[string]struct{}

	// domainPages counts successful parses per host.
	domainPages sync.Map // host -> *atomic.Int64

	results  chan *CrawlResult
	maxDepth int
	fetchCfg *types.FetchConfig
	getenv   func(string) string
}

// New builds a crawler from config, drivers, and a store.
func New(cfg *config.Config, drivers []netdrv.Driver, store PageStore, logger *slog.Logger) *Crawler {
	fetchCfg := types.DefaultFetchConfig()
	fetchCfg.MaxBodySize = cfg.General.MaxBodySizeMB * 1024 * 1024

	return &Crawler{
		cfg:           cfg,
		logger:        logger.With("component", "crawler"),
		frontier:      frontier.New(logger),
		drivers:       drivers,
		store:         store,
		stats:         &Stats{StartTime: time.Now()},
		deadURLs:      frontier.NewConcurrentSet(),
		probedDomains: make(map[string]struct{}),
		results:       make(chan *CrawlResult, resultChannelSize),
		maxDepth:      cfg.General.MaxDepth,
		fetchCfg:      fetchCfg,
		getenv:        os.Getenv,
	}
}

// BuildDrivers constructs the enabled network drivers from config. A driver
// that fails to build is logged and skipped; the crawl proceeds on the rest.
func BuildDrivers(cfg *config.Config, logger *slog.Logger) []netdrv.Driver {
	maxPages := cfg.General.MaxPagesPerDomain
	lokiPages := maxPages / 2
	if lokiPages < 1 {
		lokiPages = 1
	}

	var drivers []netdrv.Driver
	add := func(name string, d netdrv.Driver, err error, proxies []string, workers int) {
		if err != nil {
			logger.Error("failed to create driver", "network", name, "error", err)
			return
		}
		logger.Info("driver ready", "network", name, "proxies", proxies, "workers", workers)
		drivers = append(drivers, d)
	}

	if nc := cfg.Tor; nc.Enabled {
		d, err := netdrv.NewTorDriver(nc.SocksProxies, nc.MaxConcurrency, nc.MinDelaySeconds,
			nc.ConnectTimeoutSeconds, nc.RequestTimeoutSeconds, maxPages, logger)
		add("tor", d, err, nc.SocksProxies, nc.MaxConcurrency)
	}
	if nc := cfg.I2P; nc.Enabled {
		d, err := netdrv.NewI2PDriver(nc.HTTPProxies, nc.MaxConcurrency, nc.MinDelaySeconds,
			nc.ConnectTimeoutSeconds, nc.RequestTimeoutSeconds, maxPages, logger)
		add("i2p", d, err, nc.HTTPProxies, nc.MaxConcurrency)
	}
	if nc := cfg.Zeronet; nc.Enabled {
		d, err := netdrv.NewZeronetDriver(nc.HTTPProxies, nc.MaxConcurrency, nc.MinDelaySeconds,
			nc.ConnectTimeoutSeconds, nc.RequestTimeoutSeconds, maxPages, logger)
		add("zeronet", d, err, nc.HTTPProxies, nc.MaxConcurrency)
	}
	if nc := cfg.Hyphanet; nc.Enabled {
		d, err := netdrv.NewHyphanetDriver(nc.HTTPProxies, nc.MaxConcurrency, nc.MinDelaySeconds,
			nc.ConnectTimeoutSeconds, nc.RequestTimeoutSeconds, maxPages, logger)
		add("hyphanet", d, err, nc.HTTPProxies, nc.MaxConcurrency)
	}
	if nc := cfg.Lokinet; nc.Enabled {
		d, err := netdrv.NewLokinetDriver(nc.SocksProxies, nc.MaxConcurrency, nc.MinDelaySeconds,
			nc.ConnectTimeoutSeconds, nc.RequestTimeoutSeconds, lokiPages, logger)
		add("lokinet", d, err, nc.SocksProxies, nc.MaxConcurrency)
	}
	return drivers
}

// AddSeeds loads seed URLs into the frontier, inferring each seed's network.
func (c *Crawler) AddSeeds(urls []string) {
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		network := detectSeedNetwork(raw)
		c.frontier.AddSeeds([]string{raw}, network)
	}
	c.logger.Info("seeds loaded", "count", len(urls))
}

// Stats exposes the crawl counters.
func (c *Crawler) Stats() *Stats { return c.stats }

// Run starts the crawl and blocks until ctx is cancelled and all tasks have
// wound down. In-flight fetches complete; the storage sink drains before
// returning.
func (c *Crawler) Run(ctx context.Context) error {
	// Apply per-network startup retry policies before hydrating the dead
	// set, so cleared URLs are fetchable this session.
	for _, d := range c.drivers {
		clearOnStartup, _ := d.RetryPolicy()
		if !clearOnStartup {
			continue
		}
		cleared, err := c.store.ClearDeadURLsForNetwork(ctx, d.Name())
		switch {
		case err != nil:
			c.logger.Error("failed to clear dead URLs", "network", d.Name(), "error", err)
		case cleared > 0:
			c.logger.Info("cleared dead URLs on startup", "network", d.Name(), "cleared", cleared)
		}
	}

	// Dead URLs persist across restarts; hydrate the in-memory mirror.
	dead, err := c.store.LoadDeadURLs(ctx)
	if err != nil {
		c.logger.Error("failed to load dead URLs", "error", err)
	}
	for _, u := range dead {
		c.deadURLs.Insert(u)
	}
	c.logger.Info("loaded dead URLs from database", "count", len(dead))

	var wg sync.WaitGroup

	// Storage sink
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.runStorageSink(ctx)
	}()

	// Periodic retry tasks for networks that opt in
	for _, d := range c.drivers {
		_, retrySecs := d.RetryPolicy()
		if retrySecs <= 0 {
			continue
		}
		wg.Add(1)
		go func(d netdrv.Driver, interval time.Duration) {
			defer wg.Done()
			c.runRetryTask(ctx, d.Name(), interval)
		}(d, time.Duration(retrySecs)*time.Second)
	}

	// Workers: a fixed pool per network, each bound to one driver.
	total := 0
	workerID := 0
	for _, d := range c.drivers {
		for i := 0; i < d.MaxConcurrency(); i++ {
			wg.Add(1)
			go func(id int, d netdrv.Driver) {
				defer wg.Done()
				c.runWorker(ctx, id, d)
			}(workerID, d)
			workerID++
			total++
		}
	}
	c.logger.Info("spawned crawl workers", "total_workers", total, "networks", len(c.drivers))

	<-ctx.Done()
	c.logger.Info("shutdown signal received")
	wg.Wait()
	c.logger.Info("shutdown complete", "stats", c.stats.Snapshot())
	return nil
}

// runRetryTask periodically deletes a network's unreachable dead URLs so
// they re-enter the crawl on the next startup load. Missed ticks are skipped
// rather than bursted.
func (c *Crawler) runRetryTask(ctx context.Context, network string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("retry task shutting down", "network", network)
			return
		case <-ticker.C:
			cleared, err := c.store.ClearDeadURLsForNetwork(ctx, network)
			switch {
			case err != nil:
				c.logger.Error("failed to clear dead URLs", "network", network, "error", err)
			case cleared > 0:
				c.logger.Info("cleared dead URLs for periodic retry",
					"network", network, "cleared", cleared, "interval", interval)
			}
		}
	}
}

// runStorageSink consumes crawl results and writes them to the store. It
// warns when the channel runs low on capacity (slow database) and when no
// page has been stored for stallThreshold. On shutdown it drains whatever
// is left in the channel, best-effort.
func (c *Crawler) runStorageSink(ctx context.Context) {
	logger := c.logger.With("component", "storage_sink")
	lastStore := time.Now()
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	storeOne := func(writeCtx context.Context, result *CrawlResult) {
		id, err := c.store.StorePage(writeCtx, result.Page)
		if err != nil {
			logger.Error("store failed", "url", result.Page.URL, "error", err)
		} else {
			c.stats.PagesStored.Add(1)
			lastStore = time.Now()
			logger.Info("stored page", "page_id", id, "url", result.Page.URL,
				"total", c.stats.PagesStored.Load())
		}
		for _, corr := range result.Correlations {
			if err := c.store.StoreCorrelation(writeCtx, corr.Domain, corr.Type, corr.Value); err != nil {
				logger.Error("correlation store failed", "domain", corr.Domain, "error", err)
			}
		}
	}

	for {
		select {
		case result := <-c.results:
			storeOne(ctx, result)
			if free := resultChannelSize - len(c.results); free < lowCapacityThreshold {
				logger.Warn("storage channel low capacity - DB may be slow",
					"free", free, "pages_stored", c.stats.PagesStored.Load())
			}
		case <-ticker.C:
			if idle := time.Since(lastStore); idle > stallThreshold {
				logger.Warn("no pages stored recently - crawl may be stalled",
					"idle_secs", int(idle.Seconds()), "pages_stored", c.stats.PagesStored.Load())
			}
		case <-ctx.Done():
			logger.Info("storage sink shutting down", "pages_stored", c.stats.PagesStored.Load())
			// Drain remaining results; writes get a fresh context since
			// ctx is already cancelled.
			drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			for {
				select {
				case result := <-c.results:
					storeOne(drainCtx, result)
				default:
					return
				}
			}
		}
	}
}

// domainCount returns the page counter for a host, creating it on first use.
func (c *Crawler) domainCount(host string) *atomic.Int64 {
	if v, ok := c.domainPages.Load(host); ok {
		return v.(*atomic.Int64)
	}
	v, _ := c.domainPages.LoadOrStore(host, &atomic.Int64{})
	return v.(*atomic.Int64)
}

// markProbed records that a domain's infra probes were emitted. Returns true
// the first time only.
func (c *Crawler) markProbed(domain string) bool {
	c.probedMu.Lock()
	defer c.probedMu.Unlock()
	if _, ok := c.probedDomains[domain]; ok {
		return false
	}
	c.probedDomains[domain] = struct{}{}
	return true
}

// isProbed checks the probe set without mutating it.
func (c *Crawler) isProbed(domain string) bool {
	c.probedMu.Lock()
	defer c.probedMu.Unlock()
	_, ok := c.probedDomains[domain]
	return ok
}

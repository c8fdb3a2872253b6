package frontier

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// Frontier is the crawl frontier: one priority queue per network plus a
// global dedup set. Workers only pop from their own network's queue, so a
// slow network can never starve a fast one.
type Frontier struct {
	mu       sync.RWMutex
	networks map[string]*queueEntry

	// seenURLs is the global URL dedup set, keyed by normalized URL.
	seenURLs *ConcurrentSet

	// hostLastSeen records last-visit times per host. Politeness pacing is
	// prepared but not enforced anywhere.
	hostLastSeen sync.Map // host -> time.Time

	logger *slog.Logger
}

type queueEntry struct {
	mu sync.Mutex
	q  *networkQueue
}

// New creates an empty frontier. The dedup set starts fresh each session:
// within-session dedup only, so pages can be re-crawled across runs for new
// content.
func New(logger *slog.Logger) *Frontier {
	return &Frontier{
		networks: make(map[string]*queueEntry),
		seenURLs: NewConcurrentSet(),
		logger:   logger.With("component", "frontier"),
	}
}

// Normalize returns the canonical dedup key for a URL string: lowercase
// host, fragment removed, trailing slash stripped from paths longer than
// "/", whole string lowercased. Non-parseable input falls back to the raw
// lowercased string.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	return normalizeURL(u)
}

func normalizeURL(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	if len(n.Path) > 1 && strings.HasSuffix(n.Path, "/") {
		n.Path = strings.TrimRight(n.Path, "/")
		n.RawPath = ""
	}
	return strings.ToLower(n.String())
}

// CalculatePriority derives a job priority from the address type of the URL
// and its crawl depth. Cryptographic addresses (permanent, unhijackable)
// start at 2.0, human-readable names at 1.0; the base is divided by
// (depth + 2) so shallower URLs win ties.
func CalculatePriority(u *url.URL, depth int) float64 {
	host := u.Hostname()
	base := classifyAddressType(host)
	if host == "" && (u.Scheme == "hyphanet" || u.Scheme == "freenet") {
		base = classifyAddressType(strings.ToLower(u.Opaque))
	}
	return base / (float64(depth) + 2.0)
}

// classifyAddressType returns 2.0 for cryptographic addresses and 1.0 for
// human-readable ones.
func classifyAddressType(host string) float64 {
	if name, ok := strings.CutSuffix(host, ".onion"); ok {
		if len(name) == 56 && isBase32Lower(name) {
			return 2.0 // v3 onion
		}
		return 1.0 // v2 or malformed
	}

	if name, ok := strings.CutSuffix(host, ".b32.i2p"); ok {
		if (len(name) == 52 || len(name) >= 56) && isBase32Lower(name) {
			return 2.0
		}
		return 1.0
	}
	if strings.HasSuffix(host, ".i2p") {
		return 1.0 // addressbook name
	}

	lower := strings.ToLower(host)
	if strings.Contains(lower, "usk@") || strings.Contains(lower, "ssk@") || strings.Contains(lower, "chk@") {
		return 2.0 // Hyphanet key
	}

	if name, ok := strings.CutSuffix(host, ".bit"); ok {
		if looksLikeBitcoinAddress(name) {
			return 2.0
		}
		return 1.0 // Namecoin name
	}

	if name, ok := strings.CutSuffix(host, ".loki"); ok {
		if len(name) == 52 && isLowerAlpha32(name) {
			return 2.0
		}
		return 1.0 // ONS name
	}

	return 1.0
}

func isBase32Lower(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= '2' && c <= '7') {
			return false
		}
	}
	return true
}

func isLowerAlpha32(s string) bool {
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// looksLikeBitcoinAddress matches legacy base58 addresses: starts with 1 or
// 3, 26-35 chars, base58 alphabet.
func looksLikeBitcoinAddress(name string) bool {
	if len(name) < 26 || len(name) > 35 {
		return false
	}
	if name[0] != '1' && name[0] != '3' {
		return false
	}
	for _, c := range name {
		switch {
		case c >= '1' && c <= '9':
		case c >= 'A' && c <= 'H':
		case c >= 'J' && c <= 'N':
		case c >= 'P' && c <= 'Z':
		case c >= 'a' && c <= 'k':
		case c >= 'm' && c <= 'z':
		default:
			return false
		}
	}
	return true
}

func (f *Frontier) entry(network string) *queueEntry {
	f.mu.RLock()
	e, ok := f.networks[network]
	f.mu.RUnlock()
	if ok {
		return e
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok = f.networks[network]; ok {
		return e
	}
	e = &queueEntry{q: newNetworkQueue()}
	f.networks[network] = e
	return e
}

// Push adds a job to its network's queue. Returns true iff the job was newly
// enqueued; false means the URL was deduplicated. Retries bypass the dedup
// check since they were already seen and need re-queuing.
func (f *Frontier) Push(job *types.CrawlJob) bool {
	normalized := normalizeURL(job.URL)
	if job.RetryCount == 0 {
		if !f.seenURLs.Insert(normalized) {
			return false
		}
	}
	e := f.entry(job.Network)
	e.mu.Lock()
	e.q.push(normalized, job)
	e.mu.Unlock()
	return true
}

// PushBatch enqueues many jobs at once: one dedup pass, then one lock
// acquisition per destination network. Returns the number enqueued.
func (f *Frontier) PushBatch(jobs []*types.CrawlJob) int {
	if len(jobs) == 0 {
		return 0
	}

	type keyed struct {
		normalized string
		job        *types.CrawlJob
	}
	byNetwork := make(map[string][]keyed)
	for _, job := range jobs {
		normalized := normalizeURL(job.URL)
		if job.RetryCount == 0 && !f.seenURLs.Insert(normalized) {
			continue
		}
		byNetwork[job.Network] = append(byNetwork[job.Network], keyed{normalized, job})
	}

	added := 0
	for network, batch := range byNetwork {
		e := f.entry(network)
		e.mu.Lock()
		for _, k := range batch {
			e.q.push(k.normalized, k.job)
			added++
		}
		e.mu.Unlock()
	}
	return added
}

// PopForNetwork removes and returns the highest-priority job for a network,
// or nil if its queue is empty.
func (f *Frontier) PopForNetwork(network string) *types.CrawlJob {
	f.mu.RLock()
	e, ok := f.networks[network]
	f.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.pop()
}

// PopBatchForNetwork pops up to n jobs in a single lock acquisition.
func (f *Frontier) PopBatchForNetwork(network string, n int) []*types.CrawlJob {
	f.mu.RLock()
	e, ok := f.networks[network]
	f.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := make([]*types.CrawlJob, 0, n)
	for i := 0; i < n; i++ {
		job := e.q.pop()
		if job == nil {
			break
		}
		batch = append(batch, job)
	}
	return batch
}

// PushBack re-enqueues jobs that could not be processed, without touching
// the dedup set.
func (f *Frontier) PushBack(network string, jobs []*types.CrawlJob) {
	if len(jobs) == 0 {
		return
	}
	e := f.entry(network)
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, job := range jobs {
		e.q.push(normalizeURL(job.URL), job)
	}
}

// AddSeeds enqueues seed URLs for a network at base priority. Seeds bypass
// the dedup check (directories and registries are worth re-crawling every
// session) but are marked seen so discovered links back to them dedup.
// Returns the number of seeds enqueued.
func (f *Frontier) AddSeeds(urls []string, network string) int {
	added := 0
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		normalized := normalizeURL(u)
		job := &types.CrawlJob{
			URL:      u,
			Depth:    0,
			Network:  network,
			Priority: CalculatePriority(u, 0),
		}
		f.seenURLs.Insert(normalized)
		e := f.entry(network)
		e.mu.Lock()
		e.q.push(normalized, job)
		e.mu.Unlock()
		added++
	}
	f.logger.Debug("added seeds to frontier", "added", added, "total", len(urls), "network", network)
	return added
}

// MarkSeenBatch hydrates the dedup set without enqueuing anything, for
// loading known URLs from the store at startup.
func (f *Frontier) MarkSeenBatch(urls []string) {
	for _, raw := range urls {
		f.seenURLs.Insert(Normalize(raw))
	}
}

// NetworkLen returns the queue length of one network.
func (f *Frontier) NetworkLen(network string) int {
	f.mu.RLock()
	e, ok := f.networks[network]
	f.mu.RUnlock()
	if !ok {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.q.len()
}

// Len returns the total number of queued jobs across networks.
func (f *Frontier) Len() int {
	f.mu.RLock()
	entries := make([]*queueEntry, 0, len(f.networks))
	for _, e := range f.networks {
		entries = append(entries, e)
	}
	f.mu.RUnlock()
	total := 0
	for _, e := range entries {
		e.mu.Lock()
		total += e.q.len()
		e.mu.Unlock()
	}
	return total
}

// SeenCount returns the size of the dedup set.
func (f *Frontier) SeenCount() int {
	return f.seenURLs.Len()
}

// RecordHostVisit notes that a host was fetched now.
func (f *Frontier) RecordHostVisit(host string) {
	f.hostLastSeen.Store(host, time.Now())
}

// CanVisitHost reports whether minDelay has elapsed since the last visit to
// host. Reserved for politeness pacing; not called by the orchestrator.
func (f *Frontier) CanVisitHost(host string, minDelay time.Duration) bool {
	v, ok := f.hostLastSeen.Load(host)
	if !ok {
		return true
	}
	return time.Since(v.(time.Time)) >= minDelay
}

package crawler

import (
	"sync/atomic"
	"time"
)

// Stats tracks crawl counters. All fields are atomic; Snapshot is safe to
// call from any goroutine.
type Stats struct {
	FetchesOK      atomic.Int64
	FetchesFailed  atomic.Int64
	Retries        atomic.Int64
	DeadMarked     atomic.Int64
	PagesParsed    atomic.Int64
	PagesStored    atomic.Int64
	ResultsDropped atomic.Int64
	URLsEnqueued   atomic.Int64
	DomainsCapped  atomic.Int64
	StartTime      time.Time
}

// Snapshot returns the counters as a loggable map.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"fetches_ok":      s.FetchesOK.Load(),
		"fetches_failed":  s.FetchesFailed.Load(),
		"retries":         s.Retries.Load(),
		"dead_marked":     s.DeadMarked.Load(),
		"pages_parsed":    s.PagesParsed.Load(),
		"pages_stored":    s.PagesStored.Load(),
		"results_dropped": s.ResultsDropped.Load(),
		"urls_enqueued":   s.URLsEnqueued.Load(),
		"domains_capped":  s.DomainsCapped.Load(),
		"elapsed":         time.Since(s.StartTime).String(),
	}
}

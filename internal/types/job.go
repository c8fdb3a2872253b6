package types

import (
	"net/url"
	"time"
)

// CrawlJob is a single unit of work in the frontier. Jobs are created by the
// seeder or by discovery and consumed exactly once by a worker. A retry is a
// new job with RetryCount+1 and half the priority; jobs are never mutated in
// place.
type CrawlJob struct {
	// URL is the target to fetch.
	URL *url.URL

	// Depth is the crawl depth from the seed (seeds are depth 0).
	Depth int

	// SourceURL is the page this job was discovered on, empty for seeds.
	SourceURL string

	// Network names the overlay this job belongs to: "tor", "i2p",
	// "zeronet", "hyphanet", "lokinet".
	Network string

	// Priority controls dequeue order within a network queue.
	// Higher = popped first.
	Priority float64

	// RetryCount tracks how many failed attempts preceded this job.
	RetryCount int
}

// Retry returns the follow-up job for a failed attempt: same URL, one more
// retry, half the priority.
func (j *CrawlJob) Retry() *CrawlJob {
	return &CrawlJob{
		URL:        j.URL,
		Depth:      j.Depth,
		SourceURL:  j.SourceURL,
		Network:    j.Network,
		Priority:   j.Priority * 0.5,
		RetryCount: j.RetryCount + 1,
	}
}

// FetchConfig carries per-attempt fetch parameters into a driver.
type FetchConfig struct {
	// Timeout is the per-attempt request timeout. Drivers with progressive
	// timeout schedules may override it based on RetryCount.
	Timeout time.Duration

	// MaxBodySize caps the response body in bytes; larger bodies fail the
	// fetch with a BodyTooLarge error.
	MaxBodySize int

	// FollowRedirects is carried for callers but not consulted by the
	// drivers: their shared clients always follow redirects, up to 10 hops.
	FollowRedirects bool

	// UserAgent is sent on every request.
	UserAgent string

	// RetryCount is the attempt index of the job being fetched, used by
	// drivers with retry-dependent timeouts.
	RetryCount int
}

// DefaultFetchConfig returns the baseline fetch parameters.
func DefaultFetchConfig() *FetchConfig {
	return &FetchConfig{
		Timeout:         120 * time.Second,
		MaxBodySize:     10 * 1024 * 1024,
		FollowRedirects: true,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0",
	}
}

// FetchResponse is what a driver hands to the parser.
type FetchResponse struct {
	URL            *url.URL
	FinalURL       *url.URL
	Status         int
	Headers        map[string]string // lower-cased header names
	Body           []byte
	ContentType    string
	FetchedAt      time.Time
	Network        string
	ResponseTimeMS int64

	// Domain is network-specific: the host for HTTP-like networks, the
	// freesite name (or truncated key) for Hyphanet.
	Domain string
}

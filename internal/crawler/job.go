package crawler

import (
	"net/url"
	"strings"

	"github.com/veilcrawl/veilcrawl/internal/frontier"
	"github.com/veilcrawl/veilcrawl/internal/netdrv"
	"github.com/veilcrawl/veilcrawl/internal/types"
)

// makeCrawlJob turns a discovered URL string into a CrawlJob, or nil when it
// cannot be crawled: foreign schemes, clearnet hosts, v2 onions, and URLs no
// driver handles are all rejected here so garbage never reaches the
// frontier.
func makeCrawlJob(urlStr string, depth int, sourceURL *url.URL, drivers []netdrv.Driver) *types.CrawlJob {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil
	}

	scheme := parsed.Scheme
	if scheme != "http" && scheme != "https" && scheme != "hyphanet" && scheme != "freenet" {
		return nil
	}

	handled := false
	for _, d := range drivers {
		if d.CanHandle(parsed) {
			handled = true
			break
		}
	}
	if !handled {
		return nil
	}

	var network string
	if scheme == "hyphanet" || scheme == "freenet" {
		// Joining relative paths against an opaque hyphanet: base produces
		// synthetic hyphanet://... URLs; those are not real keys.
		if strings.HasPrefix(urlStr, "hyphanet://") || strings.HasPrefix(urlStr, "freenet://") {
			return nil
		}
		network = "hyphanet"
	} else {
		host := parsed.Hostname()
		switch {
		case strings.HasSuffix(host, ".onion"):
			if !IsV3Onion(host) {
				return nil // v2 addresses are dead since 2021
			}
			network = "tor"
		case strings.HasSuffix(host, ".i2p"):
			network = "i2p"
		case strings.HasSuffix(host, ".bit"):
			network = "zeronet"
		case strings.HasSuffix(host, ".loki"):
			network = "lokinet"
		default:
			return nil // clearnet
		}
	}

	return &types.CrawlJob{
		URL:       parsed,
		Depth:     depth + 1,
		SourceURL: sourceURL.String(),
		Network:   network,
		Priority:  frontier.CalculatePriority(parsed, depth+1),
	}
}

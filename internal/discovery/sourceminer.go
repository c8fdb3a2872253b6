// Package discovery turns one fetched page into many new crawl candidates:
// mined URLs from the raw source, enumerated numeric patterns, search-form
// submissions, infrastructure probes, and cross-site correlation records.
package discovery

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlCommentRE = regexp.MustCompile(`<!--([\s\S]*?)-->`)

	jsURLRE  = regexp.MustCompile(`["'](https?://[^"'\s]{5,})["']`)
	jsPathRE = regexp.MustCompile(`["'](/[a-zA-Z0-9_/\-\.]{2,})["']`)

	jsOnionRE = regexp.MustCompile(`["']([a-z2-7]{56}\.onion[^"']*)["']`)

	jsFetchRE    = regexp.MustCompile(`fetch\(\s*["']([^"']+)["']`)
	jsLocationRE = regexp.MustCompile(`(?:window\.)?location\s*=\s*["']([^"']+)["']`)
	jsXHRRE      = regexp.MustCompile(`\.open\(\s*["'][A-Z]+["'],\s*["']([^"']+)["']`)

	dataURLRE = regexp.MustCompile(`data-(?:url|href|src|link|page|redirect|api|endpoint)\s*=\s*["']([^"']+)["']`)

	eventHandlerRE = regexp.MustCompile(`on(?:click|load|mouseover|submit)\s*=\s*["'][^"']*(?:location|href|navigate|window\.open)\s*[=(]\s*['"]([^'"]+)['"]`)

	onionInTextRE    = regexp.MustCompile(`https?://[a-z2-7]{56}\.onion[^\s"'<>]*`)
	i2pInTextRE      = regexp.MustCompile(`https?://[a-zA-Z0-9\-]+\.i2p[^\s"'<>]*`)
	zeronetInTextRE  = regexp.MustCompile(`https?://[a-zA-Z0-9\-]+\.bit[^\s"'<>]*`)
	lokiInTextRE     = regexp.MustCompile(`https?://[a-zA-Z0-9\-]+\.loki[^\s"'<>]*`)
	hyphanetInTextRE = regexp.MustCompile(`(?:hyphanet|freenet):[A-Z]{2,3}@[^\s"'<>]+`)
)

var overlayTextREs = []*regexp.Regexp{
	onionInTextRE, i2pInTextRE, zeronetInTextRE, lokiInTextRE, hyphanetInTextRE,
}

// MineSource scans the raw HTML (not the parsed DOM) for URLs beyond
// standard <a href> links: comments, JS string literals, data-* attributes,
// inline handlers, hidden elements, <noscript> blocks, and bare overlay
// addresses anywhere in the text. Returns a sorted, deduplicated list.
func MineSource(html string, baseURL *url.URL) []string {
	var urls []string

	// HTML comments
	for _, cap := range htmlCommentRE.FindAllStringSubmatch(html, -1) {
		urls = append(urls, urlsFromText(cap[1], baseURL)...)
	}

	// JS string literals
	for _, re := range []*regexp.Regexp{jsURLRE, jsFetchRE, jsLocationRE, jsXHRRE} {
		for _, cap := range re.FindAllStringSubmatch(html, -1) {
			urls = append(urls, cap[1])
		}
	}
	// JS relative paths resolved against the base
	for _, cap := range jsPathRE.FindAllStringSubmatch(html, -1) {
		if resolved, err := baseURL.Parse(cap[1]); err == nil {
			urls = append(urls, resolved.String())
		}
	}
	// Bare onion addresses in JS strings
	for _, cap := range jsOnionRE.FindAllStringSubmatch(html, -1) {
		addr := cap[1]
		if !strings.HasPrefix(addr, "http") {
			addr = "http://" + addr
		}
		urls = append(urls, addr)
	}

	// data-* attributes
	for _, cap := range dataURLRE.FindAllStringSubmatch(html, -1) {
		urls = append(urls, resolveMaybe(cap[1], baseURL)...)
	}

	// Inline event handlers carrying navigation
	for _, cap := range eventHandlerRE.FindAllStringSubmatch(html, -1) {
		urls = append(urls, resolveMaybe(cap[1], baseURL)...)
	}

	// Hidden elements and <noscript> need a DOM pass.
	urls = append(urls, hiddenAndNoscriptLinks(html, baseURL)...)

	// Bare overlay URLs anywhere in the source
	for _, re := range overlayTextREs {
		urls = append(urls, re.FindAllString(html, -1)...)
	}

	sort.Strings(urls)
	return dedupSorted(urls)
}

func urlsFromText(text string, baseURL *url.URL) []string {
	var urls []string
	for _, re := range overlayTextREs {
		urls = append(urls, re.FindAllString(text, -1)...)
	}
	for _, cap := range jsURLRE.FindAllStringSubmatch(text, -1) {
		urls = append(urls, cap[1])
	}
	for _, cap := range jsPathRE.FindAllStringSubmatch(text, -1) {
		if resolved, err := baseURL.Parse(cap[1]); err == nil {
			urls = append(urls, resolved.String())
		}
	}
	return urls
}

func resolveMaybe(val string, baseURL *url.URL) []string {
	if strings.HasPrefix(val, "http") {
		return []string{val}
	}
	if resolved, err := baseURL.Parse(val); err == nil {
		return []string{resolved.String()}
	}
	return nil
}

var hiddenSelectors = []string{
	`[style*='display:none'] a[href]`,
	`[style*='display: none'] a[href]`,
	`[style*='visibility:hidden'] a[href]`,
	`[style*='visibility: hidden'] a[href]`,
	`.hidden a[href]`,
	`.d-none a[href]`,
	`noscript a[href]`,
}

func hiddenAndNoscriptLinks(html string, baseURL *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	var urls []string
	for _, sel := range hiddenSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok {
				return
			}
			if resolved, err := baseURL.Parse(href); err == nil {
				urls = append(urls, resolved.String())
			}
		})
	}
	return urls
}

func dedupSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}

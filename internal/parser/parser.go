// Package parser turns fetched responses into structured page data: HTML
// fields, classified links, extracted entities, and page metadata.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// maxParseSize caps how many bytes reach the HTML parser (5 MB). Oversized
// bodies are truncated, not rejected, since large binaries must not block the
// pipeline.
const maxParseSize = 5 * 1024 * 1024

// ParseResponse parses a fetched response into PageData.
func ParseResponse(resp *types.FetchResponse) (*types.PageData, error) {
	body := resp.Body
	if len(body) > maxParseSize {
		body = body[:maxParseSize]
	}
	bodyStr := lossyUTF8(body)

	baseDomain := resp.Domain
	htmlRes, err := parseHTML(bodyStr, resp.URL, baseDomain)
	if err != nil {
		return nil, types.ParseError(err.Error())
	}

	// Extract from both the visible text and the raw HTML: ZeroNet-style
	// SPAs embed addresses in script blocks the DOM pass never sees.
	entities := mergeEntities(
		ExtractEntities(htmlRes.bodyText),
		ExtractEntities(bodyStr),
	)

	sum := sha256.Sum256(resp.Body)

	metadata := types.PageMetadata{
		ServerHeader:    resp.Headers["server"],
		PoweredBy:       resp.Headers["x-powered-by"],
		MetaDescription: htmlRes.metaDescription,
		MetaKeywords:    htmlRes.metaKeywords,
		Language:        htmlRes.language,
		HasLoginForm:    htmlRes.hasLoginForm,
		HasSearchForm:   htmlRes.hasSearchForm,
		HasRegisterForm: htmlRes.hasRegisterForm,
		HasCaptcha:      htmlRes.hasCaptcha,
		RequiresEmail:   htmlRes.requiresEmail,
		IsForum:         htmlRes.isForum,
		OpenGraph:       htmlRes.openGraph,
	}

	return &types.PageData{
		URL:            resp.URL.String(),
		FinalURL:       resp.FinalURL.String(),
		Network:        resp.Network,
		Title:          htmlRes.title,
		H1:             htmlRes.h1,
		H2:             htmlRes.h2,
		H3:             htmlRes.h3,
		BodyText:       htmlRes.bodyText,
		RawHTML:        bodyStr,
		RawHTMLHash:    hex.EncodeToString(sum[:]),
		Links:          htmlRes.links,
		Entities:       entities,
		Metadata:       metadata,
		FetchedAt:      resp.FetchedAt,
		ResponseTimeMS: resp.ResponseTimeMS,
		StatusCode:     resp.Status,
		Domain:         resp.Domain,
		ContentType:    resp.ContentType,
	}, nil
}

// ExtractDomain returns the network-specific domain for a URL: the host for
// HTTP-like networks; for Hyphanet keys the freesite name (second path
// segment) or a truncated key prefix.
func ExtractDomain(u *url.URL) string {
	if host := u.Hostname(); host != "" {
		return host
	}

	if u.Scheme == "hyphanet" || u.Scheme == "freenet" {
		keyPath := u.Opaque
		if keyPath == "" {
			keyPath = strings.TrimPrefix(u.Path, "/")
		}
		parts := strings.Split(keyPath, "/")
		// USK@key/sitename/edition/: the site name is the identity.
		if len(parts) >= 2 && parts[1] != "" {
			return parts[1]
		}
		if len(parts) > 0 && parts[0] != "" {
			if len(parts[0]) > 20 {
				return parts[0][:20]
			}
			return parts[0]
		}
	}

	return "unknown"
}

// lossyUTF8 decodes bytes as UTF-8, replacing invalid sequences.
func lossyUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// htmlResult is the output of the single HTML pass over a page.
type htmlResult struct {
	title           string
	h1, h2, h3      []string
	bodyText        string
	links           []types.ExtractedLink
	metaDescription string
	metaKeywords    []string
	language        string
	openGraph       map[string]string
	hasLoginForm    bool
	hasSearchForm   bool
	hasRegisterForm bool
	hasCaptcha      bool
	requiresEmail   bool
	isForum         bool
}

// hyphanetKeyPrefixes are path prefixes that mark an FProxy gateway URL or a
// rooted freesite key reference.
var hyphanetKeyPrefixes = []string{"/USK@", "/SSK@", "/CHK@", "/hyphanet:", "/freenet:"}

func parseHTML(htmlStr string, baseURL *url.URL, baseDomain string) (*htmlResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, err
	}

	res := &htmlResult{openGraph: make(map[string]string)}

	res.title = strings.TrimSpace(doc.Find("title").First().Text())
	res.h1 = headingTexts(doc, "h1")
	res.h2 = headingTexts(doc, "h2")
	res.h3 = headingTexts(doc, "h3")

	res.bodyText = strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	res.links = extractLinks(doc, baseURL, baseDomain)

	res.metaDescription, _ = doc.Find(`meta[name='description'], meta[name='DESCRIPTION']`).First().Attr("content")
	if kw, ok := doc.Find(`meta[name='keywords'], meta[name='KEYWORDS']`).First().Attr("content"); ok {
		for _, k := range strings.Split(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				res.metaKeywords = append(res.metaKeywords, k)
			}
		}
	}
	res.language, _ = doc.Find("html").First().Attr("lang")

	doc.Find(`meta[property^='og:']`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if prop != "" && content != "" {
			res.openGraph[prop] = content
		}
	})

	detectForms(doc, htmlStr, res)

	return res, nil
}

func headingTexts(doc *goquery.Document, sel string) []string {
	var out []string
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

// extractLinks pulls every <a href>, applies the hyphanet rewrite rules, and
// classifies each link by network.
func extractLinks(doc *goquery.Document, baseURL *url.URL, baseDomain string) []types.ExtractedLink {
	var links []types.ExtractedLink
	baseIsHyphanet := baseURL.Scheme == "hyphanet" || baseURL.Scheme == "freenet"

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if skipHref(href) {
			return
		}

		var resolved string
		switch {
		case baseIsHyphanet && hasHyphanetKeyPrefix(href):
			// A rooted key reference on a freesite. Standard URL joining
			// does not apply to opaque schemes; emit the key directly.
			resolved = "hyphanet:" + strings.TrimPrefix(stripSchemePrefix(href), "/")
		default:
			u, err := baseURL.Parse(href)
			if err != nil {
				return
			}
			// An http(s) URL whose path starts with a key prefix is an
			// FProxy gateway URL; rewrite to the canonical hyphanet: form.
			if (u.Scheme == "http" || u.Scheme == "https") && hasHyphanetKeyPrefix(u.Path) {
				resolved = "hyphanet:" + strings.TrimPrefix(stripSchemePrefix(u.Path), "/")
			} else {
				resolved = u.String()
			}
		}

		link := classifyLink(resolved, baseDomain)
		link.AnchorText = strings.TrimSpace(s.Text())
		links = append(links, link)
	})
	return links
}

func skipHref(href string) bool {
	if href == "" || href == "/" {
		return true
	}
	if strings.HasPrefix(href, "#") {
		return true
	}
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(strings.ToLower(href), scheme) {
			return true
		}
	}
	return false
}

func hasHyphanetKeyPrefix(path string) bool {
	for _, p := range hyphanetKeyPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// stripSchemePrefix removes an embedded hyphanet:/freenet: scheme from a
// rooted href like "/hyphanet:USK@..." so the rewrite does not double it.
func stripSchemePrefix(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	for _, scheme := range []string{"hyphanet:", "freenet:"} {
		if strings.HasPrefix(trimmed, scheme) {
			return strings.TrimPrefix(trimmed, scheme)
		}
	}
	return path
}

func classifyLink(rawURL, baseDomain string) types.ExtractedLink {
	host := ""
	scheme := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
		scheme = u.Scheme
	}
	return types.ExtractedLink{
		URL:        rawURL,
		IsOnion:    strings.HasSuffix(host, ".onion"),
		IsI2P:      strings.HasSuffix(host, ".i2p"),
		IsZeronet:  strings.HasSuffix(host, ".bit"),
		IsHyphanet: scheme == "hyphanet" || scheme == "freenet",
		IsLokinet:  strings.HasSuffix(host, ".loki"),
		IsExternal: host != baseDomain,
	}
}

// detectForms fills in the form-presence flags. The checks are heuristics
// over input types, names, and a handful of text markers.
func detectForms(doc *goquery.Document, htmlStr string, res *htmlResult) {
	res.hasLoginForm = doc.Find(`input[type='password']`).Length() > 0
	res.hasSearchForm = doc.Find(`input[type='search'], form[role='search']`).Length() > 0

	lower := strings.ToLower(htmlStr)

	// A register form has a password input plus a confirm field or
	// register/signup wording in the form.
	if res.hasLoginForm {
		doc.Find("form").EachWithBreak(func(_ int, form *goquery.Selection) bool {
			if form.Find(`input[type='password']`).Length() == 0 {
				return true
			}
			formHTML, err := goquery.OuterHtml(form)
			if err != nil {
				return true
			}
			fl := strings.ToLower(formHTML)
			if form.Find(`input[type='password']`).Length() >= 2 ||
				strings.Contains(fl, "register") || strings.Contains(fl, "sign up") ||
				strings.Contains(fl, "signup") || strings.Contains(fl, "create account") {
				res.hasRegisterForm = true
				return false
			}
			return true
		})
	}

	res.hasCaptcha = strings.Contains(lower, "captcha") ||
		doc.Find(`img[src*='captcha'], input[name*='captcha']`).Length() > 0

	res.requiresEmail = doc.Find(`input[type='email'], input[name='email']`).Length() > 0

	res.isForum = strings.Contains(lower, "viewtopic") || strings.Contains(lower, "showthread") ||
		strings.Contains(lower, "phpbb") || strings.Contains(lower, "vbulletin") ||
		doc.Find(`a[href*='/thread'], a[href*='/topic'], a[href*='viewforum']`).Length() > 2
}

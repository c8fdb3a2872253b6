package discovery

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

// Correlation extraction: fingerprints that can tie different sites to the
// same operator. Every record is persisted uniquely by (domain, type, value).

var (
	gaUARE    = regexp.MustCompile(`UA-\d{4,10}-\d{1,4}`)
	gaGRE     = regexp.MustCompile(`G-[A-Z0-9]{10,}`)
	gtmRE     = regexp.MustCompile(`GTM-[A-Z0-9]+`)
	fbPixelRE = regexp.MustCompile(`fbq\(\s*'init'\s*,\s*'(\d{15,})'`)

	pgpBlockRE = regexp.MustCompile(`-----BEGIN PGP PUBLIC KEY BLOCK-----[\s\S]+?-----END PGP PUBLIC KEY BLOCK-----`)

	jqueryVerRE    = regexp.MustCompile(`jquery[.\-](\d+\.\d+(?:\.\d+)?)`)
	bootstrapVerRE = regexp.MustCompile(`bootstrap[.\-](\d+\.\d+(?:\.\d+)?)`)
	reactVerRE     = regexp.MustCompile(`react(?:-dom)?[.\-@](\d+\.\d+(?:\.\d+)?)`)
	angularVerRE   = regexp.MustCompile(`angular[.\-@](\d+\.\d+(?:\.\d+)?)`)

	metaGeneratorRE = regexp.MustCompile(`<meta\s+name=["']generator["']\s+content=["']([^"']+)["']`)

	cookieNameRE = regexp.MustCompile(`^([^=;\s]+)=`)
)

// frameworkCookies map well-known session cookie names to the stack that
// sets them.
var frameworkCookies = map[string]string{
	"phpsessid":           "php",
	"jsessionid":          "java",
	"asp.net_sessionid":   "aspnet",
	"cfid":                "coldfusion",
	"laravel_session":     "laravel",
	"ci_session":          "codeigniter",
	"_rails_session":      "rails",
	"connect.sid":         "express",
	"django_session":      "django",
	"wordpress_logged_in": "wordpress",
}

// cmsMarkers are substring fingerprints for common CMSes.
var cmsMarkers = []struct {
	marker string
	cms    string
}{
	{"/wp-content/", "wordpress"},
	{"/wp-includes/", "wordpress"},
	{"/sites/default/files", "drupal"},
	{"drupal.js", "drupal"},
	{"/media/jui/", "joomla"},
	{"/components/com_", "joomla"},
}

// ExtractCorrelations pulls every fingerprint from a page's HTML and
// response headers.
func ExtractCorrelations(domain, html string, headers map[string]string) []types.Correlation {
	var out []types.Correlation
	add := func(ctype, value string) {
		out = append(out, types.Correlation{Domain: domain, Type: ctype, Value: value})
	}

	// Analytics and tracker IDs
	for _, m := range gaUARE.FindAllString(html, -1) {
		add("google_analytics_ua", m)
	}
	for _, m := range gaGRE.FindAllString(html, -1) {
		add("google_analytics_g", m)
	}
	for _, m := range gtmRE.FindAllString(html, -1) {
		add("google_tag_manager", m)
	}
	for _, cap := range fbPixelRE.FindAllStringSubmatch(html, -1) {
		add("facebook_pixel", cap[1])
	}

	// PGP key blocks, hashed
	for _, m := range pgpBlockRE.FindAllString(html, -1) {
		add("pgp_key_hash", hashHex([]byte(m)))
	}

	// Header-derived fingerprints
	if etag := headers["etag"]; etag != "" {
		add("etag", etag)
	}
	if server := headers["server"]; server != "" {
		add("server_header", server)
	}
	if powered := headers["x-powered-by"]; powered != "" {
		add("powered_by", powered)
	}
	if altSvc := headers["alt-svc"]; altSvc != "" {
		add("alt_svc", altSvc)
	}
	if hsts := headers["strict-transport-security"]; hsts != "" {
		add("hsts_policy", hsts)
	}

	// Header name fingerprint. The headers map keeps no arrival order, so
	// the names are sorted before hashing to keep the value stable.
	order := make([]string, 0, len(headers))
	for k := range headers {
		order = append(order, k)
	}
	sort.Strings(order)
	add("header_order_hash", hashHex([]byte(fmt.Sprintf("%q", order))))

	// Cookie names and framework detection
	if setCookie := headers["set-cookie"]; setCookie != "" {
		if cap := cookieNameRE.FindStringSubmatch(setCookie); cap != nil {
			name := cap[1]
			add("cookie_name", name)
			if fw, ok := frameworkCookies[strings.ToLower(name)]; ok {
				add("framework_cookie", fw)
			}
		}
	}

	// Library version fingerprints
	lower := strings.ToLower(html)
	for ctype, re := range map[string]*regexp.Regexp{
		"jquery_version":    jqueryVerRE,
		"bootstrap_version": bootstrapVerRE,
		"react_version":     reactVerRE,
		"angular_version":   angularVerRE,
	} {
		if cap := re.FindStringSubmatch(lower); cap != nil {
			add(ctype, cap[1])
		}
	}

	// CMS fingerprints
	seenCMS := make(map[string]struct{})
	for _, m := range cmsMarkers {
		if strings.Contains(lower, m.marker) {
			if _, ok := seenCMS[m.cms]; !ok {
				seenCMS[m.cms] = struct{}{}
				add("cms", m.cms)
			}
		}
	}

	// Meta generator tag
	if cap := metaGeneratorRE.FindStringSubmatch(html); cap != nil {
		add("meta_generator", cap[1])
	}

	return out
}

// HashFavicon fingerprints favicon bytes for cross-site correlation.
func HashFavicon(domain string, favicon []byte) types.Correlation {
	return types.Correlation{Domain: domain, Type: "favicon_hash", Value: hashHex(favicon)}
}

// HashStaticAsset fingerprints a CSS/JS file for shared-infrastructure
// detection.
func HashStaticAsset(domain, assetURL string, content []byte) types.Correlation {
	return types.Correlation{Domain: domain, Type: "asset_hash:" + assetURL, Value: hashHex(content)}
}

// HashErrorPage fingerprints a 404 page body.
func HashErrorPage(domain string, body []byte) types.Correlation {
	return types.Correlation{Domain: domain, Type: "error_page_hash", Value: hashHex(body)}
}

func hashHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

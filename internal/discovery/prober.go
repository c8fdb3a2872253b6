package discovery

import (
	"net/url"
	"regexp"
	"strings"
)

// ProbeResult is one infrastructure probe URL with its type tag.
type ProbeResult struct {
	ProbeURL  string
	ProbeType string
}

// Essential infrastructure paths. Only the discovery trio below is probed
// today; the wider lists are reserved for future probe passes.
var essentialProbes = [][2]string{
	{"/robots.txt", "robots_txt"},
	{"/sitemap.xml", "sitemap"},
	{"/sitemap_index.xml", "sitemap"},
	{"/.well-known/security.txt", "security_txt"},
	{"/crossdomain.xml", "crossdomain"},
	{"/humans.txt", "humans_txt"},
	{"/favicon.ico", "favicon"},
}

// Server misconfiguration probes, reserved.
var misconfigProbes = [][2]string{
	{"/server-status", "server_status"},
	{"/server-info", "server_info"},
	{"/.env", "env_file"},
	{"/.git/config", "git_config"},
	{"/.git/HEAD", "git_head"},
	{"/wp-json/", "wordpress_api"},
	{"/api/", "api_root"},
	{"/swagger.json", "swagger"},
	{"/openapi.json", "openapi"},
	{"/graphql", "graphql"},
	{"/debug/", "debug"},
	{"/phpinfo.php", "phpinfo"},
	{"/.DS_Store", "ds_store"},
}

// Dark-web directory wordlist, reserved.
var darkwebPaths = []string{
	"/admin", "/login", "/panel", "/dashboard", "/cp",
	"/forum", "/board", "/chat", "/messages", "/inbox",
	"/market", "/shop", "/store", "/products", "/listings",
	"/paste", "/upload", "/files", "/documents", "/dump",
	"/api", "/v1", "/v2", "/graphql", "/rest",
	"/mirror", "/backup", "/old", "/archive", "/test",
	"/staff", "/mod", "/vendor", "/support", "/ticket",
	"/pgp", "/keys", "/contact", "/about", "/faq", "/rules",
	"/register", "/signup", "/invite", "/verify",
	"/wallet", "/withdraw", "/deposit", "/escrow",
	"/search", "/results", "/category", "/tag",
}

// discoveryProbes is the active probe set, emitted once per domain per
// session.
var discoveryProbes = [][2]string{
	{"/robots.txt", "robots_txt"},
	{"/sitemap.xml", "sitemap"},
	{"/favicon.ico", "favicon"},
}

// GenerateProbes returns the discovery probe URLs for a domain's base URL.
func GenerateProbes(baseURL *url.URL) []ProbeResult {
	probes := make([]ProbeResult, 0, len(discoveryProbes))
	for _, p := range discoveryProbes {
		u, err := baseURL.Parse(p[0])
		if err != nil {
			continue
		}
		probes = append(probes, ProbeResult{ProbeURL: u.String(), ProbeType: p[1]})
	}
	return probes
}

// ParseRobotsTxt extracts URLs from Disallow/Allow/Sitemap lines. Disallowed
// paths are followed deliberately: on overlay networks robots.txt is a map
// of what the operator considers interesting.
func ParseRobotsTxt(content string, baseURL *url.URL) []string {
	var urls []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if path, ok := cutAnyPrefix(line, "Disallow:", "Allow:"); ok {
			path = strings.TrimSpace(path)
			if path == "" || path == "/" {
				continue
			}
			if u, err := baseURL.Parse(path); err == nil {
				urls = append(urls, u.String())
			}
		} else if sitemap, ok := strings.CutPrefix(line, "Sitemap:"); ok {
			if sitemap = strings.TrimSpace(sitemap); sitemap != "" {
				urls = append(urls, sitemap)
			}
		}
	}
	return urls
}

var locRE = regexp.MustCompile(`<loc>\s*([^<]+?)\s*</loc>`)

// ParseSitemap extracts <loc> URLs from sitemap XML. A regex pass handles
// both urlset and sitemapindex documents.
func ParseSitemap(content string) []string {
	var urls []string
	for _, cap := range locRE.FindAllStringSubmatch(content, -1) {
		urls = append(urls, strings.TrimSpace(cap[1]))
	}
	return urls
}

func cutAnyPrefix(s string, prefixes ...string) (string, bool) {
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(s, p); ok {
			return rest, true
		}
	}
	return s, false
}

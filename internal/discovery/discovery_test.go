package discovery

import (
	"net/url"
	"strings"
	"testing"
)

func base(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// --- Source miner ---

func TestMineSourceComments(t *testing.T) {
	onion := strings.Repeat("a", 56) + ".onion"
	html := `<html><!-- staging mirror: http://` + onion + `/admin --><body></body></html>`
	got := MineSource(html, base(t, "http://x.onion/"))
	if !contains(got, "http://"+onion+"/admin") {
		t.Errorf("comment URL not mined: %v", got)
	}
}

func TestMineSourceJSLiterals(t *testing.T) {
	html := `<script>
	fetch("/api/items");
	window.location = "http://next.i2p/page";
	var xhr = new XMLHttpRequest(); xhr.open("GET", "/data/42");
	</script>`
	got := MineSource(html, base(t, "http://host.i2p/"))

	if !contains(got, "/api/items") && !contains(got, "http://host.i2p/api/items") {
		t.Errorf("fetch argument not mined: %v", got)
	}
	if !contains(got, "http://next.i2p/page") {
		t.Errorf("location assignment not mined: %v", got)
	}
	if !contains(got, "/data/42") && !contains(got, "http://host.i2p/data/42") {
		t.Errorf("xhr URL not mined: %v", got)
	}
}

func TestMineSourceDataAttrsAndHidden(t *testing.T) {
	html := `<body>
	<div data-url="/ajax/feed"></div>
	<div style="display:none"><a href="/secret">hidden</a></div>
	<noscript><a href="/nojs">fallback</a></noscript>
	</body>`
	got := MineSource(html, base(t, "http://host.onion/"))

	if !contains(got, "http://host.onion/ajax/feed") {
		t.Errorf("data-url not mined: %v", got)
	}
	if !contains(got, "http://host.onion/secret") {
		t.Errorf("hidden link not mined: %v", got)
	}
	if !contains(got, "http://host.onion/nojs") {
		t.Errorf("noscript link not mined: %v", got)
	}
}

func TestMineSourceBareOverlayURLs(t *testing.T) {
	html := `plain text http://site.bit/x and hyphanet:USK@abc/site/1/ here`
	got := MineSource(html, base(t, "http://x.onion/"))
	if !contains(got, "http://site.bit/x") {
		t.Errorf("bare .bit URL not mined: %v", got)
	}
	if !contains(got, "hyphanet:USK@abc/site/1/") {
		t.Errorf("hyphanet key not mined: %v", got)
	}
}

func TestMineSourceDeduped(t *testing.T) {
	html := `<a>` + `<script>var a = "http://dup.i2p/x"; var b = "http://dup.i2p/x";</script>`
	got := MineSource(html, base(t, "http://x.i2p/"))
	count := 0
	for _, u := range got {
		if u == "http://dup.i2p/x" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate survived: %v", got)
	}
}

// --- Pattern mutator ---

func TestMutatePatternsNeighbors(t *testing.T) {
	got := MutatePatterns([]string{"http://shop.onion/product/42"}, 2)
	for _, want := range []string{
		"http://shop.onion/product/40",
		"http://shop.onion/product/41",
		"http://shop.onion/product/43",
		"http://shop.onion/product/44",
	} {
		if !contains(got, want) {
			t.Errorf("missing neighbor %s in %v", want, got)
		}
	}
	if contains(got, "http://shop.onion/product/42") {
		t.Error("original URL should not be re-emitted")
	}
}

func TestMutatePatternsOncePerPattern(t *testing.T) {
	got := MutatePatterns([]string{
		"http://shop.onion/product/42",
		"http://shop.onion/product/77",
	}, 2)
	// Second URL shares the pattern; only the first expands.
	if contains(got, "http://shop.onion/product/75") {
		t.Errorf("pattern expanded twice: %v", got)
	}
	if len(got) != 4 {
		t.Errorf("got %d mutations, want 4: %v", len(got), got)
	}
}

func TestMutatePatternsGenericSegment(t *testing.T) {
	got := MutatePatterns([]string{"http://forum.i2p/discussion/10"}, 2)
	if !contains(got, "http://forum.i2p/discussion/8") || !contains(got, "http://forum.i2p/discussion/12") {
		t.Errorf("generic pattern not expanded: %v", got)
	}
}

func TestMutatePatternsClampsAtOne(t *testing.T) {
	got := MutatePatterns([]string{"http://shop.onion/item/1"}, 2)
	for _, u := range got {
		if strings.Contains(u, "/item/0") || strings.Contains(u, "/item/-") {
			t.Errorf("enumerated below 1: %v", got)
		}
	}
}

// --- Form spider ---

func TestFindSearchFormsSkipsLogin(t *testing.T) {
	html := `
	<form method="get" action="/search"><input type="text" name="q"></form>
	<form method="get" action="/login"><input type="text" name="user"><input type="password" name="pw"></form>`
	forms := FindSearchForms(html, base(t, "http://x.onion/"))
	if len(forms) != 1 {
		t.Fatalf("forms = %d, want 1 (login skipped)", len(forms))
	}
	if forms[0].SearchParam != "q" {
		t.Errorf("search param = %q", forms[0].SearchParam)
	}
	if forms[0].ActionURL != "http://x.onion/search" {
		t.Errorf("action = %q", forms[0].ActionURL)
	}
}

func TestFindSearchFormsRoleSearch(t *testing.T) {
	html := `<form method="post" role="search" action="/find"><input type="search" name="term"></form>`
	forms := FindSearchForms(html, base(t, "http://x.onion/"))
	if len(forms) != 1 {
		t.Fatalf("role=search form not found")
	}
}

func TestGenerateSearchURLs(t *testing.T) {
	urls := GenerateSearchURLs([]FormTarget{
		{ActionURL: "http://x.onion/search", Method: "get", SearchParam: "q"},
	})
	if len(urls) != 6 {
		t.Fatalf("urls = %d, want one per probe query", len(urls))
	}
	if !contains(urls, "http://x.onion/search?q=test") {
		t.Errorf("missing test probe: %v", urls)
	}
	if !contains(urls, "http://x.onion/search?q=") {
		t.Errorf("missing empty probe: %v", urls)
	}
}

// --- Infra prober ---

func TestGenerateProbes(t *testing.T) {
	probes := GenerateProbes(base(t, "http://x.onion"))
	if len(probes) != 3 {
		t.Fatalf("probes = %d, want 3", len(probes))
	}
	types := map[string]bool{}
	for _, p := range probes {
		types[p.ProbeType] = true
	}
	for _, want := range []string{"robots_txt", "sitemap", "favicon"} {
		if !types[want] {
			t.Errorf("missing probe type %s", want)
		}
	}
}

func TestParseRobotsTxt(t *testing.T) {
	content := `User-agent: *
Disallow: /admin
Allow: /public
Disallow: /
Disallow:
Sitemap: http://x.onion/sitemap.xml`
	got := ParseRobotsTxt(content, base(t, "http://x.onion/"))
	if !contains(got, "http://x.onion/admin") {
		t.Errorf("disallow path missing: %v", got)
	}
	if !contains(got, "http://x.onion/public") {
		t.Errorf("allow path missing: %v", got)
	}
	if !contains(got, "http://x.onion/sitemap.xml") {
		t.Errorf("sitemap missing: %v", got)
	}
	if len(got) != 3 {
		t.Errorf("bare and empty Disallow should be skipped: %v", got)
	}
}

func TestParseSitemap(t *testing.T) {
	content := `<?xml version="1.0"?><urlset>
	<url><loc> http://x.onion/a </loc></url>
	<url><loc>http://x.onion/b</loc></url>
	</urlset>`
	got := ParseSitemap(content)
	if len(got) != 2 || got[0] != "http://x.onion/a" {
		t.Errorf("sitemap parse = %v", got)
	}
}

// --- Correlations ---

func TestExtractCorrelationsAnalyticsAndHeaders(t *testing.T) {
	html := `<script>ga('create', 'UA-12345-1');</script>
	<script>fbq('init', '123456789012345');</script>
	-----BEGIN PGP PUBLIC KEY BLOCK-----
	mQENBF...
	-----END PGP PUBLIC KEY BLOCK-----`
	headers := map[string]string{
		"server":       "nginx/1.18",
		"x-powered-by": "PHP/8.1",
		"etag":         `"abc123"`,
		"set-cookie":   "PHPSESSID=xyz; path=/",
	}
	got := ExtractCorrelations("x.onion", html, headers)

	byType := map[string][]string{}
	for _, c := range got {
		if c.Domain != "x.onion" {
			t.Fatalf("wrong domain on %+v", c)
		}
		byType[c.Type] = append(byType[c.Type], c.Value)
	}

	if len(byType["google_analytics_ua"]) != 1 || byType["google_analytics_ua"][0] != "UA-12345-1" {
		t.Errorf("ga ua = %v", byType["google_analytics_ua"])
	}
	if len(byType["facebook_pixel"]) != 1 {
		t.Errorf("fb pixel = %v", byType["facebook_pixel"])
	}
	if len(byType["pgp_key_hash"]) != 1 || len(byType["pgp_key_hash"][0]) != 64 {
		t.Errorf("pgp hash = %v", byType["pgp_key_hash"])
	}
	if byType["server_header"][0] != "nginx/1.18" {
		t.Errorf("server header = %v", byType["server_header"])
	}
	if len(byType["header_order_hash"]) != 1 {
		t.Errorf("header order hash missing")
	}
	if byType["cookie_name"][0] != "PHPSESSID" {
		t.Errorf("cookie name = %v", byType["cookie_name"])
	}
	if byType["framework_cookie"][0] != "php" {
		t.Errorf("framework cookie = %v", byType["framework_cookie"])
	}
}

func TestExtractCorrelationsCMSAndLibraries(t *testing.T) {
	html := `<script src="/wp-content/themes/x/jquery-3.6.0.min.js"></script>
	<meta name="generator" content="WordPress 6.2">`
	got := ExtractCorrelations("y.onion", html, map[string]string{})

	byType := map[string]string{}
	for _, c := range got {
		byType[c.Type] = c.Value
	}
	if byType["cms"] != "wordpress" {
		t.Errorf("cms = %q", byType["cms"])
	}
	if byType["jquery_version"] != "3.6" && byType["jquery_version"] != "3.6.0" {
		t.Errorf("jquery version = %q", byType["jquery_version"])
	}
	if byType["meta_generator"] != "WordPress 6.2" {
		t.Errorf("meta generator = %q", byType["meta_generator"])
	}
}

func TestHashHelpersStable(t *testing.T) {
	a := HashFavicon("x.onion", []byte{1, 2, 3})
	b := HashFavicon("x.onion", []byte{1, 2, 3})
	if a.Value != b.Value || a.Type != "favicon_hash" {
		t.Errorf("favicon hash unstable: %v vs %v", a, b)
	}
	if HashErrorPage("x.onion", []byte("404")).Type != "error_page_hash" {
		t.Error("error page type")
	}
}

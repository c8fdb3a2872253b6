package netdrv

import (
	"log/slog"
	"net/url"
	"strings"
	"testing"
)

func newTestDrivers(t *testing.T) (*TorDriver, *I2PDriver, *ZeronetDriver, *HyphanetDriver, *LokinetDriver) {
	t.Helper()
	logger := slog.Default()
	tor, err := NewTorDriver([]string{"127.0.0.1:9050"}, 4, 0, 10, 30, 100, logger)
	if err != nil {
		t.Fatal(err)
	}
	i2p, err := NewI2PDriver([]string{"127.0.0.1:4444"}, 4, 0, 10, 30, 100, logger)
	if err != nil {
		t.Fatal(err)
	}
	zn, err := NewZeronetDriver([]string{"127.0.0.1:43110"}, 4, 0, 10, 30, 100, logger)
	if err != nil {
		t.Fatal(err)
	}
	hn, err := NewHyphanetDriver([]string{"127.0.0.1:8888"}, 2, 0, 10, 30, 100, logger)
	if err != nil {
		t.Fatal(err)
	}
	loki, err := NewLokinetDriver([]string{"127.0.0.1:1080"}, 4, 0, 10, 30, 50, logger)
	if err != nil {
		t.Fatal(err)
	}
	return tor, i2p, zn, hn, loki
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestCanHandle(t *testing.T) {
	tor, i2p, zn, hn, loki := newTestDrivers(t)

	cases := []struct {
		raw     string
		handler string
	}{
		{"http://example.onion/x", "tor"},
		{"http://forum.i2p/", "i2p"},
		{"http://talk.bit/board", "zeronet"},
		{"hyphanet:USK@k/site/1/", "hyphanet"},
		{"freenet:SSK@k/site", "hyphanet"},
		{"http://snapp.loki/", "lokinet"},
		{"http://example.com/", ""},
	}
	drivers := []Driver{tor, i2p, zn, hn, loki}
	for _, tc := range cases {
		u := mustURL(t, tc.raw)
		got := ""
		for _, d := range drivers {
			if d.CanHandle(u) {
				got = d.Name()
				break
			}
		}
		if got != tc.handler {
			t.Errorf("handler for %q = %q, want %q", tc.raw, got, tc.handler)
		}
	}
}

func TestPolicyTable(t *testing.T) {
	tor, i2p, zn, hn, loki := newTestDrivers(t)

	cases := []struct {
		d              Driver
		maxRetries     int
		clearOnStartup bool
		periodicSecs   int
	}{
		{tor, 3, false, 0},
		{i2p, 4, true, 3600},
		{zn, 4, false, 86400},
		{hn, 12, false, 10800},
		{loki, 4, true, 0},
	}
	for _, tc := range cases {
		if got := tc.d.MaxRetries(); got != tc.maxRetries {
			t.Errorf("%s MaxRetries = %d, want %d", tc.d.Name(), got, tc.maxRetries)
		}
		clear, secs := tc.d.RetryPolicy()
		if clear != tc.clearOnStartup || secs != tc.periodicSecs {
			t.Errorf("%s RetryPolicy = (%v, %d), want (%v, %d)",
				tc.d.Name(), clear, secs, tc.clearOnStartup, tc.periodicSecs)
		}
	}

	if loki.MaxPagesPerDomain() != 50 {
		t.Errorf("lokinet pages per domain = %d, want 50", loki.MaxPagesPerDomain())
	}
}

func TestClassifyErrorBias(t *testing.T) {
	tor, i2p, _, hn, _ := newTestDrivers(t)

	// Tor leans dead
	if got := tor.ClassifyError("connection reset by peer"); got != FailureDead {
		t.Errorf("tor default classification = %q, want dead", got)
	}
	if got := tor.ClassifyError("timeout awaiting response"); got != FailureUnreachable {
		t.Errorf("tor timeout classification = %q, want unreachable", got)
	}

	// I2P leans unreachable
	if got := i2p.ClassifyError("error sending request: tunnel build failed"); got != FailureUnreachable {
		t.Errorf("i2p tunnel classification = %q", got)
	}
	if got := i2p.ClassifyError("HTTP 404 not found"); got != FailureDead {
		t.Errorf("i2p 404 classification = %q", got)
	}

	// Hyphanet: invalid keys dead, routing unreachable
	if got := hn.ClassifyError("Invalid Key: malformed USK"); got != FailureDead {
		t.Errorf("hyphanet invalid key = %q", got)
	}
	if got := hn.ClassifyError("FProxy error page: Data not found"); got != FailureUnreachable {
		t.Errorf("hyphanet fproxy error = %q", got)
	}
}

func TestDetectFProxyError(t *testing.T) {
	body := []byte("<html><title>Data not found</title></html>")
	if title := detectFProxyError(body); title != "Data not found" {
		t.Errorf("title = %q", title)
	}
	real := []byte("<html><title>My Freesite</title></html>")
	if title := detectFProxyError(real); title != "" {
		t.Errorf("false positive on %q", title)
	}
	if title := detectFProxyError([]byte("no title here")); title != "" {
		t.Errorf("no-title body flagged: %q", title)
	}
}

func TestZeronetProxyURL(t *testing.T) {
	_, _, zn, _, _ := newTestDrivers(t)
	u := mustURL(t, "http://talk.bit/topic/5?page=2")
	got := zn.proxyURL(u, 0)
	want := "http://127.0.0.1:43110/talk.bit/topic/5?page=2"
	if got != want {
		t.Errorf("proxyURL = %q, want %q", got, want)
	}
}

func TestHyphanetSiteName(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"hyphanet:USK@key/clean-spider/37/", "clean-spider"},
		{"freenet:SSK@key/mysite", "mysite"},
		{"hyphanet:CHK@abcdefghijklmnopqrstuvwxyz0123", "CHK@abcdefghijklmnop"},
	}
	for _, tc := range cases {
		if got := ExtractSiteName(mustURL(t, tc.raw)); got != tc.want {
			t.Errorf("ExtractSiteName(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestTorTimeoutSchedule(t *testing.T) {
	want := []int{10, 20, 30, 60, 60}
	for retry, secs := range want {
		idx := retry
		if idx >= len(torAttemptTimeouts) {
			idx = len(torAttemptTimeouts) - 1
		}
		if int(torAttemptTimeouts[idx].Seconds()) != secs {
			t.Errorf("retry %d timeout = %v, want %ds", retry, torAttemptTimeouts[idx], secs)
		}
	}
}

func TestExtractBase32Address(t *testing.T) {
	b32 := strings.Repeat("b", 52) + ".b32.i2p"

	fromHeader := ExtractBase32Address(map[string]string{"x-i2p-destb32": b32}, "")
	if fromHeader != "http://"+b32+"/" {
		t.Errorf("header extraction = %q", fromHeader)
	}

	fromBody := ExtractBase32Address(map[string]string{}, "mirror at "+b32+" ok")
	if fromBody != "http://"+b32+"/" {
		t.Errorf("body extraction = %q", fromBody)
	}

	if got := ExtractBase32Address(map[string]string{}, "nothing here"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestCopyHeadersLower(t *testing.T) {
	h := map[string][]string{
		"Content-Type": {"text/html"},
		"X-Powered-By": {"PHP/8.1", "ignored"},
	}
	got := copyHeadersLower(h)
	if got["content-type"] != "text/html" || got["x-powered-by"] != "PHP/8.1" {
		t.Errorf("headers = %v", got)
	}
}

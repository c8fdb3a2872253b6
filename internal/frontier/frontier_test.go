package frontier

import (
	"log/slog"
	"math"
	"net/url"
	"testing"

	"github.com/veilcrawl/veilcrawl/internal/types"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func job(t *testing.T, raw, network string, depth int) *types.CrawlJob {
	t.Helper()
	u := mustParse(t, raw)
	return &types.CrawlJob{
		URL:      u,
		Depth:    depth,
		Network:  network,
		Priority: CalculatePriority(u, depth),
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	cases := []string{
		"http://X.ONION/a#f",
		"http://example.onion/path/",
		"HTTP://Example.Onion/A/B/?q=1#frag",
		"not a url at all",
	}
	for _, raw := range cases {
		once := Normalize(raw)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", raw, once, twice)
		}
	}
}

func TestNormalizeCaseFragmentSlash(t *testing.T) {
	a := Normalize("http://X.ONION/a#f")
	b := Normalize("http://x.onion/a/")
	if a != b {
		t.Errorf("expected equal normal forms, got %q and %q", a, b)
	}
	if Normalize("http://x.onion/") != "http://x.onion/" {
		t.Errorf("root slash should survive: got %q", Normalize("http://x.onion/"))
	}
}

func TestPushDedup(t *testing.T) {
	f := New(testLogger())

	if !f.Push(job(t, "http://X.ONION/a#f", "tor", 0)) {
		t.Fatal("first push should enqueue")
	}
	if f.NetworkLen("tor") != 1 {
		t.Fatalf("queue size = %d, want 1", f.NetworkLen("tor"))
	}
	if f.Push(job(t, "http://x.onion/a/", "tor", 0)) {
		t.Fatal("second push of same normalized URL should dedup")
	}
	if f.NetworkLen("tor") != 1 {
		t.Fatalf("queue size = %d, want 1", f.NetworkLen("tor"))
	}
}

func TestRetryBypassesDedup(t *testing.T) {
	f := New(testLogger())

	j := job(t, "http://x.onion/p", "tor", 0)
	if !f.Push(j) {
		t.Fatal("first push should enqueue")
	}
	f.PopForNetwork("tor")

	retry := j.Retry()
	if !f.Push(retry) {
		t.Fatal("retry push must bypass dedup")
	}
	got := f.PopForNetwork("tor")
	if got == nil || got.RetryCount != 1 {
		t.Fatalf("expected retry job back, got %+v", got)
	}
	if got.Priority != j.Priority*0.5 {
		t.Errorf("retry priority = %v, want %v", got.Priority, j.Priority*0.5)
	}
}

func TestSeedsBypassDedupButMarkSeen(t *testing.T) {
	f := New(testLogger())

	seed := "http://identiguy.i2p/"
	if added := f.AddSeeds([]string{seed}, "i2p"); added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	// A discovered link back to the seed must dedup.
	if f.Push(job(t, seed, "i2p", 1)) {
		t.Error("link back to seed should be deduplicated")
	}
	if f.NetworkLen("i2p") != 1 {
		t.Errorf("queue size = %d, want 1", f.NetworkLen("i2p"))
	}
}

func TestPriorityOrderingWithinNetwork(t *testing.T) {
	f := New(testLogger())

	crypto := "http://" + string56('a') + ".onion/"
	f.Push(job(t, "http://foo.onion/", "tor", 0)) // malformed, base 1.0
	f.Push(job(t, crypto, "tor", 0))              // v3, base 2.0

	first := f.PopForNetwork("tor")
	if first == nil || first.URL.String() != crypto {
		t.Fatalf("first pop = %v, want the v3 onion", first)
	}
}

func TestPriorityMonotoneInDepth(t *testing.T) {
	u := mustParse(t, "http://"+string56('a')+".onion/")
	prev := math.Inf(1)
	for depth := 0; depth < 10; depth++ {
		p := CalculatePriority(u, depth)
		if p > prev {
			t.Fatalf("priority increased with depth at %d: %v > %v", depth, p, prev)
		}
		prev = p
	}
}

func TestClassifyAddressType(t *testing.T) {
	cases := []struct {
		host string
		want float64
	}{
		{string56('a') + ".onion", 2.0},
		{"short.onion", 1.0},
		{string52('b') + ".b32.i2p", 2.0},
		{"forum.i2p", 1.0},
		{"1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2.bit", 2.0},
		{"talk.bit", 1.0},
		{string52('c') + ".loki", 2.0},
		{"directory.loki", 1.0},
		{"example.com", 1.0},
	}
	for _, tc := range cases {
		if got := classifyAddressType(tc.host); got != tc.want {
			t.Errorf("classifyAddressType(%q) = %v, want %v", tc.host, got, tc.want)
		}
	}
}

func TestNaNPriorityDoesNotPanic(t *testing.T) {
	f := New(testLogger())

	j := job(t, "http://nan.onion/x", "tor", 0)
	j.Priority = math.NaN()
	f.Push(j)
	f.Push(job(t, "http://other.onion/y", "tor", 0))
	f.Push(job(t, "http://third.onion/z", "tor", 0))

	seen := 0
	for f.PopForNetwork("tor") != nil {
		seen++
	}
	if seen != 3 {
		t.Errorf("popped %d jobs, want 3", seen)
	}
}

func TestPushBatchDedupAndCount(t *testing.T) {
	f := New(testLogger())

	jobs := []*types.CrawlJob{
		job(t, "http://a.onion/1", "tor", 1),
		job(t, "http://a.onion/1#frag", "tor", 1), // dup after normalize
		job(t, "http://b.i2p/x", "i2p", 1),
	}
	if got := f.PushBatch(jobs); got != 2 {
		t.Fatalf("PushBatch = %d, want 2", got)
	}
	if f.NetworkLen("tor") != 1 || f.NetworkLen("i2p") != 1 {
		t.Errorf("queue lens tor=%d i2p=%d, want 1/1", f.NetworkLen("tor"), f.NetworkLen("i2p"))
	}
}

func TestPopBatchForNetwork(t *testing.T) {
	f := New(testLogger())
	for i := 0; i < 5; i++ {
		f.Push(job(t, "http://a.onion/p"+string(rune('0'+i)), "tor", 0))
	}
	batch := f.PopBatchForNetwork("tor", 3)
	if len(batch) != 3 {
		t.Fatalf("batch len = %d, want 3", len(batch))
	}
	if f.NetworkLen("tor") != 2 {
		t.Errorf("remaining = %d, want 2", f.NetworkLen("tor"))
	}
}

func TestPushBackSkipsDedup(t *testing.T) {
	f := New(testLogger())
	j := job(t, "http://a.onion/p", "tor", 0)
	f.Push(j)
	got := f.PopForNetwork("tor")
	f.PushBack("tor", []*types.CrawlJob{got})
	if f.NetworkLen("tor") != 1 {
		t.Errorf("push_back did not re-enqueue")
	}
}

func TestMarkSeenBatch(t *testing.T) {
	f := New(testLogger())
	f.MarkSeenBatch([]string{"http://a.onion/x", "not a url"})
	if f.Push(job(t, "http://A.onion/x", "tor", 0)) {
		t.Error("hydrated URL should dedup")
	}
	if f.SeenCount() != 2 {
		t.Errorf("seen count = %d, want 2", f.SeenCount())
	}
}

func TestNoCrossNetworkOrdering(t *testing.T) {
	f := New(testLogger())
	f.Push(job(t, "http://a.onion/x", "tor", 0))
	if got := f.PopForNetwork("i2p"); got != nil {
		t.Errorf("i2p pop returned a tor job: %+v", got)
	}
}

func string56(c byte) string { return stringN(c, 56) }
func string52(c byte) string { return stringN(c, 52) }

func stringN(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}

package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/snehjoshi/encodex/internal/metrics"
)

// ─── labelCounter ─────────────────────────────────────────────────────────────

func TestRegistry_CodecCounters(t *testing.T) {
	var reg metrics.Registry

	reg.Encodes.Inc("caesar")
	reg.Encodes.Inc("caesar")
	reg.Encodes.Add("caesar", 3)
	reg.Encodes.Inc("emoji")

	if got := reg.Encodes.Value("caesar"); got != 5 {
		t.Fatalf("Encodes[caesar] = %d, want 5", got)
	}
	if got := reg.Encodes.Value("base64"); got != 0 {
		t.Fatalf("Encodes[base64] = %d, want 0", got)
	}
}

func TestRegistry_EachIsSorted(t *testing.T) {
	var reg metrics.Registry
	for _, k := range []string{"simple", "base64", "emoji", "caesar"} {
		reg.Decodes.Inc(k)
	}
	var keys []string
	reg.Decodes.Each(func(k string, _ int64) { keys = append(keys, k) })
	want := "base64,caesar,emoji,simple"
	if got := strings.Join(keys, ","); got != want {
		t.Fatalf("Each order = %s, want %s", got, want)
	}
}

// ─── Prometheus output format ─────────────────────────────────────────────────

func scrape(t *testing.T, reg *metrics.Registry) (string, string) {
	t.Helper()
	srv := httptest.NewServer(reg.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body), resp.Header.Get("Content-Type")
}

func TestHandler_EmptyRegistry(t *testing.T) {
	var reg metrics.Registry
	body, ct := scrape(t, &reg)
	if body != "" {
		t.Fatalf("expected empty body for empty registry, got:\n%s", body)
	}
	if !strings.Contains(ct, "text/plain") {
		t.Fatalf("Content-Type = %q, want text/plain", ct)
	}
}

func TestHandler_CodecFamilies(t *testing.T) {
	var reg metrics.Registry
	reg.Encodes.Inc("emoji")
	reg.Decodes.Inc("caesar")
	reg.DecodeFailures.Inc("wrong_secret")
	reg.Recoveries.Inc("simple")
	reg.SelfDestructs.Inc(metrics.EventViewed)

	body, _ := scrape(t, &reg)

	mustContain(t, body, "# TYPE encodex_encodes_total counter")
	mustContain(t, body, `encodex_encodes_total{method="emoji"} 1`)
	mustContain(t, body, `encodex_decodes_total{method="caesar"} 1`)
	mustContain(t, body, `encodex_decode_failures_total{kind="wrong_secret"} 1`)
	mustContain(t, body, `encodex_recoveries_total{method="simple"} 1`)
	mustContain(t, body, `encodex_self_destruct_events_total{event="viewed"} 1`)
}

func TestHandler_HTTPCounters(t *testing.T) {
	var reg metrics.Registry
	reg.HTTPReqs.Inc(metrics.HTTPKey("GET", "/health", "200"))
	reg.HTTPDurMs.Add(metrics.HTTPDurKey("GET", "/health"), 5)
	reg.HTTPDurCnt.Inc(metrics.HTTPDurKey("GET", "/health"))

	body, _ := scrape(t, &reg)

	mustContain(t, body, `encodex_http_requests_total{method="GET",path="/health",status="200"} 1`)
	mustContain(t, body, `encodex_http_request_duration_milliseconds_sum{method="GET",path="/health"} 5`)
	mustContain(t, body, "encodex_http_request_duration_milliseconds_count")
}

func TestHandler_Gauge(t *testing.T) {
	var reg metrics.Registry
	n := int64(7)
	reg.Gauge("encodex_pending_countdowns", "Armed self-destruct countdowns", func() int64 { return n })

	body, _ := scrape(t, &reg)
	mustContain(t, body, "# TYPE encodex_pending_countdowns gauge")
	mustContain(t, body, "encodex_pending_countdowns 7")
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func mustContain(t *testing.T, body, substr string) {
	t.Helper()
	if !strings.Contains(body, substr) {
		t.Errorf("expected body to contain %q\nbody:\n%s", substr, body)
	}
}

// ─── Concurrent safety ────────────────────────────────────────────────────────

func TestRegistry_ConcurrentInc(t *testing.T) {
	var reg metrics.Registry
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Decodes.Inc("base64")
		}()
	}
	wg.Wait()
	if got := reg.Decodes.Value("base64"); got != 100 {
		t.Fatalf("concurrent Inc: got %d, want 100", got)
	}
}

// ─── Observers ────────────────────────────────────────────────────────────────

func TestObservers(t *testing.T) {
	var reg metrics.Registry
	reg.ObserveEncode("caesar", true)
	reg.ObserveDecode("caesar", false, true)
	reg.ObserveDecode("simple", true, false)
	reg.ObserveDecodeFailure("already_destructed")
	reg.ObserveDestructed()
	reg.ObserveHTTP("POST", "POST /decode", 200, 12)

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"encodes caesar", reg.Encodes.Value("caesar"), 1},
		{"decodes simple", reg.Decodes.Value("simple"), 1},
		{"recoveries simple", reg.Recoveries.Value("simple"), 1},
		{"recoveries caesar", reg.Recoveries.Value("caesar"), 0},
		{"registered", reg.SelfDestructs.Value(metrics.EventRegistered), 1},
		{"viewed", reg.SelfDestructs.Value(metrics.EventViewed), 1},
		{"refused", reg.SelfDestructs.Value(metrics.EventRefused), 1},
		{"destructed", reg.SelfDestructs.Value(metrics.EventDestructed), 1},
		{"http", reg.HTTPReqs.Value(metrics.HTTPKey("POST", "POST /decode", "200")), 1},
		{"http ms", reg.HTTPDurMs.Value(metrics.HTTPDurKey("POST", "POST /decode")), 12},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: want %d, got %d", c.name, c.want, c.got)
		}
	}
}

func TestObservers_NilRegistry(t *testing.T) {
	var reg *metrics.Registry
	reg.ObserveEncode("simple", true)
	reg.ObserveDecode("simple", true, true)
	reg.ObserveDecodeFailure("undecodable")
	reg.ObserveDestructed()
	reg.ObserveHTTP("GET", "GET /health", 200, 1)
}

// Package metrics provides a lightweight Prometheus-compatible metrics
// registry for encodex, rendered by hand in the text exposition format.
//
// # Label keys
//
// Every counter is keyed by a tab-separated string so one sync.Map holds all
// label combinations:
//
//	Encodes / Decodes / Recoveries  key = "method"
//	DecodeFailures                  key = "kind"
//	SelfDestructs                   key = "event"   (registered, viewed, refused, destructed)
//	HTTPReqs                        key = "method\tpath\tstatus"
//	HTTPDurMs / HTTPDurCnt          key = "method\tpath"
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ─── labelCounter ─────────────────────────────────────────────────────────────

// labelCounter is a lock-free, label-keyed counter map.
type labelCounter struct {
	vals sync.Map // key string → *atomic.Int64
}

func (lc *labelCounter) get(key string) *atomic.Int64 {
	v, _ := lc.vals.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Inc increments the counter for key by 1.
func (lc *labelCounter) Inc(key string) { lc.get(key).Add(1) }

// Add increments the counter for key by n.
func (lc *labelCounter) Add(key string, n int64) { lc.get(key).Add(n) }

// Value returns the current count for key.
func (lc *labelCounter) Value(key string) int64 {
	v, ok := lc.vals.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Each calls fn for every key/value pair in key order.
func (lc *labelCounter) Each(fn func(key string, val int64)) {
	var keys []string
	lc.vals.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	for _, k := range keys {
		fn(k, lc.Value(k))
	}
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Self-destruct events.
const (
	EventRegistered = "registered"
	EventViewed     = "viewed"
	EventRefused    = "refused"
	EventDestructed = "destructed"
)

// Registry holds all encodex application metrics. The zero value is ready.
type Registry struct {
	Encodes        labelCounter
	Decodes        labelCounter
	DecodeFailures labelCounter
	Recoveries     labelCounter
	SelfDestructs  labelCounter

	HTTPReqs   labelCounter
	HTTPDurMs  labelCounter // sum of request durations in milliseconds
	HTTPDurCnt labelCounter

	gaugeMu sync.Mutex
	gauges  map[string]gauge
}

type gauge struct {
	help string
	fn   func() int64
}

// Gauge registers a value read at scrape time, e.g. pending countdowns.
func (r *Registry) Gauge(name, help string, fn func() int64) {
	r.gaugeMu.Lock()
	defer r.gaugeMu.Unlock()
	if r.gauges == nil {
		r.gauges = make(map[string]gauge)
	}
	r.gauges[name] = gauge{help: help, fn: fn}
}

// family describes one labelled counter family.
type family struct {
	name, help string
	labels     []string
	c          *labelCounter
}

func (r *Registry) families() []family {
	return []family{
		{"encodex_encodes_total", "Messages encoded, by method", []string{"method"}, &r.Encodes},
		{"encodex_decodes_total", "Messages decoded, by the method that succeeded", []string{"method"}, &r.Decodes},
		{"encodex_decode_failures_total", "Failed decodes, by error kind", []string{"kind"}, &r.DecodeFailures},
		{"encodex_recoveries_total", "Decodes that fell back to the candidate search, by method found", []string{"method"}, &r.Recoveries},
		{"encodex_self_destruct_events_total", "Self-destruct lifecycle events", []string{"event"}, &r.SelfDestructs},
		{"encodex_http_requests_total", "HTTP requests by method, path and status code", []string{"method", "path", "status"}, &r.HTTPReqs},
		{"encodex_http_request_duration_milliseconds_sum", "Sum of HTTP request durations in milliseconds", []string{"method", "path"}, &r.HTTPDurMs},
		{"encodex_http_request_duration_milliseconds_count", "Count of observed HTTP request durations", []string{"method", "path"}, &r.HTTPDurCnt},
	}
}

// ─── Prometheus text serialisation ────────────────────────────────────────────

// Handler renders all metrics in the Prometheus plain-text format
// (text/plain; version=0.0.4).
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, r.Render())
	})
}

// Render returns the exposition text.
func (r *Registry) Render() string {
	var b strings.Builder
	for _, f := range r.families() {
		var lines []string
		f.c.Each(func(key string, val int64) {
			lines = append(lines, fmt.Sprintf("%s{%s} %d\n", f.name, formatLabels(f.labels, key), val))
		})
		writeFamily(&b, f.name, f.help, "counter", lines)
	}

	r.gaugeMu.Lock()
	names := make([]string, 0, len(r.gauges))
	for n := range r.gauges {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		g := r.gauges[n]
		writeFamily(&b, n, g.help, "gauge", []string{fmt.Sprintf("%s %d\n", n, g.fn())})
	}
	r.gaugeMu.Unlock()
	return b.String()
}

// writeFamily writes one metric family; empty families are skipped.
func writeFamily(b *strings.Builder, name, help, typ string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, typ)
	for _, l := range lines {
		b.WriteString(l)
	}
}

// formatLabels pairs label names with the tab-separated parts of key.
func formatLabels(names []string, key string) string {
	parts := strings.SplitN(key, "\t", len(names))
	pairs := make([]string, len(names))
	for i, n := range names {
		v := ""
		if i < len(parts) {
			v = parts[i]
		}
		pairs[i] = fmt.Sprintf("%s=%q", n, v)
	}
	return strings.Join(pairs, ",")
}

// ─── Convenience key builders ─────────────────────────────────────────────────

// HTTPKey builds the label key used by HTTPReqs.
func HTTPKey(method, path, status string) string {
	return method + "\t" + path + "\t" + status
}

// HTTPDurKey builds the label key used by HTTPDurMs / HTTPDurCnt.
func HTTPDurKey(method, path string) string {
	return method + "\t" + path
}

// ─── Observers ────────────────────────────────────────────────────────────────

// ObserveEncode records one successful encode. Safe on a nil Registry.
func (r *Registry) ObserveEncode(method string, selfDestruct bool) {
	if r == nil {
		return
	}
	r.Encodes.Inc(method)
	if selfDestruct {
		r.SelfDestructs.Inc(EventRegistered)
	}
}

// ObserveDecode records one successful decode. Safe on a nil Registry.
func (r *Registry) ObserveDecode(method string, recovered, selfDestruct bool) {
	if r == nil {
		return
	}
	r.Decodes.Inc(method)
	if recovered {
		r.Recoveries.Inc(method)
	}
	if selfDestruct {
		r.SelfDestructs.Inc(EventViewed)
	}
}

// ObserveDecodeFailure records a failed decode by error kind. Safe on a nil
// Registry.
func (r *Registry) ObserveDecodeFailure(kind string) {
	if r == nil {
		return
	}
	r.DecodeFailures.Inc(kind)
	if kind == "already_destructed" {
		r.SelfDestructs.Inc(EventRefused)
	}
}

// ObserveDestructed records a countdown reaching zero. Safe on a nil Registry.
func (r *Registry) ObserveDestructed() {
	if r == nil {
		return
	}
	r.SelfDestructs.Inc(EventDestructed)
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(method, path string, status int, elapsedMs int64) {
	if r == nil {
		return
	}
	r.HTTPReqs.Inc(HTTPKey(method, path, strconv.Itoa(status)))
	r.HTTPDurMs.Add(HTTPDurKey(method, path), elapsedMs)
	r.HTTPDurCnt.Inc(HTTPDurKey(method, path))
}

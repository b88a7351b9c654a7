// Package metrics is a small Prometheus-compatible metrics registry built on
// the standard library. It covers the counters, gauges, and histograms the
// ingestion commands report, exposed over HTTP in text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBuckets are latency buckets in seconds.
var DefaultBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// Counter is a monotonically increasing counter.
type Counter struct{ val atomic.Int64 }

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// Gauge holds a value that can go up and down.
type Gauge struct{ val atomic.Int64 }

func (g *Gauge) Set(n int64)  { g.val.Store(n) }
func (g *Gauge) Inc()         { g.val.Add(1) }
func (g *Gauge) Dec()         { g.val.Add(-1) }
func (g *Gauge) Value() int64 { return g.val.Load() }

// Histogram records a distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	sort.Float64s(b)
	return &Histogram{buckets: b, counts: make([]uint64, len(b))}
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
			h.counts[i]++
			break
		}
	}
}

// Since observes the seconds elapsed since t.
func (h *Histogram) Since(t time.Time) {
	h.Observe(time.Since(t).Seconds())
}

type entry struct {
	name string // full name including any baked-in labels
	typ  string
	help string
	c    *Counter
	g    *Gauge
	h    *Histogram
}

// Registry holds named metrics in registration order.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	byName  map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*entry)}
}

func (r *Registry) get(name, typ, help string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byName[name]; ok {
		return e
	}
	e := &entry{name: name, typ: typ, help: help}
	r.byName[name] = e
	r.entries = append(r.entries, e)
	return e
}

// Counter returns (or creates) a counter.
func (r *Registry) Counter(name, help string) *Counter {
	e := r.get(name, "counter", help)
	if e.c == nil {
		e.c = &Counter{}
	}
	return e.c
}

// Gauge returns (or creates) a gauge.
func (r *Registry) Gauge(name, help string) *Gauge {
	e := r.get(name, "gauge", help)
	if e.g == nil {
		e.g = &Gauge{}
	}
	return e.g
}

// Histogram returns (or creates) a histogram. nil buckets use DefaultBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	e := r.get(name, "histogram", help)
	if e.h == nil {
		if buckets == nil {
			buckets = DefaultBuckets
		}
		e.h = newHistogram(buckets)
	}
	return e.h
}

// WithLabels bakes label pairs into a metric name:
// WithLabels("foo", "k", "v") => `foo{k="v"}`.
func WithLabels(name string, kvs ...string) string {
	if len(kvs) == 0 || len(kvs)%2 != 0 {
		return name
	}
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i := 0; i < len(kvs); i += 2 {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", kvs[i], kvs[i+1])
	}
	b.WriteByte('}')
	return b.String()
}

func baseName(name string) string {
	if i := strings.IndexByte(name, '{'); i != -1 {
		return name[:i]
	}
	return name
}

// Render emits all metrics in Prometheus text exposition format.
func (r *Registry) Render() string {
	r.mu.Lock()
	entries := make([]*entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	var b strings.Builder
	seen := make(map[string]bool)
	for _, e := range entries {
		base := baseName(e.name)
		if !seen[base] {
			seen[base] = true
			if e.help != "" {
				fmt.Fprintf(&b, "# HELP %s %s\n", base, e.help)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", base, e.typ)
		}
		switch e.typ {
		case "counter":
			fmt.Fprintf(&b, "%s %d\n", e.name, e.c.Value())
		case "gauge":
			fmt.Fprintf(&b, "%s %d\n", e.name, e.g.Value())
		case "histogram":
			e.h.mu.Lock()
			cumulative := uint64(0)
			for i, bk := range e.h.buckets {
				cumulative += e.h.counts[i]
				fmt.Fprintf(&b, "%s_bucket{le=\"%g\"} %d\n", base, bk, cumulative)
			}
			fmt.Fprintf(&b, "%s_bucket{le=\"+Inf\"} %d\n", base, e.h.count)
			fmt.Fprintf(&b, "%s_sum %g\n", base, e.h.sum)
			fmt.Fprintf(&b, "%s_count %d\n", base, e.h.count)
			e.h.mu.Unlock()
		}
	}
	return b.String()
}

// Handler serves the registry at /metrics.
func (r *Registry) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, r.Render())
	})
	return mux
}

// ServeAsync starts the metrics endpoint on the given port in a goroutine.
func (r *Registry) ServeAsync(port int) {
	go func() {
		_ = http.ListenAndServe(fmt.Sprintf(":%d", port), r.Handler())
	}()
}

// Package metrics is a small Prometheus-compatible collector for the router.
// It renders the text exposition format directly.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector holds metric families keyed by name. Each family has one
// series per distinct label set.
type MetricsCollector struct {
	mu        sync.Mutex
	families  map[string]*family
	startTime time.Time
}

type family struct {
	help   string
	kind   string // "counter" | "gauge" | "histogram"
	series map[string]series
}

type series interface {
	write(w io.Writer, name, labels string)
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{families: make(map[string]*family), startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

func (c *Counter) write(w io.Writer, name, labels string) {
	fmt.Fprintf(w, "%s%s %d\n", name, braces(labels), c.Value())
}

// Gauge is a value that can go up and down.
type Gauge struct {
	labels string
	value  atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

func (g *Gauge) write(w io.Writer, name, labels string) {
	fmt.Fprintf(w, "%s%s %d\n", name, braces(labels), g.Value())
}

// Histogram tracks the distribution of observed values over fixed upper
// bounds. Bucket counts are cumulative.
type Histogram struct {
	labels string
	mu     sync.Mutex
	bounds []float64
	counts []int64
	count  int64
	sum    float64
}

// Observe records a value in the histogram.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

func (h *Histogram) write(w io.Writer, name, labels string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sep := ""
	if labels != "" {
		sep = ","
	}
	for i, le := range h.bounds {
		fmt.Fprintf(w, "%s_bucket{%s%sle=\"%s\"} %d\n", name, labels, sep, strconv.FormatFloat(le, 'g', -1, 64), h.counts[i])
	}
	fmt.Fprintf(w, "%s_bucket{%s%sle=\"+Inf\"} %d\n", name, labels, sep, h.count)
	fmt.Fprintf(w, "%s_sum%s %g\n", name, braces(labels), h.sum)
	fmt.Fprintf(w, "%s_count%s %d\n", name, braces(labels), h.count)
}

func braces(labels string) string {
	if labels == "" {
		return ""
	}
	return "{" + labels + "}"
}

// lookup returns the series for (name, labels), creating it with mk. A name
// registered under another kind panics, as that is a programming error.
func (c *MetricsCollector) lookup(name, help, kind, labels string, mk func() series) series {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.families[name]
	if !ok {
		f = &family{help: help, kind: kind, series: make(map[string]series)}
		c.families[name] = f
	}
	if f.kind != kind {
		panic(fmt.Sprintf("metrics: %s registered as %s, not %s", name, f.kind, kind))
	}
	s, ok := f.series[labels]
	if !ok {
		s = mk()
		f.series[labels] = s
	}
	return s
}

// Counter returns or creates a counter series.
func (c *MetricsCollector) Counter(name, help, labels string) *Counter {
	return c.lookup(name, help, "counter", labels, func() series { return &Counter{labels: labels} }).(*Counter)
}

// Gauge returns or creates a gauge series.
func (c *MetricsCollector) Gauge(name, help, labels string) *Gauge {
	return c.lookup(name, help, "gauge", labels, func() series { return &Gauge{labels: labels} }).(*Gauge)
}

// Histogram returns or creates a histogram series. Buckets are only used on
// first registration.
func (c *MetricsCollector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	return c.lookup(name, help, "histogram", labels, func() series {
		bounds := append([]float64(nil), buckets...)
		sort.Float64s(bounds)
		return &Histogram{labels: labels, bounds: bounds, counts: make([]int64, len(bounds))}
	}).(*Histogram)
}

// Render writes every family in name order, series in label order.
func (c *MetricsCollector) Render(w io.Writer) {
	fmt.Fprintf(w, "# HELP teamsrouter_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(w, "# TYPE teamsrouter_uptime_seconds gauge\n")
	fmt.Fprintf(w, "teamsrouter_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	c.mu.Lock()
	names := make([]string, 0, len(c.families))
	for name := range c.families {
		names = append(names, name)
	}
	sort.Strings(names)
	type entry struct {
		name, labels string
		s            series
	}
	var out []entry
	heads := make(map[int]*family)
	for _, name := range names {
		f := c.families[name]
		keys := make([]string, 0, len(f.series))
		for k := range f.series {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		heads[len(out)] = f
		for _, k := range keys {
			out = append(out, entry{name: name, labels: k, s: f.series[k]})
		}
	}
	c.mu.Unlock()

	for i, e := range out {
		if f, ok := heads[i]; ok {
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", e.name, f.help, e.name, f.kind)
		}
		e.s.write(w, e.name, e.labels)
	}
}

// Handler serves the Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		var sb strings.Builder
		c.Render(&sb)
		io.WriteString(w, sb.String())
	}
}

// --- Router metrics ---

var (
	EventsReceived = Collector.Counter("teamsrouter_events_received_total", "Inbound events accepted by the ingress", "")
	EventsDropped  = Collector.Counter("teamsrouter_events_dropped_total", "Inbound events rejected or dropped before dispatch", "")
	InflightEvents = Collector.Gauge("teamsrouter_inflight_events", "Events currently being dispatched", "")

	SearchLatency = Collector.Histogram("teamsrouter_search_latency_seconds", "Search fallback latency in seconds", "",
		[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10})
)

// EventDispatched counts one dispatched event by kind.
func EventDispatched(kind string) *Counter {
	return Collector.Counter("teamsrouter_events_dispatched_total", "Events dispatched by kind", label("kind", kind))
}

// ActivitySent counts one Teams send by shape and outcome ("ok" or "error").
func ActivitySent(shape, outcome string) *Counter {
	return Collector.Counter("teamsrouter_activities_total", "Teams activity sends by shape and outcome",
		label("shape", shape)+","+label("outcome", outcome))
}

// TicketDelivered counts one ticket delivery by kind and outcome.
func TicketDelivered(kind, outcome string) *Counter {
	return Collector.Counter("teamsrouter_tickets_total", "Ticket deliveries by kind and outcome",
		label("kind", kind)+","+label("outcome", outcome))
}

func label(name, value string) string {
	return name + `="` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

// Package metrics exposes LinkFlow's per-service counters, gauges and
// histograms over Prometheus, while keeping the lightweight
// name+labels get-or-create surface the rest of the engine calls into.
package metrics

import (
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricType represents the type of metric.
type MetricType int

const (
	MetricTypeCounter MetricType = iota
	MetricTypeGauge
	MetricTypeHistogram
)

// Labels represents metric labels.
type Labels map[string]string

// Metric is the base interface for all metrics.
type Metric interface {
	Name() string
	Type() MetricType
	Labels() Labels
}

func toPromLabels(labels Labels) prometheus.Labels {
	pl := make(prometheus.Labels, len(labels))
	for k, v := range labels {
		pl[k] = v
	}
	return pl
}

// Counter is a monotonically increasing counter, backed by a real
// prometheus.Counter so registries remain scrapeable.
type Counter struct {
	name   string
	labels Labels
	value  int64
	prom   prometheus.Counter
}

// NewCounter creates a new counter.
func NewCounter(name string, labels Labels) *Counter {
	return &Counter{
		name:   name,
		labels: labels,
		prom: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        name,
			Help:        name + " (linkflow engine)",
			ConstLabels: toPromLabels(labels),
		}),
	}
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Type() MetricType { return MetricTypeCounter }
func (c *Counter) Labels() Labels   { return c.labels }
func (c *Counter) Value() int64     { return atomic.LoadInt64(&c.value) }

// Collector exposes the underlying prometheus.Collector for registration.
func (c *Counter) Collector() prometheus.Collector { return c.prom }

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
	c.prom.Inc()
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta int64) {
	atomic.AddInt64(&c.value, delta)
	c.prom.Add(float64(delta))
}

// Gauge is a metric that can go up and down.
type Gauge struct {
	name   string
	labels Labels
	value  uint64 // Stored as uint64, represents float64 bits
	prom   prometheus.Gauge
}

// NewGauge creates a new gauge.
func NewGauge(name string, labels Labels) *Gauge {
	return &Gauge{
		name:   name,
		labels: labels,
		prom: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        name,
			Help:        name + " (linkflow engine)",
			ConstLabels: toPromLabels(labels),
		}),
	}
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Type() MetricType { return MetricTypeGauge }
func (g *Gauge) Labels() Labels   { return g.labels }
func (g *Gauge) Value() float64   { return math.Float64frombits(atomic.LoadUint64(&g.value)) }

// Collector exposes the underlying prometheus.Collector for registration.
func (g *Gauge) Collector() prometheus.Collector { return g.prom }

// Set sets the gauge to the given value.
func (g *Gauge) Set(value float64) {
	atomic.StoreUint64(&g.value, math.Float64bits(value))
	g.prom.Set(value)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.Add(-1)
}

// Add adds the given value to the gauge using atomic compare-and-swap.
func (g *Gauge) Add(delta float64) {
	for {
		old := atomic.LoadUint64(&g.value)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&g.value, old, math.Float64bits(newVal)) {
			g.prom.Add(delta)
			return
		}
	}
}

// Histogram tracks the distribution of values.
type Histogram struct {
	name    string
	labels  Labels
	buckets []float64
	counts  []int64
	sum     int64
	count   int64
	mu      sync.RWMutex
	prom    prometheus.Histogram
}

// DefaultBuckets are the default histogram buckets (in milliseconds).
var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// NewHistogram creates a new histogram.
func NewHistogram(name string, labels Labels, buckets []float64) *Histogram {
	if buckets == nil {
		buckets = DefaultBuckets
	}
	return &Histogram{
		name:    name,
		labels:  labels,
		buckets: buckets,
		counts:  make([]int64, len(buckets)+1),
		prom: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        name,
			Help:        name + " (linkflow engine)",
			ConstLabels: toPromLabels(labels),
			Buckets:     buckets,
		}),
	}
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Type() MetricType { return MetricTypeHistogram }
func (h *Histogram) Labels() Labels   { return h.labels }

// Collector exposes the underlying prometheus.Collector for registration.
func (h *Histogram) Collector() prometheus.Collector { return h.prom }

// Observe records a value in the histogram.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Find the bucket
	bucketIdx := len(h.buckets)
	for i, bound := range h.buckets {
		if value <= bound {
			bucketIdx = i
			break
		}
	}

	h.counts[bucketIdx]++
	h.sum += int64(value * 1000) // Store sum as microseconds for precision
	h.count++
	h.prom.Observe(value)
}

// ObserveDuration records a duration in milliseconds.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(float64(d.Milliseconds()))
}

// Sum returns the sum of all observed values.
func (h *Histogram) Sum() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return float64(h.sum) / 1000
}

// Count returns the count of observations.
func (h *Histogram) Count() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Buckets returns the bucket counts.
func (h *Histogram) Buckets() map[float64]int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make(map[float64]int64, len(h.buckets))
	for i, bound := range h.buckets {
		result[bound] = h.counts[i]
	}
	return result
}

// Registry stores and manages metrics, mirroring them into a
// prometheus.Registry so `Handler` serves the real exposition format.
type Registry struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	prom       *prometheus.Registry
	mu         sync.RWMutex
}

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		prom:       prometheus.NewRegistry(),
	}
}

// DefaultRegistry is the default global metrics registry.
var DefaultRegistry = NewRegistry()

// Counter gets or creates a counter.
func (r *Registry) Counter(name string, labels Labels) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := makeKey(name, labels)
	if c, exists := r.counters[key]; exists {
		return c
	}

	c := NewCounter(name, labels)
	r.counters[key] = c
	r.prom.MustRegister(c.prom)
	return c
}

// Gauge gets or creates a gauge.
func (r *Registry) Gauge(name string, labels Labels) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := makeKey(name, labels)
	if g, exists := r.gauges[key]; exists {
		return g
	}

	g := NewGauge(name, labels)
	r.gauges[key] = g
	r.prom.MustRegister(g.prom)
	return g
}

// Histogram gets or creates a histogram.
func (r *Registry) Histogram(name string, labels Labels, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := makeKey(name, labels)
	if h, exists := r.histograms[key]; exists {
		return h
	}

	h := NewHistogram(name, labels, buckets)
	r.histograms[key] = h
	r.prom.MustRegister(h.prom)
	return h
}

// Handler returns the Prometheus exposition HTTP handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

func makeKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}

	// Sort label keys for consistent key generation
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name
	for _, k := range keys {
		key += "," + k + "=" + labels[k]
	}
	return key
}

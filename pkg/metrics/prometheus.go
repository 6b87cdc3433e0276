package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromCollector is a Collector backed by a private Prometheus registry.
// Metric vectors are created lazily on first use; the label keys of that
// first call are fixed for the metric's lifetime.
type PromCollector struct {
	reg *prometheus.Registry

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	hists    map[string]*prometheus.HistogramVec
}

func NewProm() *PromCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &PromCollector{
		reg:      reg,
		counters: make(map[string]*prometheus.CounterVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
		hists:    make(map[string]*prometheus.HistogramVec),
	}
}

// Handler serves the scrape endpoint for this collector's registry.
func (c *PromCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *PromCollector) IncCounter(name string, labels map[string]string, delta float64) {
	c.mu.Lock()
	vec, ok := c.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name}, labelKeys(labels))
		c.reg.MustRegister(vec)
		c.counters[name] = vec
	}
	c.mu.Unlock()
	vec.With(labels).Add(delta)
}

func (c *PromCollector) SetGauge(name string, labels map[string]string, value float64) {
	c.mu.Lock()
	vec, ok := c.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name}, labelKeys(labels))
		c.reg.MustRegister(vec)
		c.gauges[name] = vec
	}
	c.mu.Unlock()
	vec.With(labels).Set(value)
}

func (c *PromCollector) ObserveHistogram(name string, labels map[string]string, value float64) {
	c.mu.Lock()
	vec, ok := c.hists[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Buckets: prometheus.DefBuckets,
		}, labelKeys(labels))
		c.reg.MustRegister(vec)
		c.hists[name] = vec
	}
	c.mu.Unlock()
	vec.With(labels).Observe(value)
}

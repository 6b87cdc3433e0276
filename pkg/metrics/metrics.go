// Package metrics decouples instrumentation from the registry core. The
// library packages report through Collector; the node binary plugs in the
// Prometheus-backed implementation, tests use Nop.
package metrics

// Collector captures counters, gauges and histograms.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
}

type nop struct{}

func (nop) IncCounter(string, map[string]string, float64)       {}
func (nop) SetGauge(string, map[string]string, float64)         {}
func (nop) ObserveHistogram(string, map[string]string, float64) {}

// Nop returns a collector that discards everything.
func Nop() Collector { return nop{} }

// Package prometheus exposes the engine's counters as Prometheus metrics.
// The engine stays dependency-free on the hot path; this package reads
// snapshots at scrape time and converts them to const metrics.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authcore "github.com/ampara-edu/authcore"
)

// Namespace prefixes every exported metric name.
const Namespace = "authcore"

// Collector adapts an engine's counter snapshot to the Prometheus scrape
// model.
type Collector struct {
	engine *authcore.Engine
	desc   *prometheus.Desc
}

// NewCollector builds a Collector for engine.
func NewCollector(engine *authcore.Engine) *Collector {
	return &Collector{
		engine: engine,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "", "events_total"),
			"Authentication engine event counters.",
			[]string{"event"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector. Counters are cumulative since
// engine start; a process restart resets them, which Prometheus rate()
// handles.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, value := range c.engine.MetricsSnapshot() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(value), name)
	}
}

// Handler returns a scrape endpoint for engine backed by a private registry,
// so engine metrics never collide with whatever the host process registered
// globally.
func Handler(engine *authcore.Engine) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(engine))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

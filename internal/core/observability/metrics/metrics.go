// Package metrics records tick statistics for hosts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives per-tick measurements.
type Recorder interface {
	ObserveTick(tree, status string, d time.Duration)
	Fatal(tree string)
	SetAgents(tree string, n int)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveTick(string, string, time.Duration) {}
func (Nop) Fatal(string)                              {}
func (Nop) SetAgents(string, int)                     {}

// Collector is a Recorder backed by a private prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	ticks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	fatal    *prometheus.CounterVec
	agents   *prometheus.GaugeVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers the tick metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Ticks by tree and resulting root status.",
		}, []string{"tree", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of a single agent tick.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"tree"}),
		fatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fatal_errors_total",
			Help:      "Task trees poisoned by a fatal tick error.",
		}, []string{"tree"}),
		agents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bound_agents",
			Help:      "Agents currently bound to a tree.",
		}, []string{"tree"}),
	}
	c.registry.MustRegister(c.ticks, c.duration, c.fatal, c.agents)
	return c
}

func (c *Collector) ObserveTick(tree, status string, d time.Duration) {
	c.ticks.WithLabelValues(tree, status).Inc()
	c.duration.WithLabelValues(tree).Observe(d.Seconds())
}

func (c *Collector) Fatal(tree string) { c.fatal.WithLabelValues(tree).Inc() }

func (c *Collector) SetAgents(tree string, n int) {
	c.agents.WithLabelValues(tree).Set(float64(n))
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

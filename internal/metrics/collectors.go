// Package metrics accumulates run, dork and host counters and exposes them
// as Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/lead-scout/internal/model"
)

const namespace = "leadscout"

// Collectors are the Prometheus instruments of the discovery engine.
type Collectors struct {
	Queries        *prometheus.CounterVec
	SerpHits       *prometheus.CounterVec
	Fetches        *prometheus.CounterVec
	Leads          *prometheus.CounterVec
	Mode           prometheus.Gauge
	PenalizedHosts prometheus.Gauge
	Panics         prometheus.Counter
	RunDuration    prometheus.Histogram
}

// NewCollectors registers the collectors with reg. A nil reg registers
// with the default registerer.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Collectors{
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Search queries executed, labeled by engine and outcome.",
		}, []string{"engine", "outcome"}),
		SerpHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serp_hits_total",
			Help:      "Search results returned after merging, labeled by source.",
		}, []string{"source"}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetches, labeled by outcome.",
		}, []string{"outcome"}),
		Leads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Lead decisions, labeled by decision and reason.",
		}, []string{"decision", "reason"}),
		Mode: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wasserfall_mode",
			Help:      "Current Wasserfall mode (0 conservative, 1 moderate, 2 aggressive).",
		}),
		PenalizedHosts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "penalized_hosts",
			Help:      "Hosts currently in a penalty window.",
		}),
		Panics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "internal_errors_total",
			Help:      "Recovered panics in query or URL processing.",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of discovery runs.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
		}),
	}
}

// SetMode publishes the current Wasserfall mode.
func (c *Collectors) SetMode(mode string) {
	if c == nil {
		return
	}
	switch mode {
	case model.ModeConservative:
		c.Mode.Set(0)
	case model.ModeModerate:
		c.Mode.Set(1)
	case model.ModeAggressive:
		c.Mode.Set(2)
	}
}

// SetPenalizedHosts publishes the number of penalized hosts.
func (c *Collectors) SetPenalizedHosts(n int) {
	if c == nil {
		return
	}
	c.PenalizedHosts.Set(float64(n))
}

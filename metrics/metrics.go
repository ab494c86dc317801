// Package metrics exposes Prometheus collectors for carrier generation and
// injection outcomes. A nil *Collectors is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "weave"

// Injection outcomes.
const (
	OutcomeInjected    = "injected"
	OutcomePrinted     = "printed"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	OutcomeErrorMethod = "error_method"
)

// Collectors groups the weave metrics.
type Collectors struct {
	CarriersAllocated *prometheus.CounterVec
	CarriersGenerated *prometheus.CounterVec
	Injections        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		CarriersAllocated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carriers_allocated_total",
			Help:      "Synthetic carrier classes allocated, by generator",
		}, []string{"generator"}),
		CarriersGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carriers_generated_total",
			Help:      "Synthetic carrier classes materialised, by generator and whether it was a regeneration",
		}, []string{"generator", "regenerated"}),
		Injections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "injections_total",
			Help:      "Injection attempts by outcome",
		}, []string{"outcome"}),
	}
}

// Allocated counts a newly allocated carrier identity.
func (c *Collectors) Allocated(generator string) {
	if c == nil {
		return
	}
	c.CarriersAllocated.WithLabelValues(generator).Inc()
}

// Generated counts a carrier materialisation.
func (c *Collectors) Generated(generator string, regenerated bool) {
	if c == nil {
		return
	}
	c.CarriersGenerated.WithLabelValues(generator, strconv.FormatBool(regenerated)).Inc()
}

// Injection counts an injection outcome.
func (c *Collectors) Injection(outcome string) {
	if c == nil {
		return
	}
	c.Injections.WithLabelValues(outcome).Inc()
}

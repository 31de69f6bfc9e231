// Package telemetry counts invocations and target outcomes for reporting.
// Nothing in the fuzz engine reads these counters back.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Target statuses.
const (
	StatusFuzzed    = "fuzzed"
	StatusAbandoned = "abandoned"
	StatusExcluded  = "excluded"
	StatusNoShape   = "no_shape"
	StatusSkipped   = "skipped"
)

// Sink receives one call per completed executor run and one per finished
// target.
type Sink interface {
	Invocation(target, class string)
	Target(status string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Invocation(string, string) {}
func (Nop) Target(string)             {}

// =============================================================================
// PROMETHEUS
// =============================================================================

// Prometheus counts into its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	// InvocationsTotal counts executor runs.
	// Labels: target, class (success, structural, lookup, domain, panic, setup)
	InvocationsTotal *prometheus.CounterVec

	// TargetsTotal counts finished targets.
	// Labels: status
	TargetsTotal *prometheus.CounterVec
}

// NewPrometheus registers the counters under namespace.
func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "callfuzz"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		InvocationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Executor runs by target and outcome class",
		}, []string{"target", "class"}),
		TargetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Finished targets by status",
		}, []string{"status"}),
	}
}

func (p *Prometheus) Invocation(target, class string) {
	p.InvocationsTotal.WithLabelValues(target, class).Inc()
}

func (p *Prometheus) Target(status string) {
	p.TargetsTotal.WithLabelValues(status).Inc()
}

// Registry returns the registry the counters live in.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

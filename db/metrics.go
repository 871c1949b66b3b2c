package db

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds prometheus collectors for connection activity. A nil *Metrics
// records nothing.
type Metrics struct {
	Prepared      prometheus.Counter
	Finalized     prometheus.Counter
	Steps         prometheus.Counter
	Errors        *prometheus.CounterVec
	Scopes        *prometheus.CounterVec
	FunctionCalls *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Prepared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqlite_facade",
			Name:      "statements_prepared_total",
			Help:      "Number of statements compiled.",
		}),
		Finalized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqlite_facade",
			Name:      "statements_finalized_total",
			Help:      "Number of statements finalized.",
		}),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sqlite_facade",
			Name:      "statement_steps_total",
			Help:      "Number of statement steps that produced a row.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlite_facade",
			Name:      "errors_total",
			Help:      "Number of facade errors by kind.",
		}, []string{"kind"}),
		Scopes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlite_facade",
			Name:      "scopes_total",
			Help:      "Number of finished scopes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		FunctionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlite_facade",
			Name:      "function_calls_total",
			Help:      "Number of registered scalar function invocations.",
		}, []string{"name"}),
	}
	if reg != nil {
		reg.MustRegister(m.Prepared, m.Finalized, m.Steps, m.Errors, m.Scopes, m.FunctionCalls)
	}
	return m
}

func (m *Metrics) prepared() {
	if m != nil {
		m.Prepared.Inc()
	}
}

func (m *Metrics) finalized() {
	if m != nil {
		m.Finalized.Inc()
	}
}

func (m *Metrics) step() {
	if m != nil {
		m.Steps.Inc()
	}
}

// error counts a facade error once, however many layers it passes through.
// Errors raised by callers' callbacks are not counted.
func (m *Metrics) error(err error) {
	var e *Error
	if m == nil || !errors.As(err, &e) || e.counted {
		return
	}
	e.counted = true
	m.Errors.WithLabelValues(e.Kind.String()).Inc()
}

func (m *Metrics) scope(kind, outcome string) {
	if m != nil {
		m.Scopes.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) call(name string) {
	if m != nil {
		m.FunctionCalls.WithLabelValues(name).Inc()
	}
}

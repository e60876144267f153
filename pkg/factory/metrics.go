package factory

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks runtime lifecycle counters for a factory.
//
// All metrics use the "rackbridge_" prefix. Methods handle a nil receiver,
// so a nil *Metrics disables collection.
type Metrics struct {
	// RuntimesCreated counts runtimes started for applications.
	RuntimesCreated prometheus.Counter

	// RuntimesDestroyed counts runtimes torn down.
	RuntimesDestroyed prometheus.Counter

	// InitFailures counts applications whose initialization failed.
	InitFailures prometheus.Counter

	// ErrorAppFallbacks counts error applications replaced by the minimal
	// responder after construction failed.
	ErrorAppFallbacks prometheus.Counter
}

// NewMetrics creates factory metrics and registers them with registerer.
// A nil registerer leaves the metrics unregistered.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RuntimesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rackbridge_runtimes_created_total",
			Help: "Total application runtimes created",
		}),
		RuntimesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rackbridge_runtimes_destroyed_total",
			Help: "Total application runtimes torn down",
		}),
		InitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rackbridge_application_init_failures_total",
			Help: "Total application initialization failures",
		}),
		ErrorAppFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rackbridge_error_application_fallbacks_total",
			Help: "Total error applications replaced by the minimal responder",
		}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RuntimesCreated,
			m.RuntimesDestroyed,
			m.InitFailures,
			m.ErrorAppFallbacks,
		)
	}
	return m
}

func (m *Metrics) runtimeCreated() {
	if m == nil {
		return
	}
	m.RuntimesCreated.Inc()
}

func (m *Metrics) runtimeDestroyed() {
	if m == nil {
		return
	}
	m.RuntimesDestroyed.Inc()
}

func (m *Metrics) initFailed() {
	if m == nil {
		return
	}
	m.InitFailures.Inc()
}

func (m *Metrics) errorAppFallback() {
	if m == nil {
		return
	}
	m.ErrorAppFallbacks.Inc()
}

// Package metrics defines the controller's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector below plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// IngestTotal counts settings ingestions by outcome or rejection.
	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundpeer_ingest_total",
			Help: "Vehicle settings ingestions by outcome.",
		},
		[]string{"outcome"},
	)

	// PersistFailures counts failed writes of an accepted configuration.
	PersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundpeer_persist_failures_total",
			Help: "Merged configurations that could not be persisted.",
		},
	)

	// PairingTransitions counts lifecycle transitions, self-transitions included.
	PairingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundpeer_pairing_transitions_total",
			Help: "Pairing lifecycle transitions.",
		},
		[]string{"from", "to"},
	)

	// PairingState is 1 for the current lifecycle state and 0 for the others.
	PairingState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "groundpeer_pairing_state",
			Help: "Current pairing lifecycle state (1 = active).",
		},
		[]string{"state"},
	)

	// RepairsTotal counts link repair sequences that ran.
	RepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundpeer_link_repairs_total",
			Help: "Radio link teardown/rebuild sequences triggered by configuration changes.",
		},
	)

	// RelayWarningsTotal counts emitted (not suppressed) relay advisories.
	RelayWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundpeer_relay_warnings_total",
			Help: "Relay video resolution mismatch advisories emitted.",
		},
	)

	// DispatchLatency records handler run time per event type.
	DispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "groundpeer_dispatch_duration_seconds",
			Help:    "Time spent handling one event.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event"},
	)

	// DispatchErrors counts handler failures per event type.
	DispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "groundpeer_dispatch_errors_total",
			Help: "Events whose handler returned an error.",
		},
		[]string{"event"},
	)

	// QueueDropped counts events rejected because the queue was full.
	QueueDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "groundpeer_dispatch_dropped_total",
			Help: "Events rejected because the dispatch queue was full.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		IngestTotal,
		PersistFailures,
		PairingTransitions,
		PairingState,
		RepairsTotal,
		RelayWarningsTotal,
		DispatchLatency,
		DispatchErrors,
		QueueDropped,
	)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

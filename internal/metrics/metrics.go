// Package metrics defines the Prometheus collectors for simulation runs.
//
// Collectors are registered on an injected Registerer rather than the
// global default so tests and multiple servers in one process never
// collide. All methods are nil-safe: a nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for runs.
const (
	OutcomeOK       = "ok"
	OutcomeReplayed = "replayed"
	OutcomeInvalid  = "invalid_params"
	OutcomeError    = "error"
)

// Metrics holds the beamsim collectors.
type Metrics struct {
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	candidates    prometheus.Counter
	storeAppends  *prometheus.CounterVec
	explanations  *prometheus.CounterVec
	beamWidthUsed prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beamsim_runs_total",
			Help: "Simulation requests by outcome",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beamsim_run_duration_seconds",
			Help:    "Time spent in beam search, excluding persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beamsim_candidates_evaluated_total",
			Help: "Child candidates scored across all runs",
		}),
		storeAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beamsim_store_appends_total",
			Help: "Run store appends by backend and status",
		}, []string{"backend", "status"}),
		explanations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beamsim_explanations_total",
			Help: "Explanation requests by status",
		}, []string{"status"}),
		beamWidthUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beamsim_beam_width",
			Help:    "Beam width requested per run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 11),
		}),
	}
	reg.MustRegister(m.runsTotal, m.runDuration, m.candidates, m.storeAppends, m.explanations, m.beamWidthUsed)
	return m
}

// ObserveRun records a finished search.
func (m *Metrics) ObserveRun(outcome string, elapsed time.Duration, beamWidth, candidates int) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK || outcome == OutcomeReplayed {
		m.runDuration.Observe(elapsed.Seconds())
		m.candidates.Add(float64(candidates))
		m.beamWidthUsed.Observe(float64(beamWidth))
	}
}

// RunRejected records a request that failed before or during search.
func (m *Metrics) RunRejected(outcome string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
}

// StoreAppend records one append attempt.
func (m *Metrics) StoreAppend(backend, status string) {
	if m == nil {
		return
	}
	m.storeAppends.WithLabelValues(backend, status).Inc()
}

// Explanation records one explain request.
func (m *Metrics) Explanation(status string) {
	if m == nil {
		return
	}
	m.explanations.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// StoreAppends exposes the append counter for one label pair.
func (m *Metrics) StoreAppends(backend, status string) prometheus.Counter {
	return m.storeAppends.WithLabelValues(backend, status)
}

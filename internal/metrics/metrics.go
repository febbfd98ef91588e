package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "notary"

// Recorder holds the application counters. A nil Recorder discards observations.
type Recorder struct {
	requests      *prometheus.CounterVec
	outputs       *prometheus.CounterVec
	notarized     prometheus.Counter
	verifications *prometheus.CounterVec
}

// NewRecorder registers the counters on registerer. A nil registerer yields
// counters that are tracked but never exported.
func NewRecorder(registerer prometheus.Registerer) *Recorder {
	factory := promauto.With(registerer)
	return &Recorder{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "no. of rollup requests finished, by kind and status",
		}, []string{"kind", "status"}),
		outputs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_total",
			Help:      "no. of outputs emitted to the rollup host, by type",
		}, []string{"type"}),
		notarized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_notarized_total",
			Help:      "no. of documents notarized",
		}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "no. of verification lookups, by result",
		}, []string{"result"}),
	}
}

// ObserveRequest counts a finished request.
func (r *Recorder) ObserveRequest(kind, status string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(kind, status).Inc()
}

// ObserveOutput counts an emitted notice or report.
func (r *Recorder) ObserveOutput(outputType string) {
	if r == nil {
		return
	}
	r.outputs.WithLabelValues(outputType).Inc()
}

// DocumentNotarized counts a stored document.
func (r *Recorder) DocumentNotarized() {
	if r == nil {
		return
	}
	r.notarized.Inc()
}

// ObserveVerification counts a lookup as "found", "missing" or "invalid".
func (r *Recorder) ObserveVerification(result string) {
	if r == nil {
		return
	}
	r.verifications.WithLabelValues(result).Inc()
}

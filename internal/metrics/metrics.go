package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for adjudication runs.
// A nil *Metrics is valid and records nothing
type Metrics struct {
	// Oracle calls by provider and outcome (ok, error, cached)
	OracleCalls *prometheus.CounterVec

	// Oracle call latency by provider
	OracleLatency *prometheus.HistogramVec

	// Retries of failed oracle calls by provider
	OracleRetries *prometheus.CounterVec

	// Classified items by stage and resulting status
	ItemsClassified *prometheus.CounterVec

	// Final decisions by verdict
	Decisions *prometheus.CounterVec

	// Confidence bands of stored dossiers
	ConfidenceBands *prometheus.CounterVec

	// Full pipeline latency
	AdjudicateLatency prometheus.Histogram
}

// New creates a Metrics instance registered with reg.
// A nil reg registers with the default registry
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		OracleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adjudex_oracle_calls_total",
			Help: "Total reasoning oracle calls by provider and outcome",
		}, []string{"provider", "outcome"}),

		OracleLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adjudex_oracle_call_duration_seconds",
			Help:    "Duration of reasoning oracle calls by provider",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),

		OracleRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adjudex_oracle_retries_total",
			Help: "Total retried oracle calls by provider",
		}, []string{"provider"}),

		ItemsClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adjudex_items_classified_total",
			Help: "Line items classified by stage and coverage status",
		}, []string{"stage", "status"}), // stage: "rule", "reasoning", "promotion"

		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adjudex_decisions_total",
			Help: "Claim verdicts by decision",
		}, []string{"decision"}),

		ConfidenceBands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "adjudex_confidence_bands_total",
			Help: "Confidence bands of adjudicated claims",
		}, []string{"band"}),

		AdjudicateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adjudex_adjudicate_duration_seconds",
			Help:    "Duration of a full adjudication run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
	}
}

// ObserveOracleCall records one oracle call
func (m *Metrics) ObserveOracleCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.OracleCalls.WithLabelValues(provider, outcome).Inc()
	if outcome != "cached" {
		m.OracleLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementRetry records a retried oracle call
func (m *Metrics) IncrementRetry(provider string) {
	if m != nil {
		m.OracleRetries.WithLabelValues(provider).Inc()
	}
}

// IncrementItems records n items classified at stage with status
func (m *Metrics) IncrementItems(stage, status string, n int) {
	if m != nil && n > 0 {
		m.ItemsClassified.WithLabelValues(stage, status).Add(float64(n))
	}
}

// IncrementDecision records a claim verdict
func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

// IncrementBand records a confidence band
func (m *Metrics) IncrementBand(band string) {
	if m != nil {
		m.ConfidenceBands.WithLabelValues(band).Inc()
	}
}

// ObserveAdjudicateLatency records the total adjudication duration
func (m *Metrics) ObserveAdjudicateLatency(d time.Duration) {
	if m != nil {
		m.AdjudicateLatency.Observe(d.Seconds())
	}
}

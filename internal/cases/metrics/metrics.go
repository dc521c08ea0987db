package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the case workflow engine.
type Metrics struct {
	// Decisions recorded by verdict
	Decisions *prometheus.CounterVec

	// Case status changes by source and target status
	StatusChanges *prometheus.CounterVec

	// Documents accepted by category, and rejected by error code
	DocumentsIngested *prometheus.CounterVec
	DocumentsRejected *prometheus.CounterVec

	// Sub-workflow reviews by entity and outcome
	Reviews *prometheus.CounterVec

	// Upload retries answered from the idempotency store
	UploadReplays prometheus.Counter

	// Engine operation latency and failures by operation
	OperationLatency  *prometheus.HistogramVec
	OperationFailures *prometheus.CounterVec
}

// New registers the case metrics on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_case_decisions_total",
			Help: "Case decisions recorded, by decision",
		}, []string{"decision"}),

		StatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_case_status_changes_total",
			Help: "Case status transitions, by from and to status",
		}, []string{"from", "to"}),

		DocumentsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_documents_ingested_total",
			Help: "Documents accepted by the ingestion gate, by category",
		}, []string{"category"}),

		DocumentsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_documents_rejected_total",
			Help: "Files rejected by the ingestion gate, by error code",
		}, []string{"code"}),

		Reviews: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_reviews_total",
			Help: "Review outcomes, by entity (document, bank_statement, occupation_form) and outcome",
		}, []string{"entity", "outcome"}),

		UploadReplays: f.NewCounter(prometheus.CounterOpts{
			Name: "kyc_upload_replays_total",
			Help: "Uploads answered from a stored idempotent result",
		}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_case_operation_duration_seconds",
			Help:    "Duration of workflow engine operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		OperationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_case_operation_failures_total",
			Help: "Failed workflow engine operations, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

func (m *Metrics) IncDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncStatusChange(from, to string) {
	if m != nil {
		m.StatusChanges.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncDocumentIngested(category string) {
	if m != nil {
		m.DocumentsIngested.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) IncDocumentRejected(code string) {
	if m != nil {
		m.DocumentsRejected.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncReview(entity, outcome string) {
	if m != nil {
		m.Reviews.WithLabelValues(entity, outcome).Inc()
	}
}

func (m *Metrics) IncUploadReplay() {
	if m != nil {
		m.UploadReplays.Inc()
	}
}

// ObserveOperation records latency, and a failure when code is non-empty.
func (m *Metrics) ObserveOperation(operation string, d time.Duration, code string) {
	if m == nil {
		return
	}
	m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	if code != "" {
		m.OperationFailures.WithLabelValues(operation, code).Inc()
	}
}

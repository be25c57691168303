package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Matching metrics
	matchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_match_attempts_total",
		Help: "Total dispute-to-stay matching attempts",
	}, []string{
		"strategy", // exact_confirmation_number, transaction_payment, fuzzy_guest, remote_search, none
		"outcome",  // linked, review, no_match
	})

	matchConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciliation_match_confidence",
		Help:    "Confidence score distribution of successful matches",
		Buckets: []float64{60, 65, 70, 75, 80, 85, 90, 95, 100},
	}, []string{
		"strategy",
	})

	// Conflict resolution metrics
	conflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_conflicts_total",
		Help: "Total field-level conflicts observed while merging incoming records",
	}, []string{
		"entity_type", // stay_record, dispute_case, guest_profile
		"kind",        // overwritten_by_source, ignored_local_authoritative, status_regression
	})

	// Evidence collection metrics
	evidenceItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_evidence_items_total",
		Help: "Total evidence artifact collection attempts",
	}, []string{
		"type",    // FOLIO, RESERVATION_CONFIRMATION, AUTH_SIGNATURE, ID_SCAN
		"outcome", // collected, skipped, failed
	})

	evidenceSagaDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciliation_evidence_saga_duration_seconds",
		Help:    "End-to-end duration of one evidence collection run",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{
		"status", // completed, partial, failed
	})

	// Job transport metrics
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_jobs_total",
		Help: "Total jobs processed by the worker",
	}, []string{
		"job_type", // evidence.collect, sync.inbound, sync.outbound
		"outcome",  // ok, retryable_error, terminal_error
	})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reconciliation_job_duration_seconds",
		Help:    "Job handler duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{
		"job_type",
	})

	// Sync metrics
	inboundEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_inbound_events_total",
		Help: "Total inbound webhook events reconciled",
	}, []string{
		"source_system",
		"event_type",
		"status", // completed, failed
	})

	outboundPushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_outbound_pushes_total",
		Help: "Total outbound pushes toward external systems",
	}, []string{
		"source_system",
		"action", // push_note, push_flag, chargeback_alert, dispute_outcome
		"status", // completed, failed
	})
)

// RecordMatchAttempt records one matching attempt and, when a match was
// produced, its confidence
func RecordMatchAttempt(strategy, outcome string, confidence int) {
	if strategy == "" {
		strategy = "none"
	}
	matchAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	if outcome != "no_match" {
		matchConfidence.WithLabelValues(strategy).Observe(float64(confidence))
	}
}

// RecordConflict records one field-level conflict
func RecordConflict(entityType, kind string) {
	conflictsTotal.WithLabelValues(entityType, kind).Inc()
}

// RecordEvidenceItem records one artifact collection attempt
func RecordEvidenceItem(evidenceType, outcome string) {
	evidenceItemsTotal.WithLabelValues(evidenceType, outcome).Inc()
}

// RecordEvidenceSaga records one evidence collection run
func RecordEvidenceSaga(status string, durationSeconds float64) {
	evidenceSagaDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordJob records one processed job
func RecordJob(jobType, outcome string, durationSeconds float64) {
	jobsTotal.WithLabelValues(jobType, outcome).Inc()
	jobDuration.WithLabelValues(jobType).Observe(durationSeconds)
}

// RecordInboundEvent records one reconciled inbound event
func RecordInboundEvent(sourceSystem, eventType, status string) {
	inboundEventsTotal.WithLabelValues(sourceSystem, eventType, status).Inc()
}

// RecordOutboundPush records one outbound push attempt
func RecordOutboundPush(sourceSystem, action, status string) {
	outboundPushesTotal.WithLabelValues(sourceSystem, action, status).Inc()
}

package ports

import (
	"context"

	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// Notifier delivers best-effort operational notifications. Failures are
// logged by callers and never block the pipeline.
type Notifier interface {
	// NotifyManualReview routes a case to the manual review queue (no
	// match, or low-confidence link)
	NotifyManualReview(ctx context.Context, disputeCase *models.DisputeCase, reason string) error

	// NotifyEvidenceCollected tells reviewers an evidence package is ready
	NotifyEvidenceCollected(ctx context.Context, disputeCase *models.DisputeCase, collected int) error

	// EscalateConflict alerts administrative reviewers to a status
	// regression or other policy escalation
	EscalateConflict(ctx context.Context, disputeCase *models.DisputeCase, conflicts []models.FieldConflict) error
}

// FraudAnalyzer triggers downstream fraud/confidence analysis on a case.
// Analysis is best-effort enrichment, not a correctness requirement of
// evidence collection.
type FraudAnalyzer interface {
	AnalyzeCase(ctx context.Context, disputeCase *models.DisputeCase) error
}

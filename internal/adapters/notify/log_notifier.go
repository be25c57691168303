// Package notify provides Notifier implementations: a structured-log
// notifier for deployments without a review tooling integration, and a
// webhook notifier that posts signed events to a configured endpoint.
package notify

import (
	"context"

	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// LogNotifier implements ports.Notifier by emitting structured log lines.
// Useful for development and for properties that triage from log-based
// alerting instead of a review queue integration.
type LogNotifier struct {
	logger ports.Logger
}

// NewLogNotifier creates a log-based notifier
func NewLogNotifier(logger ports.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// NotifyManualReview logs a manual review routing event
func (n *LogNotifier) NotifyManualReview(ctx context.Context, disputeCase *models.DisputeCase, reason string) error {
	n.logger.Warn("case routed to manual review",
		ports.String("case_number", disputeCase.CaseNumber),
		ports.String("property_id", disputeCase.PropertyID),
		ports.String("reason", reason))
	return nil
}

// NotifyEvidenceCollected logs an evidence-package-ready event
func (n *LogNotifier) NotifyEvidenceCollected(ctx context.Context, disputeCase *models.DisputeCase, collected int) error {
	n.logger.Info("evidence package ready for review",
		ports.String("case_number", disputeCase.CaseNumber),
		ports.Int("items", collected))
	return nil
}

// EscalateConflict logs an administrative escalation
func (n *LogNotifier) EscalateConflict(ctx context.Context, disputeCase *models.DisputeCase, conflicts []models.FieldConflict) error {
	caseNumber := ""
	if disputeCase != nil {
		caseNumber = disputeCase.CaseNumber
	}
	n.logger.Error("conflict escalated to administrators",
		ports.String("case_number", caseNumber),
		ports.Int("conflicts", len(conflicts)))
	return nil
}

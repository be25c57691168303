package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// DisputeCaseRepository defines the interface for dispute case persistence
type DisputeCaseRepository interface {
	// CreateIdempotent inserts the case keyed by its external dispute id.
	// When a case with the same external id already exists the stored case
	// is returned unchanged and created is false.
	CreateIdempotent(ctx context.Context, tx DBTX, disputeCase *models.DisputeCase) (stored *models.DisputeCase, created bool, err error)

	// GetByID retrieves a dispute case by its surrogate key
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.DisputeCase, error)

	// GetByExternalID retrieves a dispute case by its external dispute id
	GetByExternalID(ctx context.Context, db DBTX, externalDisputeID string) (*models.DisputeCase, error)

	// GetByCaseNumber retrieves a dispute case by its system case number
	GetByCaseNumber(ctx context.Context, db DBTX, caseNumber string) (*models.DisputeCase, error)

	// Update persists all mutable fields of an existing case
	Update(ctx context.Context, tx DBTX, disputeCase *models.DisputeCase) error

	// LinkStayRecord attaches a stay record with the match confidence and
	// strategy that produced the link
	LinkStayRecord(ctx context.Context, tx DBTX, caseID, stayRecordID uuid.UUID, confidence int, strategy string, reviewRequired bool) error

	// AppendTimeline appends one entry to the case's append-only timeline
	AppendTimeline(ctx context.Context, tx DBTX, caseID uuid.UUID, kind, message string) error

	// ListAwaitingEvidence returns open cases created before cutoff that
	// have no evidence items yet, oldest first
	ListAwaitingEvidence(ctx context.Context, db DBTX, cutoff time.Time, limit int32) ([]*models.DisputeCase, error)
}

package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// EvidenceRepository defines the interface for evidence item persistence
type EvidenceRepository interface {
	// Create inserts one evidence item. The (dispute_case_id, type) pair
	// is unique; a second insert for the same pair fails.
	Create(ctx context.Context, tx DBTX, item *models.EvidenceItem) error

	// ExistsForType reports whether an item of the given type already
	// exists for the case
	ExistsForType(ctx context.Context, db DBTX, caseID uuid.UUID, evidenceType models.EvidenceType) (bool, error)

	// ListByCase retrieves all evidence items for a case
	ListByCase(ctx context.Context, db DBTX, caseID uuid.UUID) ([]*models.EvidenceItem, error)
}

// SyncLogRepository defines the interface for the append-only sync audit log
type SyncLogRepository interface {
	// Append writes one immutable audit entry
	Append(ctx context.Context, tx DBTX, entry *models.SyncLogEntry) error

	// ListByIntegration retrieves recent entries for an integration
	ListByIntegration(ctx context.Context, db DBTX, integrationID string, limit int32) ([]*models.SyncLogEntry, error)
}

// GuestProfileRepository defines the interface for guest profile persistence
type GuestProfileRepository interface {
	// Upsert inserts or updates the profile keyed by (property_id, email).
	// Returns true when a new row was created.
	Upsert(ctx context.Context, tx DBTX, profile *models.GuestProfile) (created bool, err error)

	// GetByEmail retrieves a guest profile by property and email
	GetByEmail(ctx context.Context, db DBTX, propertyID, email string) (*models.GuestProfile, error)

	// RecordChargeback atomically increments the guest's chargeback count
	// and returns the updated profile. Returns ErrGuestProfileNotFound
	// when no profile exists for the pair.
	RecordChargeback(ctx context.Context, tx DBTX, propertyID, email string) (*models.GuestProfile, error)

	// SetFraudFlag sets the locally owned fraud flag and notes
	SetFraudFlag(ctx context.Context, tx DBTX, id uuid.UUID, flagged bool, notes *string) error
}

package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// StayRecordRepository defines the interface for stay record persistence
type StayRecordRepository interface {
	// Upsert inserts the record or updates the existing row keyed by
	// (property_id, confirmation_number). Returns true when a new row was
	// created.
	Upsert(ctx context.Context, tx DBTX, record *models.StayRecord) (created bool, err error)

	// GetByID retrieves a stay record by its surrogate key
	GetByID(ctx context.Context, db DBTX, id uuid.UUID) (*models.StayRecord, error)

	// GetByConfirmationNumber retrieves a stay record by its natural key
	// within a property
	GetByConfirmationNumber(ctx context.Context, db DBTX, propertyID, confirmationNumber string) (*models.StayRecord, error)

	// FindByTransactionID retrieves stay records carrying the given
	// payment transaction id within a property
	FindByTransactionID(ctx context.Context, db DBTX, propertyID, transactionID string) ([]*models.StayRecord, error)

	// FindByCardLastFour retrieves stay records whose payment fingerprint
	// carries the given last four and whose stay overlaps the date range
	FindByCardLastFour(ctx context.Context, db DBTX, propertyID, lastFour string, from, to time.Time) ([]*models.StayRecord, error)

	// FindByGuestName retrieves stay records for a property whose
	// normalized guest name equals the given normalized name
	FindByGuestName(ctx context.Context, db DBTX, propertyID, normalizedName string) ([]*models.StayRecord, error)

	// Update persists all mutable fields of an existing record
	Update(ctx context.Context, tx DBTX, record *models.StayRecord) error
}

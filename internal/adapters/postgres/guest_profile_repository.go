package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// GuestProfileRepository implements ports.GuestProfileRepository with pgx
type GuestProfileRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewGuestProfileRepository creates a PostgreSQL-backed guest profile
// repository
func NewGuestProfileRepository(db ports.DBPort, logger ports.Logger) *GuestProfileRepository {
	return &GuestProfileRepository{db: db, logger: logger}
}

// Upsert inserts or updates the profile keyed by (property_id, email).
// Locally owned fraud fields are preserved on update; the PMS never
// overwrites them.
func (r *GuestProfileRepository) Upsert(ctx context.Context, tx ports.DBTX, profile *models.GuestProfile) (bool, error) {
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}

	var created bool
	row := executor(r.db, tx).QueryRow(ctx, `
		INSERT INTO guest_profiles (
			id, property_id, email, full_name, phone,
			loyalty_number, loyalty_tier, fraud_flagged, fraud_notes,
			chargeback_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (property_id, email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			phone = EXCLUDED.phone,
			loyalty_number = EXCLUDED.loyalty_number,
			loyalty_tier = EXCLUDED.loyalty_tier,
			updated_at = now()
		RETURNING id, fraud_flagged, fraud_notes, chargeback_count,
		          created_at, updated_at, (xmax = 0)`,
		profile.ID, profile.PropertyID, profile.Email, profile.FullName,
		profile.Phone, profile.LoyaltyNumber, profile.LoyaltyTier,
		profile.FraudFlagged, profile.FraudNotes, profile.ChargebackCount)
	err := row.Scan(&profile.ID, &profile.FraudFlagged, &profile.FraudNotes,
		&profile.ChargebackCount, &profile.CreatedAt, &profile.UpdatedAt, &created)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "upsert guest profile", err)
	}
	return created, nil
}

// RecordChargeback atomically increments the guest's chargeback count and
// returns the updated profile
func (r *GuestProfileRepository) RecordChargeback(ctx context.Context, tx ports.DBTX, propertyID, email string) (*models.GuestProfile, error) {
	var p models.GuestProfile
	err := executor(r.db, tx).QueryRow(ctx, `
		UPDATE guest_profiles
		SET chargeback_count = chargeback_count + 1, updated_at = now()
		WHERE property_id = $1 AND email = $2
		RETURNING id, property_id, email, full_name, phone, loyalty_number,
		          loyalty_tier, fraud_flagged, fraud_notes, chargeback_count,
		          created_at, updated_at`, propertyID, email).Scan(
		&p.ID, &p.PropertyID, &p.Email, &p.FullName, &p.Phone,
		&p.LoyaltyNumber, &p.LoyaltyTier, &p.FraudFlagged, &p.FraudNotes,
		&p.ChargebackCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGuestProfileNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "record guest chargeback", err)
	}
	return &p, nil
}

// SetFraudFlag sets the locally owned fraud flag and notes
func (r *GuestProfileRepository) SetFraudFlag(ctx context.Context, tx ports.DBTX, id uuid.UUID, flagged bool, notes *string) error {
	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE guest_profiles
		SET fraud_flagged = $2, fraud_notes = $3, updated_at = now()
		WHERE id = $1`, id, flagged, notes)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "set guest fraud flag", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrGuestProfileNotFound
	}
	return nil
}

// GetByEmail retrieves a guest profile by property and email
func (r *GuestProfileRepository) GetByEmail(ctx context.Context, db ports.DBTX, propertyID, email string) (*models.GuestProfile, error) {
	var p models.GuestProfile
	err := executor(r.db, db).QueryRow(ctx, `
		SELECT id, property_id, email, full_name, phone, loyalty_number,
		       loyalty_tier, fraud_flagged, fraud_notes, chargeback_count,
		       created_at, updated_at
		FROM guest_profiles
		WHERE property_id = $1 AND email = $2`, propertyID, email).Scan(
		&p.ID, &p.PropertyID, &p.Email, &p.FullName, &p.Phone,
		&p.LoyaltyNumber, &p.LoyaltyTier, &p.FraudFlagged, &p.FraudNotes,
		&p.ChargebackCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrGuestProfileNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "get guest profile", err)
	}
	return &p, nil
}

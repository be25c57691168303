package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// EvidenceRepository implements ports.EvidenceRepository with pgx
type EvidenceRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewEvidenceRepository creates a PostgreSQL-backed evidence repository
func NewEvidenceRepository(db ports.DBPort, logger ports.Logger) *EvidenceRepository {
	return &EvidenceRepository{db: db, logger: logger}
}

// Create inserts one evidence item. The unique (dispute_case_id, type)
// constraint turns a concurrent duplicate into ErrEvidenceExists.
func (r *EvidenceRepository) Create(ctx context.Context, tx ports.DBTX, item *models.EvidenceItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	_, err := executor(r.db, tx).Exec(ctx, `
		INSERT INTO evidence_items (
			id, dispute_case_id, type, storage_key, content_type,
			size_bytes, source, collected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.DisputeCaseID, item.Type, item.StorageKey,
		item.ContentType, item.SizeBytes, item.Source, item.CollectedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.WrapError(domain.ErrorCodeEvidenceExists,
				"evidence already collected for type", domain.ErrEvidenceExists)
		}
		return domain.WrapError(domain.ErrorCodeDatabaseError, "create evidence item", err)
	}
	return nil
}

// ExistsForType reports whether an item of the given type already exists for
// the case
func (r *EvidenceRepository) ExistsForType(ctx context.Context, db ports.DBTX, caseID uuid.UUID, evidenceType models.EvidenceType) (bool, error) {
	var exists bool
	err := executor(r.db, db).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM evidence_items
			WHERE dispute_case_id = $1 AND type = $2
		)`, caseID, evidenceType).Scan(&exists)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "check evidence exists", err)
	}
	return exists, nil
}

// ListByCase retrieves all evidence items for a case in collection order
func (r *EvidenceRepository) ListByCase(ctx context.Context, db ports.DBTX, caseID uuid.UUID) ([]*models.EvidenceItem, error) {
	rows, err := executor(r.db, db).Query(ctx, `
		SELECT id, dispute_case_id, type, storage_key, content_type,
		       size_bytes, source, collected_at, created_at
		FROM evidence_items
		WHERE dispute_case_id = $1
		ORDER BY created_at`, caseID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list evidence items", err)
	}
	defer rows.Close()

	var items []*models.EvidenceItem
	for rows.Next() {
		var item models.EvidenceItem
		if err := rows.Scan(
			&item.ID, &item.DisputeCaseID, &item.Type, &item.StorageKey,
			&item.ContentType, &item.SizeBytes, &item.Source,
			&item.CollectedAt, &item.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan evidence item", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate evidence items", err)
	}
	return items, nil
}

package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// SyncLogRepository implements ports.SyncLogRepository with pgx. Entries are
// append-only; there is no update or delete path.
type SyncLogRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewSyncLogRepository creates a PostgreSQL-backed sync log repository
func NewSyncLogRepository(db ports.DBPort, logger ports.Logger) *SyncLogRepository {
	return &SyncLogRepository{db: db, logger: logger}
}

// Append writes one immutable audit entry
func (r *SyncLogRepository) Append(ctx context.Context, tx ports.DBTX, entry *models.SyncLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	conflicts := entry.Conflicts
	if conflicts == nil {
		conflicts = []models.FieldConflict{}
	}
	_, err := executor(r.db, tx).Exec(ctx, `
		INSERT INTO sync_log_entries (
			id, integration_id, direction, entity_type, status,
			records_created, records_updated, duration_ms, error_message,
			conflicts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.IntegrationID, entry.Direction, entry.EntityType,
		entry.Status, entry.RecordsCreated, entry.RecordsUpdated,
		entry.DurationMs, entry.ErrorMessage, conflicts)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "append sync log entry", err)
	}
	return nil
}

// ListByIntegration retrieves the most recent entries for an integration
func (r *SyncLogRepository) ListByIntegration(ctx context.Context, db ports.DBTX, integrationID string, limit int32) ([]*models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := executor(r.db, db).Query(ctx, `
		SELECT id, integration_id, direction, entity_type, status,
		       records_created, records_updated, duration_ms, error_message,
		       conflicts, created_at
		FROM sync_log_entries
		WHERE integration_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, integrationID, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list sync log entries", err)
	}
	defer rows.Close()

	var entries []*models.SyncLogEntry
	for rows.Next() {
		var e models.SyncLogEntry
		if err := rows.Scan(
			&e.ID, &e.IntegrationID, &e.Direction, &e.EntityType, &e.Status,
			&e.RecordsCreated, &e.RecordsUpdated, &e.DurationMs,
			&e.ErrorMessage, &e.Conflicts, &e.CreatedAt); err != nil {
			return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan sync log entry", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate sync log entries", err)
	}
	return entries, nil
}

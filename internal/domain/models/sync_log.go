package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncDirection indicates which way data flowed during a reconciliation
// attempt
type SyncDirection string

const (
	SyncDirectionInbound  SyncDirection = "inbound"
	SyncDirectionOutbound SyncDirection = "outbound"
)

// SyncStatus is the outcome of one reconciliation attempt
type SyncStatus string

const (
	SyncStatusStarted   SyncStatus = "started"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusFailed    SyncStatus = "failed"
)

// ConflictKind classifies a field-level disagreement between two systems
type ConflictKind string

const (
	ConflictKindOverwrite        ConflictKind = "overwritten_by_source"
	ConflictKindIgnored          ConflictKind = "ignored_local_authoritative"
	ConflictKindStatusRegression ConflictKind = "status_regression"
)

// FieldConflict records one disagreement observed while merging an incoming
// record into the locally stored entity
type FieldConflict struct {
	EntityType    string       `json:"entity_type"`
	EntityID      string       `json:"entity_id"`
	Field         string       `json:"field"`
	LocalValue    interface{}  `json:"local_value"`
	IncomingValue interface{}  `json:"incoming_value"`
	Kind          ConflictKind `json:"kind"`
	SourceID      string       `json:"source_id"`
}

// IsRegression reports whether the conflict is a status regression, which
// triggers the escalation path
func (c FieldConflict) IsRegression() bool {
	return c.Kind == ConflictKindStatusRegression
}

// SyncLogEntry is an immutable audit record of one reconciliation attempt
type SyncLogEntry struct {
	ID             uuid.UUID       `json:"id"`
	IntegrationID  string          `json:"integration_id"`
	Direction      SyncDirection   `json:"direction"`
	EntityType     string          `json:"entity_type"`
	Status         SyncStatus      `json:"status"`
	RecordsCreated int             `json:"records_created"`
	RecordsUpdated int             `json:"records_updated"`
	DurationMs     int64           `json:"duration_ms"`
	ErrorMessage   *string         `json:"error_message"`
	Conflicts      []FieldConflict `json:"conflicts"`
	CreatedAt      time.Time       `json:"created_at"`
}

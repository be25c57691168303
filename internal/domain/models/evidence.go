package models

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceType identifies one artifact kind in an evidence package
type EvidenceType string

const (
	EvidenceTypeFolio                   EvidenceType = "FOLIO"
	EvidenceTypeReservationConfirmation EvidenceType = "RESERVATION_CONFIRMATION"
	EvidenceTypeAuthSignature           EvidenceType = "AUTH_SIGNATURE"
	EvidenceTypeIDScan                  EvidenceType = "ID_SCAN"
)

// EvidenceCollectionOrder is the fixed order in which the orchestrator
// attempts each artifact type
var EvidenceCollectionOrder = []EvidenceType{
	EvidenceTypeFolio,
	EvidenceTypeReservationConfirmation,
	EvidenceTypeAuthSignature,
	EvidenceTypeIDScan,
}

// EvidenceSource records how an artifact entered the system
type EvidenceSource string

const (
	EvidenceSourceAutoCollected EvidenceSource = "auto_collected"
	EvidenceSourceManual        EvidenceSource = "manual"
)

// EvidenceItem is one persisted artifact supporting a dispute response.
// At most one item exists per (dispute case, type) under normal operation.
type EvidenceItem struct {
	ID            uuid.UUID      `json:"id"`
	DisputeCaseID uuid.UUID      `json:"dispute_case_id"`
	Type          EvidenceType   `json:"type"`
	StorageKey    string         `json:"storage_key"`
	ContentType   string         `json:"content_type"`
	SizeBytes     int64          `json:"size_bytes"`
	Source        EvidenceSource `json:"source"`
	CollectedAt   time.Time      `json:"collected_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

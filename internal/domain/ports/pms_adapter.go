package ports

import (
	"context"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// WebhookEvent is the parsed form of an inbound webhook payload
type WebhookEvent struct {
	EventType string
	Data      map[string]interface{}
	Timestamp time.Time
}

// OutboundPush carries a note, flag, alert, or outcome pushed back to an
// external system
type OutboundPush struct {
	ReservationID string
	CaseNumber    string
	Subject       string
	Body          string
}

// PMSAdapter is the capability set implemented once per external system
// (property management system or dispute portal). Each adapter owns its
// vendor field mapping and status translation tables; the pipeline only
// sees canonical types.
type PMSAdapter interface {
	// SourceSystem returns the tag identifying the external system
	SourceSystem() string

	// SearchReservations queries the external system with whatever subset
	// of criteria is present and returns normalized stay records
	SearchReservations(ctx context.Context, criteria models.MatchCriteria) ([]*models.StayRecord, error)

	// GetGuestFolio fetches the charge lines for a reservation
	GetGuestFolio(ctx context.Context, externalStayID string) ([]models.FolioItem, error)

	// GetReservationDocuments fetches stored documents for a reservation
	GetReservationDocuments(ctx context.Context, externalStayID string) ([]models.Document, error)

	// NormalizeReservation converts a raw vendor payload into the
	// canonical stay record shape
	NormalizeReservation(raw map[string]interface{}) (*models.StayRecord, error)

	// NormalizeFolioItems converts raw vendor folio lines into canonical
	// folio items
	NormalizeFolioItems(raw []map[string]interface{}) ([]models.FolioItem, error)

	// PushNote attaches a note to the external reservation or dispute
	PushNote(ctx context.Context, push OutboundPush) error

	// PushFlag raises a fraud/chargeback flag on the external record
	PushFlag(ctx context.Context, push OutboundPush) error

	// PushChargebackAlert notifies the external system of a new dispute
	PushChargebackAlert(ctx context.Context, push OutboundPush) error

	// PushDisputeOutcome reports a WON/LOST outcome to the external system
	PushDisputeOutcome(ctx context.Context, push OutboundPush) error

	// ParseWebhookPayload decodes an inbound webhook body into an event
	ParseWebhookPayload(headers map[string]string, body []byte) (*WebhookEvent, error)

	// VerifyWebhookSignature checks the payload signature against the
	// shared secret
	VerifyWebhookSignature(payload []byte, signature, secret string) bool
}

// AdapterRegistry resolves the adapter for a source system. An unknown
// source system is a config error, surfaced as a skipped job.
type AdapterRegistry interface {
	Resolve(sourceSystem string) (PMSAdapter, error)
}

package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/internal/services/conflict"
	"github.com/stayguard/chargeback-service/pkg/observability"
)

// Canonical event types emitted by adapter webhook parsing
const (
	EventDisputeCreated     = "dispute.created"
	EventDisputeUpdated     = "dispute.updated"
	EventReservationCreated = "reservation.created"
	EventReservationUpdated = "reservation.updated"
)

// InboundService reconciles one raw inbound event: verify, parse,
// idempotently create or merge the affected entity, audit the attempt, and
// hand new disputes to the evidence pipeline.
type InboundService struct {
	db        ports.DBPort
	caseRepo  ports.DisputeCaseRepository
	stayRepo  ports.StayRecordRepository
	guestRepo ports.GuestProfileRepository
	syncLog   ports.SyncLogRepository
	resolver  *conflict.Resolver
	adapters  ports.AdapterRegistry
	secrets   ports.SecretManager
	publisher ports.JobPublisher
	logger    ports.Logger
}

// NewInboundService creates an inbound sync service
func NewInboundService(
	db ports.DBPort,
	caseRepo ports.DisputeCaseRepository,
	stayRepo ports.StayRecordRepository,
	guestRepo ports.GuestProfileRepository,
	syncLog ports.SyncLogRepository,
	resolver *conflict.Resolver,
	adapters ports.AdapterRegistry,
	secrets ports.SecretManager,
	publisher ports.JobPublisher,
	logger ports.Logger,
) *InboundService {
	return &InboundService{
		db:        db,
		caseRepo:  caseRepo,
		stayRepo:  stayRepo,
		guestRepo: guestRepo,
		syncLog:   syncLog,
		resolver:  resolver,
		adapters:  adapters,
		secrets:   secrets,
		publisher: publisher,
		logger:    logger,
	}
}

// Process handles one inbound sync job. Signature failures and unsupported
// source systems reject the event without mutating state; they surface as
// skipped jobs, never retried failures.
func (s *InboundService) Process(ctx context.Context, job ports.InboundSyncJob) error {
	started := time.Now()

	adapter, err := s.adapters.Resolve(job.SourceSystem)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterUnsupported,
			fmt.Sprintf("no adapter registered for %q", job.SourceSystem), err)
	}

	if err := s.verifySignature(ctx, adapter, job); err != nil {
		s.logger.Warn("inbound webhook rejected",
			ports.String("source_system", job.SourceSystem),
			ports.String("integration_id", job.IntegrationID),
			ports.Err(err))
		return err
	}

	event, err := adapter.ParseWebhookPayload(job.Headers, job.RawPayload)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterBadPayload, "unparseable webhook payload", err)
	}

	s.appendLog(ctx, job.IntegrationID, eventEntityType(event.EventType), models.SyncStatusStarted, 0, 0, 0, nil)

	var created, updated int
	switch event.EventType {
	case EventDisputeCreated, EventDisputeUpdated:
		created, updated, err = s.reconcileDispute(ctx, job, event)
	case EventReservationCreated, EventReservationUpdated:
		created, updated, err = s.reconcileReservation(ctx, job, adapter, event)
	default:
		err = domain.NewDomainError(domain.ErrorCodeSyncSkipped,
			fmt.Sprintf("unhandled event type %q", event.EventType))
	}

	duration := time.Since(started).Milliseconds()
	if err != nil {
		s.appendLog(ctx, job.IntegrationID, eventEntityType(event.EventType), models.SyncStatusFailed, created, updated, duration, err)
		observability.RecordInboundEvent(job.SourceSystem, event.EventType, string(models.SyncStatusFailed))
		return err
	}

	s.appendLog(ctx, job.IntegrationID, eventEntityType(event.EventType), models.SyncStatusCompleted, created, updated, duration, nil)
	observability.RecordInboundEvent(job.SourceSystem, event.EventType, string(models.SyncStatusCompleted))
	return nil
}

// verifySignature checks the webhook HMAC against the per-integration
// secret. A missing secret configuration rejects the event.
func (s *InboundService) verifySignature(ctx context.Context, adapter ports.PMSAdapter, job ports.InboundSyncJob) error {
	secret, err := s.secrets.GetSecret(ctx, "webhook/"+job.IntegrationID)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeSyncSkipped, "webhook secret not configured", err)
	}

	signature := job.Headers["X-Webhook-Signature"]
	if signature == "" {
		signature = job.Headers["X-Signature"]
	}
	if !adapter.VerifyWebhookSignature(job.RawPayload, signature, secret) {
		return domain.NewDomainError(domain.ErrorCodeAdapterInvalidSignature, "webhook signature mismatch")
	}
	return nil
}

// reconcileDispute creates the dispute case idempotently on the external
// dispute id, or merges the update through the conflict resolver. New cases
// get an evidence collection job enqueued.
func (s *InboundService) reconcileDispute(ctx context.Context, job ports.InboundSyncJob, event *ports.WebhookEvent) (created, updated int, err error) {
	incoming, err := disputeFromEvent(job, event)
	if err != nil {
		return 0, 0, err
	}

	var stored *models.DisputeCase
	var wasCreated bool
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		stored, wasCreated, err = s.caseRepo.CreateIdempotent(ctx, tx, incoming)
		if err != nil {
			return fmt.Errorf("create dispute case: %w", err)
		}
		if wasCreated {
			return nil
		}

		merged, _, rerr := s.resolver.ResolveDisputeCase(ctx, tx, job.IntegrationID, stored, incoming, job.SourceSystem)
		if rerr != nil {
			return rerr
		}
		if err := s.caseRepo.Update(ctx, tx, merged); err != nil {
			return fmt.Errorf("update dispute case: %w", err)
		}
		stored = merged
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	if wasCreated {
		s.logger.Info("dispute case created",
			ports.String("case_number", stored.CaseNumber),
			ports.String("external_dispute_id", stored.ExternalDisputeID))
		s.enqueueEvidenceCollection(ctx, stored)
		return 1, 0, nil
	}

	s.logger.Info("dispute case updated",
		ports.String("case_number", stored.CaseNumber),
		ports.String("status", string(stored.Status)))
	return 0, 1, nil
}

// reconcileReservation upserts the normalized stay record through the
// conflict resolver and keeps the guest profile in step.
func (s *InboundService) reconcileReservation(ctx context.Context, job ports.InboundSyncJob, adapter ports.PMSAdapter, event *ports.WebhookEvent) (created, updated int, err error) {
	incoming, err := adapter.NormalizeReservation(event.Data)
	if err != nil {
		return 0, 0, domain.WrapError(domain.ErrorCodeAdapterBadPayload, "reservation normalization failed", err)
	}
	incoming.SourceSystem = job.SourceSystem

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		local, lerr := s.stayRepo.GetByConfirmationNumber(ctx, tx, incoming.PropertyID, incoming.ConfirmationNumber)
		if lerr != nil {
			if !isNotFound(lerr) {
				return lerr
			}
			incoming.ID = uuid.New()
			incoming.LastSyncedAt = time.Now().UTC()
			if _, uerr := s.stayRepo.Upsert(ctx, tx, incoming); uerr != nil {
				return fmt.Errorf("insert stay record: %w", uerr)
			}
			created = 1
			return s.syncGuestProfile(ctx, tx, job, incoming)
		}

		merged, _, rerr := s.resolver.ResolveStayRecord(ctx, tx, job.IntegrationID, local, incoming, job.SourceSystem)
		if rerr != nil {
			return rerr
		}
		if uerr := s.stayRepo.Update(ctx, tx, merged); uerr != nil {
			return fmt.Errorf("update stay record: %w", uerr)
		}
		updated = 1
		return s.syncGuestProfile(ctx, tx, job, merged)
	})
	return created, updated, err
}

// syncGuestProfile upserts the guest profile tied to the stay's contact
// email, merging through the authority split when one already exists
func (s *InboundService) syncGuestProfile(ctx context.Context, tx ports.DBTX, job ports.InboundSyncJob, record *models.StayRecord) error {
	if record.GuestEmail == nil || *record.GuestEmail == "" {
		return nil
	}

	incoming := &models.GuestProfile{
		PropertyID: record.PropertyID,
		Email:      strings.ToLower(*record.GuestEmail),
		FullName:   record.GuestName,
		Phone:      record.GuestPhone,
	}

	local, err := s.guestRepo.GetByEmail(ctx, tx, incoming.PropertyID, incoming.Email)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		incoming.ID = uuid.New()
		_, err = s.guestRepo.Upsert(ctx, tx, incoming)
		return err
	}

	merged, _, err := s.resolver.ResolveGuestProfile(ctx, tx, job.IntegrationID, local, incoming, job.SourceSystem)
	if err != nil {
		return err
	}
	_, err = s.guestRepo.Upsert(ctx, tx, merged)
	return err
}

// enqueueEvidenceCollection hands a newly created case to the evidence
// pipeline. A publish failure is logged; the periodic backfill will pick
// the case up.
func (s *InboundService) enqueueEvidenceCollection(ctx context.Context, disputeCase *models.DisputeCase) {
	evidenceJob := ports.NewEvidenceCollectionJob(disputeCase)
	if err := s.publisher.PublishEvidenceCollection(ctx, evidenceJob); err != nil {
		s.logger.Error("failed to enqueue evidence collection",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.Err(err))
	}
}

// appendLog writes one audit entry; audit failures are logged, never fatal
func (s *InboundService) appendLog(ctx context.Context, integrationID, entityType string, status models.SyncStatus, created, updated int, durationMs int64, cause error) {
	entry := &models.SyncLogEntry{
		IntegrationID:  integrationID,
		Direction:      models.SyncDirectionInbound,
		EntityType:     entityType,
		Status:         status,
		RecordsCreated: created,
		RecordsUpdated: updated,
		DurationMs:     durationMs,
	}
	if cause != nil {
		msg := cause.Error()
		entry.ErrorMessage = &msg
	}
	if err := s.syncLog.Append(ctx, nil, entry); err != nil {
		s.logger.Error("sync audit entry failed",
			ports.String("integration_id", integrationID),
			ports.Err(err))
	}
}

// disputeFromEvent builds the incoming dispute case from the canonical
// fields adapters place in webhook event data. Missing fields stay nil;
// they are never silently defaulted to empty strings.
func disputeFromEvent(job ports.InboundSyncJob, event *ports.WebhookEvent) (*models.DisputeCase, error) {
	externalID, _ := event.Data["external_dispute_id"].(string)
	if externalID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload, "event missing external_dispute_id")
	}
	propertyID, _ := event.Data["property_id"].(string)
	if propertyID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload, "event missing property_id")
	}

	incoming := &models.DisputeCase{
		ID:                uuid.New(),
		CaseNumber:        newCaseNumber(),
		ExternalDisputeID: externalID,
		PropertyID:        propertyID,
		SourceSystem:      job.SourceSystem,
		Currency:          stringField(event.Data, "currency", "USD"),
		ReasonCode:        stringField(event.Data, "reason_code", ""),
		ReasonCategory:    stringField(event.Data, "reason_category", ""),
		Status:            models.DisputeStatusPending,
		DisputeDate:       event.Timestamp,
		RawData:           event.Data,
	}

	if amount, ok := event.Data["amount"].(string); ok {
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, domain.WrapError(domain.ErrorCodeAdapterBadPayload, "unparseable dispute amount", err)
		}
		incoming.Amount = parsed
	} else if amount, ok := event.Data["amount"].(float64); ok {
		incoming.Amount = decimal.NewFromFloat(amount)
	}

	if status, ok := event.Data["status"].(string); ok {
		incoming.Status = models.DisputeStatus(status)
		if !incoming.Status.IsValid() {
			return nil, domain.NewDomainError(domain.ErrorCodeCaseStatusInvalid,
				fmt.Sprintf("unknown dispute status %q", status))
		}
	}

	incoming.ConfirmationNumber = optionalString(event.Data, "confirmation_number")
	incoming.CardLastFour = optionalString(event.Data, "card_last_four")
	incoming.GuestName = optionalString(event.Data, "guest_name")
	incoming.TransactionID = optionalString(event.Data, "transaction_id")
	incoming.CheckInDate = optionalDate(event.Data, "check_in_date")
	incoming.CheckOutDate = optionalDate(event.Data, "check_out_date")

	if due := optionalDate(event.Data, "respond_by_date"); due != nil {
		incoming.RespondByDate = due
	}

	return incoming, nil
}

// newCaseNumber generates a system case number. Uniqueness is backed by the
// database constraint; the uuid fragment makes collisions implausible.
func newCaseNumber() string {
	return "CB-" + strings.ToUpper(uuid.New().String()[:8])
}

func eventEntityType(eventType string) string {
	if strings.HasPrefix(eventType, "dispute.") {
		return "dispute_case"
	}
	return "stay_record"
}

func stringField(data map[string]interface{}, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func optionalString(data map[string]interface{}, key string) *string {
	if v, ok := data[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func optionalDate(data map[string]interface{}, key string) *time.Time {
	v, ok := data[key].(string)
	if !ok || v == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, v); err != nil {
			return nil
		}
	}
	return &parsed
}

func isNotFound(err error) bool {
	return domain.IsNotFoundError(err)
}

package sync_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/internal/services/conflict"
	syncservice "github.com/stayguard/chargeback-service/internal/services/sync"
)

// MockDBPort executes transaction callbacks directly; repository mocks see a
// nil transaction executor.
type MockDBPort struct{}

func (m *MockDBPort) GetDB() *pgxpool.Pool { return nil }

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// MockDisputeCaseRepository is a mock implementation of ports.DisputeCaseRepository
type MockDisputeCaseRepository struct {
	mock.Mock
}

func (m *MockDisputeCaseRepository) CreateIdempotent(ctx context.Context, tx ports.DBTX, disputeCase *models.DisputeCase) (*models.DisputeCase, bool, error) {
	args := m.Called(ctx, tx, disputeCase)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.DisputeCase), args.Bool(1), args.Error(2)
}

func (m *MockDisputeCaseRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.DisputeCase, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisputeCase), args.Error(1)
}

func (m *MockDisputeCaseRepository) GetByExternalID(ctx context.Context, db ports.DBTX, externalDisputeID string) (*models.DisputeCase, error) {
	args := m.Called(ctx, db, externalDisputeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisputeCase), args.Error(1)
}

func (m *MockDisputeCaseRepository) GetByCaseNumber(ctx context.Context, db ports.DBTX, caseNumber string) (*models.DisputeCase, error) {
	args := m.Called(ctx, db, caseNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DisputeCase), args.Error(1)
}

func (m *MockDisputeCaseRepository) Update(ctx context.Context, tx ports.DBTX, disputeCase *models.DisputeCase) error {
	args := m.Called(ctx, tx, disputeCase)
	return args.Error(0)
}

func (m *MockDisputeCaseRepository) LinkStayRecord(ctx context.Context, tx ports.DBTX, caseID, stayRecordID uuid.UUID, confidence int, strategy string, reviewRequired bool) error {
	args := m.Called(ctx, tx, caseID, stayRecordID, confidence, strategy, reviewRequired)
	return args.Error(0)
}

func (m *MockDisputeCaseRepository) AppendTimeline(ctx context.Context, tx ports.DBTX, caseID uuid.UUID, kind, message string) error {
	args := m.Called(ctx, tx, caseID, kind, message)
	return args.Error(0)
}

func (m *MockDisputeCaseRepository) ListAwaitingEvidence(ctx context.Context, db ports.DBTX, cutoff time.Time, limit int32) ([]*models.DisputeCase, error) {
	args := m.Called(ctx, db, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DisputeCase), args.Error(1)
}

// MockStayRecordRepository is a mock implementation of ports.StayRecordRepository
type MockStayRecordRepository struct {
	mock.Mock
}

func (m *MockStayRecordRepository) Upsert(ctx context.Context, tx ports.DBTX, record *models.StayRecord) (bool, error) {
	args := m.Called(ctx, tx, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockStayRecordRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.StayRecord, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StayRecord), args.Error(1)
}

func (m *MockStayRecordRepository) GetByConfirmationNumber(ctx context.Context, db ports.DBTX, propertyID, confirmationNumber string) (*models.StayRecord, error) {
	args := m.Called(ctx, db, propertyID, confirmationNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StayRecord), args.Error(1)
}

func (m *MockStayRecordRepository) FindByTransactionID(ctx context.Context, db ports.DBTX, propertyID, transactionID string) ([]*models.StayRecord, error) {
	args := m.Called(ctx, db, propertyID, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StayRecord), args.Error(1)
}

func (m *MockStayRecordRepository) FindByCardLastFour(ctx context.Context, db ports.DBTX, propertyID, lastFour string, from, to time.Time) ([]*models.StayRecord, error) {
	args := m.Called(ctx, db, propertyID, lastFour, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StayRecord), args.Error(1)
}

func (m *MockStayRecordRepository) FindByGuestName(ctx context.Context, db ports.DBTX, propertyID, normalizedName string) ([]*models.StayRecord, error) {
	args := m.Called(ctx, db, propertyID, normalizedName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StayRecord), args.Error(1)
}

func (m *MockStayRecordRepository) Update(ctx context.Context, tx ports.DBTX, record *models.StayRecord) error {
	args := m.Called(ctx, tx, record)
	return args.Error(0)
}

// MockGuestProfileRepository is a mock implementation of ports.GuestProfileRepository
type MockGuestProfileRepository struct {
	mock.Mock
}

func (m *MockGuestProfileRepository) Upsert(ctx context.Context, tx ports.DBTX, profile *models.GuestProfile) (bool, error) {
	args := m.Called(ctx, tx, profile)
	return args.Bool(0), args.Error(1)
}

func (m *MockGuestProfileRepository) GetByEmail(ctx context.Context, db ports.DBTX, propertyID, email string) (*models.GuestProfile, error) {
	args := m.Called(ctx, db, propertyID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestProfile), args.Error(1)
}

func (m *MockGuestProfileRepository) RecordChargeback(ctx context.Context, tx ports.DBTX, propertyID, email string) (*models.GuestProfile, error) {
	args := m.Called(ctx, tx, propertyID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuestProfile), args.Error(1)
}

func (m *MockGuestProfileRepository) SetFraudFlag(ctx context.Context, tx ports.DBTX, id uuid.UUID, flagged bool, notes *string) error {
	args := m.Called(ctx, tx, id, flagged, notes)
	return args.Error(0)
}

// MockSyncLogRepository is a mock implementation of ports.SyncLogRepository
type MockSyncLogRepository struct {
	mock.Mock

	entries []*models.SyncLogEntry
}

func (m *MockSyncLogRepository) Append(ctx context.Context, tx ports.DBTX, entry *models.SyncLogEntry) error {
	args := m.Called(ctx, tx, entry)
	if args.Error(0) == nil {
		m.entries = append(m.entries, entry)
	}
	return args.Error(0)
}

func (m *MockSyncLogRepository) ListByIntegration(ctx context.Context, db ports.DBTX, integrationID string, limit int32) ([]*models.SyncLogEntry, error) {
	args := m.Called(ctx, db, integrationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncLogEntry), args.Error(1)
}

// MockAdapterRegistry is a mock implementation of ports.AdapterRegistry
type MockAdapterRegistry struct {
	mock.Mock
}

func (m *MockAdapterRegistry) Resolve(sourceSystem string) (ports.PMSAdapter, error) {
	args := m.Called(sourceSystem)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.PMSAdapter), args.Error(1)
}

// MockPMSAdapter is a mock implementation of ports.PMSAdapter
type MockPMSAdapter struct {
	mock.Mock
}

func (m *MockPMSAdapter) SourceSystem() string {
	return "cloudpms"
}

func (m *MockPMSAdapter) SearchReservations(ctx context.Context, criteria models.MatchCriteria) ([]*models.StayRecord, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.StayRecord), args.Error(1)
}

func (m *MockPMSAdapter) GetGuestFolio(ctx context.Context, externalStayID string) ([]models.FolioItem, error) {
	args := m.Called(ctx, externalStayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FolioItem), args.Error(1)
}

func (m *MockPMSAdapter) GetReservationDocuments(ctx context.Context, externalStayID string) ([]models.Document, error) {
	args := m.Called(ctx, externalStayID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockPMSAdapter) NormalizeReservation(raw map[string]interface{}) (*models.StayRecord, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StayRecord), args.Error(1)
}

func (m *MockPMSAdapter) NormalizeFolioItems(raw []map[string]interface{}) ([]models.FolioItem, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FolioItem), args.Error(1)
}

func (m *MockPMSAdapter) PushNote(ctx context.Context, push ports.OutboundPush) error {
	args := m.Called(ctx, push)
	return args.Error(0)
}

func (m *MockPMSAdapter) PushFlag(ctx context.Context, push ports.OutboundPush) error {
	args := m.Called(ctx, push)
	return args.Error(0)
}

func (m *MockPMSAdapter) PushChargebackAlert(ctx context.Context, push ports.OutboundPush) error {
	args := m.Called(ctx, push)
	return args.Error(0)
}

func (m *MockPMSAdapter) PushDisputeOutcome(ctx context.Context, push ports.OutboundPush) error {
	args := m.Called(ctx, push)
	return args.Error(0)
}

func (m *MockPMSAdapter) ParseWebhookPayload(headers map[string]string, body []byte) (*ports.WebhookEvent, error) {
	args := m.Called(headers, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.WebhookEvent), args.Error(1)
}

func (m *MockPMSAdapter) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	args := m.Called(payload, signature, secret)
	return args.Bool(0)
}

// MockSecretManager is a mock implementation of ports.SecretManager
type MockSecretManager struct {
	mock.Mock
}

func (m *MockSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

// MockJobPublisher is a mock implementation of ports.JobPublisher
type MockJobPublisher struct {
	mock.Mock
}

func (m *MockJobPublisher) PublishEvidenceCollection(ctx context.Context, job ports.EvidenceCollectionJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobPublisher) PublishInboundSync(ctx context.Context, job ports.InboundSyncJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobPublisher) PublishOutbound(ctx context.Context, job ports.OutboundJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyManualReview(ctx context.Context, disputeCase *models.DisputeCase, reason string) error {
	args := m.Called(ctx, disputeCase, reason)
	return args.Error(0)
}

func (m *MockNotifier) NotifyEvidenceCollected(ctx context.Context, disputeCase *models.DisputeCase, collected int) error {
	args := m.Called(ctx, disputeCase, collected)
	return args.Error(0)
}

func (m *MockNotifier) EscalateConflict(ctx context.Context, disputeCase *models.DisputeCase, conflicts []models.FieldConflict) error {
	args := m.Called(ctx, disputeCase, conflicts)
	return args.Error(0)
}

type testLogger struct{}

func (testLogger) Info(string, ...ports.Field)  {}
func (testLogger) Error(string, ...ports.Field) {}
func (testLogger) Warn(string, ...ports.Field)  {}
func (testLogger) Debug(string, ...ports.Field) {}

type inboundFixture struct {
	caseRepo  *MockDisputeCaseRepository
	stayRepo  *MockStayRecordRepository
	guestRepo *MockGuestProfileRepository
	syncLog   *MockSyncLogRepository
	registry  *MockAdapterRegistry
	adapter   *MockPMSAdapter
	secrets   *MockSecretManager
	publisher *MockJobPublisher
	notifier  *MockNotifier
	svc       *syncservice.InboundService
}

func newInboundFixture() *inboundFixture {
	f := &inboundFixture{
		caseRepo:  new(MockDisputeCaseRepository),
		stayRepo:  new(MockStayRecordRepository),
		guestRepo: new(MockGuestProfileRepository),
		syncLog:   new(MockSyncLogRepository),
		registry:  new(MockAdapterRegistry),
		adapter:   new(MockPMSAdapter),
		secrets:   new(MockSecretManager),
		publisher: new(MockJobPublisher),
		notifier:  new(MockNotifier),
	}
	resolver := conflict.NewResolver(f.syncLog, f.notifier, testLogger{})
	f.svc = syncservice.NewInboundService(
		&MockDBPort{}, f.caseRepo, f.stayRepo, f.guestRepo, f.syncLog,
		resolver, f.registry, f.secrets, f.publisher, testLogger{},
	)
	return f
}

// acceptSignedWebhook wires the happy-path verification chain
func (f *inboundFixture) acceptSignedWebhook(job ports.InboundSyncJob, event *ports.WebhookEvent) {
	f.registry.On("Resolve", job.SourceSystem).Return(f.adapter, nil)
	f.secrets.On("GetSecret", mock.Anything, "webhook/"+job.IntegrationID).Return("s3cret", nil)
	f.adapter.On("VerifyWebhookSignature", job.RawPayload, "sig-1", "s3cret").Return(true)
	f.adapter.On("ParseWebhookPayload", job.Headers, job.RawPayload).Return(event, nil)
}

func inboundJob() ports.InboundSyncJob {
	return ports.InboundSyncJob{
		SourceSystem:  "cloudpms",
		IntegrationID: "int-1",
		RawPayload:    []byte(`{"event":"dispute.created"}`),
		Headers:       map[string]string{"X-Webhook-Signature": "sig-1"},
	}
}

func disputeEvent(eventType string, data map[string]interface{}) *ports.WebhookEvent {
	return &ports.WebhookEvent{
		EventType: eventType,
		Data:      data,
		Timestamp: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestProcess_DisputeCreatedEnqueuesEvidenceCollection(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()
	event := disputeEvent(syncservice.EventDisputeCreated, map[string]interface{}{
		"external_dispute_id": "dp_123",
		"property_id":         "HTL-100",
		"amount":              "450.00",
		"reason_code":         "4837",
		"confirmation_number": "CONF-1",
		"guest_name":          "John Smith",
	})
	f.acceptSignedWebhook(job, event)

	stored := &models.DisputeCase{
		ID:                 uuid.New(),
		CaseNumber:         "CB-AB12CD34",
		ExternalDisputeID:  "dp_123",
		PropertyID:         "HTL-100",
		Status:             models.DisputeStatusPending,
		ConfirmationNumber: strPtr("CONF-1"),
		GuestName:          strPtr("John Smith"),
	}
	f.caseRepo.On("CreateIdempotent", mock.Anything, nil, mock.AnythingOfType("*models.DisputeCase")).
		Return(stored, true, nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	var published ports.EvidenceCollectionJob
	f.publisher.On("PublishEvidenceCollection", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			published = args.Get(1).(ports.EvidenceCollectionJob)
		}).Return(nil)

	err := f.svc.Process(context.Background(), job)

	require.NoError(t, err)
	f.publisher.AssertExpectations(t)
	assert.Equal(t, stored.ID.String(), published.DisputeCaseID)
	assert.Equal(t, "CB-AB12CD34", published.CaseNumber)
	assert.Equal(t, "CONF-1", published.ConfirmationNumber)
	assert.Equal(t, "John Smith", published.GuestName)

	f.caseRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)

	// one started and one completed audit entry
	require.Len(t, f.syncLog.entries, 2)
	assert.Equal(t, models.SyncStatusStarted, f.syncLog.entries[0].Status)
	assert.Equal(t, models.SyncStatusCompleted, f.syncLog.entries[1].Status)
	assert.Equal(t, 1, f.syncLog.entries[1].RecordsCreated)
	assert.Equal(t, "dispute_case", f.syncLog.entries[1].EntityType)
}

func TestProcess_DuplicateDisputeMergesThroughResolver(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()
	event := disputeEvent(syncservice.EventDisputeUpdated, map[string]interface{}{
		"external_dispute_id": "dp_123",
		"property_id":         "HTL-100",
		"status":              "SUBMITTED",
	})
	f.acceptSignedWebhook(job, event)

	stored := &models.DisputeCase{
		ID:                uuid.New(),
		CaseNumber:        "CB-AB12CD34",
		ExternalDisputeID: "dp_123",
		PropertyID:        "HTL-100",
		Status:            models.DisputeStatusInReview,
		Amount:            decimal.NewFromFloat(450.00),
	}
	f.caseRepo.On("CreateIdempotent", mock.Anything, nil, mock.Anything).Return(stored, false, nil)

	var updated *models.DisputeCase
	f.caseRepo.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.DisputeCase")).
		Run(func(args mock.Arguments) {
			updated = args.Get(2).(*models.DisputeCase)
		}).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := f.svc.Process(context.Background(), job)

	require.NoError(t, err)
	f.caseRepo.AssertExpectations(t)
	require.NotNil(t, updated)
	assert.Equal(t, models.DisputeStatusSubmitted, updated.Status)

	f.publisher.AssertNotCalled(t, "PublishEvidenceCollection", mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.syncLog.entries[len(f.syncLog.entries)-1].RecordsUpdated)
}

func TestProcess_InvalidSignatureRejected(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()

	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.secrets.On("GetSecret", mock.Anything, "webhook/int-1").Return("s3cret", nil)
	f.adapter.On("VerifyWebhookSignature", job.RawPayload, "sig-1", "s3cret").Return(false)

	err := f.svc.Process(context.Background(), job)

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAdapterInvalidSignature))
	f.adapter.AssertNotCalled(t, "ParseWebhookPayload", mock.Anything, mock.Anything)
	f.caseRepo.AssertNotCalled(t, "CreateIdempotent", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_MissingWebhookSecretSkipped(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()

	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.secrets.On("GetSecret", mock.Anything, "webhook/int-1").Return("", assert.AnError)

	err := f.svc.Process(context.Background(), job)

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.False(t, domain.IsRetryable(err))
}

func TestProcess_UnsupportedSourceSystemSkipped(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()
	job.SourceSystem = "legacy_pms"

	f.registry.On("Resolve", "legacy_pms").Return(nil, domain.ErrUnsupportedSourceSystem)

	err := f.svc.Process(context.Background(), job)

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAdapterUnsupported))
	assert.True(t, domain.IsConfigError(err))
}

func TestProcess_UnparseablePayloadRejected(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()

	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.secrets.On("GetSecret", mock.Anything, "webhook/int-1").Return("s3cret", nil)
	f.adapter.On("VerifyWebhookSignature", job.RawPayload, "sig-1", "s3cret").Return(true)
	f.adapter.On("ParseWebhookPayload", job.Headers, job.RawPayload).Return(nil, assert.AnError)

	err := f.svc.Process(context.Background(), job)

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAdapterBadPayload))
}

func TestProcess_EventMissingExternalIDRejected(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()
	event := disputeEvent(syncservice.EventDisputeCreated, map[string]interface{}{
		"property_id": "HTL-100",
	})
	f.acceptSignedWebhook(job, event)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := f.svc.Process(context.Background(), job)

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAdapterBadPayload))
	assert.Equal(t, models.SyncStatusFailed, f.syncLog.entries[len(f.syncLog.entries)-1].Status)
}

func TestProcess_ReservationCreatedUpsertsStayAndGuest(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()
	raw := map[string]interface{}{"reservation_id": "res-9001"}
	event := disputeEvent(syncservice.EventReservationCreated, raw)
	f.acceptSignedWebhook(job, event)

	normalized := &models.StayRecord{
		PropertyID:         "HTL-100",
		ConfirmationNumber: "CONF-1",
		ExternalID:         "res-9001",
		GuestName:          "John Smith",
		GuestEmail:         strPtr("John@Example.com"),
		CheckInDate:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CheckOutDate:       time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		TotalAmount:        decimal.NewFromFloat(450.00),
	}
	f.adapter.On("NormalizeReservation", raw).Return(normalized, nil)
	f.stayRepo.On("GetByConfirmationNumber", mock.Anything, nil, "HTL-100", "CONF-1").
		Return(nil, domain.ErrStayRecordNotFound)
	f.stayRepo.On("Upsert", mock.Anything, nil, normalized).Return(true, nil)
	f.guestRepo.On("GetByEmail", mock.Anything, nil, "HTL-100", "john@example.com").
		Return(nil, domain.ErrGuestProfileNotFound)

	var guest *models.GuestProfile
	f.guestRepo.On("Upsert", mock.Anything, nil, mock.AnythingOfType("*models.GuestProfile")).
		Run(func(args mock.Arguments) {
			guest = args.Get(2).(*models.GuestProfile)
		}).Return(true, nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := f.svc.Process(context.Background(), job)

	require.NoError(t, err)
	assert.Equal(t, "cloudpms", normalized.SourceSystem)
	f.stayRepo.AssertExpectations(t)
	require.NotNil(t, guest)
	assert.Equal(t, "john@example.com", guest.Email)
	assert.Equal(t, "John Smith", guest.FullName)
	assert.Equal(t, 1, f.syncLog.entries[len(f.syncLog.entries)-1].RecordsCreated)
}

func TestProcess_ReservationUpdateMergesThroughResolver(t *testing.T) {
	f := newInboundFixture()
	job := inboundJob()
	raw := map[string]interface{}{"reservation_id": "res-9001"}
	event := disputeEvent(syncservice.EventReservationUpdated, raw)
	f.acceptSignedWebhook(job, event)

	local := &models.StayRecord{
		ID:                 uuid.New(),
		PropertyID:         "HTL-100",
		ConfirmationNumber: "CONF-1",
		GuestName:          "John Smith",
		Status:             models.StayStatusConfirmed,
	}
	incoming := &models.StayRecord{
		PropertyID:         "HTL-100",
		ConfirmationNumber: "CONF-1",
		GuestName:          "Jon Smith",
		Status:             models.StayStatusCheckedOut,
	}
	f.adapter.On("NormalizeReservation", raw).Return(incoming, nil)
	f.stayRepo.On("GetByConfirmationNumber", mock.Anything, nil, "HTL-100", "CONF-1").Return(local, nil)

	var updated *models.StayRecord
	f.stayRepo.On("Update", mock.Anything, nil, mock.AnythingOfType("*models.StayRecord")).
		Run(func(args mock.Arguments) {
			updated = args.Get(2).(*models.StayRecord)
		}).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	err := f.svc.Process(context.Background(), job)

	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "Jon Smith", updated.GuestName)
	assert.Equal(t, models.StayStatusCheckedOut, updated.Status)

	// two overwrite conflicts produce one resolver audit entry alongside the
	// started/completed pair
	var conflictEntries int
	for _, e := range f.syncLog.entries {
		if len(e.Conflicts) > 0 {
			conflictEntries++
		}
	}
	assert.Equal(t, 1, conflictEntries)
}

func strPtr(s string) *string { return &s }

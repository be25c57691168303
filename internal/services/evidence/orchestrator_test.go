package evidence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/internal/services/evidence"
	"github.com/stayguard/chargeback-service/internal/services/matching"
)

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

// MockEvidenceRepository is a mock implementation of ports.EvidenceRepository
type MockEvidenceRepository struct {
	mock.Mock
}

func (m *MockEvidenceRepository) Create(ctx context.Context, tx ports.DBTX, item *models.EvidenceItem) error {
	args := m.Called(ctx, tx, item)
	return args.Error(0)
}

func (m *MockEvidenceRepository) ExistsForType(ctx context.Context, db ports.DBTX, caseID uuid.UUID, evidenceType models.EvidenceType) (bool, error) {
	args := m.Called(ctx, db, caseID, evidenceType)
	return args.Bool(0), args.Error(1)
}

func (m *MockEvidenceRepository) ListByCase(ctx context.Context, db ports.DBTX, caseID uuid.UUID) ([]*models.EvidenceItem, error) {
	args := m.Called(ctx, db, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EvidenceItem), args.Error(1)
}

// MockSyncLogRepository is a mock implementation of ports.SyncLogRepository
type MockSyncLogRepository struct {
	mock.Mock
}

func (m *MockSyncLogRepository) Append(ctx context.Context, tx ports.DBTX, entry *models.SyncLogEntry) error {
	args := m.Called(ctx, tx, entry)
	return args.Error(0)
}

func (m *MockSyncLogRepository) ListByIntegration(ctx context.Context, db ports.DBTX, integrationID string, limit int32) ([]*models.SyncLogEntry, error) {
	args := m.Called(ctx, db, integrationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SyncLogEntry), args.Error(1)
}

// MockEvidenceStore is a mock implementation of ports.EvidenceStore
type MockEvidenceStore struct {
	mock.Mock
}

func (m *MockEvidenceStore) Put(ctx context.Context, key string, contentType string, payload []byte) error {
	args := m.Called(ctx, key, contentType, payload)
	return args.Error(0)
}

func (m *MockEvidenceStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockEvidenceStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
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

// MockFraudAnalyzer is a mock implementation of ports.FraudAnalyzer
type MockFraudAnalyzer struct {
	mock.Mock
}

func (m *MockFraudAnalyzer) AnalyzeCase(ctx context.Context, disputeCase *models.DisputeCase) error {
	args := m.Called(ctx, disputeCase)
	return args.Error(0)
}

type testLogger struct{}

func (testLogger) Info(string, ...ports.Field)  {}
func (testLogger) Error(string, ...ports.Field) {}
func (testLogger) Warn(string, ...ports.Field)  {}
func (testLogger) Debug(string, ...ports.Field) {}

type fixture struct {
	caseRepo     *MockDisputeCaseRepository
	stayRepo     *MockStayRecordRepository
	evidenceRepo *MockEvidenceRepository
	syncLog      *MockSyncLogRepository
	store        *MockEvidenceStore
	registry     *MockAdapterRegistry
	adapter      *MockPMSAdapter
	notifier     *MockNotifier
	analyzer     *MockFraudAnalyzer
	orchestrator *evidence.Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		caseRepo:     new(MockDisputeCaseRepository),
		stayRepo:     new(MockStayRecordRepository),
		evidenceRepo: new(MockEvidenceRepository),
		syncLog:      new(MockSyncLogRepository),
		store:        new(MockEvidenceStore),
		registry:     new(MockAdapterRegistry),
		adapter:      new(MockPMSAdapter),
		notifier:     new(MockNotifier),
		analyzer:     new(MockFraudAnalyzer),
	}
	matcher := matching.NewEngine(f.stayRepo, f.registry, testLogger{}, 1.00)
	f.orchestrator = evidence.NewOrchestrator(
		f.caseRepo, f.stayRepo, f.evidenceRepo, f.syncLog,
		f.store, matcher, f.registry, f.notifier, f.analyzer,
		testLogger{}, "evidence",
	)
	return f
}

func strPtr(s string) *string { return &s }

func testStayRecord() *models.StayRecord {
	return &models.StayRecord{
		ID:                 uuid.New(),
		PropertyID:         "HTL-100",
		ConfirmationNumber: "CONF-1",
		ExternalID:         "res-9001",
		SourceSystem:       "cloudpms",
		GuestName:          "John Smith",
		CheckInDate:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CheckOutDate:       time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC),
		TotalAmount:        decimal.NewFromFloat(450.00),
		Currency:           "USD",
		Status:             models.StayStatusCheckedOut,
	}
}

func linkedCase(stayID uuid.UUID) *models.DisputeCase {
	return &models.DisputeCase{
		ID:                uuid.New(),
		CaseNumber:        "CB-2026-000042",
		ExternalDisputeID: "dp_123",
		PropertyID:        "HTL-100",
		SourceSystem:      "cloudpms",
		Amount:            decimal.NewFromFloat(450.00),
		Currency:          "USD",
		Status:            models.DisputeStatusPending,
		DisputeDate:       time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
		StayRecordID:      &stayID,
	}
}

func allDocuments() []models.Document {
	return []models.Document{
		{Kind: "confirmation", FileName: "confirmation.pdf", ContentType: "application/pdf", Content: []byte("conf")},
		{Kind: "signature", FileName: "signature.png", ContentType: "image/png", Content: []byte("sig")},
		{Kind: "id_scan", FileName: "id.png", ContentType: "image/png", Content: []byte("id")},
	}
}

func TestCollect_LinkedCaseCollectsAllArtifacts(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByID", mock.Anything, nil, stay.ID).Return(stay, nil)
	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(false, nil)
	f.adapter.On("GetGuestFolio", mock.Anything, "res-9001").Return([]models.FolioItem{}, nil)
	f.adapter.On("GetReservationDocuments", mock.Anything, "res-9001").Return(allDocuments(), nil)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.evidenceRepo.On("Create", mock.Anything, nil, mock.AnythingOfType("*models.EvidenceItem")).Return(nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)
	f.notifier.On("NotifyEvidenceCollected", mock.Anything, disputeCase, 4).Return(nil)
	f.analyzer.On("AnalyzeCase", mock.Anything, disputeCase).Return(nil)

	result, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, evidence.StatusCompleted, result.Status)
	assert.Equal(t, 4, result.EvidenceCollected)
	assert.Equal(t, 0, result.EvidenceFailed)

	f.notifier.AssertExpectations(t)
	f.analyzer.AssertExpectations(t)
	f.evidenceRepo.AssertNumberOfCalls(t, "Create", 4)
}

func TestCollect_PerArtifactFailureDoesNotAbort(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByID", mock.Anything, nil, stay.ID).Return(stay, nil)
	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(false, nil)

	// folio fetch fails; only the confirmation document exists upstream
	f.adapter.On("GetGuestFolio", mock.Anything, "res-9001").Return(nil, assert.AnError)
	f.adapter.On("GetReservationDocuments", mock.Anything, "res-9001").Return([]models.Document{
		{Kind: "confirmation", FileName: "confirmation.pdf", ContentType: "application/pdf", Content: []byte("conf")},
	}, nil)

	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.evidenceRepo.On("Create", mock.Anything, nil, mock.Anything).Return(nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)
	f.notifier.On("NotifyEvidenceCollected", mock.Anything, disputeCase, 1).Return(nil)
	f.analyzer.On("AnalyzeCase", mock.Anything, disputeCase).Return(nil)

	result, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, evidence.StatusCompleted, result.Status)
	assert.Equal(t, 1, result.EvidenceCollected)
	assert.Equal(t, 3, result.EvidenceFailed)
	f.notifier.AssertExpectations(t)
}

func TestCollect_AlreadyCollectedArtifactsSkipped(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByID", mock.Anything, nil, stay.ID).Return(stay, nil)
	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(true, nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)
	f.analyzer.On("AnalyzeCase", mock.Anything, disputeCase).Return(nil)

	result, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.EvidenceCollected)
	assert.Equal(t, 4, result.EvidenceSkipped)

	f.adapter.AssertNotCalled(t, "GetGuestFolio", mock.Anything, mock.Anything)
	f.adapter.AssertNotCalled(t, "GetReservationDocuments", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "NotifyEvidenceCollected", mock.Anything, mock.Anything, mock.Anything)
	f.analyzer.AssertExpectations(t)
}

func TestCollect_NoReservationFoundIsPartial(t *testing.T) {
	f := newFixture()
	disputeCase := linkedCase(uuid.New())
	disputeCase.StayRecordID = nil
	disputeCase.ConfirmationNumber = strPtr("CONF-MISSING")

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByConfirmationNumber", mock.Anything, nil, "HTL-100", "CONF-MISSING").
		Return(nil, domain.ErrStayRecordNotFound)
	f.registry.On("Resolve", "cloudpms").Return(nil, domain.ErrUnsupportedSourceSystem)
	f.notifier.On("NotifyManualReview", mock.Anything, disputeCase, mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)

	result, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, evidence.StatusPartial, result.Status)
	assert.Equal(t, evidence.ReasonNoReservationFound, result.Reason)
	assert.Equal(t, 0, result.EvidenceCollected)

	f.notifier.AssertExpectations(t)
	f.syncLog.AssertExpectations(t)
	f.caseRepo.AssertNotCalled(t, "LinkStayRecord",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCollect_MatchesAndLinksUnlinkedCase(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)
	disputeCase.StayRecordID = nil
	disputeCase.ConfirmationNumber = strPtr("CONF-1")

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByConfirmationNumber", mock.Anything, nil, "HTL-100", "CONF-1").Return(stay, nil)
	f.caseRepo.On("LinkStayRecord", mock.Anything, nil, disputeCase.ID, stay.ID,
		models.ExactMatchConfidence, models.StrategyExactKey, false).Return(nil)
	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(true, nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)
	f.analyzer.On("AnalyzeCase", mock.Anything, disputeCase).Return(nil)

	_, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	f.caseRepo.AssertExpectations(t)
	assert.Equal(t, stay.ID, *disputeCase.StayRecordID)
	assert.False(t, disputeCase.ReviewRequired)
	f.notifier.AssertNotCalled(t, "NotifyManualReview", mock.Anything, mock.Anything, mock.Anything)
}

func TestCollect_LowConfidenceLinkRoutedToReview(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)
	disputeCase.StayRecordID = nil
	disputeCase.GuestName = strPtr("John Smith")
	disputeCase.CheckInDate = &stay.CheckInDate
	disputeCase.CheckOutDate = &stay.CheckOutDate

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("FindByGuestName", mock.Anything, nil, "HTL-100", "john smith").
		Return([]*models.StayRecord{stay}, nil)

	// exact dates +15, agreeing amount +4, capped at the review band ceiling
	f.caseRepo.On("LinkStayRecord", mock.Anything, nil, disputeCase.ID, stay.ID,
		79, models.StrategyFuzzyGuest, true).Return(nil)
	f.notifier.On("NotifyManualReview", mock.Anything, disputeCase, mock.Anything).Return(nil)

	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(true, nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)
	f.analyzer.On("AnalyzeCase", mock.Anything, disputeCase).Return(nil)

	_, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	f.caseRepo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	assert.True(t, disputeCase.ReviewRequired)
}

func TestCollect_AnalyzerFailureNeverFailsSaga(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByID", mock.Anything, nil, stay.ID).Return(stay, nil)
	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(true, nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).Return(nil)
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).Return(nil)
	f.analyzer.On("AnalyzeCase", mock.Anything, disputeCase).Return(assert.AnError)

	result, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.NoError(t, err)
	assert.Equal(t, evidence.StatusCompleted, result.Status)
	f.analyzer.AssertExpectations(t)
}

func TestCollect_InvalidCaseIDIsSkipped(t *testing.T) {
	f := newFixture()

	var entry *models.SyncLogEntry
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).
		Run(func(args mock.Arguments) {
			entry = args.Get(2).(*models.SyncLogEntry)
		}).Return(nil)

	_, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: "not-a-uuid",
		CaseNumber:    "CB-2026-000042",
		PropertyID:    "HTL-100",
	})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSyncSkipped))
	f.caseRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)

	require.NotNil(t, entry)
	assert.Equal(t, models.SyncStatusFailed, entry.Status)
	assert.Equal(t, "HTL-100", entry.IntegrationID)
	require.NotNil(t, entry.ErrorMessage)
}

func TestCollect_CaseLoadFailureWritesFailedAudit(t *testing.T) {
	f := newFixture()
	caseID := uuid.New()

	f.caseRepo.On("GetByID", mock.Anything, nil, caseID).
		Return(nil, domain.WrapError(domain.ErrorCodeDatabaseError, "load dispute case", assert.AnError))

	var entry *models.SyncLogEntry
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).
		Run(func(args mock.Arguments) {
			entry = args.Get(2).(*models.SyncLogEntry)
		}).Return(nil)

	_, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: caseID.String(),
		CaseNumber:    "CB-2026-000042",
		PropertyID:    "HTL-100",
	})

	require.Error(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, models.SyncStatusFailed, entry.Status)
	assert.Equal(t, "HTL-100", entry.IntegrationID)
	assert.Equal(t, "evidence_item", entry.EntityType)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "load dispute case")
}

func TestCollect_TimelineFailureWritesFailedAudit(t *testing.T) {
	f := newFixture()
	stay := testStayRecord()
	disputeCase := linkedCase(stay.ID)

	f.caseRepo.On("GetByID", mock.Anything, nil, disputeCase.ID).Return(disputeCase, nil)
	f.stayRepo.On("GetByID", mock.Anything, nil, stay.ID).Return(stay, nil)
	f.registry.On("Resolve", "cloudpms").Return(f.adapter, nil)
	f.evidenceRepo.On("ExistsForType", mock.Anything, nil, disputeCase.ID, mock.Anything).Return(false, nil)
	f.adapter.On("GetGuestFolio", mock.Anything, "res-9001").Return([]models.FolioItem{}, nil)
	f.adapter.On("GetReservationDocuments", mock.Anything, "res-9001").Return(allDocuments(), nil)
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.evidenceRepo.On("Create", mock.Anything, nil, mock.Anything).Return(nil)
	f.caseRepo.On("AppendTimeline", mock.Anything, nil, disputeCase.ID, "evidence_collection", mock.Anything).
		Return(domain.WrapError(domain.ErrorCodeDatabaseError, "append timeline entry", assert.AnError))

	var entry *models.SyncLogEntry
	f.syncLog.On("Append", mock.Anything, nil, mock.Anything).
		Run(func(args mock.Arguments) {
			entry = args.Get(2).(*models.SyncLogEntry)
		}).Return(nil)

	_, err := f.orchestrator.Collect(context.Background(), ports.EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
	})

	require.Error(t, err)

	// the failed entry keeps the counts accumulated before the failure
	require.NotNil(t, entry)
	assert.Equal(t, models.SyncStatusFailed, entry.Status)
	assert.Equal(t, "cloudpms", entry.IntegrationID)
	assert.Equal(t, 4, entry.RecordsCreated)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "append timeline")

	f.notifier.AssertNotCalled(t, "NotifyEvidenceCollected", mock.Anything, mock.Anything, mock.Anything)
	f.analyzer.AssertNotCalled(t, "AnalyzeCase", mock.Anything, mock.Anything)
}

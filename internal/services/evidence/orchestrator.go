package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/internal/services/matching"
	"github.com/stayguard/chargeback-service/pkg/observability"
)

// Result states of one orchestrator run
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"

	ReasonNoReservationFound = "no_reservation_found"
)

// documentKinds maps evidence types to the document kind tag used by
// adapter document listings. FOLIO is fetched through the folio capability
// instead and has no entry here.
var documentKinds = map[models.EvidenceType]string{
	models.EvidenceTypeReservationConfirmation: "confirmation",
	models.EvidenceTypeAuthSignature:           "signature",
	models.EvidenceTypeIDScan:                  "id_scan",
}

// Result summarizes one evidence collection run
type Result struct {
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	EvidenceCollected int    `json:"evidence_collected"`
	EvidenceSkipped   int    `json:"evidence_skipped"`
	EvidenceFailed    int    `json:"evidence_failed"`
}

// Orchestrator runs the evidence-collection saga: resolve a stay record,
// fetch each artifact type independently, persist what succeeds, and
// trigger downstream analysis. Per-artifact failures never abort the run.
type Orchestrator struct {
	caseRepo     ports.DisputeCaseRepository
	stayRepo     ports.StayRecordRepository
	evidenceRepo ports.EvidenceRepository
	syncLog      ports.SyncLogRepository
	store        ports.EvidenceStore
	matcher      *matching.Engine
	adapters     ports.AdapterRegistry
	notifier     ports.Notifier
	analyzer     ports.FraudAnalyzer
	logger       ports.Logger
	keyPrefix    string
}

// NewOrchestrator creates an evidence collection orchestrator
func NewOrchestrator(
	caseRepo ports.DisputeCaseRepository,
	stayRepo ports.StayRecordRepository,
	evidenceRepo ports.EvidenceRepository,
	syncLog ports.SyncLogRepository,
	store ports.EvidenceStore,
	matcher *matching.Engine,
	adapters ports.AdapterRegistry,
	notifier ports.Notifier,
	analyzer ports.FraudAnalyzer,
	logger ports.Logger,
	keyPrefix string,
) *Orchestrator {
	return &Orchestrator{
		caseRepo:     caseRepo,
		stayRepo:     stayRepo,
		evidenceRepo: evidenceRepo,
		syncLog:      syncLog,
		store:        store,
		matcher:      matcher,
		adapters:     adapters,
		notifier:     notifier,
		analyzer:     analyzer,
		logger:       logger,
		keyPrefix:    keyPrefix,
	}
}

// Collect runs the saga for one dispute case. A missing reservation is a
// successful partial outcome, not an error; only infrastructure failures
// (the datastore itself) propagate to the caller for transport-level retry.
// Every run that names a case leaves an audit entry, failed runs included.
func (o *Orchestrator) Collect(ctx context.Context, job ports.EvidenceCollectionJob) (*Result, error) {
	started := time.Now()

	caseID, err := uuid.Parse(job.DisputeCaseID)
	if err != nil {
		err = domain.WrapError(domain.ErrorCodeSyncSkipped, "invalid dispute case id", err)
		o.audit(ctx, job.PropertyID, job.CaseNumber, nil, started, err)
		return nil, err
	}

	disputeCase, err := o.caseRepo.GetByID(ctx, nil, caseID)
	if err != nil {
		err = fmt.Errorf("load dispute case: %w", err)
		o.audit(ctx, job.PropertyID, job.CaseNumber, nil, started, err)
		return nil, err
	}

	result, runErr := o.run(ctx, disputeCase, job)
	o.audit(ctx, disputeCase.SourceSystem, disputeCase.CaseNumber, result, started, runErr)
	if runErr != nil {
		return nil, runErr
	}
	if result.Status == StatusPartial {
		return result, nil
	}

	if result.EvidenceCollected > 0 {
		if err := o.notifier.NotifyEvidenceCollected(ctx, disputeCase, result.EvidenceCollected); err != nil {
			o.logger.Warn("reviewer notification failed",
				ports.String("case_number", disputeCase.CaseNumber),
				ports.Err(err))
		}
	}

	// Analysis is best-effort enrichment; a failure here never fails the
	// saga.
	if err := o.analyzer.AnalyzeCase(ctx, disputeCase); err != nil {
		o.logger.Warn("fraud analysis trigger failed",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.Err(err))
	}

	o.logger.Info("evidence collection completed",
		ports.String("case_number", disputeCase.CaseNumber),
		ports.Int("collected", result.EvidenceCollected),
		ports.Int("skipped", result.EvidenceSkipped),
		ports.Int("failed", result.EvidenceFailed))

	return result, nil
}

// run performs the saga body once the case is loaded. The partial result is
// returned alongside the error so the audit entry keeps the artifact counts
// accumulated before the failure.
func (o *Orchestrator) run(ctx context.Context, disputeCase *models.DisputeCase, job ports.EvidenceCollectionJob) (*Result, error) {
	stayRecord, err := o.resolveStayRecord(ctx, disputeCase, job)
	if err != nil {
		return nil, err
	}
	if stayRecord == nil {
		if nerr := o.notifier.NotifyManualReview(ctx, disputeCase, "no reservation matched the dispute"); nerr != nil {
			o.logger.Warn("manual review notification failed", ports.Err(nerr))
		}
		return &Result{Status: StatusPartial, Reason: ReasonNoReservationFound}, nil
	}

	adapter, err := o.adapters.Resolve(stayRecord.SourceSystem)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeSyncSkipped, "no adapter for stay record source", err)
	}

	result := &Result{Status: StatusCompleted}
	for _, evidenceType := range models.EvidenceCollectionOrder {
		outcome := o.collectOne(ctx, disputeCase, stayRecord, adapter, evidenceType)
		observability.RecordEvidenceItem(string(evidenceType), outcome.String())
		switch outcome {
		case collected:
			result.EvidenceCollected++
		case skipped:
			result.EvidenceSkipped++
		case failed:
			result.EvidenceFailed++
		}
	}

	summary := fmt.Sprintf("evidence collection finished: %d collected, %d already present, %d failed",
		result.EvidenceCollected, result.EvidenceSkipped, result.EvidenceFailed)
	if err := o.caseRepo.AppendTimeline(ctx, nil, disputeCase.ID, "evidence_collection", summary); err != nil {
		return result, fmt.Errorf("append timeline: %w", err)
	}

	return result, nil
}

// resolveStayRecord returns the case's linked stay record, or runs the
// matching engine and links the result when the policy allows. A nil return
// with nil error means no reservation cleared the confidence floor.
func (o *Orchestrator) resolveStayRecord(ctx context.Context, disputeCase *models.DisputeCase, job ports.EvidenceCollectionJob) (*models.StayRecord, error) {
	if disputeCase.StayRecordID != nil {
		record, err := o.stayRepo.GetByID(ctx, nil, *disputeCase.StayRecordID)
		if err != nil {
			return nil, fmt.Errorf("load linked stay record: %w", err)
		}
		return record, nil
	}

	criteria := disputeCase.MatchCriteria()
	mergeJobCriteria(&criteria, job)

	match, err := o.matcher.Match(ctx, criteria, disputeCase.SourceSystem)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeMatchNoCriteria) {
			o.logger.Warn("dispute case carries no matching criteria",
				ports.String("case_number", disputeCase.CaseNumber))
			return nil, nil
		}
		return nil, err
	}
	if match == nil || !match.ShouldLink() {
		return nil, nil
	}

	reviewRequired := match.NeedsReview()
	if err := o.caseRepo.LinkStayRecord(ctx, nil, disputeCase.ID, match.StayRecord.ID,
		match.Confidence, match.Strategy, reviewRequired); err != nil {
		return nil, fmt.Errorf("link stay record: %w", err)
	}
	disputeCase.StayRecordID = &match.StayRecord.ID
	disputeCase.MatchConfidence = &match.Confidence
	disputeCase.MatchStrategy = &match.Strategy
	disputeCase.ReviewRequired = reviewRequired

	if reviewRequired {
		if err := o.notifier.NotifyManualReview(ctx, disputeCase,
			fmt.Sprintf("linked with confidence %d via %s, review required", match.Confidence, match.Strategy)); err != nil {
			o.logger.Warn("manual review notification failed", ports.Err(err))
		}
	}

	o.logger.Info("stay record matched",
		ports.String("case_number", disputeCase.CaseNumber),
		ports.String("strategy", match.Strategy),
		ports.Int("confidence", match.Confidence))

	return match.StayRecord, nil
}

type artifactOutcome int

const (
	collected artifactOutcome = iota
	skipped
	failed
)

func (a artifactOutcome) String() string {
	switch a {
	case collected:
		return "collected"
	case skipped:
		return "skipped"
	default:
		return "failed"
	}
}

// collectOne attempts a single artifact type. Fetch failures are logged and
// reported as failed; an artifact the upstream system simply doesn't have
// counts as failed-to-collect without a warning.
func (o *Orchestrator) collectOne(ctx context.Context, disputeCase *models.DisputeCase, stayRecord *models.StayRecord, adapter ports.PMSAdapter, evidenceType models.EvidenceType) artifactOutcome {
	exists, err := o.evidenceRepo.ExistsForType(ctx, nil, disputeCase.ID, evidenceType)
	if err != nil {
		o.logger.Warn("evidence existence check failed",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.String("evidence_type", string(evidenceType)),
			ports.Err(err))
		return failed
	}
	if exists {
		o.logger.Debug("evidence already collected, skipping",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.String("evidence_type", string(evidenceType)))
		return skipped
	}

	payload, contentType, fileName, outcome := o.fetchArtifact(ctx, disputeCase, stayRecord, adapter, evidenceType)
	if outcome != collected {
		return outcome
	}

	key := fmt.Sprintf("%s/%s/%s-%s", o.keyPrefix, disputeCase.CaseNumber, evidenceType, uuid.New().String())
	if err := o.store.Put(ctx, key, contentType, payload); err != nil {
		o.logger.Warn("evidence payload store failed",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.String("evidence_type", string(evidenceType)),
			ports.Err(err))
		return failed
	}

	item := &models.EvidenceItem{
		ID:            uuid.New(),
		DisputeCaseID: disputeCase.ID,
		Type:          evidenceType,
		StorageKey:    key,
		ContentType:   contentType,
		SizeBytes:     int64(len(payload)),
		Source:        models.EvidenceSourceAutoCollected,
		CollectedAt:   time.Now().UTC(),
	}
	if err := o.evidenceRepo.Create(ctx, nil, item); err != nil {
		o.logger.Warn("evidence item record failed",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.String("evidence_type", string(evidenceType)),
			ports.String("storage_key", key),
			ports.String("file_name", fileName),
			ports.Err(err))
		return failed
	}

	return collected
}

// fetchArtifact retrieves the raw payload for one artifact type through the
// adapter: the folio capability for FOLIO, the document listing filtered by
// kind for everything else.
func (o *Orchestrator) fetchArtifact(ctx context.Context, disputeCase *models.DisputeCase, stayRecord *models.StayRecord, adapter ports.PMSAdapter, evidenceType models.EvidenceType) ([]byte, string, string, artifactOutcome) {
	if evidenceType == models.EvidenceTypeFolio {
		items, err := adapter.GetGuestFolio(ctx, stayRecord.ExternalID)
		if err != nil {
			o.logger.Warn("folio fetch failed, continuing with remaining artifacts",
				ports.String("case_number", disputeCase.CaseNumber),
				ports.Err(err))
			return nil, "", "", failed
		}
		payload, err := json.Marshal(map[string]interface{}{
			"case_number":         disputeCase.CaseNumber,
			"confirmation_number": stayRecord.ConfirmationNumber,
			"guest_name":          stayRecord.GuestName,
			"items":               items,
		})
		if err != nil {
			return nil, "", "", failed
		}
		return payload, "application/json", "folio.json", collected
	}

	docs, err := adapter.GetReservationDocuments(ctx, stayRecord.ExternalID)
	if err != nil {
		o.logger.Warn("document fetch failed, continuing with remaining artifacts",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.String("evidence_type", string(evidenceType)),
			ports.Err(err))
		return nil, "", "", failed
	}

	kind := documentKinds[evidenceType]
	for _, doc := range docs {
		if doc.Kind == kind {
			return doc.Content, doc.ContentType, doc.FileName, collected
		}
	}

	// The upstream system has no such document; a valid terminal outcome.
	o.logger.Debug("document not available upstream",
		ports.String("case_number", disputeCase.CaseNumber),
		ports.String("evidence_type", string(evidenceType)))
	return nil, "", "", failed
}

// audit writes the sync log entry summarizing the run. Failed runs that
// never reached the case load carry the job's property id as the
// integration identity. Audit failures are logged but do not change the
// result.
func (o *Orchestrator) audit(ctx context.Context, integrationID, caseNumber string, result *Result, started time.Time, runErr error) {
	entry := &models.SyncLogEntry{
		IntegrationID: integrationID,
		Direction:     models.SyncDirectionInbound,
		EntityType:    "evidence_item",
		Status:        models.SyncStatusCompleted,
		DurationMs:    time.Since(started).Milliseconds(),
	}
	if result != nil {
		entry.RecordsCreated = result.EvidenceCollected
	}
	if runErr != nil {
		entry.Status = models.SyncStatusFailed
		msg := runErr.Error()
		entry.ErrorMessage = &msg
	}
	if err := o.syncLog.Append(ctx, nil, entry); err != nil {
		o.logger.Error("evidence audit entry failed",
			ports.String("case_number", caseNumber),
			ports.Err(err))
	}
}

// mergeJobCriteria fills criteria fields absent on the case from the job
// payload
func mergeJobCriteria(criteria *models.MatchCriteria, job ports.EvidenceCollectionJob) {
	if criteria.ConfirmationNumber == "" {
		criteria.ConfirmationNumber = job.ConfirmationNumber
	}
	if criteria.CardLastFour == "" {
		criteria.CardLastFour = job.CardLastFour
	}
	if criteria.GuestName == "" {
		criteria.GuestName = job.GuestName
	}
	if criteria.TransactionID == "" {
		criteria.TransactionID = job.TransactionID
	}
	if criteria.CheckInDate == nil {
		criteria.CheckInDate = job.CheckInDate
	}
	if criteria.CheckOutDate == nil {
		criteria.CheckOutDate = job.CheckOutDate
	}
}

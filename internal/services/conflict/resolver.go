package conflict

import (
	"context"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/pkg/observability"
)

// Resolver merges incoming normalized records into locally stored entities
// under the per-entity authority policy. Conflicts never block a merge;
// every call that observes one writes exactly one sync log entry, and
// status regressions additionally escalate to administrative reviewers.
type Resolver struct {
	syncLog  ports.SyncLogRepository
	notifier ports.Notifier
	logger   ports.Logger
}

// NewResolver creates a conflict resolver
func NewResolver(syncLog ports.SyncLogRepository, notifier ports.Notifier, logger ports.Logger) *Resolver {
	return &Resolver{
		syncLog:  syncLog,
		notifier: notifier,
		logger:   logger,
	}
}

// ResolveStayRecord merges incoming into local and records any conflicts.
// The source system is authoritative for every stay record field, so
// incoming values always win; a conflict entry is logged whenever the prior
// local value differed.
func (r *Resolver) ResolveStayRecord(ctx context.Context, tx ports.DBTX, integrationID string, local, incoming *models.StayRecord, sourceID string) (*models.StayRecord, []models.FieldConflict, error) {
	merged, conflicts := MergeStayRecord(local, incoming, sourceID)
	if err := r.record(ctx, tx, integrationID, "stay_record", conflicts, nil); err != nil {
		return nil, nil, err
	}
	return merged, conflicts, nil
}

// ResolveDisputeCase merges incoming into local under the two-tier policy:
// portal-authoritative descriptive fields are overwritten, locally owned
// fields (link, confidence, recommendation, review flags) are kept, and the
// status only moves forward in the progression order.
func (r *Resolver) ResolveDisputeCase(ctx context.Context, tx ports.DBTX, integrationID string, local, incoming *models.DisputeCase, sourceID string) (*models.DisputeCase, []models.FieldConflict, error) {
	merged, conflicts := MergeDisputeCase(local, incoming, sourceID)
	if err := r.record(ctx, tx, integrationID, "dispute_case", conflicts, merged); err != nil {
		return nil, nil, err
	}
	return merged, conflicts, nil
}

// ResolveGuestProfile merges incoming into local: PMS-authoritative for
// personal and loyalty fields, system-authoritative for flag and
// fraud-history fields.
func (r *Resolver) ResolveGuestProfile(ctx context.Context, tx ports.DBTX, integrationID string, local, incoming *models.GuestProfile, sourceID string) (*models.GuestProfile, []models.FieldConflict, error) {
	merged, conflicts := MergeGuestProfile(local, incoming, sourceID)
	if err := r.record(ctx, tx, integrationID, "guest_profile", conflicts, nil); err != nil {
		return nil, nil, err
	}
	return merged, conflicts, nil
}

// record writes the single sync log entry for a conflicting call and fires
// the escalation path for status regressions. Escalation is best-effort and
// never blocks the merge.
func (r *Resolver) record(ctx context.Context, tx ports.DBTX, integrationID, entityType string, conflicts []models.FieldConflict, disputeCase *models.DisputeCase) error {
	if len(conflicts) == 0 {
		return nil
	}
	for _, c := range conflicts {
		observability.RecordConflict(entityType, string(c.Kind))
	}

	entry := &models.SyncLogEntry{
		IntegrationID: integrationID,
		Direction:     models.SyncDirectionInbound,
		EntityType:    entityType,
		Status:        models.SyncStatusCompleted,
		Conflicts:     conflicts,
	}
	if err := r.syncLog.Append(ctx, tx, entry); err != nil {
		return err
	}

	regressions := make([]models.FieldConflict, 0, 1)
	for _, c := range conflicts {
		if c.IsRegression() {
			regressions = append(regressions, c)
		}
	}
	if len(regressions) == 0 {
		return nil
	}

	r.logger.Warn("status regression detected, escalating",
		ports.String("entity_type", entityType),
		ports.String("integration_id", integrationID),
		ports.Int("conflicts", len(regressions)))

	if err := r.notifier.EscalateConflict(ctx, disputeCase, regressions); err != nil {
		r.logger.Error("conflict escalation failed", ports.Err(err))
	}
	return nil
}

// MergeStayRecord applies the source-authoritative policy to a stay record
// pair and returns the merged record plus the observed conflicts. The local
// record is not mutated.
func MergeStayRecord(local, incoming *models.StayRecord, sourceID string) (*models.StayRecord, []models.FieldConflict) {
	merged := *local
	var conflicts []models.FieldConflict

	overwrite := func(field string, localVal, incomingVal interface{}, differs bool, apply func()) {
		if !differs {
			return
		}
		conflicts = append(conflicts, models.FieldConflict{
			EntityType:    "stay_record",
			EntityID:      local.ID.String(),
			Field:         field,
			LocalValue:    localVal,
			IncomingValue: incomingVal,
			Kind:          models.ConflictKindOverwrite,
			SourceID:      sourceID,
		})
		apply()
	}

	overwrite("guest_name", local.GuestName, incoming.GuestName,
		incoming.GuestName != "" && incoming.GuestName != local.GuestName,
		func() { merged.GuestName = incoming.GuestName })
	overwrite("guest_email", strPtrVal(local.GuestEmail), strPtrVal(incoming.GuestEmail),
		incoming.GuestEmail != nil && !strPtrEqual(local.GuestEmail, incoming.GuestEmail),
		func() { merged.GuestEmail = incoming.GuestEmail })
	overwrite("guest_phone", strPtrVal(local.GuestPhone), strPtrVal(incoming.GuestPhone),
		incoming.GuestPhone != nil && !strPtrEqual(local.GuestPhone, incoming.GuestPhone),
		func() { merged.GuestPhone = incoming.GuestPhone })
	overwrite("check_in_date", local.CheckInDate, incoming.CheckInDate,
		!incoming.CheckInDate.IsZero() && !incoming.CheckInDate.Equal(local.CheckInDate),
		func() { merged.CheckInDate = incoming.CheckInDate })
	overwrite("check_out_date", local.CheckOutDate, incoming.CheckOutDate,
		!incoming.CheckOutDate.IsZero() && !incoming.CheckOutDate.Equal(local.CheckOutDate),
		func() { merged.CheckOutDate = incoming.CheckOutDate })
	overwrite("room_number", strPtrVal(local.RoomNumber), strPtrVal(incoming.RoomNumber),
		incoming.RoomNumber != nil && !strPtrEqual(local.RoomNumber, incoming.RoomNumber),
		func() { merged.RoomNumber = incoming.RoomNumber })
	overwrite("room_type", strPtrVal(local.RoomType), strPtrVal(incoming.RoomType),
		incoming.RoomType != nil && !strPtrEqual(local.RoomType, incoming.RoomType),
		func() { merged.RoomType = incoming.RoomType })
	overwrite("card_brand", strPtrVal(local.CardBrand), strPtrVal(incoming.CardBrand),
		incoming.CardBrand != nil && !strPtrEqual(local.CardBrand, incoming.CardBrand),
		func() { merged.CardBrand = incoming.CardBrand })
	overwrite("card_last_four", strPtrVal(local.CardLastFour), strPtrVal(incoming.CardLastFour),
		incoming.CardLastFour != nil && !strPtrEqual(local.CardLastFour, incoming.CardLastFour),
		func() { merged.CardLastFour = incoming.CardLastFour })
	overwrite("auth_code", strPtrVal(local.AuthCode), strPtrVal(incoming.AuthCode),
		incoming.AuthCode != nil && !strPtrEqual(local.AuthCode, incoming.AuthCode),
		func() { merged.AuthCode = incoming.AuthCode })
	overwrite("transaction_id", strPtrVal(local.TransactionID), strPtrVal(incoming.TransactionID),
		incoming.TransactionID != nil && !strPtrEqual(local.TransactionID, incoming.TransactionID),
		func() { merged.TransactionID = incoming.TransactionID })
	overwrite("total_amount", local.TotalAmount.String(), incoming.TotalAmount.String(),
		!incoming.TotalAmount.IsZero() && !incoming.TotalAmount.Equal(local.TotalAmount),
		func() { merged.TotalAmount = incoming.TotalAmount })
	overwrite("status", string(local.Status), string(incoming.Status),
		incoming.Status != "" && incoming.Status != local.Status,
		func() { merged.Status = incoming.Status })

	// Raw payload and sync stamp follow the source without conflict
	// tracking; they exist for audit only.
	if incoming.RawData != nil {
		merged.RawData = incoming.RawData
	}
	merged.LastSyncedAt = time.Now().UTC()
	merged.UpdatedAt = time.Now().UTC()

	return &merged, conflicts
}

// MergeDisputeCase applies the two-tier dispute authority policy. The local
// record is not mutated.
func MergeDisputeCase(local, incoming *models.DisputeCase, sourceID string) (*models.DisputeCase, []models.FieldConflict) {
	merged := *local
	var conflicts []models.FieldConflict

	addConflict := func(field string, localVal, incomingVal interface{}, kind models.ConflictKind) {
		conflicts = append(conflicts, models.FieldConflict{
			EntityType:    "dispute_case",
			EntityID:      local.ID.String(),
			Field:         field,
			LocalValue:    localVal,
			IncomingValue: incomingVal,
			Kind:          kind,
			SourceID:      sourceID,
		})
	}

	// Portal-authoritative descriptive fields: incoming overwrites, the
	// disagreement is logged.
	if !incoming.Amount.IsZero() && !incoming.Amount.Equal(local.Amount) {
		addConflict("amount", local.Amount.String(), incoming.Amount.String(), models.ConflictKindOverwrite)
		merged.Amount = incoming.Amount
	}
	if incoming.ReasonCode != "" && incoming.ReasonCode != local.ReasonCode {
		addConflict("reason_code", local.ReasonCode, incoming.ReasonCode, models.ConflictKindOverwrite)
		merged.ReasonCode = incoming.ReasonCode
	}
	if incoming.ReasonCategory != "" && incoming.ReasonCategory != local.ReasonCategory {
		addConflict("reason_category", local.ReasonCategory, incoming.ReasonCategory, models.ConflictKindOverwrite)
		merged.ReasonCategory = incoming.ReasonCategory
	}
	if incoming.RespondByDate != nil && !timePtrEqual(local.RespondByDate, incoming.RespondByDate) {
		addConflict("respond_by_date", local.RespondByDate, incoming.RespondByDate, models.ConflictKindOverwrite)
		merged.RespondByDate = incoming.RespondByDate
	}

	// Locally owned fields: incoming values are ignored but the
	// disagreement is recorded.
	if incoming.StayRecordID != nil && (local.StayRecordID == nil || *incoming.StayRecordID != *local.StayRecordID) {
		addConflict("stay_record_id", local.StayRecordID, incoming.StayRecordID, models.ConflictKindIgnored)
	}
	if incoming.MatchConfidence != nil && (local.MatchConfidence == nil || *incoming.MatchConfidence != *local.MatchConfidence) {
		addConflict("match_confidence", local.MatchConfidence, incoming.MatchConfidence, models.ConflictKindIgnored)
	}
	if incoming.Recommendation != nil && !strPtrEqual(local.Recommendation, incoming.Recommendation) {
		addConflict("recommendation", strPtrVal(local.Recommendation), strPtrVal(incoming.Recommendation), models.ConflictKindIgnored)
	}
	// The review flag's zero value means "not provided", like every other
	// incoming field; only an asserted flag the local system disagrees with
	// is a recordable conflict.
	if incoming.ReviewRequired && !local.ReviewRequired {
		addConflict("review_required", local.ReviewRequired, incoming.ReviewRequired, models.ConflictKindIgnored)
	}

	// Status follows the monotonic-progression rule: only a strictly later
	// status applies. Equal-rank flips (WON over LOST) and regressions are
	// rejected and logged.
	if incoming.Status != "" && incoming.Status != local.Status {
		if local.Status.CanAdvanceTo(incoming.Status) {
			merged.Status = incoming.Status
			if incoming.Status.IsResolution() && merged.ResolvedAt == nil {
				now := time.Now().UTC()
				merged.ResolvedAt = &now
			}
		} else {
			addConflict("status", string(local.Status), string(incoming.Status), models.ConflictKindStatusRegression)
		}
	}

	if incoming.RawData != nil {
		merged.RawData = incoming.RawData
	}
	merged.UpdatedAt = time.Now().UTC()

	return &merged, conflicts
}

// MergeGuestProfile applies the guest profile authority split: PMS wins on
// personal and loyalty fields, the local system wins on flag and
// fraud-history fields. The local record is not mutated.
func MergeGuestProfile(local, incoming *models.GuestProfile, sourceID string) (*models.GuestProfile, []models.FieldConflict) {
	merged := *local
	var conflicts []models.FieldConflict

	addConflict := func(field string, localVal, incomingVal interface{}, kind models.ConflictKind) {
		conflicts = append(conflicts, models.FieldConflict{
			EntityType:    "guest_profile",
			EntityID:      local.ID.String(),
			Field:         field,
			LocalValue:    localVal,
			IncomingValue: incomingVal,
			Kind:          kind,
			SourceID:      sourceID,
		})
	}

	if incoming.FullName != "" && incoming.FullName != local.FullName {
		addConflict("full_name", local.FullName, incoming.FullName, models.ConflictKindOverwrite)
		merged.FullName = incoming.FullName
	}
	if incoming.Phone != nil && !strPtrEqual(local.Phone, incoming.Phone) {
		addConflict("phone", strPtrVal(local.Phone), strPtrVal(incoming.Phone), models.ConflictKindOverwrite)
		merged.Phone = incoming.Phone
	}
	if incoming.LoyaltyNumber != nil && !strPtrEqual(local.LoyaltyNumber, incoming.LoyaltyNumber) {
		addConflict("loyalty_number", strPtrVal(local.LoyaltyNumber), strPtrVal(incoming.LoyaltyNumber), models.ConflictKindOverwrite)
		merged.LoyaltyNumber = incoming.LoyaltyNumber
	}
	if incoming.LoyaltyTier != nil && !strPtrEqual(local.LoyaltyTier, incoming.LoyaltyTier) {
		addConflict("loyalty_tier", strPtrVal(local.LoyaltyTier), strPtrVal(incoming.LoyaltyTier), models.ConflictKindOverwrite)
		merged.LoyaltyTier = incoming.LoyaltyTier
	}

	// System-authoritative fraud fields: never overwritten from outside.
	if incoming.FraudFlagged != local.FraudFlagged {
		addConflict("fraud_flagged", local.FraudFlagged, incoming.FraudFlagged, models.ConflictKindIgnored)
	}
	if incoming.FraudNotes != nil && !strPtrEqual(local.FraudNotes, incoming.FraudNotes) {
		addConflict("fraud_notes", strPtrVal(local.FraudNotes), strPtrVal(incoming.FraudNotes), models.ConflictKindIgnored)
	}

	merged.UpdatedAt = time.Now().UTC()
	return &merged, conflicts
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Package fraud derives a defense recommendation for a dispute case from the
// linked stay and the guest's chargeback history.
package fraud

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// Recommendations produced by case analysis
const (
	RecommendationRepresent    = "represent"
	RecommendationManualReview = "manual_review"
)

// Confidence at or above which an automatic link is trusted without review
const autoRecommendConfidence = 80

// DefaultFlagThreshold is the chargeback count at which a guest profile is
// flagged for fraud review
const DefaultFlagThreshold = 3

// Analyzer implements ports.FraudAnalyzer. One analysis per case: the
// recommendation field doubles as the idempotency marker, so saga reruns
// never double-count a guest's chargeback history.
type Analyzer struct {
	db            ports.DBPort
	caseRepo      ports.DisputeCaseRepository
	stayRepo      ports.StayRecordRepository
	guestRepo     ports.GuestProfileRepository
	logger        ports.Logger
	flagThreshold int
}

// NewAnalyzer creates a fraud analyzer. A non-positive threshold falls back
// to DefaultFlagThreshold.
func NewAnalyzer(
	db ports.DBPort,
	caseRepo ports.DisputeCaseRepository,
	stayRepo ports.StayRecordRepository,
	guestRepo ports.GuestProfileRepository,
	logger ports.Logger,
	flagThreshold int,
) *Analyzer {
	if flagThreshold <= 0 {
		flagThreshold = DefaultFlagThreshold
	}
	return &Analyzer{
		db:            db,
		caseRepo:      caseRepo,
		stayRepo:      stayRepo,
		guestRepo:     guestRepo,
		logger:        logger,
		flagThreshold: flagThreshold,
	}
}

// AnalyzeCase records the chargeback against the guest's history and writes a
// defense recommendation onto the case
func (a *Analyzer) AnalyzeCase(ctx context.Context, disputeCase *models.DisputeCase) error {
	if disputeCase.Recommendation != nil {
		return nil
	}
	if disputeCase.StayRecordID == nil {
		return nil
	}

	stayRecord, err := a.stayRepo.GetByID(ctx, nil, *disputeCase.StayRecordID)
	if err != nil {
		return fmt.Errorf("load stay record for analysis: %w", err)
	}

	return a.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		profile, err := a.recordGuestChargeback(ctx, tx, stayRecord)
		if err != nil {
			return err
		}

		recommendation, detail := a.recommend(disputeCase, profile)
		disputeCase.Recommendation = &recommendation
		if err := a.caseRepo.Update(ctx, tx, disputeCase); err != nil {
			return fmt.Errorf("persist recommendation: %w", err)
		}
		if err := a.caseRepo.AppendTimeline(ctx, tx, disputeCase.ID, "fraud_analysis", detail); err != nil {
			return fmt.Errorf("append analysis timeline: %w", err)
		}

		a.logger.Info("case analysis completed",
			ports.String("case_number", disputeCase.CaseNumber),
			ports.String("recommendation", recommendation))
		return nil
	})
}

// recordGuestChargeback bumps the guest's chargeback count, creating the
// profile from the stay record when the guest was never synced, and flags the
// profile once the count reaches the threshold. Stays without a contact email
// yield a nil profile.
func (a *Analyzer) recordGuestChargeback(ctx context.Context, tx ports.DBTX, stayRecord *models.StayRecord) (*models.GuestProfile, error) {
	if stayRecord.GuestEmail == nil || *stayRecord.GuestEmail == "" {
		return nil, nil
	}
	email := strings.ToLower(*stayRecord.GuestEmail)

	profile, err := a.guestRepo.RecordChargeback(ctx, tx, stayRecord.PropertyID, email)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			return nil, err
		}
		profile = &models.GuestProfile{
			PropertyID:      stayRecord.PropertyID,
			Email:           email,
			FullName:        stayRecord.GuestName,
			Phone:           stayRecord.GuestPhone,
			ChargebackCount: 1,
		}
		if _, err := a.guestRepo.Upsert(ctx, tx, profile); err != nil {
			return nil, fmt.Errorf("create guest profile: %w", err)
		}
	}

	if profile.ChargebackCount >= a.flagThreshold && !profile.FraudFlagged {
		notes := fmt.Sprintf("%d chargebacks recorded as of %s",
			profile.ChargebackCount, time.Now().UTC().Format("2006-01-02"))
		if err := a.guestRepo.SetFraudFlag(ctx, tx, profile.ID, true, &notes); err != nil {
			return nil, err
		}
		profile.FraudFlagged = true
		profile.FraudNotes = &notes
		a.logger.Warn("guest profile flagged for fraud",
			ports.String("property_id", profile.PropertyID),
			ports.Int("chargeback_count", profile.ChargebackCount))
	}

	return profile, nil
}

// recommend maps the link quality and guest history to a defense
// recommendation. A flagged repeat offender strengthens the represent case;
// a weak link always routes to a human first.
func (a *Analyzer) recommend(disputeCase *models.DisputeCase, profile *models.GuestProfile) (string, string) {
	confidence := 0
	if disputeCase.MatchConfidence != nil {
		confidence = *disputeCase.MatchConfidence
	}

	if disputeCase.ReviewRequired || confidence < autoRecommendConfidence {
		return RecommendationManualReview,
			fmt.Sprintf("recommendation: manual review (link confidence %d)", confidence)
	}

	if profile != nil && profile.FraudFlagged {
		return RecommendationRepresent,
			fmt.Sprintf("recommendation: represent, guest has %d prior chargebacks", profile.ChargebackCount)
	}
	return RecommendationRepresent,
		fmt.Sprintf("recommendation: represent (link confidence %d)", confidence)
}

package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/pkg/names"
	"github.com/stayguard/chargeback-service/pkg/observability"
)

// dateProximity is how far apart check-in/out dates may be for the fuzzy
// guest strategy to still consider them agreeing
const dateProximity = 24 * time.Hour

// Engine resolves a dispute's descriptive criteria to the best-candidate
// stay record. Strategies are tried in order of decreasing precision; the
// first strategy that yields a result wins, so an exact hit is never
// downgraded by a later fuzzy one.
type Engine struct {
	stayRepo        ports.StayRecordRepository
	adapters        ports.AdapterRegistry
	logger          ports.Logger
	amountTolerance decimal.Decimal
}

// NewEngine creates a matching engine. amountTolerance is the minimum
// absolute tolerance applied when comparing monetary amounts; the effective
// tolerance is the larger of it and 1% of the disputed amount.
func NewEngine(
	stayRepo ports.StayRecordRepository,
	adapters ports.AdapterRegistry,
	logger ports.Logger,
	amountTolerance float64,
) *Engine {
	return &Engine{
		stayRepo:        stayRepo,
		adapters:        adapters,
		logger:          logger,
		amountTolerance: decimal.NewFromFloat(amountTolerance),
	}
}

// Match finds the best-candidate stay record for the given criteria within
// the criteria's property scope. It returns nil when no candidate clears
// the minimum confidence: a missing match is a valid terminal state, not an
// error. Adapter failures during the remote fallback degrade to no match.
func (e *Engine) Match(ctx context.Context, criteria models.MatchCriteria, sourceSystem string) (*models.MatchResult, error) {
	if criteria.IsEmpty() {
		return nil, domain.NewDomainError(domain.ErrorCodeMatchNoCriteria, "no usable matching criteria")
	}

	result, err := e.match(ctx, criteria, sourceSystem)
	if err != nil {
		return nil, err
	}

	if result == nil {
		observability.RecordMatchAttempt("", "no_match", 0)
		return nil, nil
	}
	outcome := "linked"
	if result.NeedsReview() {
		outcome = "review"
	}
	observability.RecordMatchAttempt(result.Strategy, outcome, result.Confidence)
	return result, nil
}

func (e *Engine) match(ctx context.Context, criteria models.MatchCriteria, sourceSystem string) (*models.MatchResult, error) {
	if result, err := e.matchExactKey(ctx, criteria); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	if result, err := e.matchTransaction(ctx, criteria); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	if result, err := e.matchFuzzyGuest(ctx, criteria); err != nil {
		return nil, err
	} else if result != nil {
		return result, nil
	}

	return e.matchRemote(ctx, criteria, sourceSystem), nil
}

// matchExactKey resolves the confirmation number natural key within the
// property. An exact hit always yields confidence 100.
func (e *Engine) matchExactKey(ctx context.Context, criteria models.MatchCriteria) (*models.MatchResult, error) {
	if criteria.ConfirmationNumber == "" {
		return nil, nil
	}

	record, err := e.stayRepo.GetByConfirmationNumber(ctx, nil, criteria.PropertyID, criteria.ConfirmationNumber)
	if err != nil {
		if errors.Is(err, domain.ErrStayRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("exact key lookup: %w", err)
	}

	return &models.MatchResult{
		StayRecord: record,
		Confidence: models.ExactMatchConfidence,
		Strategy:   models.StrategyExactKey,
	}, nil
}

// matchTransaction tries the payment trail: an exact transaction id hit, or
// card last-four plus date-range overlap plus amount within tolerance.
// Confidence lands in [80,95] depending on how many of name, dates, and
// amount also agree.
func (e *Engine) matchTransaction(ctx context.Context, criteria models.MatchCriteria) (*models.MatchResult, error) {
	var candidates []*models.StayRecord

	if criteria.TransactionID != "" {
		found, err := e.stayRepo.FindByTransactionID(ctx, nil, criteria.PropertyID, criteria.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("transaction id lookup: %w", err)
		}
		candidates = found
	}

	if len(candidates) == 0 && criteria.CardLastFour != "" && criteria.CheckInDate != nil && criteria.CheckOutDate != nil {
		found, err := e.stayRepo.FindByCardLastFour(ctx, nil, criteria.PropertyID, criteria.CardLastFour,
			criteria.CheckInDate.Add(-dateProximity), criteria.CheckOutDate.Add(dateProximity))
		if err != nil {
			return nil, fmt.Errorf("card last four lookup: %w", err)
		}
		for _, record := range found {
			if criteria.Amount != nil && !e.amountAgrees(*criteria.Amount, record.TotalAmount) {
				continue
			}
			candidates = append(candidates, record)
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	best := e.pickBest(candidates, criteria, e.transactionConfidence)
	return &models.MatchResult{
		StayRecord: best.record,
		Confidence: best.confidence,
		Strategy:   models.StrategyTransaction,
	}, nil
}

// matchFuzzyGuest compares normalized guest names plus check-in/out date
// proximity. Confidence lands in [60,79]; these links are flagged for human
// review by policy.
func (e *Engine) matchFuzzyGuest(ctx context.Context, criteria models.MatchCriteria) (*models.MatchResult, error) {
	if criteria.GuestName == "" || (criteria.CheckInDate == nil && criteria.CheckOutDate == nil) {
		return nil, nil
	}

	found, err := e.stayRepo.FindByGuestName(ctx, nil, criteria.PropertyID, names.NormalizeGuestName(criteria.GuestName))
	if err != nil {
		return nil, fmt.Errorf("guest name lookup: %w", err)
	}

	var candidates []*models.StayRecord
	for _, record := range found {
		if !names.SameGuestName(record.GuestName, criteria.GuestName) {
			continue
		}
		if datesWithinProximity(criteria, record) {
			candidates = append(candidates, record)
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	best := e.pickBest(candidates, criteria, e.fuzzyConfidence)
	return &models.MatchResult{
		StayRecord: best.record,
		Confidence: best.confidence,
		Strategy:   models.StrategyFuzzyGuest,
	}, nil
}

// matchRemote queries the external adapter's reservation search and
// persists the first normalized result as a new stay record before
// returning it. Any failure is logged and degraded to no match.
func (e *Engine) matchRemote(ctx context.Context, criteria models.MatchCriteria, sourceSystem string) *models.MatchResult {
	adapter, err := e.adapters.Resolve(sourceSystem)
	if err != nil {
		e.logger.Warn("remote search skipped, no adapter for source system",
			ports.String("source_system", sourceSystem),
			ports.Err(err))
		return nil
	}

	records, err := adapter.SearchReservations(ctx, criteria)
	if err != nil {
		e.logger.Warn("remote reservation search failed, degrading to no match",
			ports.String("source_system", sourceSystem),
			ports.String("property_id", criteria.PropertyID),
			ports.Err(err))
		return nil
	}
	if len(records) == 0 {
		return nil
	}

	record := records[0]
	record.LastSyncedAt = time.Now().UTC()
	if _, err := e.stayRepo.Upsert(ctx, nil, record); err != nil {
		e.logger.Error("failed to persist remotely found stay record",
			ports.String("confirmation_number", record.ConfirmationNumber),
			ports.Err(err))
		return nil
	}

	confidence := e.remoteConfidence(criteria, record)
	if confidence < models.MinLinkConfidence {
		return nil
	}

	return &models.MatchResult{
		StayRecord: record,
		Confidence: confidence,
		Strategy:   models.StrategyRemoteSearch,
	}
}

type scoredCandidate struct {
	record     *models.StayRecord
	confidence int
}

// pickBest scores every candidate and applies the tie-break rules: highest
// confidence, then most recently updated, then stay dates closest to the
// dispute date.
func (e *Engine) pickBest(candidates []*models.StayRecord, criteria models.MatchCriteria, score func(models.MatchCriteria, *models.StayRecord) int) scoredCandidate {
	best := scoredCandidate{record: candidates[0], confidence: score(criteria, candidates[0])}
	for _, record := range candidates[1:] {
		c := scoredCandidate{record: record, confidence: score(criteria, record)}
		if e.preferred(c, best, criteria.DisputeDate) {
			best = c
		}
	}
	return best
}

func (e *Engine) preferred(a, b scoredCandidate, disputeDate time.Time) bool {
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	if !a.record.UpdatedAt.Equal(b.record.UpdatedAt) {
		return a.record.UpdatedAt.After(b.record.UpdatedAt)
	}
	return stayDistance(a.record, disputeDate) < stayDistance(b.record, disputeDate)
}

// stayDistance is how far the dispute date falls outside the stay window
func stayDistance(record *models.StayRecord, disputeDate time.Time) time.Duration {
	if record.CoversDate(disputeDate) {
		return 0
	}
	if disputeDate.Before(record.CheckInDate) {
		return record.CheckInDate.Sub(disputeDate)
	}
	return disputeDate.Sub(record.CheckOutDate)
}

// transactionConfidence starts at 80 and adds 5 for each corroborating
// field: guest name, stay dates, amount. Capped at 95.
func (e *Engine) transactionConfidence(criteria models.MatchCriteria, record *models.StayRecord) int {
	confidence := 80
	if criteria.GuestName != "" && names.SameGuestName(criteria.GuestName, record.GuestName) {
		confidence += 5
	}
	if datesWithinProximity(criteria, record) {
		confidence += 5
	}
	if criteria.Amount != nil && e.amountAgrees(*criteria.Amount, record.TotalAmount) {
		confidence += 5
	}
	if confidence > 95 {
		confidence = 95
	}
	return confidence
}

// fuzzyConfidence starts at 60. Exact date agreement adds 15, ±1 day adds
// 5; an agreeing amount adds 4. Capped at 79 so a fuzzy hit always lands in
// the review band.
func (e *Engine) fuzzyConfidence(criteria models.MatchCriteria, record *models.StayRecord) int {
	confidence := 60
	if datesExact(criteria, record) {
		confidence += 15
	} else if datesWithinProximity(criteria, record) {
		confidence += 5
	}
	if criteria.Amount != nil && e.amountAgrees(*criteria.Amount, record.TotalAmount) {
		confidence += 4
	}
	if confidence > 79 {
		confidence = 79
	}
	return confidence
}

// remoteConfidence derives confidence from which criteria the remote record
// agrees with: base 60, +15 confirmation number, +10 card last-four, +10
// amount, +5 dates. Capped at 95 so a remote hit never outranks a local
// exact match.
func (e *Engine) remoteConfidence(criteria models.MatchCriteria, record *models.StayRecord) int {
	confidence := 60
	if criteria.ConfirmationNumber != "" && record.ConfirmationNumber == criteria.ConfirmationNumber {
		confidence += 15
	}
	if criteria.CardLastFour != "" && record.MatchesCardLastFour(criteria.CardLastFour) {
		confidence += 10
	}
	if criteria.Amount != nil && e.amountAgrees(*criteria.Amount, record.TotalAmount) {
		confidence += 10
	}
	if datesWithinProximity(criteria, record) {
		confidence += 5
	}
	if confidence > 95 {
		confidence = 95
	}
	return confidence
}

// amountAgrees compares amounts within the larger of the configured
// absolute tolerance and 1% of the disputed amount
func (e *Engine) amountAgrees(disputed, stored decimal.Decimal) bool {
	tolerance := disputed.Abs().Mul(decimal.NewFromFloat(0.01))
	if tolerance.LessThan(e.amountTolerance) {
		tolerance = e.amountTolerance
	}
	return disputed.Sub(stored).Abs().LessThanOrEqual(tolerance)
}

func datesWithinProximity(criteria models.MatchCriteria, record *models.StayRecord) bool {
	if criteria.CheckInDate == nil && criteria.CheckOutDate == nil {
		return false
	}
	if criteria.CheckInDate != nil && absDuration(criteria.CheckInDate.Sub(record.CheckInDate)) > dateProximity {
		return false
	}
	if criteria.CheckOutDate != nil && absDuration(criteria.CheckOutDate.Sub(record.CheckOutDate)) > dateProximity {
		return false
	}
	return true
}

func datesExact(criteria models.MatchCriteria, record *models.StayRecord) bool {
	return criteria.CheckInDate != nil && criteria.CheckOutDate != nil &&
		criteria.CheckInDate.Equal(record.CheckInDate) &&
		criteria.CheckOutDate.Equal(record.CheckOutDate)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

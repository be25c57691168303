package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

const disputeCaseColumns = `
	id, case_number, external_dispute_id, property_id, source_system,
	amount, currency, reason_code, reason_category, status, dispute_date,
	respond_by_date, confirmation_number, card_last_four, guest_name,
	transaction_id, check_in_date, check_out_date, stay_record_id,
	match_confidence, match_strategy, recommendation, review_required,
	resolved_at, raw_data, created_at, updated_at`

// DisputeCaseRepository implements ports.DisputeCaseRepository with pgx
type DisputeCaseRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewDisputeCaseRepository creates a PostgreSQL-backed dispute case repository
func NewDisputeCaseRepository(db ports.DBPort, logger ports.Logger) *DisputeCaseRepository {
	return &DisputeCaseRepository{db: db, logger: logger}
}

// CreateIdempotent inserts the case keyed by its external dispute id. A
// duplicate delivery returns the previously stored case unchanged.
func (r *DisputeCaseRepository) CreateIdempotent(ctx context.Context, tx ports.DBTX, disputeCase *models.DisputeCase) (*models.DisputeCase, bool, error) {
	if disputeCase.ID == uuid.Nil {
		disputeCase.ID = uuid.New()
	}
	amount, err := decimalToNumeric(disputeCase.Amount)
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrorCodeDatabaseError, "create dispute case", err)
	}

	tag, err := executor(r.db, tx).Exec(ctx, `
		INSERT INTO dispute_cases (
			id, case_number, external_dispute_id, property_id, source_system,
			amount, currency, reason_code, reason_category, status,
			dispute_date, respond_by_date, confirmation_number, card_last_four,
			guest_name, transaction_id, check_in_date, check_out_date,
			review_required, raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (external_dispute_id) DO NOTHING`,
		disputeCase.ID, disputeCase.CaseNumber, disputeCase.ExternalDisputeID,
		disputeCase.PropertyID, disputeCase.SourceSystem, amount,
		disputeCase.Currency, disputeCase.ReasonCode, disputeCase.ReasonCategory,
		disputeCase.Status, disputeCase.DisputeDate, disputeCase.RespondByDate,
		disputeCase.ConfirmationNumber, disputeCase.CardLastFour,
		disputeCase.GuestName, disputeCase.TransactionID,
		disputeCase.CheckInDate, disputeCase.CheckOutDate,
		disputeCase.ReviewRequired, disputeCase.RawData)
	if err != nil {
		return nil, false, domain.WrapError(domain.ErrorCodeDatabaseError, "create dispute case", err)
	}
	if tag.RowsAffected() > 0 {
		return disputeCase, true, nil
	}

	stored, err := r.GetByExternalID(ctx, tx, disputeCase.ExternalDisputeID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// GetByID retrieves a dispute case by its surrogate key
func (r *DisputeCaseRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.DisputeCase, error) {
	row := executor(r.db, db).QueryRow(ctx, `SELECT`+disputeCaseColumns+` FROM dispute_cases WHERE id = $1`, id)
	return scanDisputeCase(row)
}

// GetByExternalID retrieves a dispute case by its external dispute id
func (r *DisputeCaseRepository) GetByExternalID(ctx context.Context, db ports.DBTX, externalDisputeID string) (*models.DisputeCase, error) {
	row := executor(r.db, db).QueryRow(ctx, `SELECT`+disputeCaseColumns+`
		FROM dispute_cases WHERE external_dispute_id = $1`, externalDisputeID)
	return scanDisputeCase(row)
}

// GetByCaseNumber retrieves a dispute case by its system case number
func (r *DisputeCaseRepository) GetByCaseNumber(ctx context.Context, db ports.DBTX, caseNumber string) (*models.DisputeCase, error) {
	row := executor(r.db, db).QueryRow(ctx, `SELECT`+disputeCaseColumns+`
		FROM dispute_cases WHERE case_number = $1`, caseNumber)
	return scanDisputeCase(row)
}

// Update persists all mutable fields of an existing case
func (r *DisputeCaseRepository) Update(ctx context.Context, tx ports.DBTX, disputeCase *models.DisputeCase) error {
	amount, err := decimalToNumeric(disputeCase.Amount)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update dispute case", err)
	}

	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE dispute_cases SET
			amount = $2, currency = $3, reason_code = $4, reason_category = $5,
			status = $6, dispute_date = $7, respond_by_date = $8,
			confirmation_number = $9, card_last_four = $10, guest_name = $11,
			transaction_id = $12, check_in_date = $13, check_out_date = $14,
			stay_record_id = $15, match_confidence = $16, match_strategy = $17,
			recommendation = $18, review_required = $19, resolved_at = $20,
			raw_data = $21, updated_at = now()
		WHERE id = $1`,
		disputeCase.ID, amount, disputeCase.Currency, disputeCase.ReasonCode,
		disputeCase.ReasonCategory, disputeCase.Status, disputeCase.DisputeDate,
		disputeCase.RespondByDate, disputeCase.ConfirmationNumber,
		disputeCase.CardLastFour, disputeCase.GuestName, disputeCase.TransactionID,
		disputeCase.CheckInDate, disputeCase.CheckOutDate, disputeCase.StayRecordID,
		disputeCase.MatchConfidence, disputeCase.MatchStrategy,
		disputeCase.Recommendation, disputeCase.ReviewRequired,
		disputeCase.ResolvedAt, disputeCase.RawData)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update dispute case", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDisputeCaseNotFound
	}
	return nil
}

// LinkStayRecord attaches a stay record with the confidence and strategy
// that produced the link
func (r *DisputeCaseRepository) LinkStayRecord(ctx context.Context, tx ports.DBTX, caseID, stayRecordID uuid.UUID, confidence int, strategy string, reviewRequired bool) error {
	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE dispute_cases SET
			stay_record_id = $2, match_confidence = $3, match_strategy = $4,
			review_required = $5, updated_at = now()
		WHERE id = $1`,
		caseID, stayRecordID, confidence, strategy, reviewRequired)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "link stay record", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDisputeCaseNotFound
	}
	return nil
}

// AppendTimeline appends one entry to the case's append-only timeline
func (r *DisputeCaseRepository) AppendTimeline(ctx context.Context, tx ports.DBTX, caseID uuid.UUID, kind, message string) error {
	_, err := executor(r.db, tx).Exec(ctx, `
		INSERT INTO dispute_case_timeline (id, dispute_case_id, kind, message)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), caseID, kind, message)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "append timeline entry", err)
	}
	return nil
}

// ListAwaitingEvidence returns open cases created before cutoff that have no
// evidence items yet, oldest first. The periodic backfill uses it to
// re-enqueue cases whose collection job never completed.
func (r *DisputeCaseRepository) ListAwaitingEvidence(ctx context.Context, db ports.DBTX, cutoff time.Time, limit int32) ([]*models.DisputeCase, error) {
	rows, err := executor(r.db, db).Query(ctx, `
		SELECT`+disputeCaseColumns+`
		FROM dispute_cases
		WHERE status IN ('PENDING', 'IN_REVIEW')
		  AND created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM evidence_items
			WHERE evidence_items.dispute_case_id = dispute_cases.id
		  )
		ORDER BY created_at
		LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list cases awaiting evidence", err)
	}
	defer rows.Close()

	var cases []*models.DisputeCase
	for rows.Next() {
		dc, serr := scanDisputeCase(rows)
		if serr != nil {
			return nil, serr
		}
		cases = append(cases, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "list cases awaiting evidence", err)
	}
	return cases, nil
}

func scanDisputeCase(row pgx.Row) (*models.DisputeCase, error) {
	var dc models.DisputeCase
	var amount pgtype.Numeric
	err := row.Scan(
		&dc.ID, &dc.CaseNumber, &dc.ExternalDisputeID, &dc.PropertyID,
		&dc.SourceSystem, &amount, &dc.Currency, &dc.ReasonCode,
		&dc.ReasonCategory, &dc.Status, &dc.DisputeDate, &dc.RespondByDate,
		&dc.ConfirmationNumber, &dc.CardLastFour, &dc.GuestName,
		&dc.TransactionID, &dc.CheckInDate, &dc.CheckOutDate,
		&dc.StayRecordID, &dc.MatchConfidence, &dc.MatchStrategy,
		&dc.Recommendation, &dc.ReviewRequired, &dc.ResolvedAt,
		&dc.RawData, &dc.CreatedAt, &dc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDisputeCaseNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan dispute case", err)
	}
	if dc.Amount, err = numericToDecimal(amount); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan dispute case", err)
	}
	return &dc, nil
}

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
	"github.com/stayguard/chargeback-service/pkg/names"
)

const stayRecordColumns = `
	id, property_id, confirmation_number, external_id, source_system,
	guest_name, guest_email, guest_phone, check_in_date, check_out_date,
	room_number, room_type, card_brand, card_last_four, auth_code,
	transaction_id, total_amount, currency, status, last_synced_at,
	raw_data, created_at, updated_at`

// StayRecordRepository implements ports.StayRecordRepository with pgx
type StayRecordRepository struct {
	db     ports.DBPort
	logger ports.Logger
}

// NewStayRecordRepository creates a PostgreSQL-backed stay record repository
func NewStayRecordRepository(db ports.DBPort, logger ports.Logger) *StayRecordRepository {
	return &StayRecordRepository{db: db, logger: logger}
}

// Upsert inserts the record or refreshes the existing row keyed by
// (property_id, confirmation_number). The insert is attempted first so the
// common path of a brand-new reservation costs one round trip.
func (r *StayRecordRepository) Upsert(ctx context.Context, tx ports.DBTX, record *models.StayRecord) (bool, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	amount, err := decimalToNumeric(record.TotalAmount)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "upsert stay record", err)
	}

	q := executor(r.db, tx)
	tag, err := q.Exec(ctx, `
		INSERT INTO stay_records (
			id, property_id, confirmation_number, external_id, source_system,
			guest_name, guest_name_normalized, guest_email, guest_phone,
			check_in_date, check_out_date, room_number, room_type,
			card_brand, card_last_four, auth_code, transaction_id,
			total_amount, currency, status, last_synced_at, raw_data
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		ON CONFLICT (property_id, confirmation_number) DO NOTHING`,
		record.ID, record.PropertyID, record.ConfirmationNumber, record.ExternalID,
		record.SourceSystem, record.GuestName, names.NormalizeGuestName(record.GuestName),
		record.GuestEmail, record.GuestPhone, record.CheckInDate, record.CheckOutDate,
		record.RoomNumber, record.RoomType, record.CardBrand, record.CardLastFour,
		record.AuthCode, record.TransactionID, amount, record.Currency,
		record.Status, record.LastSyncedAt, record.RawData)
	if err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "upsert stay record", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Row already exists: refresh it and recover the stored id so the
	// caller's record points at the canonical row.
	row := q.QueryRow(ctx, `
		UPDATE stay_records SET
			external_id = $3, source_system = $4, guest_name = $5,
			guest_name_normalized = $6, guest_email = $7, guest_phone = $8,
			check_in_date = $9, check_out_date = $10, room_number = $11,
			room_type = $12, card_brand = $13, card_last_four = $14,
			auth_code = $15, transaction_id = $16, total_amount = $17,
			currency = $18, status = $19, last_synced_at = $20,
			raw_data = $21, updated_at = now()
		WHERE property_id = $1 AND confirmation_number = $2
		RETURNING id, created_at, updated_at`,
		record.PropertyID, record.ConfirmationNumber, record.ExternalID,
		record.SourceSystem, record.GuestName, names.NormalizeGuestName(record.GuestName),
		record.GuestEmail, record.GuestPhone, record.CheckInDate, record.CheckOutDate,
		record.RoomNumber, record.RoomType, record.CardBrand, record.CardLastFour,
		record.AuthCode, record.TransactionID, amount, record.Currency,
		record.Status, record.LastSyncedAt, record.RawData)
	if err := row.Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return false, domain.WrapError(domain.ErrorCodeDatabaseError, "upsert stay record", err)
	}
	return false, nil
}

// GetByID retrieves a stay record by its surrogate key
func (r *StayRecordRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.StayRecord, error) {
	row := executor(r.db, db).QueryRow(ctx, `SELECT`+stayRecordColumns+` FROM stay_records WHERE id = $1`, id)
	return scanStayRecord(row)
}

// GetByConfirmationNumber retrieves a stay record by its natural key within
// a property
func (r *StayRecordRepository) GetByConfirmationNumber(ctx context.Context, db ports.DBTX, propertyID, confirmationNumber string) (*models.StayRecord, error) {
	row := executor(r.db, db).QueryRow(ctx, `SELECT`+stayRecordColumns+`
		FROM stay_records
		WHERE property_id = $1 AND confirmation_number = $2`,
		propertyID, confirmationNumber)
	return scanStayRecord(row)
}

// FindByTransactionID retrieves stay records carrying the given payment
// transaction id within a property
func (r *StayRecordRepository) FindByTransactionID(ctx context.Context, db ports.DBTX, propertyID, transactionID string) ([]*models.StayRecord, error) {
	rows, err := executor(r.db, db).Query(ctx, `SELECT`+stayRecordColumns+`
		FROM stay_records
		WHERE property_id = $1 AND transaction_id = $2
		ORDER BY updated_at DESC`,
		propertyID, transactionID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "find stay records by transaction", err)
	}
	return scanStayRecords(rows)
}

// FindByCardLastFour retrieves stay records whose payment fingerprint carries
// the given last four and whose stay overlaps [from, to]
func (r *StayRecordRepository) FindByCardLastFour(ctx context.Context, db ports.DBTX, propertyID, lastFour string, from, to time.Time) ([]*models.StayRecord, error) {
	rows, err := executor(r.db, db).Query(ctx, `SELECT`+stayRecordColumns+`
		FROM stay_records
		WHERE property_id = $1 AND card_last_four = $2
		  AND check_in_date <= $4 AND check_out_date >= $3
		ORDER BY updated_at DESC`,
		propertyID, lastFour, from, to)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "find stay records by card", err)
	}
	return scanStayRecords(rows)
}

// FindByGuestName retrieves stay records for a property whose normalized
// guest name equals the given normalized name
func (r *StayRecordRepository) FindByGuestName(ctx context.Context, db ports.DBTX, propertyID, normalizedName string) ([]*models.StayRecord, error) {
	rows, err := executor(r.db, db).Query(ctx, `SELECT`+stayRecordColumns+`
		FROM stay_records
		WHERE property_id = $1 AND guest_name_normalized = $2
		ORDER BY updated_at DESC`,
		propertyID, normalizedName)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "find stay records by guest name", err)
	}
	return scanStayRecords(rows)
}

// Update persists all mutable fields of an existing record
func (r *StayRecordRepository) Update(ctx context.Context, tx ports.DBTX, record *models.StayRecord) error {
	amount, err := decimalToNumeric(record.TotalAmount)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update stay record", err)
	}

	tag, err := executor(r.db, tx).Exec(ctx, `
		UPDATE stay_records SET
			external_id = $2, source_system = $3, guest_name = $4,
			guest_name_normalized = $5, guest_email = $6, guest_phone = $7,
			check_in_date = $8, check_out_date = $9, room_number = $10,
			room_type = $11, card_brand = $12, card_last_four = $13,
			auth_code = $14, transaction_id = $15, total_amount = $16,
			currency = $17, status = $18, last_synced_at = $19,
			raw_data = $20, updated_at = now()
		WHERE id = $1`,
		record.ID, record.ExternalID, record.SourceSystem, record.GuestName,
		names.NormalizeGuestName(record.GuestName), record.GuestEmail,
		record.GuestPhone, record.CheckInDate, record.CheckOutDate,
		record.RoomNumber, record.RoomType, record.CardBrand, record.CardLastFour,
		record.AuthCode, record.TransactionID, amount, record.Currency,
		record.Status, record.LastSyncedAt, record.RawData)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeDatabaseError, "update stay record", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStayRecordNotFound
	}
	return nil
}

func scanStayRecord(row pgx.Row) (*models.StayRecord, error) {
	var rec models.StayRecord
	var amount pgtype.Numeric
	err := row.Scan(
		&rec.ID, &rec.PropertyID, &rec.ConfirmationNumber, &rec.ExternalID,
		&rec.SourceSystem, &rec.GuestName, &rec.GuestEmail, &rec.GuestPhone,
		&rec.CheckInDate, &rec.CheckOutDate, &rec.RoomNumber, &rec.RoomType,
		&rec.CardBrand, &rec.CardLastFour, &rec.AuthCode, &rec.TransactionID,
		&amount, &rec.Currency, &rec.Status, &rec.LastSyncedAt,
		&rec.RawData, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStayRecordNotFound
		}
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan stay record", err)
	}
	if rec.TotalAmount, err = numericToDecimal(amount); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "scan stay record", err)
	}
	return &rec, nil
}

func scanStayRecords(rows pgx.Rows) ([]*models.StayRecord, error) {
	defer rows.Close()
	var records []*models.StayRecord
	for rows.Next() {
		rec, err := scanStayRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "iterate stay records", err)
	}
	return records, nil
}

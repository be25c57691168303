package cloudpms

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// statusTable translates CloudPMS reservation statuses to canonical ones.
// Unknown vendor statuses fall back to pending rather than failing the sync.
var statusTable = map[string]models.StayRecordStatus{
	"PROSPECT":    models.StayStatusPending,
	"TENTATIVE":   models.StayStatusPending,
	"RESERVED":    models.StayStatusConfirmed,
	"CONFIRMED":   models.StayStatusConfirmed,
	"DUE_IN":      models.StayStatusConfirmed,
	"IN_HOUSE":    models.StayStatusCheckedIn,
	"DUE_OUT":     models.StayStatusCheckedIn,
	"CHECKED_OUT": models.StayStatusCheckedOut,
	"CANCELED":    models.StayStatusCancelled,
	"CANCELLED":   models.StayStatusCancelled,
	"NO_SHOW":     models.StayStatusNoShow,
}

// NormalizeReservation converts a raw CloudPMS reservation payload into the
// canonical stay record shape. Dates arrive as "2006-01-02"; the guest may
// be a nested object or a flat "guest_name" string depending on the API
// version the property runs.
func (a *Adapter) NormalizeReservation(raw map[string]interface{}) (*models.StayRecord, error) {
	confirmation := str(raw, "confirmation_no")
	if confirmation == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload,
			"reservation payload missing confirmation_no")
	}

	checkIn, err := date(raw, "arrival")
	if err != nil {
		return nil, err
	}
	checkOut, err := date(raw, "departure")
	if err != nil {
		return nil, err
	}

	rec := &models.StayRecord{
		PropertyID:         str(raw, "hotel_code"),
		ConfirmationNumber: confirmation,
		ExternalID:         str(raw, "resv_id"),
		SourceSystem:       SourceSystemName,
		GuestName:          guestName(raw),
		CheckInDate:        checkIn,
		CheckOutDate:       checkOut,
		Currency:           strDefault(raw, "currency_code", "USD"),
		Status:             normalizeStatus(str(raw, "status")),
		LastSyncedAt:       time.Now().UTC(),
		RawData:            raw,
	}

	rec.GuestEmail = strPtr(raw, "guest_email")
	rec.GuestPhone = strPtr(raw, "guest_phone")
	rec.RoomNumber = strPtr(raw, "room_no")
	rec.RoomType = strPtr(raw, "room_type")

	if guest, ok := raw["guest"].(map[string]interface{}); ok {
		if rec.GuestEmail == nil {
			rec.GuestEmail = strPtr(guest, "email")
		}
		if rec.GuestPhone == nil {
			rec.GuestPhone = strPtr(guest, "phone")
		}
	}

	if payment, ok := raw["payment"].(map[string]interface{}); ok {
		rec.CardBrand = strPtr(payment, "card_type")
		rec.CardLastFour = strPtr(payment, "card_last4")
		rec.AuthCode = strPtr(payment, "auth_code")
		rec.TransactionID = strPtr(payment, "txn_ref")
	}

	if total, ok := amount(raw, "total"); ok {
		rec.TotalAmount = total
	}

	return rec, nil
}

// NormalizeFolioItems converts raw CloudPMS folio lines into canonical folio
// items. Lines without an amount are dropped; a folio line is meaningless as
// dispute evidence without one.
func (a *Adapter) NormalizeFolioItems(raw []map[string]interface{}) ([]models.FolioItem, error) {
	items := make([]models.FolioItem, 0, len(raw))
	for _, line := range raw {
		amt, ok := amount(line, "amount")
		if !ok {
			continue
		}

		item := models.FolioItem{
			Description: str(line, "description"),
			Category:    strings.ToLower(str(line, "charge_group")),
			Amount:      amt,
			Currency:    strDefault(line, "currency_code", "USD"),
		}
		if d, err := date(line, "posting_date"); err == nil {
			item.Date = d
		}
		items = append(items, item)
	}
	return items, nil
}

func normalizeStatus(vendor string) models.StayRecordStatus {
	if s, ok := statusTable[strings.ToUpper(vendor)]; ok {
		return s
	}
	return models.StayStatusPending
}

// guestName prefers the nested guest object, falling back to the flat field
func guestName(raw map[string]interface{}) string {
	if guest, ok := raw["guest"].(map[string]interface{}); ok {
		first := str(guest, "first_name")
		last := str(guest, "last_name")
		full := strings.TrimSpace(first + " " + last)
		if full != "" {
			return full
		}
	}
	return str(raw, "guest_name")
}

func str(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func strDefault(raw map[string]interface{}, key, def string) string {
	if v := str(raw, key); v != "" {
		return v
	}
	return def
}

func strPtr(raw map[string]interface{}, key string) *string {
	if v := str(raw, key); v != "" {
		return &v
	}
	return nil
}

func date(raw map[string]interface{}, key string) (time.Time, error) {
	v := str(raw, key)
	if v == "" {
		return time.Time{}, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload,
			fmt.Sprintf("payload missing date field %q", key))
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload,
		fmt.Sprintf("unparseable date %q in field %q", v, key))
}

// amount accepts both JSON numbers and decimal strings
func amount(raw map[string]interface{}, key string) (decimal.Decimal, bool) {
	switch v := raw[key].(type) {
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d, true
		}
	case float64:
		return decimal.NewFromFloat(v), true
	}
	return decimal.Zero, false
}

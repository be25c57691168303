package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StayRecordStatus represents the reservation lifecycle state
type StayRecordStatus string

const (
	StayStatusPending    StayRecordStatus = "pending"
	StayStatusConfirmed  StayRecordStatus = "confirmed"
	StayStatusCheckedIn  StayRecordStatus = "checked_in"
	StayStatusCheckedOut StayRecordStatus = "checked_out"
	StayStatusCancelled  StayRecordStatus = "cancelled"
	StayStatusNoShow     StayRecordStatus = "no_show"
)

// StayRecord is the canonical reservation entity. It is owned by the
// property and mutated only through inbound sync or the conflict resolver;
// records are never deleted, only status-transitioned.
type StayRecord struct {
	ID                 uuid.UUID              `json:"id"`
	PropertyID         string                 `json:"property_id"`
	ConfirmationNumber string                 `json:"confirmation_number"`
	ExternalID         string                 `json:"external_id"`
	SourceSystem       string                 `json:"source_system"`
	GuestName          string                 `json:"guest_name"`
	GuestEmail         *string                `json:"guest_email"`
	GuestPhone         *string                `json:"guest_phone"`
	CheckInDate        time.Time              `json:"check_in_date"`
	CheckOutDate       time.Time              `json:"check_out_date"`
	RoomNumber         *string                `json:"room_number"`
	RoomType           *string                `json:"room_type"`
	CardBrand          *string                `json:"card_brand"`
	CardLastFour       *string                `json:"card_last_four"`
	AuthCode           *string                `json:"auth_code"`
	TransactionID      *string                `json:"transaction_id"`
	TotalAmount        decimal.Decimal        `json:"total_amount"`
	Currency           string                 `json:"currency"`
	Status             StayRecordStatus       `json:"status"`
	LastSyncedAt       time.Time              `json:"last_synced_at"`
	RawData            map[string]interface{} `json:"raw_data"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// Nights returns the length of the stay in nights
func (s *StayRecord) Nights() int {
	return int(s.CheckOutDate.Sub(s.CheckInDate).Hours() / 24)
}

// CoversDate reports whether d falls inside the stay window (inclusive of
// check-in, exclusive of check-out)
func (s *StayRecord) CoversDate(d time.Time) bool {
	return !d.Before(s.CheckInDate) && d.Before(s.CheckOutDate)
}

// MatchesCardLastFour reports whether the stored payment fingerprint carries
// the given last four digits
func (s *StayRecord) MatchesCardLastFour(lastFour string) bool {
	return s.CardLastFour != nil && *s.CardLastFour == lastFour
}

// PaymentFingerprint returns a display form of the stored payment method
// (brand + last four), or empty when no card is on file
func (s *StayRecord) PaymentFingerprint() string {
	if s.CardLastFour == nil {
		return ""
	}
	brand := ""
	if s.CardBrand != nil {
		brand = *s.CardBrand
	}
	return brand + "****" + *s.CardLastFour
}

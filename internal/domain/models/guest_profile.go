package models

import (
	"time"

	"github.com/google/uuid"
)

// GuestProfile aggregates what is known about a guest across stays. The PMS
// is authoritative for personal and loyalty fields; flag and fraud-history
// fields are owned by this system.
type GuestProfile struct {
	ID              uuid.UUID `json:"id"`
	PropertyID      string    `json:"property_id"`
	Email           string    `json:"email"`
	FullName        string    `json:"full_name"`
	Phone           *string   `json:"phone"`
	LoyaltyNumber   *string   `json:"loyalty_number"`
	LoyaltyTier     *string   `json:"loyalty_tier"`
	FraudFlagged    bool      `json:"fraud_flagged"`
	FraudNotes      *string   `json:"fraud_notes"`
	ChargebackCount int       `json:"chargeback_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DisputeStatus represents the dispute lifecycle state
type DisputeStatus string

const (
	DisputeStatusPending   DisputeStatus = "PENDING"
	DisputeStatusInReview  DisputeStatus = "IN_REVIEW"
	DisputeStatusSubmitted DisputeStatus = "SUBMITTED"
	DisputeStatusWon       DisputeStatus = "WON"
	DisputeStatusLost      DisputeStatus = "LOST"
	DisputeStatusExpired   DisputeStatus = "EXPIRED"
	DisputeStatusCancelled DisputeStatus = "CANCELLED"
)

// statusRank defines the linear progression order used for monotonic status
// updates. WON and LOST share a rank: they are mutually exclusive endpoints,
// not ordered against each other. EXPIRED and CANCELLED likewise share the
// final rank and may follow a resolution.
var statusRank = map[DisputeStatus]int{
	DisputeStatusPending:   0,
	DisputeStatusInReview:  1,
	DisputeStatusSubmitted: 2,
	DisputeStatusWon:       3,
	DisputeStatusLost:      3,
	DisputeStatusExpired:   4,
	DisputeStatusCancelled: 4,
}

// Rank returns the position of the status in the progression order, or -1
// for an unknown status
func (s DisputeStatus) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// IsValid reports whether the status is one of the known lifecycle states
func (s DisputeStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok
}

// IsResolution reports whether the status carries a win/loss outcome
func (s DisputeStatus) IsResolution() bool {
	return s == DisputeStatusWon || s == DisputeStatusLost
}

// CanAdvanceTo reports whether an automatic update may move the status to
// next. Only strictly later ranks are allowed; equal-rank flips (WON→LOST)
// and regressions are rejected.
func (s DisputeStatus) CanAdvanceTo(next DisputeStatus) bool {
	if !s.IsValid() || !next.IsValid() {
		return false
	}
	return next.Rank() > s.Rank()
}

// DisputeCase is the canonical chargeback entity. The external dispute id is
// the natural key for idempotent creation; the case number is generated by
// this system. Status transitions are append-only and monotonic under
// automatic updates.
type DisputeCase struct {
	ID                uuid.UUID              `json:"id"`
	CaseNumber        string                 `json:"case_number"`
	ExternalDisputeID string                 `json:"external_dispute_id"`
	PropertyID        string                 `json:"property_id"`
	SourceSystem      string                 `json:"source_system"`
	Amount            decimal.Decimal        `json:"amount"`
	Currency          string                 `json:"currency"`
	ReasonCode        string                 `json:"reason_code"`
	ReasonCategory    string                 `json:"reason_category"`
	Status            DisputeStatus          `json:"status"`
	DisputeDate       time.Time              `json:"dispute_date"`
	RespondByDate     *time.Time             `json:"respond_by_date"`

	// Descriptive criteria carried from the dispute notification, used by
	// the matching engine when no exact key is available.
	ConfirmationNumber *string    `json:"confirmation_number"`
	CardLastFour       *string    `json:"card_last_four"`
	GuestName          *string    `json:"guest_name"`
	TransactionID      *string    `json:"transaction_id"`
	CheckInDate        *time.Time `json:"check_in_date"`
	CheckOutDate       *time.Time `json:"check_out_date"`

	// Fields owned exclusively by this system. Incoming sync never
	// overwrites them.
	StayRecordID    *uuid.UUID `json:"stay_record_id"`
	MatchConfidence *int       `json:"match_confidence"`
	MatchStrategy   *string    `json:"match_strategy"`
	Recommendation  *string    `json:"recommendation"`
	ReviewRequired  bool       `json:"review_required"`

	ResolvedAt *time.Time             `json:"resolved_at"`
	RawData    map[string]interface{} `json:"raw_data"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// IsOpen reports whether the case is still actionable
func (d *DisputeCase) IsOpen() bool {
	return d.Status.Rank() < DisputeStatusWon.Rank()
}

// IsLinked reports whether a stay record has been attached
func (d *DisputeCase) IsLinked() bool {
	return d.StayRecordID != nil
}

// MatchCriteria builds matching criteria from the case's descriptive fields
func (d *DisputeCase) MatchCriteria() MatchCriteria {
	c := MatchCriteria{
		PropertyID:  d.PropertyID,
		DisputeDate: d.DisputeDate,
		Amount:      &d.Amount,
	}
	if d.ConfirmationNumber != nil {
		c.ConfirmationNumber = *d.ConfirmationNumber
	}
	if d.CardLastFour != nil {
		c.CardLastFour = *d.CardLastFour
	}
	if d.GuestName != nil {
		c.GuestName = *d.GuestName
	}
	if d.TransactionID != nil {
		c.TransactionID = *d.TransactionID
	}
	c.CheckInDate = d.CheckInDate
	c.CheckOutDate = d.CheckOutDate
	return c
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Matching strategy names, recorded on the dispute case when a link is made
const (
	StrategyExactKey     = "exact_confirmation_number"
	StrategyTransaction  = "transaction_payment"
	StrategyFuzzyGuest   = "fuzzy_guest"
	StrategyRemoteSearch = "remote_search"
)

// Confidence thresholds governing the link policy. Matches below
// MinLinkConfidence never link; matches below AutoAcceptConfidence link but
// are flagged for human review.
const (
	MinLinkConfidence    = 60
	AutoAcceptConfidence = 80
	ExactMatchConfidence = 100
)

// MatchCriteria carries the descriptive fields a dispute notification may
// provide. Any subset may be set; empty strings and nil pointers mean the
// field was absent.
type MatchCriteria struct {
	PropertyID         string
	ConfirmationNumber string
	CardLastFour       string
	GuestName          string
	TransactionID      string
	CheckInDate        *time.Time
	CheckOutDate       *time.Time
	Amount             *decimal.Decimal
	DisputeDate        time.Time
}

// IsEmpty reports whether no usable criterion is present
func (c MatchCriteria) IsEmpty() bool {
	return c.ConfirmationNumber == "" &&
		c.CardLastFour == "" &&
		c.GuestName == "" &&
		c.TransactionID == ""
}

// MatchResult is the transient outcome of one matching attempt. It is never
// persisted directly; only its consequence (a case link or a log entry)
// survives.
type MatchResult struct {
	StayRecord *StayRecord
	Confidence int
	Strategy   string
}

// ShouldLink reports whether the confidence clears the automatic link
// threshold
func (r *MatchResult) ShouldLink() bool {
	return r.Confidence >= MinLinkConfidence
}

// NeedsReview reports whether a linked match still requires human review
func (r *MatchResult) NeedsReview() bool {
	return r.Confidence < AutoAcceptConfidence
}

package ports

import (
	"context"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain/models"
)

// Job type names used on the transport
const (
	JobTypeEvidenceCollection = "evidence.collect"
	JobTypeInboundSync        = "sync.inbound"
	JobTypeOutboundPush       = "sync.outbound"
)

// EvidenceCollectionJob asks the orchestrator to assemble an evidence
// package for a dispute case
type EvidenceCollectionJob struct {
	DisputeCaseID      string     `json:"dispute_case_id"`
	CaseNumber         string     `json:"case_number"`
	CardLastFour       string     `json:"card_last_four,omitempty"`
	ConfirmationNumber string     `json:"confirmation_number,omitempty"`
	GuestName          string     `json:"guest_name,omitempty"`
	CheckInDate        *time.Time `json:"check_in_date,omitempty"`
	CheckOutDate       *time.Time `json:"check_out_date,omitempty"`
	TransactionID      string     `json:"transaction_id,omitempty"`
	PropertyID         string     `json:"property_id"`
}

// NewEvidenceCollectionJob builds a collection job from a case's descriptive
// fields
func NewEvidenceCollectionJob(disputeCase *models.DisputeCase) EvidenceCollectionJob {
	job := EvidenceCollectionJob{
		DisputeCaseID: disputeCase.ID.String(),
		CaseNumber:    disputeCase.CaseNumber,
		PropertyID:    disputeCase.PropertyID,
		CheckInDate:   disputeCase.CheckInDate,
		CheckOutDate:  disputeCase.CheckOutDate,
	}
	if disputeCase.ConfirmationNumber != nil {
		job.ConfirmationNumber = *disputeCase.ConfirmationNumber
	}
	if disputeCase.CardLastFour != nil {
		job.CardLastFour = *disputeCase.CardLastFour
	}
	if disputeCase.GuestName != nil {
		job.GuestName = *disputeCase.GuestName
	}
	if disputeCase.TransactionID != nil {
		job.TransactionID = *disputeCase.TransactionID
	}
	return job
}

// InboundSyncJob carries one raw inbound event from an external system
type InboundSyncJob struct {
	SourceSystem  string            `json:"source_system"`
	RawPayload    []byte            `json:"raw_payload"`
	Headers       map[string]string `json:"headers"`
	IntegrationID string            `json:"integration_id"`
}

// OutboundJob carries one push action toward an external system
type OutboundJob struct {
	SourceSystem  string                 `json:"source_system"`
	IntegrationID string                 `json:"integration_id"`
	Action        string                 `json:"action"`
	Payload       map[string]interface{} `json:"payload"`
}

// JobPublisher enqueues typed jobs onto the transport. The transport's own
// retry policy handles re-delivery of failed jobs.
type JobPublisher interface {
	PublishEvidenceCollection(ctx context.Context, job EvidenceCollectionJob) error
	PublishInboundSync(ctx context.Context, job InboundSyncJob) error
	PublishOutbound(ctx context.Context, job OutboundJob) error
}

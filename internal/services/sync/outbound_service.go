package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// Outbound actions accepted on the job transport
const (
	ActionPushNote        = "push_note"
	ActionPushFlag        = "push_flag"
	ActionChargebackAlert = "chargeback_alert"
	ActionDisputeOutcome  = "dispute_outcome"
)

// OutboundService pushes notes, flags, alerts, and outcomes back to
// external systems and audits every attempt
type OutboundService struct {
	adapters ports.AdapterRegistry
	syncLog  ports.SyncLogRepository
	logger   ports.Logger
}

// NewOutboundService creates an outbound sync service
func NewOutboundService(adapters ports.AdapterRegistry, syncLog ports.SyncLogRepository, logger ports.Logger) *OutboundService {
	return &OutboundService{
		adapters: adapters,
		syncLog:  syncLog,
		logger:   logger,
	}
}

// Process handles one outbound push job. Unknown source systems and
// actions are config errors: the job is skipped with an explicit reason,
// never retried.
func (s *OutboundService) Process(ctx context.Context, job ports.OutboundJob) error {
	started := time.Now()

	adapter, err := s.adapters.Resolve(job.SourceSystem)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterUnsupported,
			fmt.Sprintf("no adapter registered for %q", job.SourceSystem), err)
	}

	push := ports.OutboundPush{
		ReservationID: stringField(job.Payload, "reservation_id", ""),
		CaseNumber:    stringField(job.Payload, "case_number", ""),
		Subject:       stringField(job.Payload, "subject", ""),
		Body:          stringField(job.Payload, "body", ""),
	}

	switch job.Action {
	case ActionPushNote:
		err = adapter.PushNote(ctx, push)
	case ActionPushFlag:
		err = adapter.PushFlag(ctx, push)
	case ActionChargebackAlert:
		err = adapter.PushChargebackAlert(ctx, push)
	case ActionDisputeOutcome:
		err = adapter.PushDisputeOutcome(ctx, push)
	default:
		err = domain.NewDomainError(domain.ErrorCodeSyncSkipped,
			fmt.Sprintf("unknown outbound action %q", job.Action))
	}

	duration := time.Since(started).Milliseconds()
	status := models.SyncStatusCompleted
	if err != nil {
		status = models.SyncStatusFailed
	}

	entry := &models.SyncLogEntry{
		IntegrationID: job.IntegrationID,
		Direction:     models.SyncDirectionOutbound,
		EntityType:    "dispute_case",
		Status:        status,
		DurationMs:    duration,
	}
	if err != nil {
		msg := err.Error()
		entry.ErrorMessage = &msg
	}
	if aerr := s.syncLog.Append(ctx, nil, entry); aerr != nil {
		s.logger.Error("outbound audit entry failed",
			ports.String("integration_id", job.IntegrationID),
			ports.Err(aerr))
	}

	if err != nil {
		s.logger.Warn("outbound push failed",
			ports.String("action", job.Action),
			ports.String("source_system", job.SourceSystem),
			ports.Err(err))
		return err
	}

	s.logger.Info("outbound push delivered",
		ports.String("action", job.Action),
		ports.String("source_system", job.SourceSystem),
		ports.String("case_number", push.CaseNumber))
	return nil
}

// Package workers decodes job payloads from the transport and dispatches
// them to the pipeline services. Handlers hold no state across jobs; every
// job is self-contained.
package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/internal/services/evidence"
	"github.com/stayguard/chargeback-service/internal/services/sync"
	"github.com/stayguard/chargeback-service/pkg/observability"
)

// EvidenceCollectionHandler runs the evidence saga for one dispute case
type EvidenceCollectionHandler struct {
	orchestrator *evidence.Orchestrator
	logger       ports.Logger
}

// NewEvidenceCollectionHandler creates the handler for evidence.collect jobs
func NewEvidenceCollectionHandler(orchestrator *evidence.Orchestrator, logger ports.Logger) *EvidenceCollectionHandler {
	return &EvidenceCollectionHandler{orchestrator: orchestrator, logger: logger}
}

// Handle decodes and processes one evidence collection job
func (h *EvidenceCollectionHandler) Handle(ctx context.Context, data []byte) error {
	var job ports.EvidenceCollectionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode evidence collection job", err)
	}

	started := time.Now()
	result, err := h.orchestrator.Collect(ctx, job)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		observability.RecordEvidenceSaga("failed", elapsed)
		observability.RecordJob(ports.JobTypeEvidenceCollection, outcomeLabel(err), elapsed)
		return err
	}

	observability.RecordEvidenceSaga(result.Status, elapsed)
	observability.RecordJob(ports.JobTypeEvidenceCollection, "ok", elapsed)
	h.logger.Info("evidence collection finished",
		ports.String("case_number", job.CaseNumber),
		ports.String("status", result.Status),
		ports.Int("collected", result.EvidenceCollected),
		ports.Int("skipped", result.EvidenceSkipped),
		ports.Int("failed", result.EvidenceFailed))
	return nil
}

// InboundSyncHandler reconciles one raw inbound event
type InboundSyncHandler struct {
	service *sync.InboundService
	logger  ports.Logger
}

// NewInboundSyncHandler creates the handler for sync.inbound jobs
func NewInboundSyncHandler(service *sync.InboundService, logger ports.Logger) *InboundSyncHandler {
	return &InboundSyncHandler{service: service, logger: logger}
}

// Handle decodes and processes one inbound sync job
func (h *InboundSyncHandler) Handle(ctx context.Context, data []byte) error {
	var job ports.InboundSyncJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode inbound sync job", err)
	}

	started := time.Now()
	err := h.service.Process(ctx, job)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		observability.RecordJob(ports.JobTypeInboundSync, outcomeLabel(err), elapsed)
		return err
	}
	observability.RecordJob(ports.JobTypeInboundSync, "ok", elapsed)
	return nil
}

// OutboundPushHandler delivers one outbound push
type OutboundPushHandler struct {
	service *sync.OutboundService
	logger  ports.Logger
}

// NewOutboundPushHandler creates the handler for sync.outbound jobs
func NewOutboundPushHandler(service *sync.OutboundService, logger ports.Logger) *OutboundPushHandler {
	return &OutboundPushHandler{service: service, logger: logger}
}

// Handle decodes and processes one outbound push job
func (h *OutboundPushHandler) Handle(ctx context.Context, data []byte) error {
	var job ports.OutboundJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode outbound push job", err)
	}

	started := time.Now()
	err := h.service.Process(ctx, job)
	elapsed := time.Since(started).Seconds()

	status := "completed"
	outcome := "ok"
	if err != nil {
		status = "failed"
		outcome = outcomeLabel(err)
	}
	observability.RecordOutboundPush(job.SourceSystem, job.Action, status)
	observability.RecordJob(ports.JobTypeOutboundPush, outcome, elapsed)
	return err
}

// outcomeLabel classifies an error for the job outcome metric. The label
// mirrors the transport's ack/nack decision.
func outcomeLabel(err error) string {
	if domain.IsRetryable(err) {
		return "retryable_error"
	}
	return "terminal_error"
}

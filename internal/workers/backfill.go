package workers

import (
	"context"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// backfillGrace is how long a freshly created case is left alone before the
// backfill considers its collection job lost. Keeps the backfill from racing
// the normal publish path.
const backfillGrace = 10 * time.Minute

// EvidenceBackfill re-enqueues evidence collection for open cases that never
// got their evidence assembled. The inbound path publishes a collection job
// on case creation; when that publish fails or the job is dropped by the
// transport, this sweep picks the case up on the next tick.
type EvidenceBackfill struct {
	caseRepo  ports.DisputeCaseRepository
	publisher ports.JobPublisher
	logger    ports.Logger
	batchSize int32
}

// NewEvidenceBackfill creates the periodic evidence backfill sweep
func NewEvidenceBackfill(caseRepo ports.DisputeCaseRepository, publisher ports.JobPublisher, logger ports.Logger, batchSize int32) *EvidenceBackfill {
	return &EvidenceBackfill{
		caseRepo:  caseRepo,
		publisher: publisher,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Run executes one sweep. Publish failures are logged and left for the next
// tick; the collection job is idempotent so a duplicate enqueue is harmless.
func (b *EvidenceBackfill) Run(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-backfillGrace)
	cases, err := b.caseRepo.ListAwaitingEvidence(ctx, nil, cutoff, b.batchSize)
	if err != nil {
		b.logger.Error("evidence backfill list failed", ports.Err(err))
		return
	}
	if len(cases) == 0 {
		return
	}

	enqueued := 0
	for _, disputeCase := range cases {
		if ctx.Err() != nil {
			return
		}
		job := ports.NewEvidenceCollectionJob(disputeCase)
		if err := b.publisher.PublishEvidenceCollection(ctx, job); err != nil {
			b.logger.Error("evidence backfill enqueue failed",
				ports.String("case_number", disputeCase.CaseNumber),
				ports.Err(err))
			continue
		}
		enqueued++
	}

	b.logger.Info("evidence backfill sweep finished",
		ports.Int("eligible", len(cases)),
		ports.Int("enqueued", enqueued))
}

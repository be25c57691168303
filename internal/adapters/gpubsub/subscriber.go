package gpubsub

import (
	"context"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// JobHandler processes one raw job payload of a single job type
type JobHandler func(ctx context.Context, data []byte) error

// Subscriber pulls jobs from a subscription and dispatches them by type.
// Retryable failures are nacked for redelivery; config errors and
// terminal failures are acked so a bad message cannot poison the
// subscription.
type Subscriber struct {
	sub      *pubsub.Subscription
	handlers map[string]JobHandler
	logger   ports.Logger
}

// NewSubscriber creates a subscriber on the given subscription
func NewSubscriber(client *pubsub.Client, subscription string, maxOutstanding int, logger ports.Logger) *Subscriber {
	sub := client.Subscription(subscription)
	if maxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = maxOutstanding
	}
	return &Subscriber{
		sub:      sub,
		handlers: make(map[string]JobHandler),
		logger:   logger,
	}
}

// Handle registers the handler for a job type. Must be called before Run.
func (s *Subscriber) Handle(jobType string, handler JobHandler) {
	s.handlers[jobType] = handler
}

// Run blocks receiving messages until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context) error {
	return s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		jobType := msg.Attributes[attrJobType]
		handler, ok := s.handlers[jobType]
		if !ok {
			s.logger.Warn("no handler for job type, dropping message",
				ports.String("job_type", jobType),
				ports.String("message_id", msg.ID))
			msg.Ack()
			return
		}

		started := time.Now()
		err := handler(ctx, msg.Data)
		if err == nil {
			msg.Ack()
			s.logger.Debug("job processed",
				ports.String("job_type", jobType),
				ports.Int64("duration_ms", time.Since(started).Milliseconds()))
			return
		}

		if domain.IsRetryable(err) {
			s.logger.Warn("job failed, nacking for redelivery",
				ports.String("job_type", jobType),
				ports.String("message_id", msg.ID),
				ports.Err(err))
			msg.Nack()
			return
		}

		// Config errors, not-found outcomes, and other terminal failures
		// are acked; redelivery would fail the same way.
		s.logger.Error("job failed terminally, acking",
			ports.String("job_type", jobType),
			ports.String("message_id", msg.ID),
			ports.Err(err))
		msg.Ack()
	})
}

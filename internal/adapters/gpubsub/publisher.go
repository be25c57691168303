// Package gpubsub carries reconciliation jobs over Google Cloud Pub/Sub.
// All job types share one topic; a "type" attribute routes each message to
// the right handler on the consuming side.
package gpubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

const attrJobType = "type"

// NewClient builds a Pub/Sub client. Explicit JSON credentials take
// precedence; otherwise application default credentials are used.
func NewClient(ctx context.Context, projectID, credentialsJSON string) (*pubsub.Client, error) {
	if credentialsJSON != "" {
		return pubsub.NewClient(ctx, projectID, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	return pubsub.NewClient(ctx, projectID)
}

// Publisher implements ports.JobPublisher on a single Pub/Sub topic
type Publisher struct {
	topic  *pubsub.Topic
	logger ports.Logger
}

// NewPublisher creates a publisher bound to the given topic
func NewPublisher(client *pubsub.Client, topicName string, logger ports.Logger) *Publisher {
	return &Publisher{
		topic:  client.Topic(topicName),
		logger: logger,
	}
}

// PublishEvidenceCollection enqueues an evidence collection job
func (p *Publisher) PublishEvidenceCollection(ctx context.Context, job ports.EvidenceCollectionJob) error {
	return p.publish(ctx, ports.JobTypeEvidenceCollection, job)
}

// PublishInboundSync enqueues an inbound sync job
func (p *Publisher) PublishInboundSync(ctx context.Context, job ports.InboundSyncJob) error {
	return p.publish(ctx, ports.JobTypeInboundSync, job)
}

// PublishOutbound enqueues an outbound push job
func (p *Publisher) PublishOutbound(ctx context.Context, job ports.OutboundJob) error {
	return p.publish(ctx, ports.JobTypeOutboundPush, job)
}

func (p *Publisher) publish(ctx context.Context, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError,
			fmt.Sprintf("marshal %s job", jobType), err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{attrJobType: jobType},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeAdapterUnavailable,
			fmt.Sprintf("publish %s job", jobType), err)
	}

	p.logger.Debug("job published",
		ports.String("job_type", jobType),
		ports.String("message_id", id))
	return nil
}

// Stop flushes pending publishes. Call during shutdown.
func (p *Publisher) Stop() {
	p.topic.Stop()
}

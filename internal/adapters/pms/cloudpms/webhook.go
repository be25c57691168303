package cloudpms

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// webhookEnvelope is the CloudPMS webhook wire format
type webhookEnvelope struct {
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// ParseWebhookPayload decodes an inbound CloudPMS webhook body
func (a *Adapter) ParseWebhookPayload(headers map[string]string, body []byte) (*ports.WebhookEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode webhook envelope", err)
	}
	if envelope.Event == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload,
			"webhook envelope missing event type")
	}

	ts := time.Now().UTC()
	if envelope.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, envelope.Timestamp); err == nil {
			ts = parsed.UTC()
		}
	}

	return &ports.WebhookEvent{
		EventType: envelope.Event,
		Data:      envelope.Data,
		Timestamp: ts,
	}, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 hex signature CloudPMS sends
// with each webhook. A "sha256=" prefix is tolerated.
func (a *Adapter) VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	signature = strings.TrimPrefix(signature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

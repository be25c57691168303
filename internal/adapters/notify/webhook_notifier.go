package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
)

// Notification event types posted to the review endpoint
const (
	eventManualReview      = "case.manual_review"
	eventEvidenceCollected = "case.evidence_collected"
	eventConflictEscalated = "case.conflict_escalated"
)

// WebhookNotifier implements ports.Notifier by posting signed JSON events
// to a review tooling endpoint. Deliveries are single-shot; callers already
// treat notification failures as non-fatal, so there is no retry loop here.
type WebhookNotifier struct {
	endpoint   string
	secret     string
	httpClient *http.Client
	logger     ports.Logger
}

// NewWebhookNotifier creates a webhook-based notifier
func NewWebhookNotifier(endpoint, secret string, logger ports.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		endpoint: endpoint,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type notificationEvent struct {
	EventType  string                 `json:"event_type"`
	Timestamp  time.Time              `json:"timestamp"`
	CaseNumber string                 `json:"case_number"`
	PropertyID string                 `json:"property_id"`
	Detail     map[string]interface{} `json:"detail"`
}

// NotifyManualReview posts a manual review routing event
func (n *WebhookNotifier) NotifyManualReview(ctx context.Context, disputeCase *models.DisputeCase, reason string) error {
	return n.deliver(ctx, buildEvent(eventManualReview, disputeCase, map[string]interface{}{
		"reason": reason,
	}))
}

// NotifyEvidenceCollected posts an evidence-package-ready event
func (n *WebhookNotifier) NotifyEvidenceCollected(ctx context.Context, disputeCase *models.DisputeCase, collected int) error {
	return n.deliver(ctx, buildEvent(eventEvidenceCollected, disputeCase, map[string]interface{}{
		"items_collected": collected,
	}))
}

// EscalateConflict posts an administrative escalation event
func (n *WebhookNotifier) EscalateConflict(ctx context.Context, disputeCase *models.DisputeCase, conflicts []models.FieldConflict) error {
	return n.deliver(ctx, buildEvent(eventConflictEscalated, disputeCase, map[string]interface{}{
		"conflicts": conflicts,
	}))
}

func buildEvent(eventType string, disputeCase *models.DisputeCase, detail map[string]interface{}) notificationEvent {
	event := notificationEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Detail:    detail,
	}
	if disputeCase != nil {
		event.CaseNumber = disputeCase.CaseNumber
		event.PropertyID = disputeCase.PropertyID
	}
	return event
}

func (n *WebhookNotifier) deliver(ctx context.Context, event notificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", n.sign(payload))
	req.Header.Set("X-Webhook-Event-Type", event.EventType)
	req.Header.Set("X-Webhook-Timestamp", event.Timestamp.Format(time.RFC3339))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	n.logger.Debug("notification delivered",
		ports.String("event_type", event.EventType),
		ports.String("case_number", event.CaseNumber))
	return nil
}

// sign creates the HMAC-SHA256 hex signature of the payload
func (n *WebhookNotifier) sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(n.secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

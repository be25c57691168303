// Package cloudpms implements the adapter for the CloudPMS property
// management system (REST API v1).
package cloudpms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/stayguard/chargeback-service/internal/adapters/pms"
	"github.com/stayguard/chargeback-service/internal/domain"
	"github.com/stayguard/chargeback-service/internal/domain/models"
	"github.com/stayguard/chargeback-service/internal/domain/ports"
	"github.com/stayguard/chargeback-service/pkg/resilience"
)

// SourceSystemName is the tag CloudPMS integrations register under
const SourceSystemName = "cloudpms"

// Config contains configuration for the CloudPMS adapter
type Config struct {
	// Base URL, e.g. "https://api.cloudpms.example.com"
	BaseURL string

	// API key sent as X-API-Key on every request
	APIKey string

	// Per-request timeout
	Timeout time.Duration

	// Retry attempts for retryable failures (timeouts, 5xx)
	MaxRetries int
}

// DefaultConfig returns default configuration for the CloudPMS adapter
func DefaultConfig(baseURL, apiKey string) *Config {
	return &Config{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Timeout:    15 * time.Second,
		MaxRetries: 2,
	}
}

// Adapter implements ports.PMSAdapter for CloudPMS
type Adapter struct {
	config  *Config
	client  *http.Client
	breaker *pms.CircuitBreaker
	backoff resilience.BackoffStrategy
	logger  ports.Logger
}

// New creates a CloudPMS adapter
func New(config *Config, logger ports.Logger) *Adapter {
	return &Adapter{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: pms.NewCircuitBreaker(pms.DefaultCircuitBreakerConfig()),
		backoff: resilience.DefaultExponentialBackoff(),
		logger:  logger,
	}
}

// SourceSystem returns the tag identifying CloudPMS
func (a *Adapter) SourceSystem() string {
	return SourceSystemName
}

// SearchReservations queries CloudPMS with whatever criteria are present
func (a *Adapter) SearchReservations(ctx context.Context, criteria models.MatchCriteria) ([]*models.StayRecord, error) {
	params := url.Values{}
	params.Set("hotel_code", criteria.PropertyID)
	if criteria.ConfirmationNumber != "" {
		params.Set("confirmation_no", criteria.ConfirmationNumber)
	}
	if criteria.CardLastFour != "" {
		params.Set("card_last4", criteria.CardLastFour)
	}
	if criteria.GuestName != "" {
		params.Set("guest", criteria.GuestName)
	}
	if criteria.TransactionID != "" {
		params.Set("txn_ref", criteria.TransactionID)
	}
	if criteria.CheckInDate != nil {
		params.Set("arrival_from", criteria.CheckInDate.Format("2006-01-02"))
	}
	if criteria.CheckOutDate != nil {
		params.Set("departure_to", criteria.CheckOutDate.Format("2006-01-02"))
	}

	body, err := a.get(ctx, "/api/v1/reservations/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp struct {
		Reservations []map[string]interface{} `json:"reservations"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode reservation search response", err)
	}

	records := make([]*models.StayRecord, 0, len(resp.Reservations))
	for _, raw := range resp.Reservations {
		rec, err := a.NormalizeReservation(raw)
		if err != nil {
			a.logger.Warn("skipping unparseable reservation in search results",
				ports.Err(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetGuestFolio fetches the charge lines for a reservation
func (a *Adapter) GetGuestFolio(ctx context.Context, externalStayID string) ([]models.FolioItem, error) {
	body, err := a.get(ctx, "/api/v1/reservations/"+url.PathEscape(externalStayID)+"/folio")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Items []map[string]interface{} `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode folio response", err)
	}
	return a.NormalizeFolioItems(resp.Items)
}

// GetReservationDocuments fetches stored documents for a reservation
func (a *Adapter) GetReservationDocuments(ctx context.Context, externalStayID string) ([]models.Document, error) {
	body, err := a.get(ctx, "/api/v1/reservations/"+url.PathEscape(externalStayID)+"/documents")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Documents []struct {
			Kind        string `json:"kind"`
			FileName    string `json:"file_name"`
			ContentType string `json:"content_type"`
			Content     []byte `json:"content"` // base64 in the wire format
		} `json:"documents"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAdapterBadPayload,
			"decode documents response", err)
	}

	docs := make([]models.Document, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		docs = append(docs, models.Document{
			Kind:        d.Kind,
			FileName:    d.FileName,
			ContentType: d.ContentType,
			Content:     d.Content,
		})
	}
	return docs, nil
}

// PushNote attaches a note to the external reservation
func (a *Adapter) PushNote(ctx context.Context, push ports.OutboundPush) error {
	return a.post(ctx, "/api/v1/reservations/"+url.PathEscape(push.ReservationID)+"/notes",
		map[string]string{
			"subject": push.Subject,
			"text":    push.Body,
			"ref":     push.CaseNumber,
		})
}

// PushFlag raises a chargeback flag on the external reservation
func (a *Adapter) PushFlag(ctx context.Context, push ports.OutboundPush) error {
	return a.post(ctx, "/api/v1/reservations/"+url.PathEscape(push.ReservationID)+"/flags",
		map[string]string{
			"flag_type": "chargeback",
			"comment":   push.Body,
			"ref":       push.CaseNumber,
		})
}

// PushChargebackAlert notifies CloudPMS of a new dispute
func (a *Adapter) PushChargebackAlert(ctx context.Context, push ports.OutboundPush) error {
	return a.post(ctx, "/api/v1/alerts/chargeback",
		map[string]string{
			"reservation_id": push.ReservationID,
			"case_ref":       push.CaseNumber,
			"subject":        push.Subject,
			"detail":         push.Body,
		})
}

// PushDisputeOutcome reports a WON/LOST outcome to CloudPMS
func (a *Adapter) PushDisputeOutcome(ctx context.Context, push ports.OutboundPush) error {
	return a.post(ctx, "/api/v1/disputes/"+url.PathEscape(push.CaseNumber)+"/outcome",
		map[string]string{
			"reservation_id": push.ReservationID,
			"outcome":        push.Subject,
			"detail":         push.Body,
		})
}

func (a *Adapter) get(ctx context.Context, path string) ([]byte, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

func (a *Adapter) post(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.WrapError(domain.ErrorCodeInternalError, "marshal request", err)
	}
	_, err = a.do(ctx, http.MethodPost, path, body)
	return err
}

// do executes one request through the circuit breaker with retries on
// retryable failures. 4xx responses are terminal; timeouts and 5xx are
// retried with exponential backoff.
func (a *Adapter) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var respBody []byte

	err := a.breaker.Call(func() error {
		var lastErr error
		for attempt := 0; attempt <= a.config.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := a.backoff.NextDelay(attempt - 1)
				a.logger.Debug("retrying CloudPMS request",
					ports.String("path", path),
					ports.Int("attempt", attempt))
				select {
				case <-ctx.Done():
					return domain.WrapError(domain.ErrorCodeAdapterTimeout,
						"retry cancelled", ctx.Err())
				case <-time.After(delay):
				}
			}

			data, err := a.doOnce(ctx, method, path, body)
			if err == nil {
				respBody = data
				return nil
			}
			lastErr = err
			if !domain.IsRetryable(err) {
				return err
			}
		}
		return lastErr
	})
	if err != nil {
		if errors.Is(err, pms.ErrCircuitOpen) || errors.Is(err, pms.ErrTooManyRequests) {
			return nil, domain.WrapError(domain.ErrorCodeAdapterUnavailable,
				"cloudpms circuit open", err)
		}
		return nil, err
	}
	return respBody, nil
}

func (a *Adapter) doOnce(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeInternalError, "build request", err)
	}
	req.Header.Set("X-API-Key", a.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, domain.WrapError(domain.ErrorCodeAdapterTimeout,
				fmt.Sprintf("cloudpms %s %s timed out", method, path), err)
		}
		return nil, domain.WrapError(domain.ErrorCodeAdapterUnavailable,
			fmt.Sprintf("cloudpms %s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeAdapterUnavailable,
			"read response body", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, nil
	case resp.StatusCode >= 500:
		return nil, domain.NewDomainError(domain.ErrorCodeAdapterUnavailable,
			fmt.Sprintf("cloudpms returned %d for %s %s", resp.StatusCode, method, path))
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.NewDomainError(domain.ErrorCodeEvidenceNotAvailable,
			fmt.Sprintf("cloudpms resource not found: %s", path))
	default:
		return nil, domain.NewDomainError(domain.ErrorCodeAdapterBadPayload,
			fmt.Sprintf("cloudpms rejected %s %s with %d", method, path, resp.StatusCode))
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/scenestudio/internal/logging"
	"github.com/therealutkarshpriyadarshi/scenestudio/internal/metrics"
)

// Webhook request headers
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderSignature = "X-Webhook-Signature"
)

// DeliveryStatus is the state of a webhook delivery
type DeliveryStatus string

// DeliveryStatus constants
const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DefaultRetryDelays is the backoff schedule for failed deliveries
var DefaultRetryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	4 * time.Hour,
	12 * time.Hour,
}

// Payload is the JSON body posted to the webhook
type Payload struct {
	Event     string       `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Data      StatusChange `json:"data"`
}

// Delivery tracks one webhook delivery and its retries
type Delivery struct {
	ID           string
	Event        string
	Payload      []byte
	Status       DeliveryStatus
	StatusCode   int
	ResponseBody string
	RetryCount   int
	NextRetryAt  *time.Time
	CreatedAt    time.Time
	CompletedAt  *time.Time

	attempting bool
}

// Webhook posts status changes to a URL, signed with HMAC-SHA256 when a
// secret is configured. Failed deliveries are retried by RetryWorker.
type Webhook struct {
	client      *http.Client
	url         string
	secret      string
	retryDelays []time.Duration
	logger      *logging.Logger

	mu         sync.Mutex
	deliveries map[string]*Delivery
}

// NewWebhook creates a webhook notifier
func NewWebhook(url, secret string, logger *logging.Logger) *Webhook {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Webhook{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		url:         url,
		secret:      secret,
		retryDelays: DefaultRetryDelays,
		logger:      logger.WithComponent("webhook"),
		deliveries:  make(map[string]*Delivery),
	}
}

// SetRetryDelays replaces the backoff schedule
func (w *Webhook) SetRetryDelays(delays []time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.retryDelays = delays
}

// Notify delivers the change once. A failed attempt is kept for retry and
// its error returned.
func (w *Webhook) Notify(ctx context.Context, change StatusChange) error {
	payload := Payload{
		Event:     change.Event(),
		Timestamp: time.Now().UTC(),
		Data:      change,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	delivery := &Delivery{
		ID:         uuid.New().String(),
		Event:      payload.Event,
		Payload:    payloadBytes,
		Status:     DeliveryPending,
		CreatedAt:  time.Now(),
		attempting: true,
	}

	w.mu.Lock()
	w.deliveries[delivery.ID] = delivery
	w.mu.Unlock()

	return w.deliver(ctx, delivery)
}

// deliver attempts a single delivery
func (w *Webhook) deliver(ctx context.Context, delivery *Delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(delivery.Payload))
	if err != nil {
		return w.markFailed(delivery, 0, fmt.Sprintf("failed to create request: %v", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "SceneStudio-Webhook/1.0")
	req.Header.Set(HeaderEvent, delivery.Event)
	req.Header.Set(HeaderDelivery, delivery.ID)

	if w.secret != "" {
		req.Header.Set(HeaderSignature, Sign(delivery.Payload, w.secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return w.markFailed(delivery, 0, fmt.Sprintf("failed to send request: %v", err))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return w.markFailed(delivery, resp.StatusCode, string(body))
	}

	w.mu.Lock()
	delivery.Status = DeliveryDelivered
	delivery.StatusCode = resp.StatusCode
	delivery.ResponseBody = string(body)
	now := time.Now()
	delivery.CompletedAt = &now
	delivery.NextRetryAt = nil
	delivery.attempting = false
	w.mu.Unlock()

	metrics.RecordNotification("webhook", nil)
	return nil
}

// markFailed records a failed attempt and schedules the next retry
func (w *Webhook) markFailed(delivery *Delivery, statusCode int, responseBody string) error {
	w.mu.Lock()
	delivery.StatusCode = statusCode
	delivery.ResponseBody = responseBody
	delivery.RetryCount++
	delivery.attempting = false

	if delivery.RetryCount <= len(w.retryDelays) {
		nextRetry := time.Now().Add(w.retryDelays[delivery.RetryCount-1])
		delivery.NextRetryAt = &nextRetry
		delivery.Status = DeliveryPending
	} else {
		delivery.Status = DeliveryFailed
		delivery.NextRetryAt = nil
		now := time.Now()
		delivery.CompletedAt = &now
	}
	status := delivery.Status
	w.mu.Unlock()

	err := fmt.Errorf("webhook delivery %s failed (status %d): %s", delivery.ID, statusCode, responseBody)
	metrics.RecordNotification("webhook", err)
	w.logger.WithField("delivery_id", delivery.ID).
		WithField("delivery_status", string(status)).
		ErrorWithErr("webhook delivery failed", err)
	return err
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign
func Verify(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

// Deliveries returns copies of all tracked deliveries
func (w *Webhook) Deliveries() []Delivery {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Delivery, 0, len(w.deliveries))
	for _, d := range w.deliveries {
		out = append(out, *d)
	}
	return out
}

// RetryWorker retries pending deliveries until ctx is done
func (w *Webhook) RetryWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RetryPending(ctx)
		}
	}
}

// RetryPending retries every pending delivery whose backoff has elapsed
// and forgets finished ones
func (w *Webhook) RetryPending(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var due []*Delivery
	for id, d := range w.deliveries {
		switch d.Status {
		case DeliveryDelivered, DeliveryFailed:
			delete(w.deliveries, id)
		case DeliveryPending:
			if d.attempting {
				continue
			}
			if d.NextRetryAt == nil || !now.Before(*d.NextRetryAt) {
				d.attempting = true
				due = append(due, d)
			}
		}
	}
	w.mu.Unlock()

	for _, d := range due {
		_ = w.deliver(ctx, d)
	}
}

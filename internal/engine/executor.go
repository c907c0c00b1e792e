package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/agenthublabs/agenthooks/internal/domain"
	"github.com/google/uuid"
)

const userAgent = "AgentHub-Webhooks/1.0"

// Outgoing webhook headers. HeaderDelivery carries a fresh UUID per attempt
// so receivers can deduplicate; it is independent of the ledger row id.
const (
	HeaderEvent     = "X-AgentHub-Event"
	HeaderDelivery  = "X-AgentHub-Delivery"
	HeaderSignature = "X-AgentHub-Signature"
	HeaderRetry     = "X-AgentHub-Retry"
)

// Response bodies are captured best-effort, limited to 1KB.
const maxResponseBytes = 1024

// deliveryEnvelope is the wire format POSTed to subscriber endpoints.
type deliveryEnvelope struct {
	Event     string          `json:"event"`
	AgentID   string          `json:"agent_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// Executor performs single outbound webhook calls with a bounded timeout.
type Executor struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewExecutor(timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Execute POSTs one event to a subscription endpoint and returns the
// outcome. It never returns a Go error: a non-2xx response is a
// failed-but-completed attempt with the status captured, and a transport
// failure (DNS, refused connection, timeout) is recorded as status code 0
// with the error message. Webhook delivery failure is business-as-usual
// here, not a fault.
func (e *Executor) Execute(ctx context.Context, sub domain.Subscription, eventName string, payload json.RawMessage, isRetry bool, originalDeliveryID string) domain.DeliveryResult {
	result := domain.DeliveryResult{
		SubscriptionID:     sub.ID,
		DeliveryID:         uuid.NewString(),
		Event:              eventName,
		AgentID:            sub.AgentID,
		Payload:            payload,
		IsRetry:            isRetry,
		OriginalDeliveryID: originalDeliveryID,
	}

	body, err := json.Marshal(deliveryEnvelope{
		Event:     eventName,
		AgentID:   sub.AgentID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      payload,
	})
	if err != nil {
		result.Error = fmt.Sprintf("encoding envelope: %v", err)
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		result.Error = fmt.Sprintf("building request: %v", err)
		return result
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderEvent, eventName)
	req.Header.Set(HeaderDelivery, result.DeliveryID)
	if sub.Secret != "" {
		// Signature is computed over the same bytes that go on the wire
		req.Header.Set(HeaderSignature, Sign(body, sub.Secret))
	}
	if isRetry {
		req.Header.Set(HeaderRetry, "true")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	result.StatusCode = resp.StatusCode
	result.ResponseBody = string(respBody)
	result.Success = resp.StatusCode >= 200 && resp.StatusCode <= 299

	return result
}

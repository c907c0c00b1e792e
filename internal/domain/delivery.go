package domain

import (
	"encoding/json"
	"time"
)

// DeliveryAttempt is one persisted record of a single outbound call.
// Rows are append-only: a retry produces a new row linked through
// OriginalDeliveryID, never an update to an existing one.
type DeliveryAttempt struct {
	ID                 string          `json:"id"`
	SubscriptionID     string          `json:"subscription_id"`
	Event              string          `json:"event"`
	Payload            json.RawMessage `json:"payload"`
	StatusCode         int             `json:"status_code"`
	Success            bool            `json:"success"`
	ResponseBody       *string         `json:"response_body,omitempty"`
	Error              *string         `json:"error,omitempty"`
	IsRetry            bool            `json:"is_retry"`
	OriginalDeliveryID *string         `json:"original_delivery_id,omitempty"`
	DeliveredAt        time.Time       `json:"delivered_at"`
}

// DeliveryResult is the outcome of a single outbound call. Both HTTP-level
// failures (non-2xx) and transport-level failures (StatusCode 0, Error set)
// are ordinary data here, never Go errors.
type DeliveryResult struct {
	SubscriptionID     string          `json:"subscription_id"`
	DeliveryID         string          `json:"delivery_id"`
	Event              string          `json:"event"`
	AgentID            string          `json:"agent_id"`
	Payload            json.RawMessage `json:"-"`
	StatusCode         int             `json:"status_code"`
	Success            bool            `json:"success"`
	ResponseBody       string          `json:"response_body,omitempty"`
	Error              string          `json:"error,omitempty"`
	IsRetry            bool            `json:"is_retry"`
	OriginalDeliveryID string          `json:"original_delivery_id,omitempty"`
}

package domain

import (
	"time"
)

// Subscription is an owner-registered webhook endpoint scoped to a single
// agent. Inactive subscriptions stay queryable and editable but are never
// considered for dispatch.
type Subscription struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	AgentID   string    `json:"agent_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateWebhookRequest struct {
	AgentID  string   `json:"agentId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
	IsActive *bool    `json:"isActive,omitempty"`
}

type UpdateWebhookRequest struct {
	WebhookID string   `json:"webhookId"`
	URL       *string  `json:"url,omitempty"`
	Events    []string `json:"events,omitempty"`
	Secret    *string  `json:"secret,omitempty"`
	IsActive  *bool    `json:"isActive,omitempty"`
}

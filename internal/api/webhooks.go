package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/agenthublabs/agenthooks/internal/domain"
	"github.com/agenthublabs/agenthooks/internal/telemetry"
)

// SubscriptionStore is the registry/ledger surface the handler needs.
type SubscriptionStore interface {
	CreateWebhook(ctx context.Context, ownerID string, req domain.CreateWebhookRequest) (*domain.Subscription, error)
	UpdateWebhook(ctx context.Context, id, ownerID string, req domain.UpdateWebhookRequest) (*domain.Subscription, error)
	DeleteWebhook(ctx context.Context, id, ownerID string) error
	ListWebhooks(ctx context.Context, agentID, ownerID string) ([]domain.Subscription, error)
	GetWebhook(ctx context.Context, id, ownerID string) (*domain.Subscription, error)
	ListDeliveries(ctx context.Context, subscriptionID string, limit int) ([]domain.DeliveryAttempt, error)
}

// Dispatcher fans one event out to all matching subscriptions.
type Dispatcher interface {
	Dispatch(ctx context.Context, agentID, eventName string, payload json.RawMessage) ([]domain.DeliveryResult, error)
}

// Retrier re-drives a prior delivery attempt.
type Retrier interface {
	Retry(ctx context.Context, deliveryID, ownerID string) (*domain.DeliveryResult, error)
}

type WebhookHandler struct {
	store      SubscriptionStore
	dispatcher Dispatcher
	retrier    Retrier
	usage      *telemetry.UsageRecorder
}

func NewWebhookHandler(store SubscriptionStore, dispatcher Dispatcher, retrier Retrier, usage *telemetry.UsageRecorder) *WebhookHandler {
	return &WebhookHandler{
		store:      store,
		dispatcher: dispatcher,
		retrier:    retrier,
		usage:      usage,
	}
}

type envelope struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

// Handle is the single entry point for webhook management and dispatch.
// Each action decodes into its own typed request; the switch is the full
// set of recognized actions.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var env envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ownerID := ownerFromContext(r.Context())

	switch env.Action {
	case "createWebhook":
		h.createWebhook(w, r, ownerID, env.Data)
	case "updateWebhook":
		h.updateWebhook(w, r, ownerID, env.Data)
	case "deleteWebhook":
		h.deleteWebhook(w, r, ownerID, env.Data)
	case "triggerWebhook":
		h.triggerWebhook(w, r, env.Data)
	case "getWebhooks":
		h.getWebhooks(w, r, ownerID, env.Data)
	case "getDeliveries":
		h.getDeliveries(w, r, ownerID, env.Data)
	case "retryDelivery":
		h.retryDelivery(w, r, ownerID, env.Data)
	default:
		respondError(w, http.StatusBadRequest, "Invalid action")
		return
	}

	// Best-effort usage telemetry, after the response is written
	h.usage.RecordAsync(env.Action)
}

func (h *WebhookHandler) createWebhook(w http.ResponseWriter, r *http.Request, ownerID string, data json.RawMessage) {
	var req domain.CreateWebhookRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}

	sub, err := h.store.CreateWebhook(r.Context(), ownerID, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"webhook": sub})
}

func (h *WebhookHandler) updateWebhook(w http.ResponseWriter, r *http.Request, ownerID string, data json.RawMessage) {
	var req domain.UpdateWebhookRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}
	if req.WebhookID == "" {
		respondError(w, http.StatusBadRequest, "webhookId is required")
		return
	}

	sub, err := h.store.UpdateWebhook(r.Context(), req.WebhookID, ownerID, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"webhook": sub})
}

type deleteWebhookRequest struct {
	WebhookID string `json:"webhookId"`
}

func (h *WebhookHandler) deleteWebhook(w http.ResponseWriter, r *http.Request, ownerID string, data json.RawMessage) {
	var req deleteWebhookRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}
	if req.WebhookID == "" {
		respondError(w, http.StatusBadRequest, "webhookId is required")
		return
	}

	if err := h.store.DeleteWebhook(r.Context(), req.WebhookID, ownerID); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type triggerWebhookRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	AgentID string          `json:"agentId"`
}

// triggerWebhook always answers 200 with a deliveries array, even when every
// individual delivery failed. Only infrastructure faults produce a non-200.
func (h *WebhookHandler) triggerWebhook(w http.ResponseWriter, r *http.Request, data json.RawMessage) {
	var req triggerWebhookRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}
	if req.Event == "" {
		respondError(w, http.StatusBadRequest, "event is required")
		return
	}
	if len(req.Payload) == 0 || !json.Valid(req.Payload) {
		respondError(w, http.StatusBadRequest, "payload must be valid JSON")
		return
	}

	deliveries, err := h.dispatcher.Dispatch(r.Context(), req.AgentID, req.Event, req.Payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deliveries": deliveries})
}

type getWebhooksRequest struct {
	AgentID string `json:"agentId"`
}

func (h *WebhookHandler) getWebhooks(w http.ResponseWriter, r *http.Request, ownerID string, data json.RawMessage) {
	var req getWebhooksRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}

	webhooks, err := h.store.ListWebhooks(r.Context(), req.AgentID, ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"webhooks": webhooks})
}

type getDeliveriesRequest struct {
	WebhookID string `json:"webhookId"`
	Limit     int    `json:"limit,omitempty"`
}

func (h *WebhookHandler) getDeliveries(w http.ResponseWriter, r *http.Request, ownerID string, data json.RawMessage) {
	var req getDeliveriesRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}
	if req.WebhookID == "" {
		respondError(w, http.StatusBadRequest, "webhookId is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 50
	}

	// Ownership check: the ledger itself is not owner-scoped
	if _, err := h.store.GetWebhook(r.Context(), req.WebhookID, ownerID); err != nil {
		respondDomainError(w, err)
		return
	}

	deliveries, err := h.store.ListDeliveries(r.Context(), req.WebhookID, req.Limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deliveries": deliveries})
}

type retryDeliveryRequest struct {
	DeliveryID string `json:"deliveryId"`
}

func (h *WebhookHandler) retryDelivery(w http.ResponseWriter, r *http.Request, ownerID string, data json.RawMessage) {
	var req retryDeliveryRequest
	if err := json.Unmarshal(data, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid data")
		return
	}
	if req.DeliveryID == "" {
		respondError(w, http.StatusBadRequest, "deliveryId is required")
		return
	}

	delivery, err := h.retrier.Retry(r.Context(), req.DeliveryID, ownerID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"delivery": delivery})
}

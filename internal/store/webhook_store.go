package store

import (
	"context"
	"fmt"

	"github.com/agenthublabs/agenthooks/internal/domain"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = "id, owner_id, agent_id, url, events, secret, is_active, created_at"

// CreateWebhook registers a new subscription for the given owner.
// The endpoint URL is not probed for reachability here.
func (s *PostgresStore) CreateWebhook(ctx context.Context, ownerID string, req domain.CreateWebhookRequest) (*domain.Subscription, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrValidation)
	}
	if len(req.Events) == 0 {
		return nil, fmt.Errorf("%w: at least one event is required", domain.ErrValidation)
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_subscriptions (owner_id, agent_id, url, events, secret, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING `+subscriptionColumns+`
	`, ownerID, req.AgentID, req.URL, req.Events, req.Secret, isActive)

	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("inserting subscription: %w", err)
	}

	return sub, nil
}

// GetWebhook loads a subscription by id, scoped to its owner. A foreign or
// absent id is indistinguishable to the caller: both are ErrNotFound.
func (s *PostgresStore) GetWebhook(ctx context.Context, id, ownerID string) (*domain.Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions WHERE id = $1 AND owner_id = $2
	`, id, ownerID)

	sub, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("querying subscription: %w", err)
	}
	return sub, nil
}

// UpdateWebhook applies the non-nil fields of req to an owned subscription.
func (s *PostgresStore) UpdateWebhook(ctx context.Context, id, ownerID string, req domain.UpdateWebhookRequest) (*domain.Subscription, error) {
	// Build dynamic update query
	setClauses := []string{}
	args := []interface{}{}
	argIdx := 1

	if req.URL != nil {
		if *req.URL == "" {
			return nil, fmt.Errorf("%w: url is required", domain.ErrValidation)
		}
		setClauses = append(setClauses, fmt.Sprintf("url = $%d", argIdx))
		args = append(args, *req.URL)
		argIdx++
	}
	if req.Events != nil {
		if len(req.Events) == 0 {
			return nil, fmt.Errorf("%w: at least one event is required", domain.ErrValidation)
		}
		setClauses = append(setClauses, fmt.Sprintf("events = $%d", argIdx))
		args = append(args, req.Events)
		argIdx++
	}
	if req.Secret != nil {
		setClauses = append(setClauses, fmt.Sprintf("secret = NULLIF($%d, '')", argIdx))
		args = append(args, *req.Secret)
		argIdx++
	}
	if req.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *req.IsActive)
		argIdx++
	}

	if len(setClauses) == 0 {
		return s.GetWebhook(ctx, id, ownerID)
	}

	query := fmt.Sprintf(`
		UPDATE webhook_subscriptions SET %s
		WHERE id = $%d AND owner_id = $%d
		RETURNING `+subscriptionColumns+`
	`, joinStrings(setClauses, ", "), argIdx, argIdx+1)
	args = append(args, id, ownerID)

	row := s.pool.QueryRow(ctx, query, args...)

	sub, err := scanSubscription(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("updating subscription: %w", err)
	}

	return sub, nil
}

// DeleteWebhook removes an owned subscription. Deleting a foreign or absent
// id is an error, not a no-op. Ledger rows referencing the subscription are
// kept for audit.
func (s *PostgresStore) DeleteWebhook(ctx context.Context, id, ownerID string) error {
	result, err := s.pool.Exec(ctx, `
		DELETE FROM webhook_subscriptions WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("subscription %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListWebhooks returns all of an owner's subscriptions for an agent,
// active or not.
func (s *PostgresStore) ListWebhooks(ctx context.Context, agentID, ownerID string) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions
		WHERE agent_id = $1 AND owner_id = $2
		ORDER BY created_at DESC
	`, agentID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

// ListActiveForEvent returns the dispatch candidates for an event: active
// subscriptions on the agent whose event set contains eventName. Order is
// unspecified.
func (s *PostgresStore) ListActiveForEvent(ctx context.Context, agentID, eventName string) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM webhook_subscriptions
		WHERE agent_id = $1 AND is_active = TRUE AND $2 = ANY(events)
	`, agentID, eventName)
	if err != nil {
		return nil, fmt.Errorf("querying matching subscriptions: %w", err)
	}
	defer rows.Close()

	return scanSubscriptions(rows)
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var secret *string
	err := row.Scan(
		&sub.ID, &sub.OwnerID, &sub.AgentID, &sub.URL, &sub.Events,
		&secret, &sub.IsActive, &sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if secret != nil {
		sub.Secret = *secret
	}
	return &sub, nil
}

func scanSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading subscriptions: %w", err)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}

	return subs, nil
}

func joinStrings(strs []string, sep string) string {
	result := ""
	for i, s := range strs {
		if i > 0 {
			result += sep
		}
		result += s
	}
	return result
}

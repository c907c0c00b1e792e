package store

import (
	"context"
	"fmt"

	"github.com/agenthublabs/agenthooks/internal/domain"
	"github.com/jackc/pgx/v5"
)

const deliveryColumns = "id, subscription_id, event, payload, status_code, success, response_body, error, is_retry, original_delivery_id, delivered_at"

// RecordDelivery appends a delivery attempt to the ledger and returns the
// stored row. This is the only write path for webhook_deliveries; rows are
// never updated or deleted afterwards.
func (s *PostgresStore) RecordDelivery(ctx context.Context, res domain.DeliveryResult) (*domain.DeliveryAttempt, error) {
	var respBody *string
	if res.ResponseBody != "" {
		respBody = &res.ResponseBody
	}

	var errMsg *string
	if res.Error != "" {
		errMsg = &res.Error
	}

	var originalID *string
	if res.OriginalDeliveryID != "" {
		originalID = &res.OriginalDeliveryID
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO webhook_deliveries (subscription_id, event, payload, status_code, success, response_body, error, is_retry, original_delivery_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+deliveryColumns+`
	`, res.SubscriptionID, res.Event, res.Payload, res.StatusCode, res.Success,
		respBody, errMsg, res.IsRetry, originalID)

	attempt, err := scanDelivery(row)
	if err != nil {
		return nil, fmt.Errorf("inserting delivery attempt: %w", err)
	}

	return attempt, nil
}

// ListDeliveries returns attempts for a subscription, most recent first.
func (s *PostgresStore) ListDeliveries(ctx context.Context, subscriptionID string, limit int) ([]domain.DeliveryAttempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries
		WHERE subscription_id = $1
		ORDER BY delivered_at DESC
		LIMIT $2
	`, subscriptionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.DeliveryAttempt
	for rows.Next() {
		attempt, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, *attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading delivery attempts: %w", err)
	}

	if attempts == nil {
		attempts = []domain.DeliveryAttempt{}
	}

	return attempts, nil
}

// GetDelivery returns a single delivery attempt by id.
func (s *PostgresStore) GetDelivery(ctx context.Context, id string) (*domain.DeliveryAttempt, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+`
		FROM webhook_deliveries WHERE id = $1
	`, id)

	attempt, err := scanDelivery(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("delivery %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("querying delivery attempt: %w", err)
	}
	return attempt, nil
}

func scanDelivery(row pgx.Row) (*domain.DeliveryAttempt, error) {
	var a domain.DeliveryAttempt
	err := row.Scan(
		&a.ID, &a.SubscriptionID, &a.Event, &a.Payload,
		&a.StatusCode, &a.Success, &a.ResponseBody, &a.Error,
		&a.IsRetry, &a.OriginalDeliveryID, &a.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agenthublabs/agenthooks/internal/domain"
)

// RetryCoordinator re-drives a prior delivery attempt on demand. There is no
// automatic scheduling: every retry is externally triggered, and a failed
// attempt may be retried any number of times.
type RetryCoordinator struct {
	registry Registry
	ledger   Ledger
	executor *Executor
	logger   *slog.Logger
}

func NewRetryCoordinator(registry Registry, ledger Ledger, executor *Executor, logger *slog.Logger) *RetryCoordinator {
	return &RetryCoordinator{
		registry: registry,
		ledger:   ledger,
		executor: executor,
		logger:   logger,
	}
}

// Retry re-executes the delivery recorded at deliveryID: same subscription,
// same payload, fresh delivery identifier and retry marker. Authorization is
// by ownership of the targeted subscription, not of the delivery row. The
// outcome is appended as a new ledger row linked to the original, which is
// left untouched.
func (r *RetryCoordinator) Retry(ctx context.Context, deliveryID, ownerID string) (*domain.DeliveryResult, error) {
	attempt, err := r.ledger.GetDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}

	sub, err := r.registry.GetWebhook(ctx, attempt.SubscriptionID, ownerID)
	if err != nil {
		return nil, err
	}

	// Like dispatch, a started retry runs to completion regardless of
	// caller cancellation; the executor's timeout is the only bound.
	ctx = context.WithoutCancel(ctx)

	res := r.executor.Execute(ctx, *sub, attempt.Event, attempt.Payload, true, attempt.ID)

	if _, err := r.ledger.RecordDelivery(ctx, res); err != nil {
		return nil, fmt.Errorf("recording retry attempt: %w", err)
	}

	r.logger.Info("delivery retried",
		"original_delivery_id", attempt.ID,
		"subscription_id", sub.ID,
		"event", attempt.Event,
		"success", res.Success,
		"status_code", res.StatusCode,
	)

	return &res, nil
}

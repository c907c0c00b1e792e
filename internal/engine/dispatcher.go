package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agenthublabs/agenthooks/internal/domain"
)

// Registry is the subscription source the engine dispatches against.
type Registry interface {
	ListActiveForEvent(ctx context.Context, agentID, eventName string) ([]domain.Subscription, error)
	GetWebhook(ctx context.Context, id, ownerID string) (*domain.Subscription, error)
}

// Ledger is the append-only record of delivery attempts.
type Ledger interface {
	RecordDelivery(ctx context.Context, res domain.DeliveryResult) (*domain.DeliveryAttempt, error)
	GetDelivery(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
}

// Dispatcher fans an event out to every matching active subscription,
// running the sign→execute→record pipeline for each one independently.
type Dispatcher struct {
	registry      Registry
	ledger        Ledger
	executor      *Executor
	logger        *slog.Logger
	maxConcurrent int
}

func NewDispatcher(registry Registry, ledger Ledger, executor *Executor, logger *slog.Logger, maxConcurrent int) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		registry:      registry,
		ledger:        ledger,
		executor:      executor,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}
}

// Dispatch delivers one event to all matching subscriptions and returns one
// result per candidate. Candidates are snapshotted up front: a concurrent
// edit to a subscription does not affect already-started deliveries.
// Individual delivery failures are data in the results; the returned error
// is non-nil only when the registry or ledger itself fails.
func (d *Dispatcher) Dispatch(ctx context.Context, agentID, eventName string, payload json.RawMessage) ([]domain.DeliveryResult, error) {
	subs, err := d.registry.ListActiveForEvent(ctx, agentID, eventName)
	if err != nil {
		return nil, fmt.Errorf("loading matching subscriptions: %w", err)
	}

	if len(subs) == 0 {
		d.logger.Info("no matching subscriptions", "agent_id", agentID, "event", eventName)
		return []domain.DeliveryResult{}, nil
	}

	// Once fan-out starts it runs to completion: there is no coordinated
	// cancellation of the whole event, so a caller disconnect must not
	// abort in-flight sibling deliveries or their ledger writes. Each
	// delivery stays bounded by the executor's own timeout.
	ctx = context.WithoutCancel(ctx)

	// Fan-out is total and uncoupled: a slow or unreachable endpoint must
	// not block or fail delivery to other subscribers. Concurrency is
	// bounded to keep outbound connections in check.
	results := make([]domain.DeliveryResult, len(subs))
	recordErrs := make([]error, len(subs))
	sem := make(chan struct{}, d.maxConcurrent)
	var wg sync.WaitGroup

	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub domain.Subscription) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := d.executor.Execute(ctx, sub, eventName, payload, false, "")

			// Every attempt is recorded, success or not
			if _, err := d.ledger.RecordDelivery(ctx, res); err != nil {
				d.logger.Error("failed to record delivery attempt",
					"error", err,
					"subscription_id", sub.ID,
					"event", eventName,
				)
				recordErrs[i] = err
			}

			if res.Success {
				d.logger.Info("delivery successful",
					"subscription_id", sub.ID,
					"event", eventName,
					"status_code", res.StatusCode,
				)
			} else {
				d.logger.Warn("delivery failed",
					"subscription_id", sub.ID,
					"event", eventName,
					"status_code", res.StatusCode,
					"error", res.Error,
				)
			}

			results[i] = res
		}(i, sub)
	}

	wg.Wait()

	return results, errors.Join(recordErrs...)
}

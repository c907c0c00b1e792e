package telemetry

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const usageKey = "usage:actions"

// UsageRecorder keeps best-effort per-action usage counters in Redis.
// It is not part of the delivery correctness contract: increments run after
// the response is written, with no ordering guarantee relative to the
// response and no guarantee they complete before shutdown.
type UsageRecorder struct {
	client  *redis.Client
	logger  *slog.Logger
	timeout time.Duration
}

func NewUsageRecorder(client *redis.Client, logger *slog.Logger) *UsageRecorder {
	return &UsageRecorder{
		client:  client,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

// Record increments the counter for one action.
func (u *UsageRecorder) Record(ctx context.Context, action string) error {
	return u.client.HIncrBy(ctx, usageKey, action, 1).Err()
}

// RecordAsync spawns a fire-and-forget increment. Safe to call on a nil
// recorder (telemetry disabled).
func (u *UsageRecorder) RecordAsync(action string) {
	if u == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
		defer cancel()
		if err := u.Record(ctx, action); err != nil {
			u.logger.Warn("failed to record usage", "action", action, "error", err)
		}
	}()
}

// Counts returns the current per-action counters.
func (u *UsageRecorder) Counts(ctx context.Context) (map[string]int64, error) {
	raw, err := u.client.HGetAll(ctx, usageKey).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(raw))
	for action, v := range raw {
		n, _ := strconv.ParseInt(v, 10, 64)
		counts[action] = n
	}
	return counts, nil
}

package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UsageRetention is how long a per-day key usage counter survives.
const UsageRetention = 7 * 24 * time.Hour

// UsageTracker counts, per API key and per day, the successful requests made
// with that key. Counts are a load-balancing hint, so writes are best-effort.
type UsageTracker struct {
	store    Store
	calendar Calendar
	writes   bestEffort
}

// NewUsageTracker creates a new usage tracker.
func NewUsageTracker(store Store, calendar Calendar, logger *zap.Logger) *UsageTracker {
	return &UsageTracker{
		store:    store,
		calendar: calendar,
		writes:   bestEffort{logger: logger},
	}
}

func (t *UsageTracker) dayPrefix(day string) string {
	return fmt.Sprintf("%s:useKey:%s:", Prefix, day)
}

// RecordUse increments today's counter for key in the background. It never
// blocks on the store and never fails.
func (t *UsageTracker) RecordUse(ctx context.Context, key string) {
	if key == "" {
		return
	}
	counterKey := t.dayPrefix(t.calendar.Today()) + key
	t.writes.run(ctx, "record_use", MaskKey(key), func(ctx context.Context) error {
		return incrWithExpiry(ctx, t.store, counterKey, UsageRetention)
	})
}

// TodayUsage returns today's count for every key that has a record.
// Keys without a record are absent and mean zero.
func (t *UsageTracker) TodayUsage(ctx context.Context) (map[string]int64, error) {
	return readCounters(ctx, t.store, t.dayPrefix(t.calendar.Today()))
}

// Flush waits for pending RecordUse writes.
func (t *UsageTracker) Flush() {
	t.writes.flush()
}

// readCounters lists every counter under prefix and returns them keyed by the
// remainder of the store key.
func readCounters(ctx context.Context, store Store, prefix string) (map[string]int64, error) {
	keys, err := store.KeysByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list counters: %w", err)
	}

	counts := make(map[string]int64, len(keys))
	if len(keys) == 0 {
		return counts, nil
	}

	values, err := store.MultiGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}

	for k, v := range values {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[strings.TrimPrefix(k, prefix)] = n
	}

	return counts, nil
}

// MaskKey returns a loggable form of an API key.
func MaskKey(key string) string {
	if len(key) <= 10 {
		return "***"
	}
	return key[:5] + "..." + key[len(key)-5:]
}

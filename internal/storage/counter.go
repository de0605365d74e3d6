package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RequestRetention is how long a per-day path counter survives.
const RequestRetention = 3 * 24 * time.Hour

// RequestCounter counts outbound attempts per API path per day. It is an
// operational metric only.
type RequestCounter struct {
	store    Store
	calendar Calendar
	writes   bestEffort
}

// NewRequestCounter creates a new per-path request counter.
func NewRequestCounter(store Store, calendar Calendar, logger *zap.Logger) *RequestCounter {
	return &RequestCounter{
		store:    store,
		calendar: calendar,
		writes:   bestEffort{logger: logger},
	}
}

func (c *RequestCounter) dayPrefix(day string) string {
	return fmt.Sprintf("%s:api:%s:", Prefix, day)
}

// Hit records one attempt against path in the background.
func (c *RequestCounter) Hit(ctx context.Context, path string) {
	counterKey := c.dayPrefix(c.calendar.Today()) + path
	c.writes.run(ctx, "count_request", path, func(ctx context.Context) error {
		return incrWithExpiry(ctx, c.store, counterKey, RequestRetention)
	})
}

// Today returns today's attempt count per path.
func (c *RequestCounter) Today(ctx context.Context) (map[string]int64, error) {
	return readCounters(ctx, c.store, c.dayPrefix(c.calendar.Today()))
}

// Flush waits for pending Hit writes.
func (c *RequestCounter) Flush() {
	c.writes.flush()
}

package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Calendar decides which day a counter belongs to. All processes sharing a
// store must agree on the location.
type Calendar struct {
	Now      Clock
	Location *time.Location
}

// Today returns the current day formatted as YYYY-MM-DD.
func (c Calendar) Today() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).Format(dayFormat)
}

// incrWithExpiry increments key and sets ttl only when the increment created it,
// so a counter keeps the expiry of its first write.
func incrWithExpiry(ctx context.Context, store Store, key string, ttl time.Duration) error {
	n, err := store.Incr(ctx, key)
	if err != nil {
		return err
	}
	if n == 1 && ttl > 0 {
		return store.Expire(ctx, key, ttl)
	}
	return nil
}

// bestEffortTimeout bounds a single background write.
const bestEffortTimeout = 3 * time.Second

// bestEffort runs writes off the caller's path. Failures are logged, never returned.
// mu keeps wg.Add from racing a flush that is already waiting.
type bestEffort struct {
	mu     sync.RWMutex
	wg     sync.WaitGroup
	logger *zap.Logger
}

func (b *bestEffort) run(ctx context.Context, op, key string, fn func(ctx context.Context) error) {
	b.mu.RLock()
	b.wg.Add(1)
	b.mu.RUnlock()

	go func() {
		defer b.wg.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bestEffortTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			b.logger.Warn("Best-effort store write failed",
				zap.String("op", op),
				zap.String("key", key),
				zap.Error(err))
		}
	}()
}

// flush blocks until every pending write has finished. Writes started while
// flush is waiting are held until it returns, so flush may run concurrently
// with callers and may be called more than once.
func (b *bestEffort) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wg.Wait()
}

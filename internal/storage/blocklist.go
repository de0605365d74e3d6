package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BlockTTL is how long a rate-limited key stays out of rotation.
const BlockTTL = 10 * time.Minute

// Blocklist marks API keys that were just rate limited.
type Blocklist struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewBlocklist creates a new blocklist with the default cool-down.
func NewBlocklist(store Store, logger *zap.Logger) *Blocklist {
	return &Blocklist{
		store:  store,
		ttl:    BlockTTL,
		logger: logger,
	}
}

func (b *Blocklist) entryKey(key string) string {
	return fmt.Sprintf("%s:429key:%s", Prefix, key)
}

// Quarantine blocks key for the cool-down window, replacing any existing entry.
func (b *Blocklist) Quarantine(ctx context.Context, key string) error {
	if err := b.store.SetWithTTL(ctx, b.entryKey(key), "1", b.ttl); err != nil {
		return fmt.Errorf("failed to quarantine key %s: %w", MaskKey(key), err)
	}
	return nil
}

// IsBlocked reports whether key is quarantined. A failed read counts as not blocked.
func (b *Blocklist) IsBlocked(ctx context.Context, key string) bool {
	blocked, err := b.store.Exists(ctx, b.entryKey(key))
	if err != nil {
		b.logger.Warn("Failed to read blocklist, treating key as available",
			zap.String("key", MaskKey(key)),
			zap.Error(err))
		return false
	}
	return blocked
}

// FilterAvailable returns keys minus every quarantined key, preserving order.
func (b *Blocklist) FilterAvailable(ctx context.Context, keys []string) []string {
	available := make([]string, 0, len(keys))
	for _, k := range keys {
		if !b.IsBlocked(ctx, k) {
			available = append(available, k)
		}
	}
	return available
}

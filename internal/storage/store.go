package storage

import (
	"context"
	"errors"
	"time"
)

// Prefix namespaces every key this module writes to the shared store.
const Prefix = "steam-plugin"

// ErrEmptyKey is returned when a store operation is called without a key.
var ErrEmptyKey = errors.New("storage: empty key")

// Store is the shared TTL key-value capability the dispatcher relies on.
// Implementations must make Incr atomic across processes; no other
// synchronisation is assumed.
type Store interface {
	// Incr atomically increments key and returns the new value.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire sets a time-to-live on an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// SetWithTTL stores value under key, replacing any existing entry.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// KeysByPrefix lists every live key starting with prefix.
	KeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	// MultiGet returns the values of the given keys. Missing keys are omitted.
	MultiGet(ctx context.Context, keys ...string) (map[string]string, error)
}

// dayFormat is the calendar-day layout used in counter keys.
const dayFormat = "2006-01-02"

// Clock returns the current time. Counters and TTLs are computed from it.
type Clock func() time.Time

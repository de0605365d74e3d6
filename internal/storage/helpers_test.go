package storage_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yusheng929/steam-plugin/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errStoreDown = errors.New("store down")

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Incr(context.Context, string) (int64, error) { return 0, errStoreDown }
func (failingStore) Expire(context.Context, string, time.Duration) error {
	return errStoreDown
}
func (failingStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errStoreDown
}
func (failingStore) Exists(context.Context, string) (bool, error) { return false, errStoreDown }
func (failingStore) KeysByPrefix(context.Context, string) ([]string, error) {
	return nil, errStoreDown
}
func (failingStore) MultiGet(context.Context, ...string) (map[string]string, error) {
	return nil, errStoreDown
}

var _ storage.Store = failingStore{}

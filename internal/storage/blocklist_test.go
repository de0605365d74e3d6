package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusheng929/steam-plugin/internal/storage"
	"go.uber.org/zap"
)

func TestBlocklist(t *testing.T) {
	ctx := context.Background()

	t.Run("quarantined key is blocked until ttl", func(t *testing.T) {
		clock := newFakeClock()
		bl := storage.NewBlocklist(storage.NewMemoryStoreWithClock(clock.Now), zap.NewNop())

		require.NoError(t, bl.Quarantine(ctx, "A"))

		for range 3 {
			assert.True(t, bl.IsBlocked(ctx, "A"))
		}
		assert.False(t, bl.IsBlocked(ctx, "B"))

		clock.Advance(storage.BlockTTL)
		for range 3 {
			assert.False(t, bl.IsBlocked(ctx, "A"))
		}
	})

	t.Run("requarantine extends the window", func(t *testing.T) {
		clock := newFakeClock()
		bl := storage.NewBlocklist(storage.NewMemoryStoreWithClock(clock.Now), zap.NewNop())

		require.NoError(t, bl.Quarantine(ctx, "A"))
		clock.Advance(9 * time.Minute)
		require.NoError(t, bl.Quarantine(ctx, "A"))
		clock.Advance(9 * time.Minute)

		assert.True(t, bl.IsBlocked(ctx, "A"))
	})

	t.Run("filter keeps pool order", func(t *testing.T) {
		bl := storage.NewBlocklist(storage.NewMemoryStore(), zap.NewNop())
		require.NoError(t, bl.Quarantine(ctx, "B"))

		assert.Equal(t, []string{"A", "C"}, bl.FilterAvailable(ctx, []string{"A", "B", "C"}))
	})

	t.Run("write failure surfaces", func(t *testing.T) {
		bl := storage.NewBlocklist(failingStore{}, zap.NewNop())

		assert.ErrorIs(t, bl.Quarantine(ctx, "A"), errStoreDown)
	})

	t.Run("read failure counts as available", func(t *testing.T) {
		bl := storage.NewBlocklist(failingStore{}, zap.NewNop())

		assert.False(t, bl.IsBlocked(ctx, "A"))
		assert.Equal(t, []string{"A", "B"}, bl.FilterAvailable(ctx, []string{"A", "B"}))
	})
}

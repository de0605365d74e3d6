package storage_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusheng929/steam-plugin/internal/storage"
	"go.uber.org/zap"
)

func TestUsageTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("records per key per day", func(t *testing.T) {
		clock := newFakeClock()
		s := storage.NewMemoryStoreWithClock(clock.Now)
		cal := storage.Calendar{Now: clock.Now, Location: time.UTC}
		tracker := storage.NewUsageTracker(s, cal, zap.NewNop())

		tracker.RecordUse(ctx, "KEY-A")
		tracker.RecordUse(ctx, "KEY-A")
		tracker.RecordUse(ctx, "KEY-B")
		tracker.Flush()

		usage, err := tracker.TodayUsage(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"KEY-A": 2, "KEY-B": 1}, usage)

		ok, _ := s.Exists(ctx, "steam-plugin:useKey:2024-05-01:KEY-A")
		assert.True(t, ok, "counter uses the shared key layout")
	})

	t.Run("new day starts empty", func(t *testing.T) {
		clock := newFakeClock()
		s := storage.NewMemoryStoreWithClock(clock.Now)
		tracker := storage.NewUsageTracker(s, storage.Calendar{Now: clock.Now, Location: time.UTC}, zap.NewNop())

		tracker.RecordUse(ctx, "KEY-A")
		tracker.Flush()

		clock.Advance(24 * time.Hour)
		usage, err := tracker.TodayUsage(ctx)
		require.NoError(t, err)
		assert.Empty(t, usage)

		ok, _ := s.Exists(ctx, "steam-plugin:useKey:2024-05-01:KEY-A")
		assert.True(t, ok, "yesterday's counter is retained")
	})

	t.Run("counter expires after retention", func(t *testing.T) {
		clock := newFakeClock()
		s := storage.NewMemoryStoreWithClock(clock.Now)
		tracker := storage.NewUsageTracker(s, storage.Calendar{Now: clock.Now, Location: time.UTC}, zap.NewNop())

		tracker.RecordUse(ctx, "KEY-A")
		tracker.Flush()
		clock.Advance(time.Hour)
		tracker.RecordUse(ctx, "KEY-A")
		tracker.Flush()

		// expiry is set on the first write only
		clock.Advance(storage.UsageRetention - time.Hour)
		ok, _ := s.Exists(ctx, "steam-plugin:useKey:2024-05-01:KEY-A")
		assert.False(t, ok)
	})

	t.Run("store failures are swallowed", func(t *testing.T) {
		tracker := storage.NewUsageTracker(failingStore{}, storage.Calendar{}, zap.NewNop())

		assert.NotPanics(t, func() {
			tracker.RecordUse(ctx, "KEY-A")
			tracker.Flush()
		})

		_, err := tracker.TodayUsage(ctx)
		assert.ErrorIs(t, err, errStoreDown)
	})

	t.Run("calendar honours location", func(t *testing.T) {
		at := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
		shanghai := time.FixedZone("CST", 8*3600)
		cal := storage.Calendar{Now: func() time.Time { return at }, Location: shanghai}

		assert.Equal(t, "2024-05-02", cal.Today())
	})
}

func TestRequestCounter(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := storage.NewMemoryStoreWithClock(clock.Now)
	counter := storage.NewRequestCounter(s, storage.Calendar{Now: clock.Now, Location: time.UTC}, zap.NewNop())

	counter.Hit(ctx, "/ISteamUser/GetPlayerSummaries/v2")
	counter.Hit(ctx, "/ISteamUser/GetPlayerSummaries/v2")
	counter.Hit(ctx, "/IPlayerService/GetOwnedGames/v1")
	counter.Flush()

	today, err := counter.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), today["/ISteamUser/GetPlayerSummaries/v2"])
	assert.Equal(t, int64(1), today["/IPlayerService/GetOwnedGames/v1"])

	clock.Advance(storage.RequestRetention)
	ok, _ := s.Exists(ctx, "steam-plugin:api:2024-05-01:/IPlayerService/GetOwnedGames/v1")
	assert.False(t, ok)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "***", storage.MaskKey("short"))
	assert.Equal(t, "ABCDE...VWXYZ", storage.MaskKey("ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
}

func TestUsageTracker_FlushWhileRecording(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := storage.NewMemoryStoreWithClock(clock.Now)
	tracker := storage.NewUsageTracker(s, storage.Calendar{Now: clock.Now, Location: time.UTC}, zap.NewNop())

	const writers, perWriter = 8, 25
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				tracker.RecordUse(ctx, "KEY-A")
			}
		}()
	}
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Flush()
		}()
	}
	wg.Wait()
	tracker.Flush()

	usage, err := tracker.TodayUsage(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), usage["KEY-A"])
}

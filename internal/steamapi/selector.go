package steamapi

import (
	"context"

	"github.com/yusheng929/steam-plugin/internal/storage"
	"go.uber.org/zap"
)

// BlockFilter removes quarantined keys from a candidate list.
type BlockFilter interface {
	FilterAvailable(ctx context.Context, keys []string) []string
}

// UsageReader returns today's per-key usage.
type UsageReader interface {
	TodayUsage(ctx context.Context) (map[string]int64, error)
}

// KeySelector picks the key for the next attempt. It only reads shared state;
// two callers may well pick the same key at the same moment.
type KeySelector struct {
	blocklist BlockFilter
	usage     UsageReader
	policy    SelectionPolicy
	logger    *zap.Logger
}

// NewKeySelector creates a new key selector.
func NewKeySelector(blocklist BlockFilter, usage UsageReader, policy SelectionPolicy, logger *zap.Logger) *KeySelector {
	if policy == "" {
		policy = PolicyLeastUsed
	}
	return &KeySelector{
		blocklist: blocklist,
		usage:     usage,
		policy:    policy,
		logger:    logger,
	}
}

// Select returns the key to use from candidates, or "" if candidates is empty.
// When every candidate is blocked it still returns the first one so a call is
// always attempted.
func (s *KeySelector) Select(ctx context.Context, candidates []string) string {
	switch len(candidates) {
	case 0:
		return ""
	case 1:
		return candidates[0]
	}

	available := s.blocklist.FilterAvailable(ctx, candidates)
	if len(available) == 0 {
		s.logger.Warn("All candidate keys are quarantined, falling back to first key",
			zap.Int("candidates", len(candidates)))
		return candidates[0]
	}
	if len(available) == 1 {
		return available[0]
	}

	usage, err := s.usage.TodayUsage(ctx)
	if err != nil {
		s.logger.Warn("Failed to read key usage, using first available key", zap.Error(err))
		return available[0]
	}
	if len(usage) == 0 {
		return available[0]
	}

	return pick(available, usage, s.policy)
}

func pick(available []string, usage map[string]int64, policy SelectionPolicy) string {
	if policy == PolicyFirstUnused {
		for _, k := range available {
			if usage[k] == 0 {
				return k
			}
		}
		return available[0]
	}

	best := available[0]
	bestCount := usage[best]
	for _, k := range available[1:] {
		if n := usage[k]; n < bestCount {
			best, bestCount = k, n
		}
	}
	return best
}

// Compile-time checks.
var (
	_ BlockFilter = (*storage.Blocklist)(nil)
	_ UsageReader = (*storage.UsageTracker)(nil)
)

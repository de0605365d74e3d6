package steamapi

import (
	"math"
	"slices"
	"strings"
	"time"
)

// CanonicalBaseURL is Steam's Web API host.
const CanonicalBaseURL = "https://api.steampowered.com"

// commonProxyPlaceholder is replaced by CanonicalBaseURL in Options.CommonProxy.
const commonProxyPlaceholder = "{{url}}"

// SelectionPolicy decides how KeySelector breaks ties between keys that all
// have usage recorded today.
type SelectionPolicy string

const (
	// PolicyLeastUsed picks the key with the lowest count today, earliest in
	// pool order on ties.
	PolicyLeastUsed SelectionPolicy = "least_used"
	// PolicyFirstUnused picks the first key without usage today, else the first
	// available key.
	PolicyFirstUnused SelectionPolicy = "first_unused"
)

// DefaultParams are merged into every request; caller values win.
var DefaultParams = map[string]string{
	"l":        "schinese",
	"cc":       "CN",
	"language": "schinese",
}

// Options is the immutable configuration of a Client.
type Options struct {
	// Keys is the ordered key pool. Keys are trimmed; blanks and repeats are dropped.
	Keys []string
	// Proxy is the outbound proxy for plain HTTP; also used for HTTPS when
	// HTTPSProxy is empty.
	Proxy      string
	HTTPSProxy string
	// CommonProxy is a URL template; "{{url}}" is replaced by CanonicalBaseURL.
	CommonProxy string
	// APIProxy replaces the canonical host directly.
	APIProxy string
	// Timeout applies to every attempt. Zero means no timeout.
	Timeout time.Duration
	Policy  SelectionPolicy
	// DefaultParams overrides the package DefaultParams when non-nil.
	DefaultParams map[string]string
	// Location fixes the calendar day used by counters. Nil means time.Local.
	Location *time.Location
	// Now overrides the clock used for day boundaries.
	Now func() time.Time
}

func (o Options) clone() Options {
	c := o
	c.Keys = normalizeKeys(o.Keys)
	params := o.DefaultParams
	if params == nil {
		params = DefaultParams
	}
	c.DefaultParams = make(map[string]string, len(params))
	for k, v := range params {
		c.DefaultParams[k] = v
	}
	if c.Policy == "" {
		c.Policy = PolicyLeastUsed
	}
	return c
}

// normalizeKeys trims every key and drops blanks and repeats, keeping the
// first occurrence in pool order.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" || slices.Contains(out, k) {
			continue
		}
		out = append(out, k)
	}
	return out
}

// ProviderBase resolves the base URL calls go to unless overridden per call.
func (o Options) ProviderBase() string {
	switch {
	case o.CommonProxy != "":
		return strings.ReplaceAll(o.CommonProxy, commonProxyPlaceholder, CanonicalBaseURL)
	case o.APIProxy != "":
		return strings.TrimSuffix(o.APIProxy, "/")
	default:
		return CanonicalBaseURL
	}
}

// MaxRetry is the rate-limit retry budget, scaled with pool size.
func (o Options) MaxRetry() int {
	return max(int(math.Ceil(float64(len(o.Keys))*1.5)), 3)
}

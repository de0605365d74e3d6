package steamapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeSteam is an httptest server that rate-limits the keys in limited.
type fakeSteam struct {
	*httptest.Server

	mu      sync.Mutex
	limited map[string]bool
	keys    []string
	queries []map[string]string
}

func newFakeSteam(t *testing.T, limited ...string) *fakeSteam {
	f := &fakeSteam{limited: make(map[string]bool)}
	for _, k := range limited {
		f.limited[k] = true
	}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		q := make(map[string]string)
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}

		f.mu.Lock()
		f.keys = append(f.keys, key)
		f.queries = append(f.queries, q)
		limited := f.limited[key]
		f.mu.Unlock()

		if limited {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"key":"` + key + `"}}`))
	}))
	t.Cleanup(f.Close)

	return f
}

func (f *fakeSteam) usedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func (f *fakeSteam) lastQuery() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return nil
	}
	return f.queries[len(f.queries)-1]
}

var testDay = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testDay }

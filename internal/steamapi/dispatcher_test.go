package steamapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusheng929/steam-plugin/internal/models"
	"go.uber.org/zap"
)

type recordingUsage struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingUsage) RecordUse(_ context.Context, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

type recordingCounter struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingCounter) Hit(_ context.Context, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func newTestDispatcher(t *testing.T, base string, usage UsageRecorder) *Dispatcher {
	d, err := NewDispatcher(Options{APIProxy: base, Timeout: time.Second}, nil, usage, &recordingCounter{}, zap.NewNop())
	require.NoError(t, err)
	return d
}

func TestDispatcherMergesParams(t *testing.T) {
	steam := newFakeSteam(t)
	d := newTestDispatcher(t, steam.URL, nil)

	req := models.Request{
		Path: "/ISteamUser/GetPlayerSummaries/v2",
		RequestOptions: models.RequestOptions{
			Params: map[string]string{"steamids": "1", "l": "english", "key": "caller"},
		},
	}
	_, err := d.Dispatch(context.Background(), nil, req, "POOLKEY")
	require.NoError(t, err)

	q := steam.lastQuery()
	assert.Equal(t, "1", q["steamids"])
	assert.Equal(t, "english", q["l"], "caller value wins")
	assert.Equal(t, "CN", q["cc"])
	assert.Equal(t, "schinese", q["language"])
	assert.Equal(t, "POOLKEY", q["key"], "pool key is not overridable")
}

func TestDispatcherNeedsKey(t *testing.T) {
	d := newTestDispatcher(t, "https://steam.example.com", nil)

	assert.True(t, d.NeedsKey(models.Request{Path: "/x"}))
	assert.True(t, d.NeedsKey(models.Request{RequestOptions: models.RequestOptions{BaseURL: "https://steam.example.com"}}))
	assert.False(t, d.NeedsKey(models.Request{RequestOptions: models.RequestOptions{BaseURL: "https://store.steampowered.com"}}))
	assert.False(t, d.NeedsKey(models.Request{RequestOptions: models.RequestOptions{
		Params: map[string]string{models.ParamAccessToken: "token"},
	}}))
}

func TestDispatcherRecordsUsageOnSuccessOnly(t *testing.T) {
	steam := newFakeSteam(t, "LIMITED")
	usage := &recordingUsage{}
	d := newTestDispatcher(t, steam.URL, usage)
	ctx := context.Background()

	body, err := d.Dispatch(ctx, nil, models.Request{Path: "/ok"}, "GOOD")
	require.NoError(t, err)
	assert.JSONEq(t, `{"response":{"key":"GOOD"}}`, string(body))

	_, err = d.Dispatch(ctx, nil, models.Request{Path: "/limited"}, "LIMITED")
	require.Error(t, err)

	_, err = d.Dispatch(ctx, nil, models.Request{Path: "/nokey"}, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"GOOD"}, usage.keys)
}

func TestDispatcherErrorKinds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("denied"))
		case "/slow":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer server.Close()

	d, err := NewDispatcher(Options{APIProxy: server.URL, Timeout: 50 * time.Millisecond}, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("429 is rate limited", func(t *testing.T) {
		_, err := d.Dispatch(ctx, nil, models.Request{Path: "/limited"}, "K")

		assert.ErrorIs(t, err, ErrRateLimited)
		assert.NotErrorIs(t, err, ErrTransport)
		assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	})

	t.Run("other status is transport", func(t *testing.T) {
		_, err := d.Dispatch(ctx, nil, models.Request{Path: "/forbidden"}, "K")

		assert.ErrorIs(t, err, ErrTransport)
		assert.False(t, IsRateLimited(err))

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "denied", string(se.Body))
		assert.NotContains(t, se.Error(), "K", "key never appears in errors")
	})

	t.Run("timeout is transport", func(t *testing.T) {
		_, err := d.Dispatch(ctx, nil, models.Request{Path: "/slow"}, "K")

		assert.ErrorIs(t, err, ErrTransport)
		assert.Zero(t, StatusCode(err))
		assert.NotContains(t, err.Error(), "key=", "outbound url stays out of the error")
	})
}

func TestDispatcherSendsBodyAndHeaders(t *testing.T) {
	var gotBody, gotHeader, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotHeader = r.Header.Get("Content-Type")
		gotMethod = r.Method
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d := newTestDispatcher(t, server.URL, nil)
	req := models.Request{
		Path:   "IPlayerService/GetOwnedGames/v1",
		Method: http.MethodPost,
		RequestOptions: models.RequestOptions{
			Header: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			Body:   []byte("input_json=%7B%7D"),
		},
	}
	_, err := d.Dispatch(context.Background(), nil, req, "")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "input_json=%7B%7D", gotBody)
	assert.Equal(t, "application/x-www-form-urlencoded", gotHeader)
}

func TestDispatcherCommonProxyURL(t *testing.T) {
	var requestURI string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestURI = r.RequestURI
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	d, err := NewDispatcher(Options{CommonProxy: server.URL + "/{{url}}"}, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = d.Dispatch(context.Background(), nil, models.Request{Path: "/ISteamApps/GetAppList/v2"}, "K")
	require.NoError(t, err)

	assert.Contains(t, requestURI, "api.steampowered.com/ISteamApps/GetAppList/v2")
}

func TestNewHTTPClientProxies(t *testing.T) {
	c, err := newHTTPClient(Options{Proxy: "http://127.0.0.1:7890", Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, c.Timeout)

	transport := c.Transport.(*http.Transport)
	for _, target := range []string{"http://api.steampowered.com", "https://api.steampowered.com"} {
		u, _ := url.Parse(target)
		proxy, err := transport.Proxy(&http.Request{URL: u})
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:7890", proxy.Host)
	}

	c, err = newHTTPClient(Options{Proxy: "http://plain:1", HTTPSProxy: "http://secure:2"})
	require.NoError(t, err)
	transport = c.Transport.(*http.Transport)
	u, _ := url.Parse("https://api.steampowered.com")
	proxy, _ := transport.Proxy(&http.Request{URL: u})
	assert.Equal(t, "secure:2", proxy.Host)

	_, err = newHTTPClient(Options{Proxy: "://bad"})
	assert.Error(t, err)
}

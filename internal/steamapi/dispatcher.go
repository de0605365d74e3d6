package steamapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yusheng929/steam-plugin/internal/models"
	"github.com/yusheng929/steam-plugin/internal/storage"
	"go.uber.org/zap"
)

// UsageRecorder receives one call per successful request made with a pool key.
type UsageRecorder interface {
	RecordUse(ctx context.Context, key string)
}

// PathCounter receives one call per outbound attempt.
type PathCounter interface {
	Hit(ctx context.Context, path string)
}

// Dispatcher performs a single attempt against the Steam Web API.
type Dispatcher struct {
	base     string
	defaults map[string]string
	client   *http.Client
	usage    UsageRecorder
	counter  PathCounter
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher. httpClient may be nil, in which case one
// is built from opts' timeout and proxies.
func NewDispatcher(opts Options, httpClient *http.Client, usage UsageRecorder, counter PathCounter, logger *zap.Logger) (*Dispatcher, error) {
	opts = opts.clone()
	if httpClient == nil {
		c, err := newHTTPClient(opts)
		if err != nil {
			return nil, err
		}
		httpClient = c
	}
	return &Dispatcher{
		base:     opts.ProviderBase(),
		defaults: opts.DefaultParams,
		client:   httpClient,
		usage:    usage,
		counter:  counter,
		logger:   logger,
	}, nil
}

func newHTTPClient(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.Proxy != "" || opts.HTTPSProxy != "" {
		plain, err := parseProxy(opts.Proxy)
		if err != nil {
			return nil, err
		}
		secure, err := parseProxy(opts.HTTPSProxy)
		if err != nil {
			return nil, err
		}
		if secure == nil {
			secure = plain
		}
		transport.Proxy = func(r *http.Request) (*url.URL, error) {
			if r.URL.Scheme == "https" {
				return secure, nil
			}
			return plain, nil
		}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}, nil
}

func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
	}
	return u, nil
}

// BaseURL returns the effective base for req.
func (d *Dispatcher) BaseURL(req models.Request) string {
	if req.BaseURL != "" {
		return req.BaseURL
	}
	return d.base
}

// NeedsKey reports whether req should carry a pool key: it targets the
// provider base and brings no access token of its own.
func (d *Dispatcher) NeedsKey(req models.Request) bool {
	return d.BaseURL(req) == d.base && req.AccessToken() == ""
}

func (d *Dispatcher) buildURL(req models.Request, key string) (string, error) {
	path := req.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(d.BaseURL(req) + path)
	if err != nil {
		return "", fmt.Errorf("failed to parse request url: %w", err)
	}

	q := u.Query()
	for k, v := range d.defaults {
		if !q.Has(k) {
			q.Set(k, v)
		}
	}
	for k, v := range req.Params {
		q.Set(k, v)
	}
	if key != "" {
		q.Set(models.ParamKey, key)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Dispatch sends req once using key ("" sends no pool key) and returns the
// response body on 2xx.
func (d *Dispatcher) Dispatch(ctx context.Context, log *zap.Logger, req models.Request, key string) ([]byte, error) {
	if log == nil {
		log = d.logger
	}

	target, err := d.buildURL(req, key)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod(), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", withoutURL(err))
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	if d.counter != nil {
		d.counter.Hit(ctx, req.Path)
	}

	fields := []zap.Field{zap.String("method", httpReq.Method)}
	if key != "" {
		fields = append(fields, zap.String("key", storage.MaskKey(key)))
	}
	log.Info("Requesting Steam API", fields...)

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	if err != nil {
		err = withoutURL(err)
		log.Warn("Steam API request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, httpReq.Method, req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %w", ErrTransport, err)
	}
	elapsed := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("Steam API returned error",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", elapsed))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Method:     httpReq.Method,
			Path:       req.Path,
			Body:       data,
		}
	}

	log.Info("Steam API request succeeded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed))

	if key != "" && d.usage != nil {
		d.usage.RecordUse(ctx, key)
	}

	return data, nil
}

// withoutURL drops the *url.Error wrapper, whose text carries the full
// outbound URL including the key query parameter.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

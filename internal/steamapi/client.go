package steamapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/yusheng929/steam-plugin/internal/models"
	"github.com/yusheng929/steam-plugin/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Client is the entry point for Steam Web API calls. It rotates keys on
// 429 responses. A Client is safe for concurrent use.
type Client struct {
	opts       Options
	maxRetry   int
	dispatcher *Dispatcher
	selector   *KeySelector

	calendar  storage.Calendar
	blocklist *storage.Blocklist
	usage     *storage.UsageTracker
	counter   *storage.RequestCounter

	logger *zap.Logger
}

// New builds a Client whose usage, blocklist and request counters live in store.
func New(opts Options, store storage.Store, logger *zap.Logger) (*Client, error) {
	return NewWithHTTPClient(opts, store, nil, logger)
}

// NewWithHTTPClient is New with a caller-supplied HTTP client. Timeout and
// proxy options are ignored when httpClient is non-nil.
func NewWithHTTPClient(opts Options, store storage.Store, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	opts = opts.clone()
	if len(opts.Keys) == 0 {
		return nil, ErrNoKeys
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	calendar := storage.Calendar{Now: opts.Now, Location: opts.Location}
	blocklist := storage.NewBlocklist(store, logger)
	usage := storage.NewUsageTracker(store, calendar, logger)
	counter := storage.NewRequestCounter(store, calendar, logger)

	dispatcher, err := NewDispatcher(opts, httpClient, usage, counter, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		opts:       opts,
		maxRetry:   opts.MaxRetry(),
		dispatcher: dispatcher,
		selector:   NewKeySelector(blocklist, usage, opts.Policy, logger),
		calendar:   calendar,
		blocklist:  blocklist,
		usage:      usage,
		counter:    counter,
		logger:     logger,
	}, nil
}

// retryState is the per-request rotation state.
type retryState struct {
	attempt    int
	candidates []string
}

func (s *retryState) canRetry(key string, maxRetry int) bool {
	return key != "" && len(s.candidates) > 1 && s.attempt < maxRetry
}

func (s *retryState) exclude(key string) {
	s.candidates = slices.DeleteFunc(s.candidates, func(k string) bool { return k == key })
	s.attempt++
}

// Do executes req, rotating to another key on each 429 until it succeeds,
// fails otherwise, or the retry budget runs out.
func (c *Client) Do(ctx context.Context, req models.Request) ([]byte, error) {
	log := c.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("path", req.Path))

	needKey := c.dispatcher.NeedsKey(req)
	state := retryState{candidates: slices.Clone(c.opts.Keys)}

	for {
		var key string
		if needKey {
			key = c.selector.Select(ctx, state.candidates)
			if key == "" {
				return nil, fmt.Errorf("%w: no candidate key left for %s", ErrNoKeys, req.Path)
			}
		}

		body, err := c.dispatcher.Dispatch(ctx, log.With(zap.Int("attempt", state.attempt)), req, key)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, ErrRateLimited) || !state.canRetry(key, c.maxRetry) {
			return nil, err
		}

		if qerr := c.blocklist.Quarantine(ctx, key); qerr != nil {
			log.Error("Failed to quarantine rate-limited key",
				zap.String("key", storage.MaskKey(key)),
				zap.Error(qerr))
			return nil, errors.Join(err, fmt.Errorf("%w: %w", ErrQuarantine, qerr))
		}

		state.exclude(key)
		log.Warn("Rate limit encountered, rotating api key",
			zap.String("key", storage.MaskKey(key)),
			zap.Int("retry", state.attempt),
			zap.Int("max_retry", c.maxRetry),
			zap.Int("candidates", len(state.candidates)))
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts models.RequestOptions) ([]byte, error) {
	return c.Do(ctx, models.Request{Path: path, Method: http.MethodGet, RequestOptions: opts})
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, path string, opts models.RequestOptions) ([]byte, error) {
	return c.Do(ctx, models.Request{Path: path, Method: http.MethodPost, RequestOptions: opts})
}

// GetJSON issues a GET request and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, path string, opts models.RequestOptions, v any) error {
	body, err := c.Get(ctx, path, opts)
	if err != nil {
		return err
	}
	return decode(body, v)
}

// PostJSON issues a POST request and decodes the JSON body into v.
func (c *Client) PostJSON(ctx context.Context, path string, opts models.RequestOptions, v any) error {
	body, err := c.Post(ctx, path, opts)
	if err != nil {
		return err
	}
	return decode(body, v)
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// MaxRetry returns the rate-limit retry budget.
func (c *Client) MaxRetry() int {
	return c.maxRetry
}

// Report returns today's usage and block state for every configured key.
func (c *Client) Report(ctx context.Context) (*models.UsageReport, error) {
	var (
		usage    map[string]int64
		requests map[string]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		usage, err = c.usage.TodayUsage(gctx)
		return err
	})
	g.Go(func() (err error) {
		requests, err = c.counter.Today(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	keys := make([]models.KeyStatus, 0, len(c.opts.Keys))
	for i, k := range c.opts.Keys {
		keys = append(keys, models.KeyStatus{
			Key:        storage.MaskKey(k),
			Position:   i,
			TodayUsage: usage[k],
			Blocked:    c.blocklist.IsBlocked(ctx, k),
		})
	}

	return &models.UsageReport{
		Day:      c.calendar.Today(),
		Keys:     keys,
		Requests: requests,
	}, nil
}

// Close waits for pending best-effort counter writes. The store is not closed.
func (c *Client) Close() {
	c.usage.Flush()
	c.counter.Flush()
}

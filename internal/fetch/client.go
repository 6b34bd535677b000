// Package fetch performs HTTP requests with bounded retry and exponential backoff.
//
// Only transport failures and 429 responses are retried. A 429 carrying a
// numeric Retry-After header waits that many seconds instead of the
// exponential delay; HTTP-date values are ignored. Every other status is
// handed back to the caller untouched.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"goflare.io/pokedex/internal/config"
	"goflare.io/pokedex/internal/retrier"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client wraps a Doer with the retry policy.
type Client struct {
	cfg     config.FetchConfig
	doer    Doer
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	tracer  trace.Tracer
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Client. A nil doer uses an http.Client with cfg.Timeout.
func New(cfg config.FetchConfig, doer Doer, logger *zap.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:    cfg,
		doer:   doer,
		logger: logger,
		tracer: otel.Tracer("fetch"),
		sleep:  retrier.Sleep,
	}
	if cfg.EnableBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(cfg.CircuitBreaker)
	}
	return c
}

type callOptions struct {
	maxRetries int
	baseDelay  time.Duration
	doer       Doer
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

// WithMaxRetries sets the number of attempts for this call.
func WithMaxRetries(n int) CallOption {
	return func(o *callOptions) { o.maxRetries = n }
}

// WithBaseDelay sets the delay before the second attempt for this call.
func WithBaseDelay(d time.Duration) CallOption {
	return func(o *callOptions) { o.baseDelay = d }
}

// WithTransport sends this call through doer instead of the client's transport.
func WithTransport(doer Doer) CallOption {
	return func(o *callOptions) { o.doer = doer }
}

// Do sends req, retrying transport failures and 429 responses. The returned
// response may carry any status, including 429 when the last attempt was
// rate limited; the caller owns its body.
func (c *Client) Do(ctx context.Context, req *http.Request, opts ...CallOption) (*http.Response, error) {
	o := callOptions{
		maxRetries: c.cfg.MaxRetries,
		baseDelay:  c.cfg.BaseDelay,
		doer:       c.doer,
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := c.tracer.Start(ctx, "fetch.Do", trace.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
	))
	defer span.End()

	factor := c.cfg.Multiplier
	if factor < 1 {
		factor = 2
	}
	r, err := retrier.NewRetrier(o.maxRetries, o.baseDelay, 0, factor, 0, retrier.ExponentialBackoff,
		func(err error) bool {
			return ctx.Err() == nil && retrier.IsTemporary(err)
		})
	if err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	r.SleepFunc = c.sleep

	var (
		resp    *http.Response
		lastErr error
		tries   int
	)
	err = r.Run(ctx, func(attempt int) error {
		tries = attempt + 1

		attemptReq, err := rewind(ctx, req, attempt)
		if err != nil {
			return err
		}

		res, err := c.roundTrip(o.doer, attemptReq)
		if err != nil {
			lastErr = err
			c.logger.Debug("Request attempt failed",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return &transportError{err: err}
		}

		if res.StatusCode == http.StatusTooManyRequests && attempt < r.MaxAttempts()-1 {
			delay, hinted := parseRetryAfter(res.Header.Get("Retry-After"))
			drain(res)
			c.logger.Warn("Rate limited by upstream, backing off",
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
				zap.Bool("retry_after", hinted),
				zap.Duration("delay", delay))
			return &rateLimitedError{retryAfter: delay, hinted: hinted}
		}

		resp = res
		return nil
	})
	span.SetAttributes(attribute.Int("fetch.attempts", tries))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		if errors.Is(err, retrier.ErrMaxAttempts) {
			return nil, &NetworkExhaustedError{Attempts: tries, Err: lastErr}
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp, nil
}

// Get issues a GET for url.
func (c *Client) Get(ctx context.Context, url string, opts ...CallOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return c.Do(ctx, req, opts...)
}

// GetJSON issues a GET for url and decodes a 2xx JSON body into v.
// Any other status is reported as a *StatusError.
func (c *Client) GetJSON(ctx context.Context, url string, v any, opts ...CallOption) error {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp)
		return &StatusError{StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(doer Doer, req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return doer.Do(req)
	}

	var res *http.Response
	_, err := c.breaker.Execute(func() (any, error) {
		var err error
		res, err = doer.Do(req)
		return nil, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rewind prepares req for the given attempt, re-reading the body when needed.
func rewind(ctx context.Context, req *http.Request, attempt int) (*http.Request, error) {
	clone := req.Clone(ctx)
	if attempt == 0 || req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	clone.Body = body
	return clone, nil
}

// maxRetryAfterSeconds is the largest delay-seconds value a time.Duration holds.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// parseRetryAfter accepts the delay-seconds form of Retry-After only.
// Values too large for a time.Duration are ignored.
func parseRetryAfter(v string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs < 0 || secs > maxRetryAfterSeconds {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
	_ = res.Body.Close()
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by connectors and LLM clients.
package httputil

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// throttled responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

// DefaultMaxWait bounds a single wait between attempts.
var DefaultMaxWait = 30 * time.Second

const defaultMaxRetries = 3

// Retrier executes requests and retries HTTP 429 and 503 responses with
// exponential backoff. A Retry-After header given in seconds takes
// precedence over the computed delay. No single wait exceeds MaxWait: a
// computed backoff is clamped to it, and a server asking for longer gets
// its throttled response handed back at once.
type Retrier struct {
	Client     *http.Client
	MaxRetries int
	MaxWait    time.Duration
	Logger     *zap.Logger
}

// Do sends req. When MaxRetries is 0 the default (3) is used; when MaxWait
// is 0, DefaultMaxWait. Each retried response body is drained and closed
// before sleeping, and a request body is rewound through GetBody. If ctx is
// cancelled during a wait, Do returns ctx.Err(). After exhausting retries
// the last throttled response is returned so the caller can inspect it.
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	maxWait := r.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req.Clone(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			attemptReq.Body = body
		}
		resp, err := client.Do(attemptReq)
		if err != nil {
			return nil, err
		}

		if !retryable(resp.StatusCode) || attempt >= maxRetries {
			return resp, nil
		}

		backoff := retryAfter(resp)
		if backoff > maxWait {
			logger.Warn("throttled beyond wait limit, giving up",
				zap.String("host", req.URL.Host),
				zap.Int("status", resp.StatusCode),
				zap.Duration("retry_after", backoff),
				zap.Duration("max_wait", maxWait))
			return resp, nil
		}
		if backoff == 0 {
			backoff = maxWait
			if d := math.Pow(2, float64(attempt)) * float64(RetryBaseDelay); d < float64(maxWait) {
				backoff = time.Duration(d)
			}
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		logger.Debug("throttled, retrying",
			zap.String("host", req.URL.Host),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", backoff),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// retryAfter parses a Retry-After header expressed in whole seconds.
func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

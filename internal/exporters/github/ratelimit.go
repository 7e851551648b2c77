package github

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// proactiveRate throttles to ~4300 requests/hour, under the
	// authenticated limit of 5000.
	proactiveRate = 1.2

	// minRemaining is the quota floor. Below it the limiter waits for
	// the reset instead of spending the reserve.
	minRemaining = 100
)

// limiter combines a proactive token bucket with reactive tracking of
// GitHub's X-RateLimit-* response headers.
type limiter struct {
	bucket *rate.Limiter

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
}

func newLimiter() *limiter {
	return &limiter{
		bucket:    rate.NewLimiter(rate.Limit(proactiveRate), 1),
		remaining: 5000,
	}
}

// wait blocks until a request may be sent. When the tracked quota is
// nearly exhausted it sleeps through to the reset time.
func (l *limiter) wait(ctx context.Context) error {
	if err := l.bucket.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	remaining, resetAt := l.remaining, l.resetAt
	l.mu.Unlock()

	if remaining >= minRemaining || time.Now().After(resetAt) {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Until(resetAt)):
		return nil
	}
}

// update records quota state from a response's rate limit headers.
func (l *limiter) update(resp *http.Response) {
	if resp == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			l.remaining = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			l.resetAt = time.Unix(unix, 0)
		}
	}
}

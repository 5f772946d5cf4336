package llm

import (
	"context"
	"math/rand"
	"time"
)

const (
	// DefaultMaxAttempts bounds the retry loop (1 initial + 2 retries).
	DefaultMaxAttempts = 3

	// DefaultCallTimeout is the wall-clock budget for one gateway call,
	// including all retries.
	DefaultCallTimeout = 60 * time.Second

	baseBackoff = 1 * time.Second
	maxBackoff  = 20 * time.Second
)

// Gateway wraps a Provider with retry, backoff, and rate limiting. It is the
// single blocking point of the extraction pipeline.
type Gateway struct {
	provider    Provider
	limiter     *RateLimiter
	maxAttempts int
	callTimeout time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithRateLimiter attaches a process-wide rate limiter, consulted before each
// network call.
func WithRateLimiter(l *RateLimiter) GatewayOption {
	return func(g *Gateway) { g.limiter = l }
}

// WithMaxAttempts overrides the retry bound.
func WithMaxAttempts(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithCallTimeout overrides the overall wall-clock budget per call.
func WithCallTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.callTimeout = d
		}
	}
}

// NewGateway creates a Gateway around the given provider.
func NewGateway(p Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider:    p,
		maxAttempts: DefaultMaxAttempts,
		callTimeout: DefaultCallTimeout,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the underlying provider name.
func (g *Gateway) Name() string {
	return g.provider.Name()
}

// Complete sends the prompt, retrying transient failures with exponential
// backoff plus jitter. Terminal failures surface immediately with their
// classification intact. The local rate limiter is consulted before each
// attempt and its refusal is never retried.
func (g *Gateway) Complete(ctx context.Context, prompt string, opts CompletionOpts) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	var lastErr *Error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Reserve(); err != nil {
				return nil, err
			}
		}

		resp, err := g.provider.Complete(ctx, prompt, opts)
		if err == nil {
			return resp, nil
		}

		ce := AsError(err)
		if !ce.Retryable() {
			return nil, ce
		}
		lastErr = ce

		if attempt == g.maxAttempts-1 {
			break
		}

		wait := backoffFor(attempt, ce.RetryAfter)
		if err := g.sleep(ctx, wait); err != nil {
			// Context expired while backing off: report the underlying
			// failure, classified as a timeout so callers treat it as
			// transient for the run as a whole.
			return nil, &Error{
				Code:      CodeTimeout,
				Message:   "gave up waiting to retry: " + lastErr.Message,
				Provider:  lastErr.Provider,
				Transient: true,
			}
		}
	}

	return nil, lastErr
}

// backoffFor computes the wait before the next attempt: a provider
// Retry-After hint wins outright; otherwise exponential backoff (1s, 2s, 4s)
// with ±50% jitter.
func backoffFor(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	backoff := baseBackoff << attempt
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)))
	return backoff/2 + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

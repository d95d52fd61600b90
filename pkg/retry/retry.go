package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 1 * time.Second
	defaultMaxDelay     = 10 * time.Second
	jitterWindow        = 1000 * time.Millisecond
)

// Options tune the retry engine.
type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// ShouldRetry gates each retry. A nil predicate retries everything.
	ShouldRetry func(err error) bool
}

// Engine runs an operation up to MaxRetries+1 times with exponential
// backoff and jitter. Circuit rejections pass through immediately: they
// consume no retry budget and trigger no sleeps.
type Engine struct {
	opts Options
}

// New builds a retry engine.
func New(opts Options) *Engine {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = defaultInitialDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	return &Engine{opts: opts}
}

// Do executes op under the retry policy.
func (e *Engine) Do(ctx context.Context, op func(ctx context.Context) error) error {
	exp := retry.NewExponential(e.opts.InitialDelay)
	// Jitter is added on top of each exponential step, uniform in [0, jitterWindow].
	var backoff retry.Backoff = retry.BackoffFunc(func() (time.Duration, bool) {
		next, stop := exp.Next()
		if stop {
			return 0, true
		}
		return next + time.Duration(rand.Int63n(int64(jitterWindow)+1)), false
	})
	backoff = retry.WithCappedDuration(e.opts.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(e.opts.MaxRetries), backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if breaker.IsOpen(err) {
			return err
		}
		if e.opts.ShouldRetry != nil && !e.opts.ShouldRetry(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

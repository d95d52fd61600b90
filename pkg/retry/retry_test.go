package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
)

var errTransient = errors.New("transient")

func TestRetryRetriesUpToBudget(t *testing.T) {
	eng := New(Options{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		ShouldRetry:  func(error) bool { return true },
	})

	calls := 0
	err := eng.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 4, calls) // initial attempt plus three retries
}

func TestRetryStopsWhenPredicateDeclines(t *testing.T) {
	eng := New(Options{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(error) bool { return false },
	})

	calls := 0
	err := eng.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestRetryReturnsOnFirstSuccess(t *testing.T) {
	eng := New(Options{
		MaxRetries:   5,
		InitialDelay: time.Millisecond,
		ShouldRetry:  func(error) bool { return true },
	})

	calls := 0
	err := eng.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPassesCircuitRejectionThrough(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	br := breaker.New("twitter", breaker.Options{MaxFailures: 1, ResetTimeout: time.Hour}, clk, nil, nil, nil)
	_ = br.Execute(context.Background(), func() error { return errTransient })
	require.Equal(t, breaker.StateOpen, br.State())

	eng := New(Options{
		MaxRetries:   5,
		InitialDelay: time.Second,
		ShouldRetry: func(err error) bool {
			return br.State() == breaker.StateClosed
		},
	})

	calls := 0
	start := time.Now()
	err := eng.Do(context.Background(), func(ctx context.Context) error {
		return br.Execute(ctx, func() error {
			calls++
			return errTransient
		})
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, breaker.IsOpen(err))
	assert.Equal(t, 0, calls, "open circuit must reject before the function runs")
	assert.Less(t, elapsed, 500*time.Millisecond, "circuit rejection must not consume backoff sleeps")
}

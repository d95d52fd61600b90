package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
)

type fakeStore struct {
	mtx   sync.Mutex
	rows  map[string]Snapshot
	saves int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]Snapshot)}
}

func (s *fakeStore) Load(_ context.Context, name string) (*Snapshot, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if snap, ok := s.rows[name]; ok {
		copied := snap
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) Save(_ context.Context, name string, snap Snapshot) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.rows[name] = snap
	s.saves++
	return nil
}

func (s *fakeStore) List(_ context.Context) (map[string]Snapshot, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	out := make(map[string]Snapshot, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out, nil
}

func (s *fakeStore) snapshot(name string) (Snapshot, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	snap, ok := s.rows[name]
	return snap, ok
}

var errBoom = errors.New("boom")

func TestBreakerOpensAfterMaxFailuresAndRecovers(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore()
	br := New("twitter", Options{MaxFailures: 3, ResetTimeout: time.Second}, clk, store, nil, nil)

	calls := 0
	failing := func() error {
		calls++
		return errBoom
	}

	// first two failures stay CLOSED
	for i := 0; i < 2; i++ {
		err := br.Execute(context.Background(), failing)
		require.ErrorIs(t, err, errBoom)
		assert.False(t, IsOpen(err))
		assert.Equal(t, StateClosed, br.State())
	}

	// third failure trips the circuit and wraps the cause
	err := br.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, IsOpen(err))
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, br.State())
	assert.Equal(t, 3, calls)

	// while open, calls are rejected without invoking the function
	err = br.Execute(context.Background(), failing)
	require.Error(t, err)
	assert.True(t, IsOpen(err))
	assert.Equal(t, 3, calls)

	// after the reset timeout one probe is permitted
	clk.Advance(1100 * time.Millisecond)
	err = br.Execute(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, StateClosed, br.State())

	// the persisted snapshot converges on the final state
	require.Eventually(t, func() bool {
		snap, ok := store.snapshot("twitter")
		return ok && snap.State == StateClosed && snap.Failures == 0
	}, time.Second, 5*time.Millisecond)
}

func TestBreakerHalfOpenProbeFailureReopens(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	br := New("facebook", Options{MaxFailures: 1, ResetTimeout: time.Minute}, clk, newFakeStore(), nil, nil)

	err := br.Execute(context.Background(), func() error { return errBoom })
	require.Error(t, err)
	require.Equal(t, StateOpen, br.State())

	clk.Advance(2 * time.Minute)
	err = br.Execute(context.Background(), func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, br.State())

	// the failed probe pushed nextAttempt out again
	err = br.Execute(context.Background(), func() error { return nil })
	require.Error(t, err)
	assert.True(t, IsOpen(err))
}

func TestBreakerResumesFromPersistedState(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore()
	next := clk.Now().Add(time.Minute)
	store.rows["twitter"] = Snapshot{State: StateOpen, Failures: 5, NextAttemptTime: &next, Timestamp: clk.Now()}

	br := New("twitter", Options{}, clk, store, nil, nil)

	called := false
	err := br.Execute(context.Background(), func() error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsOpen(err))
	assert.False(t, called)
	assert.Equal(t, StateOpen, br.State())
}

func TestBreakerSuccessClearsFailureStreak(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := newFakeStore()
	br := New("bluesky", Options{MaxFailures: 5, ResetTimeout: time.Minute}, clk, store, nil, nil)

	for i := 0; i < 3; i++ {
		_ = br.Execute(context.Background(), func() error { return errBoom })
	}
	require.NoError(t, br.Execute(context.Background(), func() error { return nil }))

	// the streak restarted from zero: four more failures stay below MaxFailures
	for i := 0; i < 4; i++ {
		err := br.Execute(context.Background(), func() error { return errBoom })
		require.Error(t, err)
		assert.False(t, IsOpen(err), "failure %d should not trip the reset streak", i)
	}
	assert.Equal(t, StateClosed, br.State())
}

func TestBreakerStateChangeCallback(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	var mtx sync.Mutex
	var states []State
	br := New("twitter", Options{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		OnStateChange: func(state State, _ Snapshot) {
			mtx.Lock()
			states = append(states, state)
			mtx.Unlock()
		},
	}, clk, newFakeStore(), nil, nil)

	_ = br.Execute(context.Background(), func() error { return errBoom })
	clk.Advance(2 * time.Second)
	require.NoError(t, br.Execute(context.Background(), func() error { return nil }))

	require.Eventually(t, func() bool {
		mtx.Lock()
		defer mtx.Unlock()
		return len(states) == 3
	}, time.Second, 5*time.Millisecond)

	mtx.Lock()
	defer mtx.Unlock()
	// callbacks are fire-and-forget, so only membership is guaranteed
	assert.ElementsMatch(t, []State{StateOpen, StateHalfOpen, StateClosed}, states)
}

func TestRegistryReturnsSameCircuitPerKey(t *testing.T) {
	reg := NewRegistry(Options{}, clock.NewFake(time.Now()), newFakeStore(), nil, nil)
	assert.Same(t, reg.Get("twitter"), reg.Get("twitter"))
	assert.NotSame(t, reg.Get("twitter"), reg.Get("facebook"))
	assert.Equal(t, DefaultKey, reg.Get("").Name())
}

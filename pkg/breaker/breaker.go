package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/metrics"
)

// State is the circuit position.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

const (
	// DefaultKey is the circuit used for calls not tied to a platform.
	DefaultKey = "default"

	defaultMaxFailures  = 5
	defaultResetTimeout = 60 * time.Second
)

// Snapshot is the serialized circuit state persisted per key.
type Snapshot struct {
	State           State      `json:"state"`
	Failures        int        `json:"failures"`
	LastFailureTime *time.Time `json:"lastFailureTime,omitempty"`
	NextAttemptTime *time.Time `json:"nextAttemptTime,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Store loads and persists circuit snapshots.
type Store interface {
	Load(ctx context.Context, name string) (*Snapshot, error)
	Save(ctx context.Context, name string, snap Snapshot) error
	List(ctx context.Context) (map[string]Snapshot, error)
}

// Options tune a single circuit.
type Options struct {
	MaxFailures   int
	ResetTimeout  time.Duration
	OnStateChange func(state State, snap Snapshot)
}

// Breaker is a per-key circuit. In-memory state is authoritative within
// the process; the persisted snapshot lets a fresh process resume
// without re-discovering the outage.
type Breaker struct {
	name    string
	opts    Options
	clk     clock.Clock
	store   Store
	logg    *logger.Logger
	metrics *metrics.BreakerMetrics

	mtx         sync.Mutex
	loaded      bool
	state       State
	failures    int
	lastFailure *time.Time
	nextAttempt *time.Time
}

// New builds a circuit for the given key.
func New(name string, opts Options, clk clock.Clock, store Store, logg *logger.Logger, m *metrics.BreakerMetrics) *Breaker {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = defaultMaxFailures
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = defaultResetTimeout
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Breaker{
		name:    name,
		opts:    opts,
		clk:     clk,
		store:   store,
		logg:    logg,
		metrics: m,
		state:   StateClosed,
	}
}

// OpenError rejects a call while the circuit is not accepting traffic.
// Cause is non-nil when the rejection is the transition itself: the
// failure that tripped the circuit is wrapped.
type OpenError struct {
	Name    string
	RetryIn time.Duration
	cause   error
}

func (e *OpenError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("circuit %s opened: %v", e.Name, e.cause)
	}
	return fmt.Sprintf("circuit %s OPEN, retry in %s", e.Name, e.RetryIn.Round(time.Second))
}

func (e *OpenError) Unwrap() error {
	return e.cause
}

// IsOpen reports whether err is a circuit rejection or trip.
func IsOpen(err error) bool {
	var typed *OpenError
	return errors.As(err, &typed)
}

// State reads the current circuit position without driving a transition.
func (b *Breaker) State() State {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	b.ensureLoaded()
	return b.state
}

// Name returns the circuit key.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn under the circuit, evaluating transitions per call.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	b.mtx.Lock()
	b.ensureLoaded()

	now := b.clk.Now()
	if b.state == StateOpen {
		if b.nextAttempt != nil && now.Before(*b.nextAttempt) {
			retryIn := b.nextAttempt.Sub(now)
			b.mtx.Unlock()
			return &OpenError{Name: b.name, RetryIn: retryIn}
		}
		b.transition(StateHalfOpen)
	}
	b.mtx.Unlock()

	err := fn()

	b.mtx.Lock()
	defer b.mtx.Unlock()

	if err == nil {
		b.onSuccess()
		return nil
	}
	return b.onFailure(err)
}

func (b *Breaker) onSuccess() {
	changed := b.state != StateClosed || b.failures != 0 || b.lastFailure != nil || b.nextAttempt != nil
	b.failures = 0
	b.lastFailure = nil
	b.nextAttempt = nil
	if b.state != StateClosed {
		b.transition(StateClosed)
		return
	}
	if changed {
		b.persist()
	}
}

func (b *Breaker) onFailure(cause error) error {
	now := b.clk.Now()

	if b.state == StateHalfOpen {
		next := now.Add(b.opts.ResetTimeout)
		b.nextAttempt = &next
		b.lastFailure = &now
		b.transition(StateOpen)
		return cause
	}

	b.failures++
	b.lastFailure = &now

	if b.failures >= b.opts.MaxFailures {
		next := now.Add(b.opts.ResetTimeout)
		b.nextAttempt = &next
		b.transition(StateOpen)
		return &OpenError{Name: b.name, RetryIn: b.opts.ResetTimeout, cause: cause}
	}

	b.persist()
	return cause
}

// transition switches state, persists, and notifies. Caller holds the lock.
func (b *Breaker) transition(to State) {
	b.state = to
	snap := b.snapshot()
	b.persist()

	if b.metrics != nil {
		b.metrics.IncTransition(b.name, string(to))
	}
	if b.logg != nil {
		ctx := b.logg.WithFields(context.Background(), map[string]any{
			"circuit":  b.name,
			"state":    to,
			"failures": snap.Failures,
		})
		switch to {
		case StateOpen:
			b.logg.Warn(ctx, "circuit opened")
		case StateClosed:
			b.logg.Info(ctx, "circuit closed")
		default:
			b.logg.Info(ctx, "circuit half-open probe permitted")
		}
	}
	if b.opts.OnStateChange != nil {
		go b.opts.OnStateChange(to, snap)
	}
}

func (b *Breaker) snapshot() Snapshot {
	return Snapshot{
		State:           b.state,
		Failures:        b.failures,
		LastFailureTime: b.lastFailure,
		NextAttemptTime: b.nextAttempt,
		Timestamp:       b.clk.Now(),
	}
}

// persist writes the snapshot without blocking the call path. Write
// failures are logged and otherwise ignored. Caller holds the lock.
func (b *Breaker) persist() {
	if b.store == nil {
		return
	}
	snap := b.snapshot()
	name := b.name
	store := b.store
	logg := b.logg
	go func() {
		if err := store.Save(context.Background(), name, snap); err != nil && logg != nil {
			logg.Error(context.Background(), "circuit state persist failed", err)
		}
	}()
}

// ensureLoaded pulls the persisted snapshot on first use. Absence means a
// fresh CLOSED circuit. Caller holds the lock.
func (b *Breaker) ensureLoaded() {
	if b.loaded {
		return
	}
	b.loaded = true
	if b.store == nil {
		return
	}
	snap, err := b.store.Load(context.Background(), b.name)
	if err != nil {
		if b.logg != nil {
			b.logg.Error(context.Background(), "circuit state load failed", err)
		}
		return
	}
	if snap == nil {
		return
	}
	b.state = snap.State
	b.failures = snap.Failures
	b.lastFailure = snap.LastFailureTime
	b.nextAttempt = snap.NextAttemptTime
}

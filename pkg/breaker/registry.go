package breaker

import (
	"sync"

	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/logger"
	"github.com/davidnajera/mentiondesk-backend/pkg/metrics"
)

// Registry hands out one circuit per key, creating them lazily with
// shared options. Callers hold the returned instance and invoke it per
// call; the registry guarantees a single circuit per key per process.
type Registry struct {
	opts    Options
	clk     clock.Clock
	store   Store
	logg    *logger.Logger
	metrics *metrics.BreakerMetrics

	mtx      sync.Mutex
	circuits map[string]*Breaker
}

// NewRegistry builds a registry with shared circuit options.
func NewRegistry(opts Options, clk clock.Clock, store Store, logg *logger.Logger, m *metrics.BreakerMetrics) *Registry {
	return &Registry{
		opts:     opts,
		clk:      clk,
		store:    store,
		logg:     logg,
		metrics:  m,
		circuits: make(map[string]*Breaker),
	}
}

// Get returns the circuit for the key, creating it on first use. An
// empty key maps to the default circuit.
func (r *Registry) Get(key string) *Breaker {
	if key == "" {
		key = DefaultKey
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if b, ok := r.circuits[key]; ok {
		return b
	}
	b := New(key, r.opts, r.clk, r.store, r.logg, r.metrics)
	r.circuits[key] = b
	return b
}

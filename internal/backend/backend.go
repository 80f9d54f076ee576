// Package backend implements the upstream server record (§4.2) and the
// pool that owns the backend sequence and the bound balancing policy
// (§4.4). Liveness and traffic are per-field atomics so policies and the
// prober can read and write them without taking the pool lock.
package backend

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoBackendAlive is returned by Pool.NextBackend when no backend in the
// pool currently has a true liveness flag.
var ErrNoBackendAlive = errors.New("backend: no backend alive")

// Backend is a single upstream HTTP server. All mutable fields are
// accessed with atomics; there is no lock on the struct itself.
type Backend struct {
	address     string
	healthPath  string
	alive       atomic.Bool
	byteTraffic atomic.Uint64
}

// New constructs a Backend with alive=false and byte_traffic=0, matching
// the documented initial values. healthPath may be empty, meaning the
// prober probes liveness by TCP connect alone.
func New(address, healthPath string) *Backend {
	return &Backend{
		address:    address,
		healthPath: healthPath,
	}
}

func (b *Backend) Address() string    { return b.address }
func (b *Backend) HealthPath() string { return b.healthPath }

func (b *Backend) MarkOnline()  { b.alive.Store(true) }
func (b *Backend) MarkOffline() { b.alive.Store(false) }
func (b *Backend) IsAlive() bool { return b.alive.Load() }

// AddTraffic accumulates n bytes into the backend's cumulative counter.
func (b *Backend) AddTraffic(n uint64) { b.byteTraffic.Add(n) }

// Traffic is an acquire-load of the cumulative byte counter.
func (b *Backend) Traffic() uint64 { return b.byteTraffic.Load() }

// Pool owns an ordered, fixed-size sequence of Backends and the single
// balancing policy instance bound to it. Only Swap (the config hot-reload
// path) replaces the sequence, possibly with one of a different length;
// between swaps, indices are stable.
type Pool struct {
	mu       sync.Mutex
	backends []*Backend
	policy   Policy
}

// Policy is the shared contract every balancing strategy implements
// (spec §4.3). Choose must not block and must make internal progress on
// every call (e.g. advance a round-robin cursor) so Pool.NextBackend is
// guaranteed to terminate.
type Policy interface {
	Choose(view View) (int, bool)
}

// View is the read-only slice of backend state a policy consults. It is
// handed out under the pool lock so all policies observe a consistent
// sequence, but reading a Backend's own fields never requires the lock.
type View interface {
	Len() int
	Alive(i int) bool
	Traffic(i int) uint64
	RequestKey() string // method+route of the request driving this selection, for hashing
}

// NewPool constructs a Pool from an ordered backend list and a bound
// policy. At least one backend is required.
func NewPool(backends []*Backend, policy Policy) *Pool {
	return &Pool{backends: backends, policy: policy}
}

// Len returns the number of backends in the pool.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backends)
}

// Backend returns the backend at index i. Callers hold no lock afterward;
// the returned pointer is itself concurrency-safe via its own atomics.
func (p *Pool) Backend(i int) *Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backends[i]
}

// Backends returns a snapshot slice of all backends, for the prober's scan
// and for administrative listing. The pointers are copied into a new slice;
// the Backends they point to are shared.
func (p *Pool) Backends() []*Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Backend, len(p.backends))
	copy(out, p.backends)
	return out
}

// HasAnyAlive reports whether at least one backend currently has a true
// liveness flag.
func (p *Pool) HasAnyAlive() bool {
	p.mu.Lock()
	backends := p.backends
	p.mu.Unlock()
	for _, b := range backends {
		if b.IsAlive() {
			return true
		}
	}
	return false
}

// requestView adapts the pool's backend slice plus a request key into the
// Policy.Choose contract, without copying backend state.
type requestView struct {
	backends []*Backend
	key      string
}

func (v requestView) Len() int            { return len(v.backends) }
func (v requestView) Alive(i int) bool    { return v.backends[i].IsAlive() }
func (v requestView) Traffic(i int) uint64 { return v.backends[i].Traffic() }
func (v requestView) RequestKey() string  { return v.key }

// NextBackend selects an alive backend index, or ErrNoBackendAlive if none
// are alive. It repeats policy.Choose under the pool lock, re-checking
// has-any-alive before each attempt, so it terminates even when every
// backend is down and makes progress as long as one is up (spec §4.4).
//
// The lock is held only across selection, never across upstream I/O: the
// caller is expected to copy out the chosen *Backend and its address and
// release this call's result before dialing.
func (p *Pool) NextBackend(requestKey string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		alive := false
		for _, b := range p.backends {
			if b.IsAlive() {
				alive = true
				break
			}
		}
		if !alive {
			return 0, ErrNoBackendAlive
		}

		view := requestView{backends: p.backends, key: requestKey}
		if idx, ok := p.policy.Choose(view); ok {
			return idx, nil
		}
	}
}

// Swap atomically replaces the backend sequence, used by the config
// hot-reload path. The policy instance is kept: round-robin's cursor
// continues rather than resetting, matching "policy state lives with the
// pool" from spec §3.
func (p *Pool) Swap(backends []*Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backends = backends
}

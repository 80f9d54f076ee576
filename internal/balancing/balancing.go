// Package balancing implements the closed set of backend-selection
// policies (spec §4.3). Every policy shares backend.Policy's Choose
// contract: independent, non-blocking, returns an index or none. None of
// them retry internally — that loop belongs to backend.Pool.NextBackend.
package balancing

import (
	"math/rand"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/codepr/rlb/internal/backend"
)

// Name is one of the four literal balancing tags accepted by configuration.
type Name string

const (
	RoundRobin   Name = "round-robin"
	Random       Name = "random"
	LeastTraffic Name = "least-traffic"
	Hashing      Name = "hashing"
)

// New builds the backend.Policy named by tag, or an error if the tag is
// unrecognized (spec §7: PolicyConfigError, fatal at startup).
func New(tag Name) (backend.Policy, error) {
	switch tag {
	case RoundRobin, "":
		return NewRoundRobin(), nil
	case Random:
		return RandomPolicy{}, nil
	case LeastTraffic:
		return LeastTrafficPolicy{}, nil
	case Hashing:
		return HashingPolicy{}, nil
	default:
		return nil, &UnknownPolicyError{Tag: tag}
	}
}

// UnknownPolicyError is spec §7's PolicyConfigError.
type UnknownPolicyError struct {
	Tag Name
}

func (e *UnknownPolicyError) Error() string {
	return "balancing: unknown policy tag " + string(e.Tag)
}

// RoundRobinPolicy holds a single atomic cursor shared across all calls,
// per spec §3 ("Round-robin: a single atomic counter").
type RoundRobinPolicy struct {
	cursor atomic.Uint64
}

func NewRoundRobin() *RoundRobinPolicy {
	return &RoundRobinPolicy{}
}

// Choose increments the cursor, takes the new value mod N, and returns the
// resulting index iff that backend is alive. It never itself searches for
// an alternative: a dead slot on this attempt yields none, and the caller
// (backend.Pool.NextBackend) retries. This still guarantees every index is
// visited within N calls, matching scenario 1 in spec §8 (cursor starts at
// 0, increments before the modulo is taken on the return, i.e. the first
// call returns index 1 not 0).
func (p *RoundRobinPolicy) Choose(view backend.View) (int, bool) {
	n := view.Len()
	if n == 0 {
		return 0, false
	}
	next := p.cursor.Add(1)
	idx := int(next % uint64(n))
	if view.Alive(idx) {
		return idx, true
	}
	return 0, false
}

// RandomPolicy is stateless: pick a uniformly random index, return it iff
// alive.
type RandomPolicy struct{}

func (RandomPolicy) Choose(view backend.View) (int, bool) {
	n := view.Len()
	if n == 0 {
		return 0, false
	}
	idx := rand.Intn(n)
	if view.Alive(idx) {
		return idx, true
	}
	return 0, false
}

// LeastTrafficPolicy is stateless: return the lowest-traffic alive index,
// ties breaking to the lowest index.
type LeastTrafficPolicy struct{}

func (LeastTrafficPolicy) Choose(view backend.View) (int, bool) {
	n := view.Len()
	best := -1
	var bestTraffic uint64
	for i := 0; i < n; i++ {
		if !view.Alive(i) {
			continue
		}
		t := view.Traffic(i)
		if best == -1 || t < bestTraffic {
			best = i
			bestTraffic = t
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}

// HashingPolicy is stateless per call: the hash key is the current
// request's method+route, reduced modulo N with a non-cryptographic
// 64-bit hash (xxhash, as used for request fingerprinting elsewhere in the
// retrieval pack's consistent-hashing proxies).
type HashingPolicy struct{}

func (HashingPolicy) Choose(view backend.View) (int, bool) {
	n := view.Len()
	if n == 0 {
		return 0, false
	}
	sum := xxhash.Sum64String(view.RequestKey())
	idx := int(sum % uint64(n))
	if view.Alive(idx) {
		return idx, true
	}
	return 0, false
}

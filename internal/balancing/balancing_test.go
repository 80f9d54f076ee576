package balancing

import (
	"testing"

	"github.com/codepr/rlb/internal/backend"
)

func buildPool(t *testing.T, count int, allAlive bool, policy backend.Policy) *backend.Pool {
	t.Helper()
	backends := make([]*backend.Backend, count)
	for i := range backends {
		backends[i] = backend.New(":500"+string(rune('0'+i)), "")
		if allAlive {
			backends[i].MarkOnline()
		}
	}
	return backend.NewPool(backends, policy)
}

func TestRoundRobinFourBackends(t *testing.T) {
	pool := buildPool(t, 4, true, NewRoundRobin())

	want := []int{1, 2, 3, 0}
	for i, w := range want {
		idx, err := pool.NextBackend("")
		if err != nil {
			t.Fatalf("call %d: NextBackend returned error: %v", i, err)
		}
		if idx != w {
			t.Errorf("call %d: idx = %d, want %d", i, idx, w)
		}
	}
}

func TestRoundRobinFairness(t *testing.T) {
	const n = 4
	const k = 25
	pool := buildPool(t, n, true, NewRoundRobin())

	counts := make(map[int]int)
	for i := 0; i < n*k; i++ {
		idx, err := pool.NextBackend("")
		if err != nil {
			t.Fatalf("NextBackend returned error: %v", err)
		}
		counts[idx]++
	}
	for i := 0; i < n; i++ {
		if counts[i] != k {
			t.Errorf("index %d selected %d times, want %d", i, counts[i], k)
		}
	}
}

func TestAllOffline(t *testing.T) {
	pool := buildPool(t, 4, false, NewRoundRobin())
	_, err := pool.NextBackend("")
	if err != backend.ErrNoBackendAlive {
		t.Fatalf("err = %v, want ErrNoBackendAlive", err)
	}
}

func TestLeastTraffic(t *testing.T) {
	pool := buildPool(t, 4, true, LeastTrafficPolicy{})
	traffics := []uint64{45, 40, 60, 70}
	for i, tr := range traffics {
		pool.Backend(i).AddTraffic(tr)
	}
	idx, err := pool.NextBackend("")
	if err != nil {
		t.Fatalf("NextBackend returned error: %v", err)
	}
	if idx != 1 {
		t.Errorf("idx = %d, want 1", idx)
	}
}

func TestLeastTrafficTiesToLowestIndex(t *testing.T) {
	pool := buildPool(t, 3, true, LeastTrafficPolicy{})
	idx, err := pool.NextBackend("")
	if err != nil {
		t.Fatalf("NextBackend returned error: %v", err)
	}
	if idx != 0 {
		t.Errorf("idx = %d, want 0 (tie breaks to lowest index)", idx)
	}
}

func TestHashingDeterministic(t *testing.T) {
	pool := buildPool(t, 5, true, HashingPolicy{})
	first, err := pool.NextBackend("GET/orders")
	if err != nil {
		t.Fatalf("NextBackend returned error: %v", err)
	}
	for i := 0; i < 10; i++ {
		idx, err := pool.NextBackend("GET/orders")
		if err != nil {
			t.Fatalf("NextBackend returned error: %v", err)
		}
		if idx != first {
			t.Errorf("call %d: idx = %d, want %d (hashing must be deterministic)", i, idx, first)
		}
	}
}

func TestHashingDifferentKeysCanDiffer(t *testing.T) {
	pool := buildPool(t, 5, true, HashingPolicy{})
	a, errA := pool.NextBackend("GET/orders")
	b, errB := pool.NextBackend("POST/payments")
	if errA != nil || errB != nil {
		t.Fatalf("NextBackend returned errors: %v, %v", errA, errB)
	}
	_ = a
	_ = b
	// Not asserting inequality (collisions are legal), just that both
	// resolve without error against a live pool.
}

func TestRandomReturnsAliveIndex(t *testing.T) {
	pool := buildPool(t, 4, true, RandomPolicy{})
	for i := 0; i < 20; i++ {
		idx, err := pool.NextBackend("")
		if err != nil {
			t.Fatalf("NextBackend returned error: %v", err)
		}
		if idx < 0 || idx >= 4 {
			t.Errorf("idx = %d out of range", idx)
		}
	}
}

func TestNewUnknownPolicy(t *testing.T) {
	_, err := New(Name("bogus"))
	if err == nil {
		t.Fatal("expected an error for an unknown balancing tag")
	}
}

func TestNewKnownPolicies(t *testing.T) {
	for _, tag := range []Name{RoundRobin, Random, LeastTraffic, Hashing, ""} {
		if _, err := New(tag); err != nil {
			t.Errorf("New(%q) returned error: %v", tag, err)
		}
	}
}

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/codepr/rlb/internal/backend"
	"github.com/codepr/rlb/internal/balancing"
)

func TestDispatcherBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	b := backend.New("127.0.0.1:1", "")
	pool := backend.NewPool([]*backend.Backend{b}, balancing.NewRoundRobin())
	d := New(ln.Addr().String(), pool, time.Second)

	err = d.Run(context.Background())
	if err == nil {
		t.Fatal("expected a bind error when the address is already in use")
	}
	if _, ok := err.(*BindError); !ok {
		t.Fatalf("err type = %T, want *BindError", err)
	}
}

func TestDispatcherAcceptsConnectionsUntilCancelled(t *testing.T) {
	b := backend.New("127.0.0.1:1", "")
	pool := backend.NewPool([]*backend.Backend{b}, balancing.NewRoundRobin())
	d := New("127.0.0.1:0", pool, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	_ = d

	// Reserve an ephemeral port, release it, and hand it to the
	// dispatcher: a small, widely used pattern for racing a background
	// bind against a short poll loop from the test goroutine.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := probe.Addr().String()
	probe.Close()

	d2 := New(addr, pool, 200*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- d2.Run(ctx) }()

	var conn net.Conn
	var dialErr error
	for i := 0; i < 50; i++ {
		conn, dialErr = net.Dial("tcp", addr)
		if dialErr == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if dialErr != nil {
		t.Fatalf("failed to dial dispatcher: %v", dialErr)
	}
	conn.Close()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned error on cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not shut down after context cancellation")
	}
}

// Package server implements the listener/dispatcher (spec §4.7): bind the
// listen socket, spawn the prober, and run the accept loop with
// exponential backoff on transient errors.
package server

import (
	"context"
	"net"
	"time"

	"github.com/codepr/rlb/internal/backend"
	"github.com/codepr/rlb/internal/logger"
	"github.com/codepr/rlb/internal/metrics"
	"github.com/codepr/rlb/internal/prober"
	"github.com/codepr/rlb/internal/proxy"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 64 * time.Second
)

// FatalError is returned by Dispatcher.Run when an accept fails after the
// loop has already backed off for the capped 64s (spec §7: fatal above the cap).
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string { return "server: accept loop exhausted backoff: " + e.Cause.Error() }
func (e *FatalError) Unwrap() error { return e.Cause }

// Dispatcher binds a listener, runs one health prober for the process
// lifetime, and spawns one handler goroutine per accepted connection.
type Dispatcher struct {
	addr    string
	pool    *backend.Pool
	timeout time.Duration
}

// New builds a Dispatcher for the given listen address and backend pool.
func New(addr string, pool *backend.Pool, timeout time.Duration) *Dispatcher {
	return &Dispatcher{addr: addr, pool: pool, timeout: timeout}
}

// Run binds the socket, starts the prober, and serves the accept loop
// until ctx is cancelled or a fatal accept error occurs. A bind failure
// returns a *BindError immediately (spec §7: fatal at startup).
func (d *Dispatcher) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.addr)
	if err != nil {
		return &BindError{Addr: d.addr, Cause: err}
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	p := prober.New(d.pool, d.timeout, prober.DefaultInterval)
	go p.Run(ctx)

	handler := proxy.New(d.pool, d.timeout)

	backoff := time.Duration(0)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			if backoff == 0 {
				backoff = initialBackoff
			} else {
				backoff *= 2
			}
			if backoff > maxBackoff {
				metrics.AcceptBackoffSeconds.Set(backoff.Seconds())
				return &FatalError{Cause: err}
			}

			metrics.AcceptBackoffSeconds.Set(backoff.Seconds())
			logger.Error("dispatcher", "accept error, backing off", "backoff", backoff.String(), "error", err)
			time.Sleep(backoff)
			continue
		}

		backoff = 0
		metrics.AcceptBackoffSeconds.Set(0)

		go handler.Handle(ctx, conn)
	}
}

// BindError is spec §7's BindError: the listener could not bind.
type BindError struct {
	Addr  string
	Cause error
}

func (e *BindError) Error() string { return "server: bind " + e.Addr + ": " + e.Cause.Error() }
func (e *BindError) Unwrap() error { return e.Cause }

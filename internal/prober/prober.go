// Package prober implements the background health-probe task (spec §4.5):
// one cycle connects to every backend, optionally issues a GET against its
// health path, and updates liveness; the cycle then sleeps before
// repeating. The pool handle is never held across the sleep so connection
// handlers are not starved (spec §5).
package prober

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/codepr/rlb/internal/backend"
	"github.com/codepr/rlb/internal/httpmsg"
	"github.com/codepr/rlb/internal/logger"
	"github.com/codepr/rlb/internal/metrics"
)

// DefaultInterval is the sleep between probe cycles (spec §4.5).
const DefaultInterval = 5000 * time.Millisecond

// Prober owns the connect timeout and the sleep interval used between
// cycles.
type Prober struct {
	pool     *backend.Pool
	timeout  time.Duration
	interval time.Duration
}

// New builds a Prober. timeout bounds each per-backend connect/read
// attempt and must be no larger than interval (spec §5).
func New(pool *backend.Pool, timeout, interval time.Duration) *Prober {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 || timeout > interval {
		timeout = interval
	}
	return &Prober{pool: pool, timeout: timeout, interval: interval}
}

// Run loops forever, probing every backend once per cycle and sleeping
// between cycles. It returns only when ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	for {
		p.cycle()
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// cycle scans the pool's current backend snapshot once. Backends() copies
// the backend pointers under the pool lock and releases it immediately, so the
// per-backend dial/read work below never holds the lock.
func (p *Prober) cycle() {
	for _, b := range p.pool.Backends() {
		alive := p.probeOne(b)
		if alive {
			b.MarkOnline()
		} else {
			b.MarkOffline()
		}
		metrics.SetBackendAlive(b.Address(), alive)
	}
}

func (p *Prober) probeOne(b *backend.Backend) bool {
	conn, err := net.DialTimeout("tcp", b.Address(), p.timeout)
	if err != nil {
		return false
	}
	defer conn.Close()

	if b.HealthPath() == "" {
		return true
	}

	conn.SetDeadline(time.Now().Add(p.timeout))

	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\n\r\n", b.HealthPath(), b.Address())
	if _, err := conn.Write([]byte(req)); err != nil {
		return false
	}

	buf, err := readHeaderBlock(conn)
	if err != nil {
		return false
	}

	msg, err := httpmsg.Parse(buf)
	if err != nil {
		logger.Debug("prober", "unparseable health response", "backend", b.Address(), "error", err)
		return false
	}

	code, err := httpmsg.ParseStatusCode(msg.StatusText)
	if err != nil {
		return false
	}

	return code == 200
}

// readHeaderBlock reads until the CRLFCRLF header terminator or EOF,
// whichever comes first.
func readHeaderBlock(conn net.Conn) ([]byte, error) {
	r := bufio.NewReader(conn)
	var buf []byte
	terminator := []byte("\r\n\r\n")
	chunk := make([]byte, 256)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, terminator) {
				return buf, nil
			}
		}
		if err != nil {
			if len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
	}
}

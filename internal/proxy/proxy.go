// Package proxy implements the per-connection forwarding pipeline (spec
// §4.6): read the client request, choose a backend, forward, read the
// response (including chunked termination), and return it to the client.
package proxy

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/codepr/rlb/internal/backend"
	"github.com/codepr/rlb/internal/httpmsg"
	"github.com/codepr/rlb/internal/logger"
	"github.com/codepr/rlb/internal/metrics"
	"github.com/codepr/rlb/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// RequestBufSize is the fixed header-read buffer size (spec §4.6 step 1
// and §9's documented-but-undersized-on-purpose 2048 bytes).
const RequestBufSize = 2048

const healthCheckRequestLine = "GET /health HTTP/1.1\r\n"
const healthCheckResponse = "HTTP/1.1 200 OK\r\n\r\n"

var chunkTerminator = []byte("0\r\n\r\n")

// Handler forwards accepted client connections against a backend pool.
type Handler struct {
	pool    *backend.Pool
	timeout time.Duration
}

// New builds a Handler. timeout bounds every upstream dial/read/write and
// the client read (spec §5).
func New(pool *backend.Pool, timeout time.Duration) *Handler {
	return &Handler{pool: pool, timeout: timeout}
}

// Handle runs the full pipeline for one accepted client connection. It
// never panics and never propagates an error upward: every failure path
// closes the relevant sockets and returns (spec §7).
func (h *Handler) Handle(ctx context.Context, client net.Conn) {
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(h.timeout))
	reqBuf := make([]byte, RequestBufSize)
	n, err := client.Read(reqBuf)
	if err != nil || n == 0 {
		return
	}
	reqBuf = reqBuf[:n]

	if bytes.HasPrefix(reqBuf, []byte(healthCheckRequestLine)) {
		client.Write([]byte(healthCheckResponse))
		return
	}

	idx, err := h.pool.NextBackend(requestKeyFromRaw(reqBuf))
	if err != nil {
		logger.Debug("proxy", "no backend alive, closing client connection")
		return
	}
	chosen := h.pool.Backend(idx)

	req, err := httpmsg.Parse(reqBuf)
	if err != nil {
		logger.Debug("proxy", "malformed request, dropping", "error", err)
		return
	}

	req.SetHeader("Host", chosen.Address())

	tr := tracing.Tracer()
	_, span := tr.Start(ctx, "forward_request")
	span.SetAttributes(
		attribute.String("rlb.backend", chosen.Address()),
		attribute.String("rlb.method", req.Method.String()),
		attribute.String("rlb.route", req.Route),
	)
	defer span.End()

	start := time.Now()
	outcome := "ok"

	upstream, err := net.DialTimeout("tcp", chosen.Address(), h.timeout)
	if err != nil {
		logger.Debug("proxy", "upstream dial failed", "backend", chosen.Address(), "error", err)
		recordOutcome(chosen, "upstream_error", start)
		return
	}
	defer upstream.Close()

	upstream.SetDeadline(time.Now().Add(h.timeout))

	out := httpmsg.Serialize(req)
	written, err := upstream.Write(out)
	if err != nil {
		logger.Debug("proxy", "upstream write failed", "backend", chosen.Address(), "error", err)
		recordOutcome(chosen, "upstream_error", start)
		return
	}
	chosen.AddTraffic(uint64(written))

	respBuf, err := readResponse(upstream)
	if err != nil {
		logger.Debug("proxy", "upstream read failed", "backend", chosen.Address(), "error", err)
		recordOutcome(chosen, "upstream_error", start)
		return
	}
	chosen.AddTraffic(uint64(len(respBuf)))
	metrics.ObserveTraffic(chosen.Address(), chosen.Traffic())

	client.SetWriteDeadline(time.Now().Add(h.timeout))
	if _, err := client.Write(respBuf); err != nil {
		outcome = "client_write_error"
	}

	recordOutcome(chosen, outcome, start)
}

// readResponse reads the backend's response, continuing past the first
// read if the parsed Transfer-Encoding is chunked, until the buffer ends
// with the terminal zero-length chunk (spec §4.6 step 6).
func readResponse(upstream net.Conn) ([]byte, error) {
	buf := make([]byte, RequestBufSize)
	n, err := upstream.Read(buf)
	if err != nil {
		return nil, err
	}
	buf = buf[:n]

	msg, perr := httpmsg.Parse(buf)
	if perr == nil && msg.TransferEncoding() == "chunked" {
		for !bytes.HasSuffix(buf, chunkTerminator) {
			extra := make([]byte, RequestBufSize)
			m, err := upstream.Read(extra)
			if err != nil {
				return buf, err
			}
			buf = append(buf, extra[:m]...)
		}
	}

	return buf, nil
}

// requestKeyFromRaw extracts method+route from the raw client bytes for
// the hashing policy, without requiring a successful full parse (the
// pool's NextBackend runs before request parsing in the pipeline).
func requestKeyFromRaw(buf []byte) string {
	msg, err := httpmsg.Parse(buf)
	if err != nil || msg.Kind != httpmsg.Request {
		return ""
	}
	return msg.Method.String() + msg.Route
}

func recordOutcome(b *backend.Backend, outcome string, start time.Time) {
	metrics.RequestsTotal.WithLabelValues(b.Address(), outcome).Inc()
	metrics.RequestDurationSeconds.WithLabelValues(b.Address(), outcome).Observe(time.Since(start).Seconds())
}

// Package router owns the parse buffer fed by a transport.Transport and
// correlates outgoing requests with their responses, the way the
// teacher's LXD02 client serializes every command behind a single
// in-flight request at a time.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Junsang-Mun/niimbot-web/protocol"
	"github.com/Junsang-Mun/niimbot-web/transport"
)

// ErrTimeout is returned by Transceive when no matching response (or
// error packet) arrived within the polling budget.
var ErrTimeout = errors.New("router: timed out waiting for response")

// PrinterError wraps the payload of an unsolicited or correlated 0xDB
// error packet.
type PrinterError struct {
	Payload []byte
}

func (e *PrinterError) Error() string {
	return fmt.Sprintf("router: printer error: % x", e.Payload)
}

// UnexpectedResponse describes a frame that arrived during a transceive
// carrying neither the expected response type nor the 0xDB error type.
// Transceive does not return it: such frames are logged and discarded
// while polling continues.
type UnexpectedResponse struct {
	Want protocol.ResponseCode
	Got  protocol.ResponseCode
}

func (e *UnexpectedResponse) Error() string {
	return fmt.Sprintf("router: unexpected response 0x%02x, want 0x%02x", e.Got, e.Want)
}

const (
	pollInterval = 100 * time.Millisecond
	pollRounds   = 6
)

// ResponseRouter is the sole owner of a transport.Transport's byte
// stream: it accumulates inbound bytes into a parse buffer, decodes
// whole frames out of it, and resynchronizes on a bad frame by
// discarding exactly one byte rather than the whole buffer, so a
// genuine frame immediately following garbage is never lost.
type ResponseRouter struct {
	tr  transport.Transport
	log *slog.Logger

	buf   []byte
	trace io.Writer
}

// New constructs a ResponseRouter reading from tr. log may be nil, in
// which case slog.Default() is used.
func New(tr transport.Transport, log *slog.Logger) *ResponseRouter {
	if log == nil {
		log = slog.Default()
	}
	return &ResponseRouter{tr: tr, log: log}
}

// SetTrace installs w as a sink for a hex dump of every frame sent and
// decoded, one line each, direction-tagged. Nil (the default) disables
// tracing. Intended for a CLI's -trace flag, not for production use.
func (r *ResponseRouter) SetTrace(w io.Writer) {
	r.trace = w
}

func (r *ResponseRouter) traceFrame(direction string, frame []byte) {
	if r.trace == nil {
		return
	}
	fmt.Fprintf(r.trace, "%s % x\n", direction, frame)
}

// Transceive writes a Dialect-A encoded request and polls for a frame of
// want's type, for up to pollRounds polls spaced pollInterval apart. Any
// 0xDB error packet encountered — whether or not it matches want —
// aborts the exchange immediately with a *PrinterError. Frames of any
// other unsolicited type are logged and discarded; they do not reset
// the poll budget.
func (r *ResponseRouter) Transceive(ctx context.Context, reqType byte, payload []byte, want protocol.ResponseCode) (protocol.Packet, error) {
	frame, err := protocol.EncodeA(reqType, payload)
	if err != nil {
		return protocol.Packet{}, err
	}
	r.traceFrame(">>", frame)
	if err := r.tr.Write(ctx, frame); err != nil {
		return protocol.Packet{}, err
	}

	for round := 0; round < pollRounds; round++ {
		pkt, ok, err := r.pollOnce(ctx)
		if err != nil {
			return protocol.Packet{}, err
		}
		if ok {
			if pkt.IsError() {
				return protocol.Packet{}, &PrinterError{Payload: pkt.Payload}
			}
			if pkt.ResponseType() != want {
				r.log.Warn("router: discarding unexpected frame", "got", pkt.ResponseType(), "want", want)
				continue
			}
			return pkt, nil
		}
		select {
		case <-ctx.Done():
			return protocol.Packet{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return protocol.Packet{}, ErrTimeout
}

// pollOnce drains any bytes immediately available from the transport
// (non-blocking from the caller's perspective: Read itself may block
// briefly, bounded by ctx), then attempts to decode one frame from the
// accumulated buffer, resyncing past bad bytes as needed.
func (r *ResponseRouter) pollOnce(ctx context.Context) (protocol.Packet, bool, error) {
	readCtx, cancel := context.WithTimeout(ctx, pollInterval)
	defer cancel()
	chunk, err := r.tr.Read(readCtx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return protocol.Packet{}, false, err
	}
	r.buf = append(r.buf, chunk...)

	for len(r.buf) > 0 {
		pkt, n, err := protocol.DecodeOne(r.buf)
		switch {
		case err == nil:
			r.traceFrame("<<", r.buf[:n])
			r.buf = r.buf[n:]
			return pkt, true, nil
		case errors.Is(err, protocol.ErrNeedMore):
			return protocol.Packet{}, false, nil
		default:
			r.log.Debug("router: resyncing past bad byte", "err", err)
			r.buf = r.buf[1:]
		}
	}
	return protocol.Packet{}, false, nil
}

// WriteRaw sends an already-encoded frame directly to the transport
// without waiting for a response. IMAGE_ROW packets are fire-and-forget
// per spec: the printer never acks them individually, so correlating a
// response would just stall on ErrTimeout every time.
func (r *ResponseRouter) WriteRaw(ctx context.Context, frame []byte) error {
	r.traceFrame(">>", frame)
	return r.tr.Write(ctx, frame)
}

// Notifications drains, without blocking, every complete inbound frame
// that has accumulated in the parse buffer, stopping at the first bytes
// that do not decode as a whole frame. It is unused by PrintJob but is
// exposed for callers that want to observe unsolicited traffic, such as
// heartbeats pushed outside a transceive.
func (r *ResponseRouter) Notifications() []protocol.Packet {
	var out []protocol.Packet
	for len(r.buf) > 0 {
		pkt, n, err := protocol.DecodeOne(r.buf)
		if err != nil {
			break
		}
		r.buf = r.buf[n:]
		out = append(out, pkt)
	}
	return out
}

// Package transport abstracts the two physical links a NIIMBOT printer can
// be reached over: USB bulk endpoints and BLE GATT notifications. Both
// implementations are single-owner and non-reentrant, mirroring the way
// the teacher's LXD02 client assumes exclusive access to its device
// handle for the lifetime of a session.
package transport

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Open/Write/Read when the underlying link
// has gone away (device unplugged, BLE disconnected).
var ErrUnavailable = errors.New("transport: unavailable")

// Transport is a raw byte pipe to a printer. Implementations do not
// frame or interpret bytes; that is protocol's job. Write and Read are
// not safe for concurrent use — router.ResponseRouter is the single
// owner of a Transport for the duration of a session.
type Transport interface {
	// Write sends buf as one or more physical transfers, fragmenting as
	// the underlying link requires (BLE MTU chunking). It blocks until
	// the fragments have been handed to the link or ctx is done.
	Write(ctx context.Context, buf []byte) error

	// Read returns the next chunk of inbound bytes, however the
	// underlying link delivers them (one bulk-in transfer, one GATT
	// notification). It may return fewer bytes than a full frame; the
	// caller is responsible for buffering and reframing. Read blocks
	// until data arrives, ctx is done, or the link closes. BulkUSB
	// cannot cancel a bulk transfer in flight, so it checks ctx only
	// before starting one.
	Read(ctx context.Context) ([]byte, error)

	// Close releases the underlying handle. Close is idempotent.
	Close() error
}

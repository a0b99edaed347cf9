package transport

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff"
	"github.com/google/gousb"
)

// maxConnectRetries bounds the exponential-backoff retry of the
// open/claim sequence: a printer that was mid-enumeration or briefly
// claimed by another process often succeeds on a second attempt a
// fraction of a second later.
const maxConnectRetries = 3

// BulkUSB reaches a NIIMBOT printer over a USB bulk interface. Unlike a
// USBTMC device it has no message framing of its own — raw protocol
// frames are written and read directly on the bulk endpoints — so Write
// and Read here are thin wrappers around one bulk transfer each.
type BulkUSB struct {
	ctx    *gousb.Context
	device *gousb.Device
	iface  *gousb.Interface
	closer func()
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint

	readBufSize int
}

// OpenBulkUSB opens the first USB interface exposing both a bulk-in and
// a bulk-out endpoint on the device matching vid/pid. Most NIIMBOT
// models enumerate a single vendor interface, but some also expose an
// unrelated CDC interface first, so every interface is scanned rather
// than assuming the default one.
//
// The open/claim sequence is retried with exponential backoff up to
// maxConnectRetries times: a device that is still settling after being
// plugged in, or briefly held by another process, commonly succeeds a
// moment later.
func OpenBulkUSB(vid, pid uint16) (*BulkUSB, error) {
	var b *BulkUSB
	op := func() error {
		opened, err := openBulkUSBOnce(vid, pid)
		if err != nil {
			return err
		}
		b = opened
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxConnectRetries)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return b, nil
}

func openBulkUSBOnce(vid, pid uint16) (*BulkUSB, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: open %04x:%04x: %v", ErrUnavailable, vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: no device matching %04x:%04x", ErrUnavailable, vid, pid)
	}
	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: set auto detach: %v", ErrUnavailable, err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("%w: claim config: %v", ErrUnavailable, err)
	}

	b := &BulkUSB{ctx: ctx, device: dev, readBufSize: 1024}
	for _, ifDesc := range cfg.Desc.Interfaces {
		iface, err := cfg.Interface(ifDesc.Number, 0)
		if err != nil {
			continue
		}
		in, out, ok := firstBulkPair(iface)
		if !ok {
			iface.Close()
			continue
		}
		b.iface = iface
		b.in = in
		b.out = out
		b.closer = cfg.Close
		return b, nil
	}
	cfg.Close()
	dev.Close()
	ctx.Close()
	return nil, fmt.Errorf("%w: no interface with both bulk endpoints", ErrUnavailable)
}

func firstBulkPair(iface *gousb.Interface) (*gousb.InEndpoint, *gousb.OutEndpoint, bool) {
	var in *gousb.InEndpoint
	var out *gousb.OutEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && in == nil {
			if ep, err := iface.InEndpoint(epDesc.Number); err == nil {
				in = ep
			}
		}
		if epDesc.Direction == gousb.EndpointDirectionOut && out == nil {
			if ep, err := iface.OutEndpoint(epDesc.Number); err == nil {
				out = ep
			}
		}
	}
	return in, out, in != nil && out != nil
}

// Write performs one bulk-out transfer. Dialect-A frames are well under
// any USB max-packet-size concern, so no fragmentation is attempted.
// gousb's endpoint transfers have no cancellation hook of their own, so
// ctx is only checked before issuing the transfer.
func (b *BulkUSB) Write(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := b.out.Write(buf)
	if err != nil {
		return fmt.Errorf("%w: bulk write: %v", ErrUnavailable, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short bulk write: wrote %d of %d bytes", ErrUnavailable, n, len(buf))
	}
	return nil
}

// Read performs one bulk-in transfer and returns whatever bytes the
// device had buffered, which may be a partial or multi-frame chunk.
func (b *BulkUSB) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, b.readBufSize)
	n, err := b.in.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: bulk read: %v", ErrUnavailable, err)
	}
	return buf[:n], nil
}

// Close releases the claimed interface, device handle, and USB context.
func (b *BulkUSB) Close() error {
	if b.iface != nil {
		b.iface.Close()
	}
	if b.closer != nil {
		b.closer()
	}
	if b.device != nil {
		b.device.Close()
	}
	if b.ctx != nil {
		b.ctx.Close()
	}
	return nil
}

package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff"
	"tinygo.org/x/bluetooth"
)

// bleMTU is the fixed chunk size of every GATT write: the default ATT
// MTU of 23 bytes minus the 3-byte ATT header. A larger negotiated MTU
// is never used.
const bleMTU = 20

// BleGatt reaches a NIIMBOT printer over a single GATT characteristic
// used for both directions: writes are chunked to bleMTU bytes, and
// inbound bytes arrive as notifications queued by the adapter's
// callback goroutine rather than through an explicit read call.
type BleGatt struct {
	adapter *bluetooth.Adapter
	device  bluetooth.Device
	char    bluetooth.DeviceCharacteristic

	mu     sync.Mutex
	queue  [][]byte
	notify chan struct{}
	closed chan struct{}
}

// ServiceUUIDs names the GATT service to scan for and the data
// characteristic to use within it. ModelSpec carries only the service
// UUID (BLEServiceUUID); it has no separate characteristic UUID.
type ServiceUUIDs struct {
	Service        bluetooth.UUID
	Characteristic bluetooth.UUID
}

// OpenBleGatt scans for a peripheral advertising uuids.Service, connects,
// discovers uuids.Characteristic, and subscribes to its notifications.
// If peerMAC is non-empty, only a peripheral whose advertised address
// matches it (case-insensitive) is accepted, letting a caller target
// one specific printer when more than one of the same model is in
// range; an empty peerMAC accepts the first matching service seen.
func OpenBleGatt(ctx context.Context, adapter *bluetooth.Adapter, uuids ServiceUUIDs, peerMAC string) (*BleGatt, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("%w: enable adapter: %v", ErrUnavailable, err)
	}

	found := make(chan bluetooth.ScanResult, 1)
	err := adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !result.HasServiceUUID(uuids.Service) {
			return
		}
		if peerMAC != "" && !strings.EqualFold(result.Address.String(), peerMAC) {
			return
		}
		a.StopScan()
		select {
		case found <- result:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
	}

	var result bluetooth.ScanResult
	select {
	case result = <-found:
	case <-ctx.Done():
		adapter.StopScan()
		return nil, ctx.Err()
	}

	// Connecting and service discovery right after a scan match commonly
	// races the peripheral's own post-advertisement settling time, so the
	// sequence is retried with exponential backoff rather than failing
	// on the first transient GATT error.
	var b *BleGatt
	op := func() error {
		opened, err := connectAndDiscover(adapter, result, uuids)
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

func connectAndDiscover(adapter *bluetooth.Adapter, result bluetooth.ScanResult, uuids ServiceUUIDs) (*BleGatt, error) {
	device, err := adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", ErrUnavailable, err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{uuids.Service})
	if err != nil || len(services) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("%w: discover service: %v", ErrUnavailable, err)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{uuids.Characteristic})
	if err != nil || len(chars) == 0 {
		device.Disconnect()
		return nil, fmt.Errorf("%w: discover characteristic: %v", ErrUnavailable, err)
	}

	b := &BleGatt{
		adapter: adapter,
		device:  device,
		char:    chars[0],
		notify:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}

	err = b.char.EnableNotifications(func(buf []byte) {
		cp := append([]byte(nil), buf...)
		b.mu.Lock()
		b.queue = append(b.queue, cp)
		b.mu.Unlock()
		select {
		case b.notify <- struct{}{}:
		default:
		}
	})
	if err != nil {
		device.Disconnect()
		return nil, fmt.Errorf("%w: enable notifications: %v", ErrUnavailable, err)
	}

	return b, nil
}

// Write fragments buf into chunks no larger than bleMTU and
// writes them to the characteristic in order. NIIMBOT printers require
// each Write transfer to be ATT-layer-sized, never a single oversized
// write relying on link-layer reassembly.
func (b *BleGatt) Write(ctx context.Context, buf []byte) error {
	for len(buf) > 0 {
		n := bleMTU
		if n > len(buf) {
			n = len(buf)
		}
		chunk := buf[:n]
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := b.char.WriteWithoutResponse(chunk); err != nil {
			return fmt.Errorf("%w: gatt write: %v", ErrUnavailable, err)
		}
		buf = buf[n:]
	}
	return nil
}

// Read blocks until a notification has been queued and returns it
// whole. There is no direct GATT read of the data characteristic: all
// inbound bytes arrive as asynchronous notifications from the radio
// stack's callback, buffered here until a caller drains them.
func (b *BleGatt) Read(ctx context.Context) ([]byte, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			chunk := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return chunk, nil
		}
		b.mu.Unlock()

		select {
		case <-b.notify:
			continue
		case <-b.closed:
			return nil, fmt.Errorf("%w: connection closed", ErrUnavailable)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close wakes any blocked Read with ErrUnavailable and disconnects from
// the peripheral; notifications are not disabled separately. A second
// Close returns nil without disconnecting again.
func (b *BleGatt) Close() error {
	select {
	case <-b.closed:
		return nil
	default:
		close(b.closed)
	}
	return b.device.Disconnect()
}

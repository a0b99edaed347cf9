package router

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Junsang-Mun/niimbot-web/protocol"
)

// fakeTransport is an in-memory transport.Transport double: Write
// appends to sent, Read drains from a preloaded inbound queue.
type fakeTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	inbound [][]byte
}

func (f *fakeTransport) Write(ctx context.Context, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, append([]byte(nil), buf...))
	return nil
}

func (f *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if len(f.inbound) > 0 {
		chunk := f.inbound[0]
		f.inbound = f.inbound[1:]
		f.mu.Unlock()
		return chunk, nil
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Hour):
		return nil, nil
	}
}

func (f *fakeTransport) Close() error { return nil }

func TestTransceive_HappyPath(t *testing.T) {
	frame, _ := protocol.EncodeA(0x02, []byte{0x01})
	tr := &fakeTransport{inbound: [][]byte{frame}}
	r := New(tr, slog.Default())

	pkt, err := r.Transceive(context.Background(), 0x01, nil, 0x02)
	if err != nil {
		t.Fatalf("Transceive: %v", err)
	}
	if pkt.Type != 0x02 || !bytes.Equal(pkt.Payload, []byte{0x01}) {
		t.Fatalf("got %v", pkt)
	}
}

func TestTransceive_ResyncAcrossGarbage(t *testing.T) {
	frame, _ := protocol.EncodeA(0x02, []byte{0xAB})
	garbage := append([]byte{0x11, 0x22, 0x33}, frame...)
	tr := &fakeTransport{inbound: [][]byte{garbage}}
	r := New(tr, slog.Default())

	pkt, err := r.Transceive(context.Background(), 0x01, nil, 0x02)
	if err != nil {
		t.Fatalf("Transceive: %v", err)
	}
	if !bytes.Equal(pkt.Payload, []byte{0xAB}) {
		t.Fatalf("got %v", pkt)
	}
}

func TestTransceive_ErrorPacketAborts(t *testing.T) {
	frame, _ := protocol.EncodeA(0xDB, []byte{0x07})
	tr := &fakeTransport{inbound: [][]byte{frame}}
	r := New(tr, slog.Default())

	_, err := r.Transceive(context.Background(), 0x01, nil, 0x02)
	var perr *PrinterError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PrinterError", err)
	}
}

func TestTransceive_DiscardsUnsolicitedThenMatches(t *testing.T) {
	unsolicited, _ := protocol.EncodeA(0x99, []byte{0x00})
	frame, _ := protocol.EncodeA(0x02, []byte{0x42})
	tr := &fakeTransport{inbound: [][]byte{unsolicited, frame}}
	r := New(tr, slog.Default())

	pkt, err := r.Transceive(context.Background(), 0x01, nil, 0x02)
	if err != nil {
		t.Fatalf("Transceive: %v", err)
	}
	if !bytes.Equal(pkt.Payload, []byte{0x42}) {
		t.Fatalf("got %v", pkt)
	}
}

func TestTransceive_TimesOutWithNoResponse(t *testing.T) {
	tr := &fakeTransport{}
	r := New(tr, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := r.Transceive(ctx, 0x01, nil, 0x02)
	if err == nil {
		t.Fatalf("expected an error, got nil")
	}
}

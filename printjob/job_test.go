package printjob

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"testing"
	"time"

	"github.com/Junsang-Mun/niimbot-web/catalog"
	"github.com/Junsang-Mun/niimbot-web/protocol"
	"github.com/Junsang-Mun/niimbot-web/raster"
	"github.com/Junsang-Mun/niimbot-web/router"
)

// scriptedTransport answers each Write by queuing the canned response
// frame for that step, found by matching on the request type byte.
type scriptedTransport struct {
	responses map[byte][]byte // keyed by request type, value is raw response frame
	seqOnEnd  []byte          // successive END_PRINT ack bytes, consumed in order
	pending   chan []byte
	rowsSeen  int
	sent      map[byte][]byte // last request payload seen, keyed by request type
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{responses: map[byte][]byte{}, pending: make(chan []byte, 64), sent: map[byte][]byte{}}
}

func (s *scriptedTransport) Write(ctx context.Context, buf []byte) error {
	pkt, _, err := protocol.DecodeOne(buf)
	if err != nil {
		return err
	}
	s.sent[pkt.Type] = pkt.Payload
	if pkt.Type == byte(protocol.ReqImageRow) {
		s.rowsSeen++
		return nil // fire-and-forget, no response queued
	}
	if pkt.Type == byte(protocol.ReqEndPrint) && len(s.seqOnEnd) > 0 {
		ack := s.seqOnEnd[0]
		s.seqOnEnd = s.seqOnEnd[1:]
		frame, _ := protocol.EncodeA(byte(protocol.ExpectedResponse(protocol.ReqEndPrint)), []byte{ack})
		s.pending <- frame
		return nil
	}
	if resp, ok := s.responses[pkt.Type]; ok {
		s.pending <- resp
	}
	return nil
}

func (s *scriptedTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case b := <-s.pending:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *scriptedTransport) Close() error { return nil }

func stdResponses() map[byte][]byte {
	m := map[byte][]byte{}
	add := func(req protocol.RequestCode) {
		frame, _ := protocol.EncodeA(byte(protocol.ExpectedResponse(req)), []byte{0x01})
		m[byte(req)] = frame
	}
	add(protocol.ReqSetLabelDensity)
	add(protocol.ReqSetLabelType)
	add(protocol.ReqStartPrint)
	add(protocol.ReqStartPagePrint)
	add(protocol.ReqSetDimension)
	add(protocol.ReqEndPagePrint)
	return m
}

func blankRows(width, height int) [][]byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	enc := &raster.Encoder{Model: catalog.B21, Mode: raster.ThresholdFixed}
	rows, err := enc.EncodeRows(img)
	if err != nil {
		panic(err)
	}
	return rows
}

func TestPrintJob_HappyPath(t *testing.T) {
	st := newScriptedTransport()
	for k, v := range stdResponses() {
		st.responses[k] = v
	}
	st.seqOnEnd = []byte{0x01}

	r := router.New(st, slog.Default())
	params := Params{
		Model: catalog.B21, Density: 3, LabelType: catalog.LabelContinuous,
		WidthPx: 384, HeightPx: 40, Rows: blankRows(384, 40),
	}
	job, err := New(r, params, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.RowsSent != 40 {
		t.Errorf("RowsSent = %d, want 40", result.RowsSent)
	}
	if st.rowsSeen != 40 {
		t.Errorf("rowsSeen = %d, want 40", st.rowsSeen)
	}
	if job.State() != StateDone {
		t.Errorf("final state = %s, want %s", job.State(), StateDone)
	}

	// START_PRINT, START_PAGE_PRINT, END_PAGE_PRINT, and END_PRINT all
	// carry a single 0x01 payload byte on the wire, not an empty one.
	for _, req := range []protocol.RequestCode{
		protocol.ReqStartPrint, protocol.ReqStartPagePrint,
		protocol.ReqEndPagePrint, protocol.ReqEndPrint,
	} {
		got, ok := st.sent[byte(req)]
		if !ok {
			t.Fatalf("never saw a request of type 0x%02x", byte(req))
		}
		if want := []byte{0x01}; !bytes.Equal(got, want) {
			t.Errorf("request 0x%02x payload = % x, want % x", byte(req), got, want)
		}
	}
}

func TestPrintJob_EndPrintPolling(t *testing.T) {
	st := newScriptedTransport()
	for k, v := range stdResponses() {
		st.responses[k] = v
	}
	st.seqOnEnd = []byte{0x00, 0x00, 0x00, 0x01}

	r := router.New(st, slog.Default())
	params := Params{
		Model: catalog.B1, Density: 2, LabelType: catalog.LabelContinuous,
		WidthPx: 96, HeightPx: 2, Rows: blankRows(96, 2),
	}
	job, err := New(r, params, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Now()
	_, err = job.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < endPageSettleDelay {
		t.Errorf("elapsed %v, want at least the %v settle delay", elapsed, endPageSettleDelay)
	}
}

func TestPrintJob_ErrorPacketAbortsImmediately(t *testing.T) {
	st := newScriptedTransport()
	errFrame, _ := protocol.EncodeA(0xDB, []byte{0x07})
	st.responses[byte(protocol.ReqSetLabelDensity)] = errFrame

	r := router.New(st, slog.Default())
	params := Params{
		Model: catalog.B1, Density: 2, LabelType: catalog.LabelContinuous,
		WidthPx: 96, HeightPx: 1, Rows: blankRows(96, 1),
	}
	job, err := New(r, params, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = job.Run(context.Background())
	var perr *router.PrinterError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *router.PrinterError", err)
	}
	if job.State() != StateFailed {
		t.Errorf("final state = %s, want %s", job.State(), StateFailed)
	}
}

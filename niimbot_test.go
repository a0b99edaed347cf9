package niimbot

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Junsang-Mun/niimbot-web/catalog"
)

type nopTransport struct{}

func (nopTransport) Write(ctx context.Context, buf []byte) error  { return nil }
func (nopTransport) Read(ctx context.Context) ([]byte, error)     { return nil, context.Canceled }
func (nopTransport) Close() error                                 { return nil }

func TestConnect_UnknownModelRejected(t *testing.T) {
	_, err := Connect(context.Background(), "NOT-A-MODEL", nopTransport{})
	if _, ok := err.(*catalog.ErrUnknownModel); !ok {
		t.Fatalf("err = %v, want *catalog.ErrUnknownModel", err)
	}
}

func TestConnect_AppliesOptions(t *testing.T) {
	sess, err := Connect(context.Background(), catalog.B21, nopTransport{}, WithDensity(5), WithLabelType(catalog.LabelGap))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if sess.opts.density != 5 || sess.opts.labelType != catalog.LabelGap {
		t.Fatalf("got %+v", sess.opts)
	}
}

func TestConnect_AppliesCropAutoDitherStepDelayGammaTrace(t *testing.T) {
	var trace bytes.Buffer
	sess, err := Connect(context.Background(), catalog.B21, nopTransport{},
		WithCrop(true),
		WithAutoDither(true),
		WithStepDelay(50*time.Millisecond),
		WithGamma(2.0),
		WithTrace(&trace),
	)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !sess.opts.crop {
		t.Error("crop not applied")
	}
	if !sess.opts.autoDither {
		t.Error("autoDither not applied")
	}
	if sess.opts.stepDelay != 50*time.Millisecond {
		t.Errorf("stepDelay = %v, want 50ms", sess.opts.stepDelay)
	}
	if sess.opts.gamma != 2.0 {
		t.Errorf("gamma = %v, want 2.0", sess.opts.gamma)
	}
	if sess.opts.trace != &trace {
		t.Error("trace writer not applied")
	}
	// SetTrace should have propagated to the router: a raw write through
	// the router produces a hex dump line.
	sess.r.WriteRaw(context.Background(), []byte{0x55, 0x55, 0x01, 0x00, 0x01, 0xAA, 0xAA})
	if trace.Len() == 0 {
		t.Error("expected trace output after a write, got none")
	}
}

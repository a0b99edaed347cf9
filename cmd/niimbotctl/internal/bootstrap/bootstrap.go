// Package bootstrap wires the cfg package's flags into a connected
// niimbot.Session, registering its cleanup with base.AtExit the way the
// teacher's bootstrap.Printer wires cfg into a connected LXD02.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	niimbot "github.com/Junsang-Mun/niimbot-web"
	"github.com/Junsang-Mun/niimbot-web/catalog"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/base"
	"github.com/Junsang-Mun/niimbot-web/cmd/niimbotctl/internal/cfg"
	"github.com/Junsang-Mun/niimbot-web/raster"
	"github.com/Junsang-Mun/niimbot-web/transport"
)

// Session connects to the printer named by cfg.Model/cfg.Transport and
// returns a ready-to-use niimbot.Session, registering its Close with
// base.AtExit.
func Session(ctx context.Context) (*niimbot.Session, error) {
	model := catalog.Model(cfg.Model)
	spec, ok := catalog.Lookup(model)
	if !ok {
		return nil, fmt.Errorf("bootstrap: unknown model %q", cfg.Model)
	}

	tr, err := openTransport(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open transport: %w", err)
	}

	opts := []niimbot.SessionOption{
		niimbot.WithDensity(int(cfg.Density)),
		niimbot.WithCrop(cfg.Crop),
		niimbot.WithAutoDither(cfg.AutoDither),
		niimbot.WithStepDelay(cfg.PrintDelay),
	}
	if fn, ok := ditherFunc(cfg.Dither); ok {
		opts = append(opts, niimbot.WithDither(fn))
	}
	if cfg.Gamma != 0 {
		opts = append(opts, niimbot.WithGamma(cfg.Gamma))
	}
	if cfg.TraceFile != "" {
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open trace file: %w", err)
		}
		opts = append(opts, niimbot.WithTrace(f))
		base.AtExit(func() { f.Close() })
	}

	sess, err := niimbot.Connect(ctx, model, tr, opts...)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("bootstrap: connect: %w", err)
	}
	base.AtExit(func() {
		if err := sess.Close(); err != nil {
			slog.Error("error disconnecting from printer", "error", err)
		}
	})
	return sess, nil
}

func openTransport(ctx context.Context, spec catalog.ModelSpec) (transport.Transport, error) {
	switch cfg.Transport {
	case "usb":
		return transport.OpenBulkUSB(spec.VendorID, spec.ProductID)
	case "ble", "":
		uuids := transport.ServiceUUIDs{Service: spec.BLEServiceUUID, Characteristic: spec.BLEServiceUUID}
		return transport.OpenBleGatt(ctx, cfg.Adapter(), uuids, cfg.MAC)
	default:
		return nil, fmt.Errorf("unknown transport %q, want ble or usb", cfg.Transport)
	}
}

func ditherFunc(name string) (raster.DitherFunc, bool) {
	switch name {
	case "floyd-steinberg":
		return raster.DFloydSteinberg, true
	case "atkinson":
		return raster.DAtkinson, true
	case "stucki":
		return raster.DStucki, true
	case "bayer":
		return raster.DBayer, true
	default:
		return nil, false
	}
}

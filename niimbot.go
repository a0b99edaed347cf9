// Package niimbot is the caller-facing façade over protocol, transport,
// router, catalog, raster, printjob, and info: a Session wiring all of
// them together, owned entirely by the caller with no hidden singleton
// state, the way the source's scattered module-scope globals are
// explicitly disallowed by design.
package niimbot

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/Junsang-Mun/niimbot-web/catalog"
	"github.com/Junsang-Mun/niimbot-web/info"
	"github.com/Junsang-Mun/niimbot-web/printjob"
	"github.com/Junsang-Mun/niimbot-web/raster"
	"github.com/Junsang-Mun/niimbot-web/router"
	"github.com/Junsang-Mun/niimbot-web/transport"
)

// Session is a live connection to one printer. It is not safe for
// concurrent use: every Session method serializes onto the same
// ResponseRouter, mirroring the single-in-flight-request invariant the
// wire protocol requires.
type Session struct {
	model catalog.Model
	tr    transport.Transport
	r     *router.ResponseRouter
	info  *info.Service
	log   *slog.Logger

	opts sessionOptions
}

type sessionOptions struct {
	density    int
	labelType  catalog.LabelType
	rotation   raster.Rotation
	thresholdM raster.ThresholdMode
	dither     raster.DitherFunc
	gamma      float64
	trace      io.Writer
	stepDelay  time.Duration
	crop       bool
	autoDither bool
}

// SessionOption configures a Session at Connect time.
type SessionOption func(*sessionOptions)

// WithDensity sets the print density (1..model max) that every Print
// call uses.
func WithDensity(d int) SessionOption {
	return func(o *sessionOptions) { o.density = d }
}

// WithLabelType sets the default label stock type.
func WithLabelType(lt catalog.LabelType) SessionOption {
	return func(o *sessionOptions) { o.labelType = lt }
}

// WithRotation sets the rotation applied before rasterizing.
func WithRotation(rot raster.Rotation) SessionOption {
	return func(o *sessionOptions) { o.rotation = rot }
}

// WithThresholdMode selects fixed or density-scaled binarization.
func WithThresholdMode(m raster.ThresholdMode) SessionOption {
	return func(o *sessionOptions) { o.thresholdM = m }
}

// WithDither installs a pre-pass dither function, applied before
// thresholding. Nil (the default) disables dithering.
func WithDither(fn raster.DitherFunc) SessionOption {
	return func(o *sessionOptions) { o.dither = fn }
}

// WithGamma sets the gamma correction passed to the dither function.
// raster.DefaultGamma (the zero value) lets the dither function fall
// back to its own default.
func WithGamma(g float64) SessionOption {
	return func(o *sessionOptions) { o.gamma = g }
}

// WithAutoDither disables a configured WithDither function for images
// raster.IsDocument classifies as document-like (scanned pages,
// rendered text), where dithering just adds noise instead of improving
// midtone reproduction.
func WithAutoDither(auto bool) SessionOption {
	return func(o *sessionOptions) { o.autoDither = auto }
}

// WithCrop selects cropping instead of scaling to fit the target label
// width: an oversized image loses its right margin rather than being
// shrunk, preserving fine detail at the cost of content.
func WithCrop(crop bool) SessionOption {
	return func(o *sessionOptions) { o.crop = crop }
}

// WithStepDelay paces the print-job control commands from SET_DENSITY
// through END_PAGE by d (see printjob.Params.StepDelay), giving a slow
// printer's firmware breathing room between commands. Zero (the
// default) sends commands back-to-back.
func WithStepDelay(d time.Duration) SessionOption {
	return func(o *sessionOptions) { o.stepDelay = d }
}

// WithTrace installs w as a sink for a hex dump of every frame sent and
// received, for debugging a session's wire traffic. Nil (the default)
// disables tracing.
func WithTrace(w io.Writer) SessionOption {
	return func(o *sessionOptions) { o.trace = w }
}

func defaultSessionOptions() sessionOptions {
	return sessionOptions{
		density:    3,
		labelType:  catalog.LabelContinuous,
		rotation:   raster.Rotate0,
		thresholdM: raster.ThresholdFixed,
		gamma:      raster.DefaultGamma,
	}
}

// Connect wraps an already-open transport.Transport in a Session for
// model. The caller is responsible for opening the transport (via
// transport.OpenBulkUSB or transport.OpenBleGatt) and for closing the
// Session when done.
func Connect(ctx context.Context, model catalog.Model, tr transport.Transport, opts ...SessionOption) (*Session, error) {
	if _, ok := catalog.Lookup(model); !ok {
		return nil, &catalog.ErrUnknownModel{Model: model}
	}
	o := defaultSessionOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := slog.Default().With("model", model)
	r := router.New(tr, log)
	if o.trace != nil {
		r.SetTrace(o.trace)
	}
	return &Session{
		model: model,
		tr:    tr,
		r:     r,
		info:  info.New(r),
		log:   log,
		opts:  o,
	}, nil
}

// Info returns the Session's InfoService, for GET_INFO/heartbeat/RFID
// queries.
func (s *Session) Info() *info.Service {
	return s.info
}

// Print rasterizes img and drives it through a full PrintJob. widthMM
// selects which of the model's supported physical label widths to
// target; Print resolves it to a pixel width via the model's DPI.
func (s *Session) Print(ctx context.Context, img image.Image, widthMM int) (printjob.Result, error) {
	spec, ok := catalog.Lookup(s.model)
	if !ok {
		return printjob.Result{}, &catalog.ErrUnknownModel{Model: s.model}
	}
	if !spec.SupportsWidthMM(widthMM) {
		return printjob.Result{}, fmt.Errorf("niimbot: model %s does not support a %dmm label width", s.model, widthMM)
	}
	widthPx := widthMM * spec.DPI / 25 // 25mm ~ 1 inch / 25.4, rounded for integer px math
	if widthPx > spec.MaxWidthPx {
		widthPx = spec.MaxWidthPx
	}

	var fitted image.Image
	if s.opts.crop {
		fitted = raster.CropToFit(img, widthPx)
	} else {
		fitted = raster.ResizeToFit(img, widthPx)
	}
	useDither := s.opts.dither != nil
	if useDither && s.opts.autoDither && raster.IsDocument(fitted, 0, 0) {
		useDither = false
	}
	if useDither {
		fitted = s.opts.dither(fitted, s.opts.gamma)
	}

	enc, err := raster.NewEncoder(s.model, s.opts.rotation, s.opts.thresholdM, s.opts.density)
	if err != nil {
		return printjob.Result{}, err
	}
	rows, err := enc.EncodeRows(fitted)
	if err != nil {
		return printjob.Result{}, err
	}

	params := printjob.Params{
		Model:     s.model,
		Density:   s.opts.density,
		LabelType: s.opts.labelType,
		WidthPx:   fitted.Bounds().Dx(),
		HeightPx:  len(rows),
		Rows:      rows,
		StepDelay: s.opts.stepDelay,
	}
	job, err := printjob.New(s.r, params, s.log)
	if err != nil {
		return printjob.Result{}, err
	}
	return job.Run(ctx)
}

// Heartbeat polls the printer's connection/paper-state heartbeat.
func (s *Session) Heartbeat(ctx context.Context) (info.HeartbeatStatus, error) {
	return s.info.Heartbeat(ctx)
}

// Close releases the underlying transport.
func (s *Session) Close() error {
	return s.tr.Close()
}

// defaultHeartbeatPeriod is a suggested polling interval for callers
// that want to watch connection health between prints; Session itself
// never polls on its own.
const defaultHeartbeatPeriod = 5 * time.Second

// DefaultHeartbeatPeriod returns defaultHeartbeatPeriod, exposed for
// callers building their own keep-alive loop.
func DefaultHeartbeatPeriod() time.Duration {
	return defaultHeartbeatPeriod
}

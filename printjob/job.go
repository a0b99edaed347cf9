// Package printjob drives a single print through its full command
// sequence as a github.com/looplab/fsm state machine, mirroring the
// teacher's IPP job FSM but trading RFC 2911's pending/processing
// states for the sequence a NIIMBOT printer actually expects on the
// wire.
package printjob

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/looplab/fsm"

	"github.com/Junsang-Mun/niimbot-web/catalog"
	"github.com/Junsang-Mun/niimbot-web/protocol"
	"github.com/Junsang-Mun/niimbot-web/raster"
	"github.com/Junsang-Mun/niimbot-web/router"
)

// State names the job's position in its command sequence.
type State string

const (
	StateIdle         State = "idle"
	StateSetDensity   State = "set_density"
	StateSetType      State = "set_type"
	StateStartPrint   State = "start_print"
	StateStartPage    State = "start_page"
	StateSetDimension State = "set_dimension"
	StateSetQuantity  State = "set_quantity"
	StateStreamRows   State = "stream_rows"
	StateEndPage      State = "end_page"
	StateWaiting      State = "waiting"
	StateEndPrint     State = "end_print"
	StateDone         State = "done"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

const (
	evtSetDensity   = "set_density"
	evtSetType      = "set_type"
	evtStartPrint   = "start_print"
	evtStartPage    = "start_page"
	evtSetDimension = "set_dimension"
	evtSetQuantity  = "set_quantity"
	evtStreamRows   = "stream_rows"
	evtEndPage      = "end_page"
	evtWait         = "wait"
	evtEndPrint     = "end_print"
	evtDone         = "done"
	evtFail         = "fail"
	evtCancel       = "cancel"
)

var jobFsmEvts = fsm.Events{
	{Name: evtSetDensity, Src: []string{string(StateIdle)}, Dst: string(StateSetDensity)},
	{Name: evtSetType, Src: []string{string(StateSetDensity)}, Dst: string(StateSetType)},
	{Name: evtStartPrint, Src: []string{string(StateSetType)}, Dst: string(StateStartPrint)},
	{Name: evtStartPage, Src: []string{string(StateStartPrint)}, Dst: string(StateStartPage)},
	{Name: evtSetDimension, Src: []string{string(StateStartPage)}, Dst: string(StateSetDimension)},
	{Name: evtSetQuantity, Src: []string{string(StateSetDimension)}, Dst: string(StateSetQuantity)},
	{Name: evtStreamRows, Src: []string{string(StateSetDimension), string(StateSetQuantity)}, Dst: string(StateStreamRows)},
	{Name: evtEndPage, Src: []string{string(StateStreamRows)}, Dst: string(StateEndPage)},
	{Name: evtWait, Src: []string{string(StateEndPage)}, Dst: string(StateWaiting)},
	{Name: evtEndPrint, Src: []string{string(StateWaiting)}, Dst: string(StateEndPrint)},
	{Name: evtDone, Src: []string{string(StateEndPrint)}, Dst: string(StateDone)},
	{
		Name: evtFail,
		Src: []string{
			string(StateIdle), string(StateSetDensity), string(StateSetType), string(StateStartPrint),
			string(StateStartPage), string(StateSetDimension), string(StateSetQuantity),
			string(StateStreamRows), string(StateEndPage), string(StateWaiting), string(StateEndPrint),
		},
		Dst: string(StateFailed),
	},
	{
		Name: evtCancel,
		Src: []string{
			string(StateSetDensity), string(StateSetType), string(StateStartPrint),
			string(StateStartPage), string(StateSetDimension), string(StateSetQuantity),
			string(StateStreamRows),
		},
		Dst: string(StateCancelled),
	},
}

// Params describes one print job's inputs.
type Params struct {
	Model     catalog.Model
	Density   int
	LabelType catalog.LabelType
	WidthPx   int
	HeightPx  int
	Quantity  int // 0 or 1 means "omit SET_QUANTITY", matching spec.md's optional step
	Rows      [][]byte

	// StepDelay is paced in after every control command from SET_DENSITY
	// through END_PAGE (not after the fire-and-forget IMAGE_ROW stream;
	// END_PRINT polling keeps its own fixed interval), giving a slow
	// printer's firmware breathing room between commands. Zero means no
	// pacing.
	StepDelay time.Duration
}

// Result is returned on successful completion, carrying bookkeeping a
// caller can log the way the teacher logs job lifecycle events.
type Result struct {
	RowsSent int
	Duration time.Duration
	Retries  int
}

const (
	endPageSettleDelay = 300 * time.Millisecond
	endPrintPollEvery  = 100 * time.Millisecond
	endPrintPollCap    = 20 * time.Second
	maxControlRetries  = 3
)

// startPayload is the single 0x01 byte START_PRINT, START_PAGE_PRINT,
// END_PAGE_PRINT, and END_PRINT all carry as their request payload.
var startPayload = []byte{0x01}

// PrintJob drives one print through the command sequence over r.
type PrintJob struct {
	r      *router.ResponseRouter
	params Params
	log    *slog.Logger

	sm      *fsm.FSM
	retries int
}

// New constructs a PrintJob against params, validated against the
// model's catalog entry. log may be nil, in which case slog.Default()
// is used.
func New(r *router.ResponseRouter, params Params, log *slog.Logger) (*PrintJob, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := catalog.ValidateRaster(params.Model, params.WidthPx, params.Density, params.LabelType); err != nil {
		return nil, err
	}
	if len(params.Rows) != params.HeightPx {
		return nil, fmt.Errorf("printjob: %d rows provided, want %d (HeightPx)", len(params.Rows), params.HeightPx)
	}
	j := &PrintJob{r: r, params: params, log: log}
	j.sm = fsm.NewFSM(string(StateIdle), jobFsmEvts, fsm.Callbacks{})
	return j, nil
}

// State returns the job's current state name.
func (j *PrintJob) State() State {
	return State(j.sm.Current())
}

// ErrCancelled is returned by Run when ctx is cancelled mid-job, after
// best-effort cleanup has been attempted.
var ErrCancelled = errors.New("printjob: cancelled")

// Run drives the job to completion or failure. On cancellation via ctx,
// Run attempts END_PAGE then END_PRINT before returning ErrCancelled,
// mirroring the teacher's abort-on-failure FSM transition but with a
// best-effort cleanup pass instead of an immediate hard stop, since
// leaving a NIIMBOT printer mid-page wastes the label stock fed so far.
func (j *PrintJob) Run(ctx context.Context) (Result, error) {
	start := time.Now()

	steps := []struct {
		evt  string
		call func(context.Context) error
	}{
		{evtSetDensity, j.stepSetDensity},
		{evtSetType, j.stepSetType},
		{evtStartPrint, j.stepStartPrint},
		{evtStartPage, j.stepStartPage},
		{evtSetDimension, j.stepSetDimension},
	}
	if j.params.Quantity > 1 {
		steps = append(steps, struct {
			evt  string
			call func(context.Context) error
		}{evtSetQuantity, j.stepSetQuantity})
	}
	steps = append(steps,
		struct {
			evt  string
			call func(context.Context) error
		}{evtStreamRows, j.stepStreamRows},
		struct {
			evt  string
			call func(context.Context) error
		}{evtEndPage, j.stepEndPage},
	)

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			j.cleanup(context.Background())
			j.sm.SetState(string(StateCancelled))
			return Result{}, ErrCancelled
		}
		if err := j.withRetry(ctx, step.call); err != nil {
			if ctx.Err() != nil {
				j.cleanup(context.Background())
				j.sm.SetState(string(StateCancelled))
				return Result{}, ErrCancelled
			}
			j.sm.Event(ctx, evtFail)
			return Result{}, err
		}
		j.sm.Event(ctx, step.evt)
		if step.evt != evtStreamRows {
			j.pace(ctx)
		}
	}

	j.sm.Event(ctx, evtWait)
	select {
	case <-time.After(endPageSettleDelay):
	case <-ctx.Done():
		j.cleanup(context.Background())
		j.sm.SetState(string(StateCancelled))
		return Result{}, ErrCancelled
	}

	if err := j.pollEndPrint(ctx); err != nil {
		if ctx.Err() != nil {
			j.cleanup(context.Background())
			j.sm.SetState(string(StateCancelled))
			return Result{}, ErrCancelled
		}
		j.sm.Event(ctx, evtFail)
		return Result{}, err
	}
	j.sm.Event(ctx, evtEndPrint)
	j.sm.Event(ctx, evtDone)

	return Result{RowsSent: len(j.params.Rows), Duration: time.Since(start), Retries: j.retries}, nil
}

// pace sleeps for params.StepDelay, or returns immediately if it is
// zero or ctx is cancelled first.
func (j *PrintJob) pace(ctx context.Context) {
	if j.params.StepDelay <= 0 {
		return
	}
	select {
	case <-time.After(j.params.StepDelay):
	case <-ctx.Done():
	}
}

func (j *PrintJob) withRetry(ctx context.Context, step func(context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxControlRetries; attempt++ {
		err = step(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, router.ErrTimeout) {
			return err
		}
		j.retries++
		j.log.Warn("printjob: retrying after timeout", "attempt", attempt+1)
	}
	return err
}

func (j *PrintJob) stepSetDensity(ctx context.Context) error {
	_, err := j.r.Transceive(ctx, byte(protocol.ReqSetLabelDensity), []byte{byte(j.params.Density)}, protocol.ExpectedResponse(protocol.ReqSetLabelDensity))
	return err
}

func (j *PrintJob) stepSetType(ctx context.Context) error {
	_, err := j.r.Transceive(ctx, byte(protocol.ReqSetLabelType), []byte{byte(j.params.LabelType)}, protocol.ExpectedResponse(protocol.ReqSetLabelType))
	return err
}

func (j *PrintJob) stepStartPrint(ctx context.Context) error {
	_, err := j.r.Transceive(ctx, byte(protocol.ReqStartPrint), startPayload, protocol.ExpectedResponse(protocol.ReqStartPrint))
	return err
}

func (j *PrintJob) stepStartPage(ctx context.Context) error {
	_, err := j.r.Transceive(ctx, byte(protocol.ReqStartPagePrint), startPayload, protocol.ExpectedResponse(protocol.ReqStartPagePrint))
	return err
}

func (j *PrintJob) stepSetDimension(ctx context.Context) error {
	payload := []byte{
		byte(j.params.HeightPx >> 8), byte(j.params.HeightPx),
		byte(j.params.WidthPx >> 8), byte(j.params.WidthPx),
	}
	_, err := j.r.Transceive(ctx, byte(protocol.ReqSetDimension), payload, protocol.ExpectedResponse(protocol.ReqSetDimension))
	return err
}

func (j *PrintJob) stepSetQuantity(ctx context.Context) error {
	payload := []byte{byte(j.params.Quantity >> 8), byte(j.params.Quantity)}
	_, err := j.r.Transceive(ctx, byte(protocol.ReqSetQuantity), payload, protocol.ExpectedResponse(protocol.ReqSetQuantity))
	return err
}

// stepStreamRows sends every IMAGE_ROW packet fire-and-forget: these
// are not correlated to a response, so they bypass Transceive and go
// straight out the underlying transport via the router's raw write
// path exposed for this purpose.
func (j *PrintJob) stepStreamRows(ctx context.Context) error {
	payloads := raster.ImageRowPayloads(j.params.Rows)
	for _, payload := range payloads {
		frame, err := protocol.EncodeA(byte(protocol.ReqImageRow), payload)
		if err != nil {
			return err
		}
		if err := j.r.WriteRaw(ctx, frame); err != nil {
			return err
		}
	}
	return nil
}

func (j *PrintJob) stepEndPage(ctx context.Context) error {
	_, err := j.r.Transceive(ctx, byte(protocol.ReqEndPagePrint), startPayload, protocol.ExpectedResponse(protocol.ReqEndPagePrint))
	return err
}

// ErrEndPrintTimeout is returned when END_PRINT never acks within
// endPrintPollCap.
var ErrEndPrintTimeout = errors.New("printjob: END_PRINT did not ack within the polling cap")

// pollEndPrint sends END_PRINT once every endPrintPollEvery until the
// printer's ack payload's first byte is 1, or endPrintPollCap elapses.
func (j *PrintJob) pollEndPrint(ctx context.Context) error {
	deadline := time.Now().Add(endPrintPollCap)
	for time.Now().Before(deadline) {
		pkt, err := j.r.Transceive(ctx, byte(protocol.ReqEndPrint), startPayload, protocol.ExpectedResponse(protocol.ReqEndPrint))
		if err != nil {
			return err
		}
		if len(pkt.Payload) > 0 && pkt.Payload[0] == 1 {
			return nil
		}
		select {
		case <-time.After(endPrintPollEvery):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ErrEndPrintTimeout
}

// cleanup attempts END_PAGE then END_PRINT once each, best-effort, on
// cancellation or a fatal mid-stream error — there is no guarantee the
// printer is in a state to accept either, so errors are logged and
// swallowed.
func (j *PrintJob) cleanup(ctx context.Context) {
	if _, err := j.r.Transceive(ctx, byte(protocol.ReqEndPagePrint), startPayload, protocol.ExpectedResponse(protocol.ReqEndPagePrint)); err != nil {
		j.log.Warn("printjob: cleanup END_PAGE failed", "error", err)
	}
	if _, err := j.r.Transceive(ctx, byte(protocol.ReqEndPrint), startPayload, protocol.ExpectedResponse(protocol.ReqEndPrint)); err != nil {
		j.log.Warn("printjob: cleanup END_PRINT failed", "error", err)
	}
}

// Package sim drives a simulated module through a fixed number of clock
// cycles and accumulates a regression signature of its outputs.
//
// Each cycle the harness writes stimulus into the input port, evaluates the
// module once, optionally dumps a waveform record, then folds every output
// word into the signature and prints a report line for it:
//
//	output [31:0] (tick 0) = 0xdeadbeef
//
// All run state (stimulus cursor, signature, trace session) lives in a
// Harness, owned by a single caller. Configuration errors surface from New,
// before any cycle runs.
package sim

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/rtlfuzz/internal/design"
	"github.com/roach88/rtlfuzz/internal/stimulus"
	"github.com/roach88/rtlfuzz/internal/waveform"
)

// ErrAlreadyRan is returned by Run on a harness that has already run.
var ErrAlreadyRan = errors.New("harness already ran")

// Options configures a harness.
type Options struct {
	// SimLen is the number of cycles to run.
	SimLen int

	// Policy selects how stimulus words are applied to the input port.
	Policy stimulus.Policy

	// StimulusPath is the stimulus file to load.
	StimulusPath string

	// TracePath enables waveform recording when non-empty.
	TracePath string

	// TraceDepth limits the traced hierarchy. Zero means waveform.DefaultDepth.
	TraceDepth int

	// Out receives report lines. Defaults to os.Stdout.
	Out io.Writer

	Logger *slog.Logger

	// Now reads the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// Result is the outcome of a completed run.
type Result struct {
	Duration  time.Duration
	Signature Signature
	Ticks     int
	Dumps     int
}

// Milliseconds returns the elapsed time in whole milliseconds.
func (r Result) Milliseconds() int64 {
	return r.Duration.Milliseconds()
}

// Recorder receives one dump per cycle plus an initial dump.
type Recorder interface {
	Dump() error
	Flush() error
	Close() error
}

// nopRecorder stands in when tracing is off.
type nopRecorder struct{}

func (nopRecorder) Dump() error  { return nil }
func (nopRecorder) Flush() error { return nil }
func (nopRecorder) Close() error { return nil }

// Harness holds the state of one simulation run.
type Harness struct {
	module    design.Module
	buffer    *stimulus.Buffer
	feeder    stimulus.Feeder
	recorder  Recorder
	session   *waveform.Session
	out       *bufio.Writer
	logger    *slog.Logger
	now       func() time.Time
	simlen    int
	signature Signature
	ran       bool
}

// New loads stimulus from src and prepares a run of m.
//
// The stimulus count is derived from the policy, the module's input port
// width and SimLen. Any failure here (missing or short stimulus, a Source
// that already loaded, an unwritable trace path) happens before the first
// cycle and before any report line is written.
func New(m design.Module, src *stimulus.Source, opts Options) (*Harness, error) {
	if opts.SimLen < 0 {
		return nil, fmt.Errorf("simlen must be non-negative, got %d", opts.SimLen)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	want := stimulus.RequiredCount(opts.Policy, len(m.Inputs()), opts.SimLen)
	buf, err := src.Load(opts.StimulusPath, want)
	if err != nil {
		return nil, fmt.Errorf("load stimulus: %w", err)
	}
	opts.Logger.Info("stimulus loaded",
		"path", opts.StimulusPath,
		"words", buf.Len(),
		"policy", opts.Policy.String(),
	)

	h := &Harness{
		module:   m,
		buffer:   buf,
		feeder:   stimulus.NewFeeder(opts.Policy, buf),
		recorder: nopRecorder{},
		out:      bufio.NewWriter(opts.Out),
		logger:   opts.Logger,
		now:      opts.Now,
		simlen:   opts.SimLen,
	}

	if opts.TracePath != "" {
		s, err := waveform.Open(opts.TracePath, waveform.Options{
			Depth:  opts.TraceDepth,
			Logger: opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		s.Attach(m)
		h.session = s
		h.recorder = s
		opts.Logger.Info("trace enabled", "path", opts.TracePath, "signals", s.Signals())
	}

	return h, nil
}

// Run executes every cycle and returns the elapsed time and signature.
// A harness runs at most once.
func (h *Harness) Run() (Result, error) {
	if h.ran {
		return Result{}, ErrAlreadyRan
	}
	h.ran = true

	// Modules that draw on randomness get a wall-clock seed; stimulus itself
	// comes only from the loaded file.
	start := h.now()
	seed := start.UnixNano()
	if s, ok := h.module.(design.Seeder); ok {
		s.Seed(seed)
	}
	h.logger.Debug("run starting", "design", h.module.Name(), "simlen", h.simlen, "seed", seed)

	if err := h.recorder.Dump(); err != nil {
		return Result{}, err
	}

	in := h.module.Inputs()
	for tick := 0; tick < h.simlen; tick++ {
		h.feeder.Feed(in)
		h.module.Eval()
		if err := h.recorder.Dump(); err != nil {
			return Result{}, err
		}

		for i, w := range h.module.Outputs() {
			h.signature = h.signature.Add(w)
			fmt.Fprintf(h.out, "output [%d:%d] (tick %d) = 0x%x\n",
				design.WordBits*(i+1)-1, design.WordBits*i, tick, w)
		}
	}

	if err := h.recorder.Flush(); err != nil {
		return Result{}, err
	}
	if err := h.out.Flush(); err != nil {
		return Result{}, fmt.Errorf("write report: %w", err)
	}
	elapsed := h.now().Sub(start)

	res := Result{
		Duration:  elapsed,
		Signature: h.signature,
		Ticks:     h.simlen,
	}
	if h.session != nil {
		res.Dumps = h.session.Dumps()
	}
	h.logger.Info("run complete",
		"design", h.module.Name(),
		"ticks", res.Ticks,
		"signature", uint64(res.Signature),
		"elapsed_ms", res.Milliseconds(),
	)
	return res, nil
}

// StimulusDigest returns the digest of the loaded stimulus words.
func (h *Harness) StimulusDigest() string {
	return h.buffer.Digest()
}

// Close releases the trace session, if any.
func (h *Harness) Close() error {
	return h.recorder.Close()
}

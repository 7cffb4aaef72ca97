// Package waveform records timestamped signal snapshots of a simulated module
// to a VCD (Value Change Dump) file.
//
// A Session owns the output file and its own dump clock. The first Dump writes
// the header and a full snapshot at timestamp 0; each later Dump appends the
// changed values under the next timestamp. Records are buffered until Flush or
// Close.
package waveform

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/rtlfuzz/internal/design"
)

// DefaultDepth is the default hierarchy depth registered for tracing.
const DefaultDepth = 6

// Options configures a Session.
type Options struct {
	// Depth limits how many scope levels of signals are kept.
	// Zero means DefaultDepth.
	Depth int

	// Timescale is written to the VCD header. Defaults to "1ns".
	Timescale string

	// Version is written to the VCD header. Defaults to "rtlfuzz".
	Version string

	Logger *slog.Logger
}

// Session is an open waveform recording.
type Session struct {
	vcd    *vcdWriter
	file   io.Closer
	clock  *Clock
	depth  int
	dumps  int
	logger *slog.Logger
}

// Open creates (or truncates) the VCD file at path and starts a session.
func Open(path string, opts Options) (*Session, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	s := NewSession(f, opts)
	s.file = f
	return s, nil
}

// NewSession starts a session writing to w. Close does not close w.
func NewSession(w io.Writer, opts Options) *Session {
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}
	if opts.Timescale == "" {
		opts.Timescale = "1ns"
	}
	if opts.Version == "" {
		opts.Version = "rtlfuzz"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		vcd:    newVCDWriter(w, opts.Timescale, opts.Version),
		clock:  NewClock(),
		depth:  opts.Depth,
		logger: opts.Logger,
	}
}

// Attach registers the module's signals if it implements design.Traceable.
// Modules without signals produce a waveform with timestamps only.
func (s *Session) Attach(m design.Module) {
	t, ok := m.(design.Traceable)
	if !ok {
		s.logger.Warn("module does not expose signals for tracing", "design", m.Name())
		return
	}
	t.Trace(s, s.depth)
	s.logger.Debug("trace signals registered", "design", m.Name(), "signals", len(s.vcd.signals), "depth", s.depth)
}

// Register implements design.Registrar. Signals nested deeper than the
// session depth, or registered after the first dump, are dropped.
func (s *Session) Register(sig design.Signal) {
	switch {
	case s.vcd.wroteHead:
		s.logger.Warn("signal registered after first dump, ignoring", "signal", sig.Name)
		return
	case len(sig.Scope) > s.depth:
		return
	case sig.Width < 1 || sig.Width > 64:
		s.logger.Warn("signal width out of range, ignoring", "signal", sig.Name, "width", sig.Width)
		return
	case sig.Sample == nil:
		s.logger.Warn("signal has no sampler, ignoring", "signal", sig.Name)
		return
	}
	s.vcd.add(sig)
}

// Dump appends one record stamped with the session clock.
func (s *Session) Dump() error {
	ts := s.clock.Next()
	if err := s.vcd.dump(ts); err != nil {
		return fmt.Errorf("dump at %d: %w", ts, err)
	}
	s.dumps++
	return nil
}

// Dumps returns the number of records written so far.
func (s *Session) Dumps() int {
	return s.dumps
}

// Signals returns the number of registered signals.
func (s *Session) Signals() int {
	return len(s.vcd.signals)
}

// Flush writes all buffered records.
func (s *Session) Flush() error {
	if err := s.vcd.flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file, if the session opened one.
func (s *Session) Close() error {
	err := s.Flush()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close trace: %w", cerr)
		}
		s.file = nil
	}
	return err
}

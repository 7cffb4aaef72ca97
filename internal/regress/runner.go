package regress

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/rtlfuzz/internal/config"
	"github.com/roach88/rtlfuzz/internal/design"
	"github.com/roach88/rtlfuzz/internal/sim"
	"github.com/roach88/rtlfuzz/internal/stimulus"
)

// ExecOptions controls a single run.
type ExecOptions struct {
	// Out receives report lines. Nil discards them.
	Out io.Writer

	Logger *slog.Logger

	// Now reads the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// Outcome is a completed run plus its identity.
type Outcome struct {
	Result         sim.Result
	Fingerprint    string
	StimulusDigest string
}

// Execute builds the configured design, loads its stimulus and runs it to
// completion. Per-word report lines go to opts.Out; the summary is left to
// the caller.
func Execute(cfg config.Config, opts ExecOptions) (Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return Outcome{}, err
	}
	policy, err := cfg.StimulusPolicy()
	if err != nil {
		return Outcome{}, err
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	m, err := design.New(cfg.Design, cfg.Geometry())
	if err != nil {
		return Outcome{}, err
	}

	h, err := sim.New(m, &stimulus.Source{}, sim.Options{
		SimLen:       cfg.SimLen,
		Policy:       policy,
		StimulusPath: cfg.Stimulus,
		TracePath:    cfg.Trace,
		TraceDepth:   cfg.TraceDepth,
		Out:          opts.Out,
		Logger:       opts.Logger,
		Now:          opts.Now,
	})
	if err != nil {
		return Outcome{}, err
	}
	defer h.Close()

	res, err := h.Run()
	if err != nil {
		return Outcome{}, err
	}
	if err := h.Close(); err != nil {
		return Outcome{}, err
	}

	fp, err := Fingerprint(Identity{
		Design:         cfg.Design,
		Policy:         policy.String(),
		InputWidth:     cfg.InputWidth,
		OutputWidth:    cfg.OutputWidth,
		SimLen:         cfg.SimLen,
		StimulusDigest: h.StimulusDigest(),
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Result:         res,
		Fingerprint:    fp,
		StimulusDigest: h.StimulusDigest(),
	}, nil
}

// CaseResult is the outcome of one suite case.
type CaseResult struct {
	Name        string  `json:"name"`
	Pass        bool    `json:"pass"`
	Signature   uint64  `json:"signature"`
	Expected    *uint64 `json:"expected,omitempty"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	DurationMS  int64   `json:"duration_ms"`
	Error       string  `json:"error,omitempty"`
}

// SuiteResult aggregates the case results of a suite run.
type SuiteResult struct {
	Suite  string       `json:"suite"`
	Cases  []CaseResult `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// RunSuite runs every case whose name matches filter (a filepath.Match
// pattern; empty matches all). A failing case does not stop the suite.
func RunSuite(s *Suite, filter string, opts ExecOptions) (*SuiteResult, error) {
	result := &SuiteResult{Suite: s.Name, Cases: []CaseResult{}}

	for _, c := range s.Cases {
		if filter != "" {
			matched, err := filepath.Match(filter, c.Name)
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}

		cr := runCase(c, opts)
		result.Cases = append(result.Cases, cr)
		result.Total++
		if cr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func runCase(c Case, opts ExecOptions) CaseResult {
	cr := CaseResult{Name: c.Name, Expected: c.ExpectSignature}

	out, err := Execute(c.Config, ExecOptions{Logger: opts.Logger, Now: opts.Now})
	if err != nil {
		cr.Error = err.Error()
		return cr
	}

	cr.Signature = uint64(out.Result.Signature)
	cr.Fingerprint = out.Fingerprint
	cr.DurationMS = out.Result.Milliseconds()

	if c.ExpectSignature != nil && *c.ExpectSignature != cr.Signature {
		cr.Error = fmt.Sprintf("signature mismatch: got %d, want %d", cr.Signature, *c.ExpectSignature)
		return cr
	}
	cr.Pass = true
	return cr
}

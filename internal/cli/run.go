package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/roach88/rtlfuzz/internal/config"
	"github.com/roach88/rtlfuzz/internal/regress"
	"github.com/roach88/rtlfuzz/internal/sim"
	"github.com/roach88/rtlfuzz/internal/store"
)

// ValidProfiles lists the --profile modes.
var ValidProfiles = []string{"cpu", "mem", "block", "trace"}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	ConfigPath string
	Database   string
	Bless      bool
	Expect     string
	Profile    string
	ProfileDir string

	// flags overlays the resolved config; only flags the user set apply.
	flags config.Config

	// IDGenerator overrides run ID generation (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator

	// LookupEnv overrides environment lookup (for testing).
	// If nil, defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Now overrides the wall clock (for testing).
	Now func() time.Time
}

// RunSummary is the JSON payload of a completed run.
type RunSummary struct {
	RunID          string  `json:"run_id,omitempty"`
	Design         string  `json:"design"`
	Policy         string  `json:"policy"`
	SimLen         int     `json:"simlen"`
	Signature      uint64  `json:"signature"`
	ElapsedMS      int64   `json:"elapsed_ms"`
	Dumps          int     `json:"dumps,omitempty"`
	Fingerprint    string  `json:"fingerprint"`
	StimulusDigest string  `json:"stimulus_digest"`
	Golden         *uint64 `json:"golden,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and report its signature",
		Long: `Run a built-in design for --simlen cycles, feeding it from a stimulus file.

Settings come from defaults, then --config (.yaml, .yml or .cue), then the
SIMLEN, TRACEFILE and STIMULUS_FILE environment variables, then flags.

Each output word is printed as it is produced, followed by the final
signature and the elapsed wall time in milliseconds.

With --db the run is recorded. --bless stores its signature as the golden
value for its fingerprint; later runs with the same fingerprint must match.

Example:
  rtlfuzz run --stimulus inputs.txt --simlen 1000
  SIMLEN=50 TRACEFILE=run.vcd rtlfuzz run --config run.yaml
  rtlfuzz run --config run.cue --db runs.db --bless`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .cue)")
	f.StringVar(&opts.flags.Design, "design", "", "built-in design name")
	f.IntVar(&opts.flags.InputWidth, "in-width", 0, "input port width in bits")
	f.IntVar(&opts.flags.OutputWidth, "out-width", 0, "output port width in bits")
	f.IntVar(&opts.flags.SimLen, "simlen", 0, "number of cycles to simulate")
	f.StringVar(&opts.flags.Policy, "policy", "", "stimulus policy (full|seed)")
	f.StringVar(&opts.flags.Stimulus, "stimulus", "", "stimulus file")
	f.StringVar(&opts.flags.Trace, "trace", "", "write a VCD waveform to this path")
	f.IntVar(&opts.flags.TraceDepth, "trace-depth", 0, "maximum traced hierarchy depth")
	f.StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	f.BoolVar(&opts.Bless, "bless", false, "store this run's signature as golden (requires --db)")
	f.StringVar(&opts.Expect, "expect", "", "fail unless the signature equals this value")
	f.StringVar(&opts.Profile, "profile", "", "profile the run (cpu|mem|block|trace)")
	f.StringVar(&opts.ProfileDir, "profile-dir", ".", "directory for profile output")

	return cmd
}

// resolveConfig layers defaults, config file, environment and set flags.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.FromEnv(lookup); err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("design") {
		cfg.Design = opts.flags.Design
	}
	if f.Changed("in-width") {
		cfg.InputWidth = opts.flags.InputWidth
	}
	if f.Changed("out-width") {
		cfg.OutputWidth = opts.flags.OutputWidth
	}
	if f.Changed("simlen") {
		cfg.SimLen = opts.flags.SimLen
	}
	if f.Changed("policy") {
		cfg.Policy = opts.flags.Policy
	}
	if f.Changed("stimulus") {
		cfg.Stimulus = opts.flags.Stimulus
	}
	if f.Changed("trace") {
		cfg.Trace = opts.flags.Trace
	}
	if f.Changed("trace-depth") {
		cfg.TraceDepth = opts.flags.TraceDepth
	}

	return cfg, cfg.Validate()
}

func startProfile(mode, dir string) (interface{ Stop() }, error) {
	var kind func(*profile.Profile)
	switch mode {
	case "cpu":
		kind = profile.CPUProfile
	case "mem":
		kind = profile.MemProfile
	case "block":
		kind = profile.BlockProfile
	case "trace":
		kind = profile.TraceProfile
	default:
		return nil, fmt.Errorf("invalid profile %q: must be one of %v", mode, ValidProfiles)
	}
	return profile.Start(kind, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook), nil
}

func runSimulation(opts *RunOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		out.JSONError(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Bless && opts.Database == "" {
		return NewExitError(ExitCommandError, "--bless requires --db")
	}

	var expect *uint64
	if opts.Expect != "" {
		v, err := strconv.ParseUint(opts.Expect, 0, 64)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --expect value", err)
		}
		expect = &v
	}

	// Open the database before simulating so a bad path fails fast.
	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	if opts.Profile != "" {
		p, err := startProfile(opts.Profile, opts.ProfileDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid profile", err)
		}
		defer p.Stop()
		logger.Debug("profiling", "mode", opts.Profile, "dir", opts.ProfileDir)
	}

	// JSON output replaces the per-word report lines.
	var report io.Writer = cmd.OutOrStdout()
	if out.IsJSON() {
		report = io.Discard
	}

	outcome, err := regress.Execute(cfg, regress.ExecOptions{
		Out:    report,
		Logger: logger,
		Now:    opts.Now,
	})
	if err != nil {
		out.JSONError(CodeRun, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run failed", err)
	}

	policy, _ := cfg.StimulusPolicy()
	summary := RunSummary{
		Design:         cfg.Design,
		Policy:         policy.String(),
		SimLen:         cfg.SimLen,
		Signature:      uint64(outcome.Result.Signature),
		ElapsedMS:      outcome.Result.Milliseconds(),
		Dumps:          outcome.Result.Dumps,
		Fingerprint:    outcome.Fingerprint,
		StimulusDigest: outcome.StimulusDigest,
		Golden:         expect,
	}

	if !out.IsJSON() {
		if err := sim.Report(cmd.OutOrStdout(), outcome.Result); err != nil {
			return WrapExitError(ExitCommandError, "write report", err)
		}
	}

	if st != nil {
		bless := opts.Bless
		if bless && expect != nil && *expect != summary.Signature {
			logger.Warn("signature does not match --expect, not blessing", "signature", summary.Signature, "expect", *expect)
			bless = false
		}
		golden, err := recordRun(cmd.Context(), st, opts.IDGenerator, bless, cfg, &summary, logger)
		if err != nil {
			out.JSONError(CodeStore, err.Error(), summary)
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
		if expect == nil && golden != nil {
			summary.Golden = golden
		}
	}

	if summary.Golden != nil && *summary.Golden != summary.Signature {
		msg := fmt.Sprintf("signature mismatch: got %d, want %d", summary.Signature, *summary.Golden)
		out.JSONError(CodeMismatch, msg, summary)
		return NewExitError(ExitFailure, msg)
	}

	if out.IsJSON() {
		return out.Success(summary)
	}
	return nil
}

// recordRun stores the run and, when bless is set, marks it golden. It
// returns the golden signature that applied before this run, if any.
func recordRun(ctx context.Context, st *store.Store, gen store.IDGenerator, bless bool, cfg config.Config, summary *RunSummary, logger *slog.Logger) (*uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if gen == nil {
		gen = store.UUIDv7Generator{}
	}

	prior, found, err := st.GoldenFor(ctx, summary.Fingerprint)
	if err != nil {
		return nil, err
	}

	run, err := st.WriteRun(ctx, store.Run{
		ID:             gen.Generate(),
		Fingerprint:    summary.Fingerprint,
		Design:         cfg.Design,
		Policy:         summary.Policy,
		InputWidth:     cfg.InputWidth,
		OutputWidth:    cfg.OutputWidth,
		SimLen:         cfg.SimLen,
		StimulusDigest: summary.StimulusDigest,
		Signature:      summary.Signature,
		DurationMS:     summary.ElapsedMS,
	})
	if err != nil {
		return nil, err
	}
	summary.RunID = run.ID
	logger.Info("run recorded", "id", run.ID, "seq", run.Seq, "fingerprint", run.Fingerprint)

	if bless {
		if err := st.SetGolden(ctx, run); err != nil {
			return nil, err
		}
		logger.Info("golden signature updated", "fingerprint", run.Fingerprint, "signature", run.Signature)
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	sig := prior.Signature
	return &sig, nil
}

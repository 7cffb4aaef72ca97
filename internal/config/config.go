// Package config resolves the settings of a simulation run from defaults,
// an optional YAML or CUE file, environment variables and command flags.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rtlfuzz/internal/design"
	"github.com/roach88/rtlfuzz/internal/stimulus"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by FromEnv.
const (
	EnvSimLen    = "SIMLEN"
	EnvTraceFile = "TRACEFILE"
	EnvStimulus  = "STIMULUS_FILE"
)

// Config holds everything a run needs.
type Config struct {
	// Design is the built-in design name.
	Design string `yaml:"design" json:"design"`

	// InputWidth and OutputWidth are the port widths in bits.
	InputWidth  int `yaml:"input_width" json:"input_width"`
	OutputWidth int `yaml:"output_width" json:"output_width"`

	// SimLen is the number of cycles.
	SimLen int `yaml:"simlen" json:"simlen"`

	// Policy is "full" or "seed".
	Policy string `yaml:"policy" json:"policy"`

	// Stimulus is the path of the stimulus file.
	Stimulus string `yaml:"stimulus" json:"stimulus"`

	// Trace enables waveform output at this path when set.
	Trace string `yaml:"trace,omitempty" json:"trace,omitempty"`

	// TraceDepth limits the traced hierarchy.
	TraceDepth int `yaml:"trace_depth,omitempty" json:"trace_depth,omitempty"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Design:      "passthrough",
		InputWidth:  design.WordBits,
		OutputWidth: design.WordBits,
		Policy:      stimulus.FullWidth.String(),
		TraceDepth:  6,
	}
}

// Geometry returns the configured port widths.
func (c Config) Geometry() design.Geometry {
	return design.Geometry{InputBits: c.InputWidth, OutputBits: c.OutputWidth}
}

// StimulusPolicy parses the configured policy.
func (c Config) StimulusPolicy() (stimulus.Policy, error) {
	return stimulus.ParsePolicy(c.Policy)
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	if !design.Exists(c.Design) {
		return fmt.Errorf("unknown design %q: must be one of %v", c.Design, design.Names())
	}
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	if c.SimLen < 0 {
		return fmt.Errorf("simlen must be non-negative, got %d", c.SimLen)
	}
	if _, err := c.StimulusPolicy(); err != nil {
		return err
	}
	if c.Stimulus == "" {
		return fmt.Errorf("stimulus file is required")
	}
	if c.TraceDepth < 0 {
		return fmt.Errorf("trace depth must be non-negative, got %d", c.TraceDepth)
	}
	return nil
}

// Load reads a config file on top of the defaults. The format is chosen by
// extension: .yaml/.yml or .cue. Relative stimulus and trace paths are
// resolved against the file's directory.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		cfg, err = parseYAML(data)
	case ".cue":
		cfg, err = parseCUE(path, data)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return Config{}, err
	}

	base := filepath.Dir(path)
	cfg.Stimulus = resolve(base, cfg.Stimulus)
	cfg.Trace = resolve(base, cfg.Trace)
	return cfg, nil
}

func parseYAML(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

func parseCUE(path string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("building config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("failed to parse CUE: %s", cueerrors.Details(err, nil))
	}

	v = schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// FromEnv overlays values from the process environment.
func (c *Config) FromEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSimLen); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSimLen, err)
		}
		c.SimLen = n
	}
	if v, ok := lookup(EnvTraceFile); ok && v != "" {
		c.Trace = v
	}
	if v, ok := lookup(EnvStimulus); ok && v != "" {
		c.Stimulus = v
	}
	return nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

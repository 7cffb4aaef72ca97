// Package regress runs suites of simulation cases and compares each final
// signature against an expected golden value.
//
// # Suite Format
//
// Suites are YAML files:
//
//	name: smoke
//	description: "Signature regressions for the built-in designs"
//	cases:
//	  - name: xorshift-seed
//	    design: xorshift
//	    input_width: 128
//	    output_width: 64
//	    simlen: 100
//	    policy: seed
//	    stimulus: inputs/seed.txt
//	    expect_signature: 1234567890
//
// Stimulus and trace paths are relative to the suite file. Each case runs a
// single module with its own stimulus load; cases run one after another.
package regress

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rtlfuzz/internal/config"
)

// Suite is a named list of regression cases.
type Suite struct {
	// Name identifies the suite.
	Name string `yaml:"name"`

	// Description explains what the suite covers.
	Description string `yaml:"description"`

	// Cases run in order.
	Cases []Case `yaml:"cases"`
}

// Case is one run with its expected signature.
type Case struct {
	// Name uniquely identifies the case within its suite.
	Name string `yaml:"name"`

	config.Config `yaml:",inline"`

	// ExpectSignature is the golden signature. A case without one only
	// checks that the run completes.
	ExpectSignature *uint64 `yaml:"expect_signature,omitempty"`
}

// LoadSuite reads and validates a suite file. Unknown fields are rejected.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i := range suite.Cases {
		c := &suite.Cases[i]
		applyDefaults(&c.Config)
		c.Stimulus = resolvePath(base, c.Stimulus)
		c.Trace = resolvePath(base, c.Trace)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// applyDefaults fills zero fields from config.Default.
func applyDefaults(c *config.Config) {
	d := config.Default()
	if c.Design == "" {
		c.Design = d.Design
	}
	if c.InputWidth == 0 {
		c.InputWidth = d.InputWidth
	}
	if c.OutputWidth == 0 {
		c.OutputWidth = d.OutputWidth
	}
	if c.Policy == "" {
		c.Policy = d.Policy
	}
	if c.TraceDepth == 0 {
		c.TraceDepth = d.TraceDepth
	}
}

func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Cases) == 0 {
		return fmt.Errorf("cases list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return fmt.Errorf("cases[%d]: name is required", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("cases[%d]: duplicate case name %q", i, c.Name)
		}
		seen[c.Name] = true
		if err := c.Config.Validate(); err != nil {
			return fmt.Errorf("cases[%d] (%s): %w", i, c.Name, err)
		}
	}
	return nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

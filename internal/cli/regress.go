package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rtlfuzz/internal/regress"
)

// RegressOptions holds flags for the regress command.
type RegressOptions struct {
	*RootOptions
	Filter string // case filter (glob pattern)
}

// NewRegressCommand creates the regress command.
func NewRegressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "regress <suite.yaml>",
		Short: "Run a regression suite",
		Long: `Run every case of a YAML regression suite and compare each final
signature against its expect_signature.

Cases run one after another, each with its own design instance and stimulus
load. Per-word report lines are discarded.

Example:
  rtlfuzz regress ./suites/smoke.yaml
  rtlfuzz regress ./suites/smoke.yaml --filter "xorshift-*"
  rtlfuzz regress ./suites/smoke.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegress(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "case filter (glob pattern)")

	return cmd
}

func runRegress(opts *RegressOptions, suitePath string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	suite, err := regress.LoadSuite(suitePath)
	if err != nil {
		out.JSONError(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load suite", err)
	}
	logger.Info("suite loaded", "name", suite.Name, "cases", len(suite.Cases))

	result, err := regress.RunSuite(suite, opts.Filter, regress.ExecOptions{Logger: logger})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to run suite", err)
	}

	if result.Total == 0 {
		if out.IsJSON() {
			return out.Success(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No cases found")
		return nil
	}

	if out.IsJSON() {
		return outputRegressJSON(out, result)
	}
	return outputRegressText(cmd, result)
}

func outputRegressJSON(out *OutputFormatter, result *regress.SuiteResult) error {
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d case(s) failed", result.Failed)
		if err := out.Error(CodeRegress, msg, result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(result)
}

func outputRegressText(cmd *cobra.Command, result *regress.SuiteResult) error {
	w := cmd.OutOrStdout()

	for _, c := range result.Cases {
		if c.Pass {
			fmt.Fprintf(w, "✓ %s (signature %d, %d ms)\n", c.Name, c.Signature, c.DurationMS)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", c.Name)
		fmt.Fprintf(w, "  %s\n", c.Error)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Regression Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All cases passed")
	return nil
}

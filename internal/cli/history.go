package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/rtlfuzz/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database    string
	Limit       int
	Fingerprint string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded with run --db, newest first.

With --fingerprint only runs of that fingerprint are listed, oldest first,
so signature drift reads top to bottom. --limit keeps the most recent ones.

Example:
  rtlfuzz history --db runs.db
  rtlfuzz history --db runs.db --fingerprint 3f2a...
  rtlfuzz history --db runs.db --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.Fingerprint, "fingerprint", "", "only list runs with this fingerprint")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	var runs []store.Run
	if opts.Fingerprint != "" {
		runs, err = st.RunsByFingerprint(cmd.Context(), opts.Fingerprint)
		if opts.Limit > 0 && len(runs) > opts.Limit {
			runs = runs[len(runs)-opts.Limit:]
		}
	} else {
		runs, err = st.ListRuns(cmd.Context(), opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if out.IsJSON() {
		return out.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tID\tDESIGN\tPOLICY\tSIMLEN\tSIGNATURE\tMS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\t%d\n",
			r.Seq, r.ID, r.Design, r.Policy, r.SimLen, r.Signature, r.DurationMS)
	}
	return tw.Flush()
}

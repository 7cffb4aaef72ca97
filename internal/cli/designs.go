package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rtlfuzz/internal/design"
)

// NewDesignsCommand creates the designs command.
func NewDesignsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "designs",
		Short:         "List built-in designs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := design.Names()
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if out.IsJSON() {
				return out.Success(names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

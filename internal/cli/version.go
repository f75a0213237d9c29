package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCommand creates the version command.
func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the pyrules version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pyrules v%s (%s)\n", Version, GitCommit)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Bazel py_runtime analyzer built on Starlark")
		},
	}
}

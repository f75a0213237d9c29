package cli

import (
	"github.com/spf13/cobra"

	"github.com/albertocavalcante/rules-python-go/analyzer"
)

// newCheckCommand creates the check command.
func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Analyze the workspace and report only the errors",
		Long: `Run the same analysis as "pyrules analyze" but print only the targets
that failed and the files that did not load. A clean workspace produces no
output and exit code zero. Intended for CI.`,
		Example: `  # Gate a workspace in CI
  pyrules check --workspace path/to/ws`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := GetConfig(cmd.Context())
			a, err := newAnalyzerFromConfig(cfg)
			if err != nil {
				return err
			}

			report, err := a.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			if report.OK() {
				return nil
			}
			if err := writeReport(cmd.OutOrStdout(), failedOnly(report), cfg.Output); err != nil {
				return err
			}
			return reportProblems(report)
		},
	}
}

// failedOnly strips passing targets from a report, keeping load errors.
func failedOnly(report *analyzer.Report) *analyzer.Report {
	out := &analyzer.Report{Root: report.Root, LoadErrors: report.LoadErrors}
	for _, tr := range report.Targets {
		if tr.Failed() {
			out.Targets = append(out.Targets, tr)
		}
	}
	return out
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/rules-python-go/analyzer"
)

// newAnalyzeCommand creates the analyze command.
func newAnalyzeCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "analyze [PACKAGE|BUILD_FILE]",
		Short: "Analyze the workspace and report resolved runtimes",
		Long: `Evaluate every BUILD file of the workspace, configure the targets, and
print the resulting report. With an argument (a package directory or a
BUILD file path, relative to the workspace root) only that package is
analyzed; its dependencies are loaded on demand.

The full report prints either way; the command exits non-zero when any
file failed to evaluate or any target recorded an analysis error.`,
		Example: `  # Analyze the current workspace
  pyrules analyze

  # Analyze one package as JSON
  pyrules analyze runtime --output json

  # Re-analyze whenever BUILD or .bzl files change
  pyrules analyze --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := GetConfig(cmd.Context())
			a, err := newAnalyzerFromConfig(cfg)
			if err != nil {
				return err
			}

			if watch {
				if len(args) > 0 {
					return fmt.Errorf("--watch analyzes the whole workspace, not a single package")
				}
				err := a.Watch(cmd.Context(), func(r *analyzer.Report) {
					_ = writeReport(cmd.OutOrStdout(), r, cfg.Output)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			var report *analyzer.Report
			if len(args) == 1 {
				report, err = a.AnalyzeFile(cmd.Context(), resolveBuildArg(cfg.Workspace, args[0]))
			} else {
				report, err = a.Analyze(cmd.Context())
			}
			if err != nil {
				return err
			}
			if err := writeReport(cmd.OutOrStdout(), report, cfg.Output); err != nil {
				return err
			}
			return reportProblems(report)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-analyze whenever BUILD or .bzl files change")
	return cmd
}

// newAnalyzerFromConfig builds an Analyzer over the configured workspace.
func newAnalyzerFromConfig(cfg *Config) (*analyzer.Analyzer, error) {
	pcfg, err := cfg.RuntimeConfiguration()
	if err != nil {
		return nil, err
	}
	return analyzer.New(analyzer.Options{
		WorkspaceRoot: cfg.Workspace,
		Configuration: pcfg,
		WorkspaceName: cfg.WorkspaceName,
		Parallelism:   cfg.Parallelism,
	})
}

// writeReport renders a report in the configured output format.
func writeReport(w io.Writer, report *analyzer.Report, format string) error {
	switch format {
	case "json":
		return report.WriteJSON(w)
	case "table":
		return report.WriteTable(w)
	default:
		return report.WriteText(w)
	}
}

// resolveBuildArg maps a package directory argument to its BUILD file.
// Non-directory arguments pass through untouched.
func resolveBuildArg(workspace, arg string) string {
	fi, err := os.Stat(filepath.Join(workspace, arg))
	if err != nil || !fi.IsDir() {
		return arg
	}
	for _, name := range []string{"BUILD.bazel", "BUILD"} {
		candidate := filepath.Join(arg, name)
		if _, err := os.Stat(filepath.Join(workspace, candidate)); err == nil {
			return candidate
		}
	}
	return arg
}

// reportProblems converts a report with failures into a command error.
func reportProblems(report *analyzer.Report) error {
	if report.OK() {
		return nil
	}
	return fmt.Errorf("analysis found problems: %d of %d targets failed, %d files did not load",
		report.FailedCount(), len(report.Targets), len(report.LoadErrors))
}

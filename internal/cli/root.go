// Package cli provides the command-line interface for the py_runtime
// analyzer.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/rules-python-go/internal/ctxslog"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pyrules",
		Short: "pyrules - Python runtime target analyzer",
		Long: `pyrules evaluates the BUILD files of a Bazel workspace, configures every
target it finds, and reports the resolved py_runtime descriptors along with
any analysis errors. Custom Starlark rules loaded from .bzl files are
configured too.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands.
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfgFile, _ := cmd.Root().PersistentFlags().GetString("config")
			cfg, err := LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := ctxslog.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = ctxslog.WithLogger(ctx, logger)
			cmd.SetContext(ctx)

			if cfg.ConfigFileUsed != "" {
				logger.Debug("using config file", "path", cfg.ConfigFileUsed)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags.
	rootCmd.PersistentFlags().String("config", "", "config file (default: <workspace>/pyrules.yaml)")
	rootCmd.PersistentFlags().StringP("workspace", "w", DefaultWorkspace, "workspace root directory")
	rootCmd.PersistentFlags().String("workspace-name", "", "workspace name used in runfiles paths")
	rootCmd.PersistentFlags().String("python-version", DefaultPythonVersion, "default Python major version (PY2|PY3)")
	rootCmd.PersistentFlags().Bool("use-python-toolchains", true, "resolve runtimes via toolchains; requires an explicit python_version on py_runtime targets")
	rootCmd.PersistentFlags().StringP("output", "o", DefaultOutput, "output format (text|table|json)")
	rootCmd.PersistentFlags().String("log-level", DefaultLogLevel, "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", DefaultLogFormat, "log format (text|json)")
	rootCmd.PersistentFlags().IntP("parallelism", "j", 0, "number of BUILD files evaluated concurrently (0 = GOMAXPROCS)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("python-version", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"PY2", "PY3"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newAnalyzeCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newDescribeCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command with a context that cancels on SIGINT or
// SIGTERM, so watch mode shuts down cleanly.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	// Default config if none in context.
	return &Config{
		Workspace:           DefaultWorkspace,
		PythonVersion:       DefaultPythonVersion,
		UsePythonToolchains: true,
		Output:              DefaultOutput,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/albertocavalcante/rules-python-go/python"
)

// Config holds all CLI configuration options.
type Config struct {
	Workspace           string `koanf:"workspace"`
	WorkspaceName       string `koanf:"workspace_name"`
	PythonVersion       string `koanf:"python_version"`
	UsePythonToolchains bool   `koanf:"use_python_toolchains"`
	Output              string `koanf:"output"`
	LogLevel            string `koanf:"log_level"`
	LogFormat           string `koanf:"log_format"`
	Parallelism         int    `koanf:"parallelism"`

	// ConfigFileUsed is the path of the YAML file the values were layered
	// from, empty when none was found.
	ConfigFileUsed string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultWorkspace     = "."
	DefaultPythonVersion = "PY3"
	DefaultOutput        = "text"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// findConfigFile finds the config file to use.
// Priority: explicit path > pyrules.yaml > pyrules.yml in the workspace.
func findConfigFile(explicit, workspace string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"pyrules.yaml", "pyrules.yml"} {
		candidate := filepath.Join(workspace, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// workspaceHint returns the directory searched for a config file before the
// full configuration is known: the --workspace flag when given, else CWD.
func workspaceHint(flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("workspace") {
		if v, _ := flags.GetString("workspace"); v != "" {
			return v
		}
	}
	return DefaultWorkspace
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults.
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"workspace":             DefaultWorkspace,
		"workspace_name":        "",
		"python_version":        DefaultPythonVersion,
		"use_python_toolchains": true,
		"output":                DefaultOutput,
		"log_level":             DefaultLogLevel,
		"log_format":            DefaultLogFormat,
		"parallelism":           0,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file, searched in the workspace directory unless given
	// explicitly.
	configFileUsed := findConfigFile(cfgFile, workspaceHint(flags))
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables (PYRULES_ prefix).
	// Transform: PYRULES_PYTHON_VERSION -> python_version.
	if err := k.Load(env.Provider("PYRULES_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "PYRULES_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority).
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set.
			if !f.Changed {
				return "", nil
			}
			// Transform kebab-case to snake_case for config keys.
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ConfigFileUsed = configFileUsed

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values no command could act on.
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "table", "json":
	default:
		return fmt.Errorf("invalid output format %q: must be one of text, table, json", c.Output)
	}
	if _, err := python.ParseTargetVersion(c.PythonVersion); err != nil {
		return fmt.Errorf("invalid python_version: %w", err)
	}
	if c.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative, got %d", c.Parallelism)
	}
	return nil
}

// RuntimeConfiguration builds the analysis-time Python configuration the
// loaded settings describe.
func (c *Config) RuntimeConfiguration() (*python.Configuration, error) {
	v, err := python.ParseTargetVersion(c.PythonVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid python_version: %w", err)
	}
	return python.NewConfiguration(c.UsePythonToolchains, v)
}

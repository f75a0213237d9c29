package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/rules-python-go/analysis"
	"github.com/albertocavalcante/rules-python-go/providers"
	"github.com/albertocavalcante/rules-python-go/python"
	"github.com/albertocavalcante/rules-python-go/types"
)

// newDescribeCommand creates the describe command.
func newDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [rule|provider] [NAME]",
		Short: "Describe built-in rules and providers",
		Long: `Print the schema of a built-in rule or provider as JSON: attribute
types, defaults, allowed values, and required providers. Without arguments,
list everything known.`,
		Example: `  # List known rules and providers
  pyrules describe

  # Show the py_runtime attribute schema
  pyrules describe rule py_runtime

  # Show the PyRuntimeInfo fields
  pyrules describe PyRuntimeInfo`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch len(args) {
			case 0:
				return describeAll(w)
			case 1:
				return describeName(w, args[0])
			default:
				switch args[0] {
				case "rule":
					rc, ok := builtinRules()[args[1]]
					if !ok {
						return fmt.Errorf("unknown rule %q", args[1])
					}
					return analysis.NewPrettyPrinter(w).PrintRule(rc)
				case "provider":
					p, ok := builtinProviders()[args[1]]
					if !ok {
						return fmt.Errorf("unknown provider %q", args[1])
					}
					return analysis.NewPrettyPrinter(w).PrintProvider(p)
				default:
					return fmt.Errorf("unknown kind %q: must be rule or provider", args[0])
				}
			}
		},
	}
}

func builtinRules() map[string]*types.RuleClass {
	return map[string]*types.RuleClass{
		python.RuleName: python.RuleClass(),
	}
}

func builtinProviders() map[string]*types.Provider {
	return map[string]*types.Provider{
		python.ProviderName: python.InfoProvider,
		"DefaultInfo":       providers.DefaultInfoProvider,
		"OutputGroupInfo":   providers.OutputGroupInfoProvider,
	}
}

func describeAll(w io.Writer) error {
	rules := builtinRules()
	names := make([]string, 0, len(rules))
	for name := range rules {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintln(w, "Rules:"); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "  %s\n", analysis.FormatRuleSummary(rules[name])); err != nil {
			return err
		}
	}

	provs := builtinProviders()
	names = names[:0]
	for name := range provs {
		names = append(names, name)
	}
	sort.Strings(names)

	if _, err := fmt.Fprintln(w, "Providers:"); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "  %s\n", analysis.FormatProviderSummary(provs[name])); err != nil {
			return err
		}
	}
	return nil
}

// describeName resolves a bare name against rules first, then providers.
func describeName(w io.Writer, name string) error {
	if rc, ok := builtinRules()[name]; ok {
		return analysis.NewPrettyPrinter(w).PrintRule(rc)
	}
	if p, ok := builtinProviders()[name]; ok {
		return analysis.NewPrettyPrinter(w).PrintProvider(p)
	}
	return fmt.Errorf("unknown rule or provider %q", name)
}

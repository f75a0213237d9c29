package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/albertocavalcante/rules-python-go/types"
)

// PrettyPrinter formats analysis records for display.
type PrettyPrinter struct {
	indent string
	writer io.Writer
}

// NewPrettyPrinter creates a new PrettyPrinter.
func NewPrettyPrinter(w io.Writer) *PrettyPrinter {
	return &PrettyPrinter{
		indent: "  ",
		writer: w,
	}
}

// SetIndent sets the indentation string.
func (p *PrettyPrinter) SetIndent(indent string) {
	p.indent = indent
}

// PrintRule prints a rule class.
func (p *PrettyPrinter) PrintRule(rc *types.RuleClass) error {
	info := IntrospectRule(rc)
	return p.printJSON(info)
}

// PrintProvider prints a provider.
func (p *PrettyPrinter) PrintProvider(prov *types.Provider) error {
	info := IntrospectProvider(prov)
	return p.printJSON(info)
}

// PrintTarget prints a target.
func (p *PrettyPrinter) PrintTarget(ri *types.RuleInstance) error {
	info := IntrospectTarget(ri)
	return p.printJSON(info)
}

// PrintConfiguredTarget prints an analyzed target.
func (p *PrettyPrinter) PrintConfiguredTarget(ct *ConfiguredTarget) error {
	info := IntrospectConfiguredTarget(ct)
	return p.printJSON(info)
}

// PrintAttr prints an attribute.
func (p *PrettyPrinter) PrintAttr(attr *types.AttrDescriptor, name string) error {
	info := IntrospectAttr(attr)
	output := map[string]any{
		"name": name,
		"info": info,
	}
	return p.printJSON(output)
}

func (p *PrettyPrinter) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", p.indent)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.writer, string(data))
	return err
}

// FormatRuleSummary returns a one-line summary of a rule.
func FormatRuleSummary(rc *types.RuleClass) string {
	var sb strings.Builder
	sb.WriteString(rc.Name())
	sb.WriteString("(")

	first := true
	for _, attrName := range rc.AttrDescriptorList() {
		attr, ok := rc.GetAttr(attrName)
		if !ok {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(attrName)
		if attr.Mandatory {
			sb.WriteString(" [required]")
		}
	}
	sb.WriteString(")")

	return sb.String()
}

// FormatProviderSummary returns a one-line summary of a provider.
func FormatProviderSummary(prov *types.Provider) string {
	var sb strings.Builder
	sb.WriteString(prov.Name())
	sb.WriteString("(")
	sb.WriteString(strings.Join(prov.Fields(), ", "))
	sb.WriteString(")")
	return sb.String()
}

// FormatTargetSummary returns a one-line summary of a target.
func FormatTargetSummary(ri *types.RuleInstance) string {
	if ri.Label() != nil {
		return ri.Label().String()
	}
	return fmt.Sprintf(":%s", ri.Name())
}

// FormatErrorSummary returns a one-line summary of an analysis error.
func FormatErrorSummary(label *types.Label, e Error) string {
	where := "//:unknown"
	if label != nil {
		where = label.String()
	}
	return fmt.Sprintf("%s: %s: %s", where, e.Kind, e.Error())
}

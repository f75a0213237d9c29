// Package analysis implements the analysis phase of the Python rules dialect.
//
// This file extracts JSON-friendly introspection records from rule classes,
// rule instances, providers, and configured targets, for the describe and
// report surfaces of the command line tool.
package analysis

import (
	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// RuleInfo contains introspection data about a rule class.
type RuleInfo struct {
	Name      string               `json:"name"`
	Attrs     map[string]*AttrInfo `json:"attrs"`
	Provides  []string             `json:"provides,omitempty"`
	Fragments []string             `json:"fragments,omitempty"`
	Doc       string               `json:"doc,omitempty"`
}

// AttrInfo contains introspection data about an attribute.
type AttrInfo struct {
	Type            string   `json:"type"`
	Mandatory       bool     `json:"mandatory"`
	NonConfigurable bool     `json:"non_configurable,omitempty"`
	SingleFile      bool     `json:"single_file,omitempty"`
	AllowedValues   []string `json:"allowed_values,omitempty"`
	Default         any      `json:"default,omitempty"`
	Doc             string   `json:"doc,omitempty"`
}

// ProviderInfo contains introspection data about a provider.
type ProviderInfo struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Doc    string   `json:"doc,omitempty"`
}

// IntrospectRule returns info about a RuleClass.
func IntrospectRule(rc *types.RuleClass) *RuleInfo {
	info := &RuleInfo{
		Name:      rc.Name(),
		Attrs:     make(map[string]*AttrInfo),
		Fragments: rc.Fragments(),
		Doc:       rc.Doc(),
	}

	for name, attr := range rc.Attrs() {
		info.Attrs[name] = IntrospectAttr(attr)
	}

	for _, p := range rc.Provides() {
		info.Provides = append(info.Provides, p.(interface{ Name() string }).Name())
	}

	return info
}

// IntrospectAttr returns info about an AttrDescriptor.
func IntrospectAttr(attr *types.AttrDescriptor) *AttrInfo {
	info := &AttrInfo{
		Type:            string(attr.Type),
		Mandatory:       attr.Mandatory,
		NonConfigurable: attr.NonConfigurable,
		SingleFile:      attr.SingleFile,
		AllowedValues:   attr.AllowedValues,
		Doc:             attr.Doc,
	}

	if attr.Default != nil {
		info.Default = starlarkToGo(attr.Default)
	}

	return info
}

// IntrospectProvider returns info about a Provider.
func IntrospectProvider(p *types.Provider) *ProviderInfo {
	return &ProviderInfo{
		Name:   p.Name(),
		Fields: p.Fields(),
		Doc:    p.Doc(),
	}
}

// starlarkToGo converts a Starlark value to a Go value for JSON serialization.
func starlarkToGo(v starlark.Value) any {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.String()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case *starlark.List:
		result := make([]any, x.Len())
		for i := 0; i < x.Len(); i++ {
			result[i] = starlarkToGo(x.Index(i))
		}
		return result
	case starlark.Tuple:
		result := make([]any, len(x))
		for i, v := range x {
			result[i] = starlarkToGo(v)
		}
		return result
	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range x.Items() {
			key, ok := item[0].(starlark.String)
			if ok {
				result[string(key)] = starlarkToGo(item[1])
			}
		}
		return result
	default:
		return v.String()
	}
}

// TargetInfo contains introspection data about an unanalyzed target.
type TargetInfo struct {
	Name  string         `json:"name"`
	Label string         `json:"label,omitempty"`
	Rule  string         `json:"rule"`
	Attrs map[string]any `json:"attrs"`
}

// IntrospectTarget returns info about a RuleInstance.
func IntrospectTarget(ri *types.RuleInstance) *TargetInfo {
	info := &TargetInfo{
		Name:  ri.Name(),
		Rule:  ri.RuleClassName(),
		Attrs: make(map[string]any),
	}
	if ri.Label() != nil {
		info.Label = ri.Label().String()
	}

	for name, v := range ri.AttrValues() {
		info.Attrs[name] = starlarkToGo(v)
	}

	return info
}

// ConfiguredTargetInfo contains introspection data about an analyzed target.
type ConfiguredTargetInfo struct {
	Label      string         `json:"label,omitempty"`
	Kind       string         `json:"kind"`
	Files      []string       `json:"files"`
	Executable string         `json:"executable,omitempty"`
	Providers  map[string]any `json:"providers,omitempty"`
}

// IntrospectConfiguredTarget returns info about a ConfiguredTarget.
func IntrospectConfiguredTarget(ct *ConfiguredTarget) *ConfiguredTargetInfo {
	info := &ConfiguredTargetInfo{
		Kind:  ct.Kind(),
		Files: []string{},
	}
	if ct.Label() != nil {
		info.Label = ct.Label().String()
	}
	for _, f := range ct.FilesToBuild().Files() {
		info.Files = append(info.Files, f.Path())
	}
	if exe, ok := ct.ExecutableOutput(); ok {
		info.Executable = exe.Path()
	}
	for _, p := range ct.DeclaredProviders() {
		if info.Providers == nil {
			info.Providers = make(map[string]any)
		}
		info.Providers[p.Type()] = providerFields(p)
	}
	return info
}

// providerFields renders a declared provider's attributes for display.
func providerFields(p starlark.Value) any {
	attrs, ok := p.(starlark.HasAttrs)
	if !ok {
		return p.String()
	}
	fields := make(map[string]any)
	for _, name := range attrs.AttrNames() {
		v, err := attrs.Attr(name)
		if err != nil || v == nil {
			continue
		}
		fields[name] = starlarkToGo(v)
	}
	return fields
}

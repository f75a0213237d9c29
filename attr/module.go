package attr

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/albertocavalcante/rules-python-go/types"
)

// Module returns the "attr" module for use in Starlark.
// Reference: StarlarkAttrModuleApi.java
func Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "attr",
		Members: starlark.StringDict{
			"string":      starlark.NewBuiltin("attr.string", attrString),
			"int":         starlark.NewBuiltin("attr.int", attrInt),
			"bool":        starlark.NewBuiltin("attr.bool", attrBool),
			"label":       starlark.NewBuiltin("attr.label", attrLabel),
			"label_list":  starlark.NewBuiltin("attr.label_list", attrLabelList),
			"string_list": starlark.NewBuiltin("attr.string_list", attrStringList),
			"string_dict": starlark.NewBuiltin("attr.string_dict", attrStringDict),
		},
	}
}

// attrString implements attr.string().
// Reference: StarlarkAttrModuleApi.java stringAttribute()
// Parameters from reference:
//   - default: "" (empty string)
//   - doc: None
//   - mandatory: False
//   - values: [] (empty list of allowed values)
func attrString(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		defaultVal starlark.Value = starlark.String("")
		doc        starlark.Value = starlark.None
		mandatory  bool           = false
		values     *starlark.List = starlark.NewList(nil)
	)

	if err := starlark.UnpackArgs("attr.string", args, kwargs,
		"default?", &defaultVal,
		"doc?", &doc,
		"mandatory?", &mandatory,
		"values?", &values,
	); err != nil {
		return nil, err
	}

	schema := &types.AttrDescriptor{
		Type:      types.AttrTypeString,
		Default:   defaultVal,
		Mandatory: mandatory,
		Doc:       docString(doc),
	}

	// Reference: StarlarkAttrModule.java - VALUES_ARG handling
	if values != nil && values.Len() > 0 {
		allowed := make([]string, values.Len())
		for i := 0; i < values.Len(); i++ {
			s, ok := values.Index(i).(starlark.String)
			if !ok {
				return nil, fmt.Errorf("attr.string: values element must be a string, got %s", values.Index(i).Type())
			}
			allowed[i] = string(s)
		}
		schema.AllowedValues = allowed
	}

	return NewDescriptor(schema), nil
}

// attrInt implements attr.int().
// Reference: StarlarkAttrModuleApi.java intAttribute()
// Parameters from reference:
//   - default: 0
//   - doc: None
//   - mandatory: False
func attrInt(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		defaultVal starlark.Int   = starlark.MakeInt(0)
		doc        starlark.Value = starlark.None
		mandatory  bool           = false
	)

	if err := starlark.UnpackArgs("attr.int", args, kwargs,
		"default?", &defaultVal,
		"doc?", &doc,
		"mandatory?", &mandatory,
	); err != nil {
		return nil, err
	}

	schema := &types.AttrDescriptor{
		Type:      types.AttrTypeInt,
		Default:   defaultVal,
		Mandatory: mandatory,
		Doc:       docString(doc),
	}

	return NewDescriptor(schema), nil
}

// attrBool implements attr.bool().
// Reference: StarlarkAttrModuleApi.java boolAttribute()
// Parameters from reference:
//   - default: False
//   - doc: None
//   - mandatory: False
func attrBool(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		defaultVal bool           = false
		doc        starlark.Value = starlark.None
		mandatory  bool           = false
	)

	if err := starlark.UnpackArgs("attr.bool", args, kwargs,
		"default?", &defaultVal,
		"doc?", &doc,
		"mandatory?", &mandatory,
	); err != nil {
		return nil, err
	}

	schema := &types.AttrDescriptor{
		Type:      types.AttrTypeBool,
		Default:   starlark.Bool(defaultVal),
		Mandatory: mandatory,
		Doc:       docString(doc),
	}

	return NewDescriptor(schema), nil
}

// attrLabel implements attr.label().
// Reference: StarlarkAttrModuleApi.java labelAttribute()
// Parameters from reference:
//   - default: None (can be Label or String)
//   - doc: None
//   - executable: False
//   - allow_files: None (can be bool or list of extensions)
//   - allow_single_file: None
//   - mandatory: False
//   - providers: []
//   - cfg: None ("target" or "exec")
func attrLabel(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		defaultVal      starlark.Value = starlark.None
		doc             starlark.Value = starlark.None
		executable      bool           = false
		allowFiles      starlark.Value = starlark.None
		allowSingleFile starlark.Value = starlark.None
		mandatory       bool           = false
		providers       *starlark.List = starlark.NewList(nil)
		cfg             starlark.Value = starlark.None
	)

	if err := starlark.UnpackArgs("attr.label", args, kwargs,
		"default?", &defaultVal,
		"doc?", &doc,
		"executable?", &executable,
		"allow_files?", &allowFiles,
		"allow_single_file?", &allowSingleFile,
		"mandatory?", &mandatory,
		"providers?", &providers,
		"cfg?", &cfg,
	); err != nil {
		return nil, err
	}

	// Reference: StarlarkAttrModule.java - cannot specify both allow_files and allow_single_file
	if allowFiles != starlark.None && allowSingleFile != starlark.None {
		return nil, fmt.Errorf("attr.label: Cannot specify both allow_files and allow_single_file")
	}

	// Reference: StarlarkAttrModule.java - cfg is required when executable=True
	if executable && cfg == starlark.None {
		return nil, fmt.Errorf("attr.label: cfg parameter is mandatory when executable=True is provided")
	}

	schema := &types.AttrDescriptor{
		Type:       types.AttrTypeLabel,
		Default:    defaultVal,
		Mandatory:  mandatory,
		Executable: executable,
		Doc:        docString(doc),
	}

	// The extension filter is accepted for compatibility; prerequisite file
	// types are not checked during analysis.
	// Reference: StarlarkAttrModule.java setAllowedFileTypes()
	if allowFiles != starlark.None {
		if _, err := parseAllowFiles(allowFiles); err != nil {
			return nil, fmt.Errorf("attr.label: %w", err)
		}
	}

	if allowSingleFile != starlark.None {
		single, err := parseAllowFiles(allowSingleFile)
		if err != nil {
			return nil, fmt.Errorf("attr.label: %w", err)
		}
		schema.SingleFile = single
	}

	// Reference: StarlarkAttrModule.java buildProviderPredicate()
	if providers != nil && providers.Len() > 0 {
		refs, err := parseProviders(providers)
		if err != nil {
			return nil, fmt.Errorf("attr.label: %w", err)
		}
		schema.RequiredProviders = refs
	}

	if err := checkCfg("attr.label", cfg); err != nil {
		return nil, err
	}

	return NewDescriptor(schema), nil
}

// attrLabelList implements attr.label_list().
// Reference: StarlarkAttrModuleApi.java labelListAttribute()
// Parameters from reference:
//   - allow_empty: True
//   - default: []
//   - doc: None
//   - allow_files: None
//   - providers: []
//   - mandatory: False
//   - cfg: None
func attrLabelList(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		allowEmpty starlark.Value = starlark.True
		defaultVal starlark.Value = starlark.NewList(nil)
		doc        starlark.Value = starlark.None
		allowFiles starlark.Value = starlark.None
		providers  *starlark.List = starlark.NewList(nil)
		mandatory  bool           = false
		cfg        starlark.Value = starlark.None
	)

	if err := starlark.UnpackArgs("attr.label_list", args, kwargs,
		"allow_empty?", &allowEmpty,
		"default?", &defaultVal,
		"doc?", &doc,
		"allow_files?", &allowFiles,
		"providers?", &providers,
		"mandatory?", &mandatory,
		"cfg?", &cfg,
	); err != nil {
		return nil, err
	}

	schema := &types.AttrDescriptor{
		Type:       types.AttrTypeLabelList,
		Default:    defaultVal,
		Mandatory:  mandatory,
		AllowEmpty: true,
		Doc:        docString(doc),
	}

	// Reference: StarlarkAttrModule.java - ALLOW_EMPTY_ARG handling
	if allowEmpty == starlark.False {
		schema.AllowEmpty = false
	}

	if allowFiles != starlark.None {
		if _, err := parseAllowFiles(allowFiles); err != nil {
			return nil, fmt.Errorf("attr.label_list: %w", err)
		}
	}

	if providers != nil && providers.Len() > 0 {
		refs, err := parseProviders(providers)
		if err != nil {
			return nil, fmt.Errorf("attr.label_list: %w", err)
		}
		schema.RequiredProviders = refs
	}

	if err := checkCfg("attr.label_list", cfg); err != nil {
		return nil, err
	}

	return NewDescriptor(schema), nil
}

// attrStringList implements attr.string_list().
// Reference: StarlarkAttrModuleApi.java stringListAttribute()
// Parameters from reference:
//   - mandatory: False
//   - allow_empty: True
//   - default: []
//   - doc: None
func attrStringList(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		mandatory  bool           = false
		allowEmpty starlark.Value = starlark.True
		defaultVal starlark.Value = starlark.NewList(nil)
		doc        starlark.Value = starlark.None
	)

	if err := starlark.UnpackArgs("attr.string_list", args, kwargs,
		"mandatory?", &mandatory,
		"allow_empty?", &allowEmpty,
		"default?", &defaultVal,
		"doc?", &doc,
	); err != nil {
		return nil, err
	}

	schema := &types.AttrDescriptor{
		Type:       types.AttrTypeStringList,
		Default:    defaultVal,
		Mandatory:  mandatory,
		AllowEmpty: true,
		Doc:        docString(doc),
	}

	if allowEmpty == starlark.False {
		schema.AllowEmpty = false
	}

	return NewDescriptor(schema), nil
}

// attrStringDict implements attr.string_dict().
// Reference: StarlarkAttrModuleApi.java stringDictAttribute()
// Parameters from reference:
//   - allow_empty: True
//   - default: {}
//   - doc: None
//   - mandatory: False
func attrStringDict(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		allowEmpty starlark.Value = starlark.True
		defaultVal starlark.Value = starlark.NewDict(0)
		doc        starlark.Value = starlark.None
		mandatory  bool           = false
	)

	if err := starlark.UnpackArgs("attr.string_dict", args, kwargs,
		"allow_empty?", &allowEmpty,
		"default?", &defaultVal,
		"doc?", &doc,
		"mandatory?", &mandatory,
	); err != nil {
		return nil, err
	}

	schema := &types.AttrDescriptor{
		Type:       types.AttrTypeStringDict,
		Default:    defaultVal,
		Mandatory:  mandatory,
		AllowEmpty: true,
		Doc:        docString(doc),
	}

	if allowEmpty == starlark.False {
		schema.AllowEmpty = false
	}

	return NewDescriptor(schema), nil
}

// docString extracts the doc parameter, which is None or a string.
func docString(doc starlark.Value) string {
	if s, ok := doc.(starlark.String); ok {
		return string(s)
	}
	return ""
}

// checkCfg validates the cfg parameter. Configuration transitions are not
// modeled; only the two literal configurations are accepted.
// Reference: StarlarkAttrModule.java convertCfg()
func checkCfg(fn string, cfg starlark.Value) error {
	if cfg == starlark.None {
		return nil
	}
	s, ok := cfg.(starlark.String)
	if !ok {
		return fmt.Errorf("%s: cfg must be 'target' or 'exec', got %s", fn, cfg.Type())
	}
	if s != "target" && s != "exec" {
		return fmt.Errorf("%s: cfg must be 'target' or 'exec', got %q", fn, string(s))
	}
	return nil
}

// parseAllowFiles parses the allow_files / allow_single_file parameter.
// Reference: StarlarkAttrModule.java setAllowedFileTypes()
// Can be:
// - True: allow any file
// - False: allow no files
// - list or tuple of strings: allow files with these extensions
// The boolean result reports whether any file is allowed.
func parseAllowFiles(v starlark.Value) (bool, error) {
	switch x := v.(type) {
	case starlark.Bool:
		return bool(x), nil
	case *starlark.List:
		for i := 0; i < x.Len(); i++ {
			if _, ok := x.Index(i).(starlark.String); !ok {
				return false, fmt.Errorf("allow_files element must be a string, got %s", x.Index(i).Type())
			}
		}
		return x.Len() > 0, nil
	case starlark.Tuple:
		for i := 0; i < len(x); i++ {
			if _, ok := x[i].(starlark.String); !ok {
				return false, fmt.Errorf("allow_files element must be a string, got %s", x[i].Type())
			}
		}
		return len(x) > 0, nil
	default:
		return false, fmt.Errorf("allow_files must be a boolean or a list of strings, got %s", v.Type())
	}
}

// parseProviders collects the providers parameter. The parameter is a list
// of providers or a list of lists of providers; nested lists are flattened,
// so every listed provider becomes required. Elements are kept as the values
// that named them, since a provider declared earlier in the same .bzl file
// has no name until the file finishes evaluating.
// Reference: StarlarkAttrModule.java buildProviderPredicate()
func parseProviders(list *starlark.List) ([]starlark.Value, error) {
	var refs []starlark.Value
	for i := 0; i < list.Len(); i++ {
		if inner, ok := list.Index(i).(*starlark.List); ok {
			for j := 0; j < inner.Len(); j++ {
				if err := checkProviderRef(inner.Index(j)); err != nil {
					return nil, fmt.Errorf("providers[%d][%d]: %w", i, j, err)
				}
				refs = append(refs, inner.Index(j))
			}
			continue
		}
		if err := checkProviderRef(list.Index(i)); err != nil {
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		refs = append(refs, list.Index(i))
	}
	return refs, nil
}

func checkProviderRef(v starlark.Value) error {
	switch v.(type) {
	case *types.Provider, *starlark.Builtin:
		return nil
	default:
		return fmt.Errorf("got %s, want provider", v.Type())
	}
}

// Package types provides the core Starlark values of the Python rules dialect.
//
// This file implements RuleClass, the schema of a natively-defined rule such
// as py_runtime. A RuleClass knows its attribute descriptors and validates a
// BUILD-file invocation into a RuleInstance; analysis of the instance happens
// later, in the analysis package.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/RuleClass.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/bazel/rules/python/BazelPyRuntimeRule.java
package types

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// AttrType represents the type of a rule attribute.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/Type.java
type AttrType string

const (
	AttrTypeString     AttrType = "string"
	AttrTypeInt        AttrType = "int"
	AttrTypeBool       AttrType = "bool"
	AttrTypeLabel      AttrType = "label"
	AttrTypeLabelList  AttrType = "label_list"
	AttrTypeStringList AttrType = "string_list"
	AttrTypeStringDict AttrType = "string_dict"
)

// AttrDescriptor describes a rule attribute's schema.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/Attribute.java
type AttrDescriptor struct {
	Name            string         // The attribute name
	Type            AttrType       // The attribute type
	Default         starlark.Value // Default value (or nil if mandatory)
	Mandatory       bool           // Whether the attribute is required
	Doc             string         // Documentation string
	NonConfigurable bool           // Not subject to configuration (select)
	SingleFile      bool           // Whether a label must reference a single file
	Executable      bool           // Whether a label must reference an executable
	AllowEmpty      bool           // Whether an empty list is allowed
	AllowedValues   []string       // Allowed string values (empty means any)

	// RequiredProviders lists the providers every prerequisite reached
	// through this attribute must advertise, from attr.label(providers = [...]).
	// Elements are the Starlark values that named them: a *Provider, possibly
	// not yet exported at declaration time, or a native constructor builtin.
	// ProviderName resolves them once analysis begins.
	// Reference: Attribute.java mandatoryProvidersList
	RequiredProviders []starlark.Value
}

// RuleClass represents a native rule schema such as py_runtime.
// When called in a BUILD file, it creates a RuleInstance (target).
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/RuleClass.java
type RuleClass struct {
	// Core identity
	name string // The rule class name (e.g., "py_runtime")

	// Declared attributes, including the implicit ones every rule carries.
	// Reference: RuleClass.java lines 1890-1920 - attribute handling
	attrs map[string]*AttrDescriptor

	// Providers this rule advertises it will return, as the Starlark values
	// that named them (see AttrDescriptor.RequiredProviders).
	provides []starlark.Value

	// Whether this rule produces an executable target.
	executable bool

	// Whether this is a test rule.
	// Reference: RuleClass.java RuleClassType.TEST
	test bool

	// Configuration fragments required by this rule.
	// py_runtime requires the "python" fragment.
	fragments []string

	// Toolchains required by this rule.
	toolchains []starlark.Value

	// Starlark implementation function, or nil for native rules whose
	// analysis is written in Go (py_runtime).
	// Reference: StarlarkRuleClassFunctions.java - rule() "implementation"
	implementation starlark.Callable

	// Documentation string for the rule.
	doc string

	// Whether the rule class has been assigned its global .bzl name.
	// Native rules are exported from creation.
	// Reference: StarlarkRuleFunction.java export()
	exported bool

	frozen bool
}

var (
	_ starlark.Value    = (*RuleClass)(nil)
	_ starlark.Callable = (*RuleClass)(nil)
	_ starlark.HasAttrs = (*RuleClass)(nil)
)

// NewRuleClass creates a new RuleClass with the given name and attributes.
func NewRuleClass(
	name string,
	attrs map[string]*AttrDescriptor,
	opts ...RuleClassOption,
) *RuleClass {
	rc := &RuleClass{
		name:     name,
		attrs:    attrs,
		exported: name != "",
	}

	// Apply options
	for _, opt := range opts {
		opt(rc)
	}

	// Add implicit attributes that all rules have.
	// Reference: RuleClass.java lines 119-124 - NAME_ATTRIBUTE
	// Reference: BaseRuleClasses.java lines 221-293 - commonCoreAndStarlarkAttributes
	rc.addImplicitAttributes()

	return rc
}

// RuleClassOption is a functional option for configuring RuleClass.
type RuleClassOption func(*RuleClass)

// WithExecutable sets whether the rule produces an executable.
func WithExecutable(executable bool) RuleClassOption {
	return func(rc *RuleClass) {
		rc.executable = executable
	}
}

// WithTest sets whether this is a test rule.
func WithTest(test bool) RuleClassOption {
	return func(rc *RuleClass) {
		rc.test = test
	}
}

// WithProvides sets the providers this rule advertises.
func WithProvides(provides []starlark.Value) RuleClassOption {
	return func(rc *RuleClass) {
		rc.provides = provides
	}
}

// WithFragments sets the configuration fragments.
func WithFragments(fragments []string) RuleClassOption {
	return func(rc *RuleClass) {
		rc.fragments = fragments
	}
}

// WithToolchains sets the required toolchains.
func WithToolchains(toolchains []starlark.Value) RuleClassOption {
	return func(rc *RuleClass) {
		rc.toolchains = toolchains
	}
}

// WithImplementation sets the Starlark implementation function.
func WithImplementation(impl starlark.Callable) RuleClassOption {
	return func(rc *RuleClass) {
		rc.implementation = impl
	}
}

// WithDoc sets the documentation string.
func WithDoc(doc string) RuleClassOption {
	return func(rc *RuleClass) {
		rc.doc = doc
	}
}

// addImplicitAttributes adds the standard implicit attributes to all rules.
// Reference: RuleClass.java NAME_ATTRIBUTE (line 120)
// Reference: BaseRuleClasses.java commonCoreAndStarlarkAttributes (lines 221-293)
func (rc *RuleClass) addImplicitAttributes() {
	if rc.attrs == nil {
		rc.attrs = make(map[string]*AttrDescriptor)
	}

	// name attribute - mandatory for all rules
	// Reference: RuleClass.java lines 119-124
	if _, exists := rc.attrs["name"]; !exists {
		rc.attrs["name"] = &AttrDescriptor{
			Name:            "name",
			Type:            AttrTypeString,
			Mandatory:       true,
			NonConfigurable: true,
			Doc:             "A unique name for this target.",
		}
	}

	// visibility attribute
	// Reference: BaseRuleClasses.java lines 227-232
	if _, exists := rc.attrs["visibility"]; !exists {
		rc.attrs["visibility"] = &AttrDescriptor{
			Name:            "visibility",
			Type:            AttrTypeLabelList,
			Default:         starlark.None,
			NonConfigurable: true,
			Doc:             "The visibility of this target.",
		}
	}

	// tags attribute
	// Reference: BaseRuleClasses.java lines 242-245
	if _, exists := rc.attrs["tags"]; !exists {
		rc.attrs["tags"] = &AttrDescriptor{
			Name:            "tags",
			Type:            AttrTypeStringList,
			Default:         starlark.NewList(nil),
			NonConfigurable: true,
			AllowEmpty:      true,
			Doc:             "Tags for this target.",
		}
	}

	// testonly attribute
	// Reference: BaseRuleClasses.java lines 259-261
	if _, exists := rc.attrs["testonly"]; !exists {
		rc.attrs["testonly"] = &AttrDescriptor{
			Name:            "testonly",
			Type:            AttrTypeBool,
			Default:         starlark.Bool(false),
			NonConfigurable: true,
			Doc:             "If True, only test targets can depend on this target.",
		}
	}

	// deprecation attribute
	// Reference: BaseRuleClasses.java lines 238-240
	if _, exists := rc.attrs["deprecation"]; !exists {
		rc.attrs["deprecation"] = &AttrDescriptor{
			Name:            "deprecation",
			Type:            AttrTypeString,
			Default:         starlark.None,
			NonConfigurable: true,
			Doc:             "Deprecation message for this target.",
		}
	}

	// features attribute
	// Reference: BaseRuleClasses.java line 262
	if _, exists := rc.attrs["features"]; !exists {
		rc.attrs["features"] = &AttrDescriptor{
			Name:       "features",
			Type:       AttrTypeStringList,
			Default:    starlark.NewList(nil),
			AllowEmpty: true,
			Doc:        "Features to enable for this target.",
		}
	}
}

// String returns the Starlark representation.
func (rc *RuleClass) String() string {
	if rc.name != "" {
		return fmt.Sprintf("<rule %s>", rc.name)
	}
	return "<rule>"
}

// Type returns "rule".
func (rc *RuleClass) Type() string { return "rule" }

// Freeze marks the rule class as frozen.
func (rc *RuleClass) Freeze() { rc.frozen = true }

// Truth returns true (rules are always truthy).
func (rc *RuleClass) Truth() starlark.Bool { return true }

// Hash returns an error (rule classes are not hashable).
func (rc *RuleClass) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: rule")
}

// Name returns the rule class name.
func (rc *RuleClass) Name() string { return rc.name }

// Export assigns the rule class its global name. A rule defined in a .bzl
// file is anonymous until assigned to a global variable there.
// Reference: StarlarkRuleFunction.java export()
func (rc *RuleClass) Export(name string) error {
	if rc.exported {
		return fmt.Errorf("rule already exported as %q", rc.name)
	}
	rc.name = name
	rc.exported = true
	return nil
}

// IsExported reports whether the rule class has been assigned a global name.
func (rc *RuleClass) IsExported() bool { return rc.exported }

// Attrs returns the attribute descriptors.
func (rc *RuleClass) Attrs() map[string]*AttrDescriptor { return rc.attrs }

// IsExecutable returns whether this rule produces executables.
func (rc *RuleClass) IsExecutable() bool { return rc.executable }

// IsTest returns whether this is a test rule.
func (rc *RuleClass) IsTest() bool { return rc.test }

// Provides returns the providers this rule advertises.
func (rc *RuleClass) Provides() []starlark.Value { return rc.provides }

// Fragments returns the configuration fragments this rule requires.
func (rc *RuleClass) Fragments() []string { return rc.fragments }

// Toolchains returns the toolchains this rule requires.
func (rc *RuleClass) Toolchains() []starlark.Value { return rc.toolchains }

// Implementation returns the Starlark implementation function, or nil for
// rules analyzed natively in Go.
func (rc *RuleClass) Implementation() starlark.Callable { return rc.implementation }

// Doc returns the documentation string.
func (rc *RuleClass) Doc() string { return rc.doc }

// CallInternal implements starlark.Callable.
// When called in a BUILD file, it validates the attribute values and creates
// a RuleInstance (target). If the thread carries a TargetRegistry, the
// instance is registered in the enclosing package as well.
// Reference: RuleClass.java createRule / populateRuleAttributeValues
func (rc *RuleClass) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	// Reference: StarlarkRuleFunction.java - rules must be exported before use
	if !rc.exported {
		return nil, fmt.Errorf("rule has not been exported (assign it to a global variable in the .bzl where it's defined)")
	}

	// Rule invocations only accept keyword arguments
	if len(args) > 0 {
		return nil, fmt.Errorf("%s: unexpected positional arguments", rc.name)
	}

	// Parse and validate keyword arguments
	attrValues := make(map[string]starlark.Value)
	providedAttrs := make(map[string]bool)

	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		value := kv[1]

		// Check if the attribute exists
		attr, exists := rc.attrs[key]
		if !exists {
			return nil, fmt.Errorf("%s: unexpected attribute %q", rc.name, key)
		}

		// Validate the value type and allowed values
		if err := rc.validateAttrValue(attr, value); err != nil {
			return nil, fmt.Errorf("%s: attribute %q: %v", rc.name, key, err)
		}

		attrValues[key] = value
		providedAttrs[key] = true
	}

	// Check mandatory attributes and apply defaults
	for name, attr := range rc.attrs {
		if _, provided := providedAttrs[name]; !provided {
			if attr.Mandatory {
				return nil, fmt.Errorf("%s: missing mandatory attribute %q", rc.name, name)
			}
			// Apply default value
			if attr.Default != nil {
				attrValues[name] = attr.Default
			}
		}
	}

	// Create the target instance
	nameVal, hasName := attrValues["name"]
	if !hasName {
		return nil, fmt.Errorf("%s: missing mandatory attribute 'name'", rc.name)
	}
	nameStr, ok := nameVal.(starlark.String)
	if !ok {
		return nil, fmt.Errorf("%s: attribute 'name' must be a string, got %s", rc.name, nameVal.Type())
	}

	instance := &RuleInstance{
		ruleClass:  rc,
		name:       string(nameStr),
		attrValues: attrValues,
	}
	if fr := thread.CallFrame(1); fr.Pos.Filename() != "" {
		instance.location = fr.Pos.String()
	}

	if reg := CurrentTargetRegistry(thread); reg != nil {
		if err := reg.RegisterTarget(instance); err != nil {
			return nil, err
		}
	}

	return instance, nil
}

// validateAttrValue performs type and allowed-value validation for an attribute.
// Reference: Attribute.java AllowedValueSet.apply()
func (rc *RuleClass) validateAttrValue(attr *AttrDescriptor, value starlark.Value) error {
	// Allow None for optional attributes
	if value == starlark.None {
		if attr.Mandatory {
			return fmt.Errorf("mandatory attribute cannot be None")
		}
		return nil
	}

	// select() expressions stay unresolved until analysis; each candidate
	// value is checked against the attribute schema now.
	// Reference: AggregatingAttributeMapper.java visitAttribute()
	if sel, ok := value.(*SelectorList); ok {
		if attr.NonConfigurable {
			return fmt.Errorf("attribute is not configurable")
		}
		for _, candidate := range sel.CandidateValues() {
			// None in a select branch means "fall back to the default".
			if candidate == starlark.None {
				continue
			}
			if err := rc.validateAttrValue(attr, candidate); err != nil {
				return err
			}
		}
		return nil
	}

	switch attr.Type {
	case AttrTypeString:
		s, ok := value.(starlark.String)
		if !ok {
			return fmt.Errorf("expected string, got %s", value.Type())
		}
		if len(attr.AllowedValues) > 0 {
			if err := checkAllowedValue(attr.AllowedValues, string(s)); err != nil {
				return err
			}
		}
	case AttrTypeInt:
		if _, ok := value.(starlark.Int); !ok {
			return fmt.Errorf("expected int, got %s", value.Type())
		}
	case AttrTypeBool:
		if _, ok := value.(starlark.Bool); !ok {
			return fmt.Errorf("expected bool, got %s", value.Type())
		}
	case AttrTypeLabel:
		// Labels can be strings or Label objects
		switch value.(type) {
		case starlark.String, *Label:
			// OK
		default:
			return fmt.Errorf("expected label (string or Label), got %s", value.Type())
		}
	case AttrTypeLabelList, AttrTypeStringList:
		if _, ok := value.(*starlark.List); !ok {
			// Also accept tuples
			if _, ok := value.(starlark.Tuple); !ok {
				return fmt.Errorf("expected list, got %s", value.Type())
			}
		}
	case AttrTypeStringDict:
		if _, ok := value.(*starlark.Dict); !ok {
			return fmt.Errorf("expected dict, got %s", value.Type())
		}
	}

	return nil
}

// checkAllowedValue checks a string against an attribute's allowed-value set.
// The message format follows Attribute.java AllowedValueSet.getErrorReason().
func checkAllowedValue(allowed []string, got string) error {
	for _, v := range allowed {
		if v == got {
			return nil
		}
	}
	quoted := make([]string, len(allowed))
	for i, v := range allowed {
		quoted[i] = "'" + v + "'"
	}
	return fmt.Errorf("has to be one of %s instead of '%s'",
		strings.Join(quoted, " or "), got)
}

// Attr returns an attribute of the rule class.
func (rc *RuleClass) Attr(name string) (starlark.Value, error) {
	switch name {
	case "kind":
		return starlark.String(rc.name), nil
	default:
		return nil, starlark.NoSuchAttrError(fmt.Sprintf("rule has no attribute %q", name))
	}
}

// AttrNames returns the list of attribute names.
func (rc *RuleClass) AttrNames() []string {
	return []string{"kind"}
}

// AttrDescriptorList returns a sorted list of attribute names.
func (rc *RuleClass) AttrDescriptorList() []string {
	names := make([]string, 0, len(rc.attrs))
	for name := range rc.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAttr returns the attribute descriptor for the given name.
func (rc *RuleClass) GetAttr(name string) (*AttrDescriptor, bool) {
	attr, ok := rc.attrs[name]
	return attr, ok
}

// DebugString returns a detailed string representation for debugging.
func (rc *RuleClass) DebugString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("RuleClass(%s):\n", rc.name))
	sb.WriteString(fmt.Sprintf("  executable: %v\n", rc.executable))
	sb.WriteString(fmt.Sprintf("  test: %v\n", rc.test))
	sb.WriteString("  attrs:\n")
	for _, name := range rc.AttrDescriptorList() {
		attr := rc.attrs[name]
		sb.WriteString(fmt.Sprintf("    %s: %s (mandatory=%v)\n", name, attr.Type, attr.Mandatory))
	}
	return sb.String()
}

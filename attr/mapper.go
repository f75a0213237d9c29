// Package attr provides typed access to the attribute values of a rule
// instance: the analysis phase reads attributes as Go strings, bools, labels,
// and label lists rather than raw Starlark values.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/AttributeMap.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/AbstractAttributeMapper.java
package attr

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// Mapper reads the attribute values of one rule instance with type checking.
// Label-valued attributes are resolved relative to the instance's package.
// Reference: AbstractAttributeMapper.java
type Mapper struct {
	rule *types.RuleInstance
}

// NewMapper creates a Mapper over a rule instance.
func NewMapper(rule *types.RuleInstance) *Mapper {
	return &Mapper{rule: rule}
}

// Has returns whether the rule's class declares the attribute.
// Reference: AttributeMap.java has()
func (m *Mapper) Has(name string) bool {
	_, ok := m.rule.RuleClass().GetAttr(name)
	return ok
}

// Value returns the resolved attribute value, with starlark.None standing in
// for an unset attribute without a default.
// Reference: AbstractAttributeMapper.java get()
func (m *Mapper) Value(name string) (starlark.Value, error) {
	v, err := m.value(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return starlark.None, nil
	}
	return v, nil
}

// value returns the attribute value, or nil if unset and without default.
// select() expressions resolve here; a branch of None falls back to the
// attribute's declared default.
func (m *Mapper) value(name string) (starlark.Value, error) {
	if !m.Has(name) {
		return nil, fmt.Errorf("no such attribute '%s' in '%s' rule", name, m.rule.RuleClassName())
	}
	v, ok := m.rule.GetAttrValue(name)
	if !ok || v == starlark.None {
		return nil, nil
	}
	if sl, isSel := v.(*types.SelectorList); isSel {
		resolved, err := m.resolveSelectors(name, sl)
		if err != nil {
			return nil, err
		}
		v = resolved
	}
	if v == nil || v == starlark.None {
		if desc, ok := m.rule.RuleClass().GetAttr(name); ok && desc.Default != nil && desc.Default != starlark.None {
			return desc.Default, nil
		}
		return nil, nil
	}
	return v, nil
}

// resolveSelectors flattens a selector list into a concrete value. A lone
// selector resolves to its branch; multiple elements arise only from list
// concatenation and resolve to the concatenated list.
func (m *Mapper) resolveSelectors(name string, sl *types.SelectorList) (starlark.Value, error) {
	elems := sl.Elements()
	if len(elems) == 1 {
		if sv, ok := elems[0].(*types.SelectorValue); ok {
			return m.resolveSelector(name, sv)
		}
		return elems[0], nil
	}

	var out []starlark.Value
	for _, elem := range elems {
		v := elem
		if sv, ok := elem.(*types.SelectorValue); ok {
			resolved, err := m.resolveSelector(name, sv)
			if err != nil {
				return nil, err
			}
			v = resolved
		}
		if v == starlark.None {
			continue
		}
		iter := starlark.Iterate(v)
		if iter == nil {
			return nil, fmt.Errorf("attribute '%s': cannot concatenate %s in a select expression", name, v.Type())
		}
		var x starlark.Value
		for iter.Next(&x) {
			out = append(out, x)
		}
		iter.Done()
	}
	return starlark.NewList(out), nil
}

// resolveSelector takes the selector's default branch. Configuration
// condition matching is out of scope, so resolution without a default
// condition fails the way an unmatched configuration does.
// Reference: ConfiguredAttributeMapper.java getAndValidate()
func (m *Mapper) resolveSelector(name string, sv *types.SelectorValue) (starlark.Value, error) {
	if v, ok := sv.ResolveDefault(); ok {
		return v, nil
	}
	target := m.rule.RuleClassName()
	if l := m.rule.Label(); l != nil {
		target = l.String()
	}
	if msg := sv.NoMatchError(); msg != "" {
		return nil, fmt.Errorf("configurable attribute %q in %s doesn't match this configuration: %s", name, target, msg)
	}
	return nil, fmt.Errorf("configurable attribute %q in %s doesn't match this configuration. Would a default condition help?\n\nConditions checked:\n %s",
		name, target, strings.Join(sv.ConditionKeys(), "\n "))
}

// String returns a string attribute. An unset attribute reads as "".
// Reference: AbstractAttributeMapper.java get() with Type.STRING
func (m *Mapper) String(name string) (string, error) {
	v, err := m.value(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	s, ok := v.(starlark.String)
	if !ok {
		return "", fmt.Errorf("attribute '%s' has type %s, not expected type string", name, v.Type())
	}
	return string(s), nil
}

// Bool returns a bool attribute. An unset attribute reads as false.
func (m *Mapper) Bool(name string) (bool, error) {
	v, err := m.value(name)
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	b, ok := v.(starlark.Bool)
	if !ok {
		return false, fmt.Errorf("attribute '%s' has type %s, not expected type bool", name, v.Type())
	}
	return bool(b), nil
}

// StringList returns a string_list attribute. An unset attribute reads as nil.
func (m *Mapper) StringList(name string) ([]string, error) {
	v, err := m.value(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, fmt.Errorf("attribute '%s' has type %s, not expected type list of string", name, v.Type())
	}
	defer iter.Done()

	var out []string
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := x.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("attribute '%s': expected string element, got %s", name, x.Type())
		}
		out = append(out, string(s))
	}
	return out, nil
}

// Label returns a label attribute resolved relative to the rule's package,
// or nil when unset.
// Reference: AbstractAttributeMapper.java get() with BuildType.LABEL
func (m *Mapper) Label(name string) (*types.Label, error) {
	v, err := m.value(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return m.toLabel(name, v)
}

// LabelList returns a label_list attribute resolved relative to the rule's
// package. An unset attribute reads as nil.
// Reference: AbstractAttributeMapper.java get() with BuildType.LABEL_LIST
func (m *Mapper) LabelList(name string) ([]*types.Label, error) {
	v, err := m.value(name)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	iter := starlark.Iterate(v)
	if iter == nil {
		return nil, fmt.Errorf("attribute '%s' has type %s, not expected type list of label", name, v.Type())
	}
	defer iter.Done()

	var out []*types.Label
	var x starlark.Value
	for iter.Next(&x) {
		l, err := m.toLabel(name, x)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// toLabel converts a Starlark value to a Label, resolving strings relative
// to the rule's package.
func (m *Mapper) toLabel(name string, v starlark.Value) (*types.Label, error) {
	switch val := v.(type) {
	case *types.Label:
		return val, nil
	case starlark.String:
		repo, pkg := "", ""
		if l := m.rule.Label(); l != nil {
			repo, pkg = l.Repo(), l.Pkg()
		}
		l, err := types.ParseLabelRelative(string(val), repo, pkg)
		if err != nil {
			return nil, fmt.Errorf("attribute '%s': %v", name, err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("attribute '%s' has type %s, not expected type label", name, v.Type())
	}
}

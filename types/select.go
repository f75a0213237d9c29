// Package types provides the core Starlark values of the Python rules dialect.
//
// This file implements the value forms of select(): SelectorValue for a
// single select({...}) call and SelectorList for concatenations such as
// ["a"] + select({...}). Selector values pass through rule instantiation
// unresolved; attr.Mapper resolves them during analysis.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/SelectorValue.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/SelectorList.java
package types

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// DefaultConditionKey is the condition label matching when no other
// condition does.
// Reference: BuildType.java Selector.DEFAULT_CONDITION_KEY
const DefaultConditionKey = "//conditions:default"

// SelectorValue represents a single select() call's value.
// It holds a dict mapping configuration conditions to values.
//
// Reference: SelectorValue.java
type SelectorValue struct {
	conditions   map[string]starlark.Value // Condition label -> value
	noMatchError string                    // Custom error message for no match
	frozen       bool
}

var (
	_ starlark.Value     = (*SelectorValue)(nil)
	_ starlark.HasBinary = (*SelectorValue)(nil)
)

// NewSelectorValue creates a selector from a condition map. An empty map is
// rejected because it can never resolve.
// Reference: SelectorList.java select() precondition
func NewSelectorValue(conditions map[string]starlark.Value, noMatchError string) (*SelectorValue, error) {
	if len(conditions) == 0 {
		return nil, fmt.Errorf("select({}) with an empty dictionary can never resolve because it includes no conditions to match")
	}
	return &SelectorValue{
		conditions:   conditions,
		noMatchError: noMatchError,
	}, nil
}

// String returns the Starlark representation.
func (s *SelectorValue) String() string {
	var sb strings.Builder
	sb.WriteString("select({")
	for i, k := range s.ConditionKeys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%q: ", k))
		sb.WriteString(s.conditions[k].String())
	}
	sb.WriteString("})")
	return sb.String()
}

// Type returns "selector".
func (s *SelectorValue) Type() string { return "selector" }

// Freeze marks the selector as frozen.
func (s *SelectorValue) Freeze() {
	if s.frozen {
		return
	}
	s.frozen = true
	for _, v := range s.conditions {
		v.Freeze()
	}
}

// Truth returns true.
func (s *SelectorValue) Truth() starlark.Bool { return true }

// Hash returns an error (selectors are not hashable).
func (s *SelectorValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: selector")
}

// Conditions returns the conditions dict.
func (s *SelectorValue) Conditions() map[string]starlark.Value { return s.conditions }

// ConditionKeys returns the condition labels in sorted order.
func (s *SelectorValue) ConditionKeys() []string {
	keys := make([]string, 0, len(s.conditions))
	for k := range s.conditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NoMatchError returns the custom error message.
func (s *SelectorValue) NoMatchError() string { return s.noMatchError }

// HasDefault reports whether the selector carries a default condition.
func (s *SelectorValue) HasDefault() bool {
	_, ok := s.conditions[DefaultConditionKey]
	return ok
}

// ResolveDefault returns the default-condition branch. Configuration
// condition matching is out of scope for this analyzer, so resolution always
// takes the default branch.
// Reference: ConfiguredAttributeMapper.java getAndValidate()
func (s *SelectorValue) ResolveDefault() (starlark.Value, bool) {
	v, ok := s.conditions[DefaultConditionKey]
	return v, ok
}

// Binary implements HasBinary, allowing select() + list and select() | dict.
func (s *SelectorValue) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	// Promote to a SelectorList, then delegate to it
	list := &SelectorList{
		elements: []starlark.Value{s},
	}
	return list.Binary(op, y, side)
}

// SelectorList represents a concatenation of selects and native values.
// Example: [":default"] + select({...}) + select({...})
//
// Reference: SelectorList.java
type SelectorList struct {
	elements []starlark.Value // Mix of native values and SelectorValues
	frozen   bool
}

var (
	_ starlark.Value     = (*SelectorList)(nil)
	_ starlark.HasBinary = (*SelectorList)(nil)
)

// NewSelectorList creates a selector list from its elements.
func NewSelectorList(elements []starlark.Value) *SelectorList {
	return &SelectorList{elements: elements}
}

// String returns the Starlark representation.
func (sl *SelectorList) String() string {
	if len(sl.elements) == 0 {
		return "[]"
	}
	if len(sl.elements) == 1 {
		return sl.elements[0].String()
	}

	var parts []string
	for _, elem := range sl.elements {
		parts = append(parts, elem.String())
	}
	return strings.Join(parts, " + ")
}

// Type returns "select".
func (sl *SelectorList) Type() string { return "select" }

// Freeze marks the selector list as frozen.
func (sl *SelectorList) Freeze() {
	if sl.frozen {
		return
	}
	sl.frozen = true
	for _, v := range sl.elements {
		v.Freeze()
	}
}

// Truth returns true.
func (sl *SelectorList) Truth() starlark.Bool { return true }

// Hash returns an error (selector lists are not hashable).
func (sl *SelectorList) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: select")
}

// Elements returns the list of elements.
func (sl *SelectorList) Elements() []starlark.Value { return sl.elements }

// CandidateValues returns every value the list could resolve to a part of:
// plain elements as-is and each selector's condition branches. Rule
// instantiation validates all of them against the attribute schema.
// Reference: AggregatingAttributeMapper.java visitAttribute()
func (sl *SelectorList) CandidateValues() []starlark.Value {
	var out []starlark.Value
	for _, elem := range sl.elements {
		if sv, ok := elem.(*SelectorValue); ok {
			for _, k := range sv.ConditionKeys() {
				out = append(out, sv.conditions[k])
			}
			continue
		}
		out = append(out, elem)
	}
	return out
}

// Binary implements HasBinary, allowing concatenation with + (for lists) and | (for dicts).
func (sl *SelectorList) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	// For lists, we support +; for dicts, we support |
	if op != syntax.PLUS && op != syntax.PIPE {
		return nil, nil // Let starlark handle the error
	}

	var newElements []starlark.Value

	if side == starlark.Left {
		// sl op y
		newElements = append(newElements, sl.elements...)
		switch v := y.(type) {
		case *SelectorList:
			newElements = append(newElements, v.elements...)
		case *SelectorValue:
			newElements = append(newElements, v)
		default:
			newElements = append(newElements, y)
		}
	} else {
		// y op sl
		switch v := y.(type) {
		case *SelectorList:
			newElements = append(newElements, v.elements...)
		case *SelectorValue:
			newElements = append(newElements, v)
		default:
			newElements = append(newElements, y)
		}
		newElements = append(newElements, sl.elements...)
	}

	return &SelectorList{elements: newElements}, nil
}

// Package analysis implements the analysis phase of the Python rules dialect.
//
// This file implements RuleContext: everything analyzing one rule instance
// needs in one place. The context carries the target's label, typed attribute
// access, resolved prerequisites per attribute, the registered configuration
// fragments, and the error sink that accumulates every problem found.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/RuleContext.java
package analysis

import (
	"sort"

	"github.com/albertocavalcante/rules-python-go/attr"
	"github.com/albertocavalcante/rules-python-go/types"
)

// RuleContext is the per-target state of one rule analysis. It is built by
// the analyzer, consumed by the rule implementation, and discarded after the
// evaluation completes.
type RuleContext struct {
	rule          *types.RuleInstance
	attrs         *attr.Mapper
	prerequisites map[string][]*ConfiguredTarget
	fragments     map[string]any
	errs          *ErrorSet
}

// NewRuleContext creates a RuleContext for a rule instance.
func NewRuleContext(rule *types.RuleInstance) *RuleContext {
	return &RuleContext{
		rule:          rule,
		attrs:         attr.NewMapper(rule),
		prerequisites: make(map[string][]*ConfiguredTarget),
		fragments:     make(map[string]any),
		errs:          &ErrorSet{},
	}
}

// Rule returns the rule instance under analysis.
func (rc *RuleContext) Rule() *types.RuleInstance { return rc.rule }

// Label returns the label of the target under analysis, or nil if the
// instance was never registered in a package.
// Reference: RuleContext.java getLabel()
func (rc *RuleContext) Label() *types.Label { return rc.rule.Label() }

// Attrs returns the typed attribute accessor.
// Reference: RuleContext.java attributes()
func (rc *RuleContext) Attrs() *attr.Mapper { return rc.attrs }

// SetPrerequisites records the configured targets an attribute's labels
// resolved to, in label order.
func (rc *RuleContext) SetPrerequisites(attrName string, targets []*ConfiguredTarget) {
	rc.prerequisites[attrName] = targets
}

// Prerequisites returns the configured targets of a label list attribute.
// Reference: RuleContext.java getPrerequisites()
func (rc *RuleContext) Prerequisites(attrName string) []*ConfiguredTarget {
	return rc.prerequisites[attrName]
}

// Prerequisite returns the sole configured target of a label attribute, or
// nil when the attribute is unset.
// Reference: RuleContext.java getPrerequisite()
func (rc *RuleContext) Prerequisite(attrName string) *ConfiguredTarget {
	ts := rc.prerequisites[attrName]
	if len(ts) == 0 {
		return nil
	}
	return ts[0]
}

// PrerequisiteArtifact returns the single file a label attribute's
// prerequisite produces. A prerequisite producing anything other than
// exactly one file is reported against the attribute. An unset attribute
// returns nil without error.
// Reference: RuleContext.java getPrerequisiteArtifact()
func (rc *RuleContext) PrerequisiteArtifact(attrName string) *types.File {
	ct := rc.Prerequisite(attrName)
	if ct == nil {
		return nil
	}
	if single, ok := ct.FilesToBuild().Singleton(); ok {
		if f, ok := single.(*types.File); ok {
			return f
		}
	}
	rc.AttributeError(AttributeInvalid, attrName, "expected a single artifact")
	return nil
}

// PrerequisiteArtifacts returns the union of the files built by every
// prerequisite of a label list attribute, as a structurally shared set.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/PrerequisiteArtifacts.java nestedSet()
func (rc *RuleContext) PrerequisiteArtifacts(attrName string) *types.Depset {
	ts := rc.prerequisites[attrName]
	transitive := make([]*types.Depset, 0, len(ts))
	for _, ct := range ts {
		transitive = append(transitive, ct.FilesToBuild())
	}
	d, err := types.NewDepset(types.OrderDefault, nil, transitive)
	if err != nil {
		rc.AttributeError(AttributeInvalid, attrName, err.Error())
		return types.EmptyDepset()
	}
	return d
}

// RegisterFragment makes a configuration fragment available under a name.
// Reference: RuleContext.java getFragment()
func (rc *RuleContext) RegisterFragment(name string, fragment any) {
	rc.fragments[name] = fragment
}

// Fragment returns the configuration fragment registered under a name.
func (rc *RuleContext) Fragment(name string) (any, bool) {
	f, ok := rc.fragments[name]
	return f, ok
}

// FragmentNames returns the names of the registered fragments, sorted.
func (rc *RuleContext) FragmentNames() []string {
	names := make([]string, 0, len(rc.fragments))
	for name := range rc.fragments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RuleError reports a rule-level error against the target.
// Reference: RuleContext.java ruleError()
func (rc *RuleContext) RuleError(kind ErrorKind, msg string) {
	rc.errs.RuleError(kind, msg)
}

// AttributeError reports an error against a named attribute.
// Reference: RuleContext.java attributeError()
func (rc *RuleContext) AttributeError(kind ErrorKind, attrName, msg string) {
	rc.errs.AttributeError(kind, attrName, msg)
}

// Report appends an already-built error.
func (rc *RuleContext) Report(e Error) {
	rc.errs.Add(e)
}

// HasErrors returns whether any error has been reported on this context.
// Reference: RuleContext.java hasErrors()
func (rc *RuleContext) HasErrors() bool {
	return rc.errs.HasErrors()
}

// Errors returns the accumulated errors in report order.
func (rc *RuleContext) Errors() []Error {
	return rc.errs.Errors()
}

package builtins

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/attr"
	"github.com/albertocavalcante/rules-python-go/types"
)

// Rule is the Starlark rule() builtin function. It returns an unexported
// RuleClass; assigning it to a global in the defining .bzl file exports it
// under that name, and only exported rules can be called from BUILD files.
//
// Signature:
//
//	rule(
//	    implementation,
//	    test = False,
//	    attrs = {},
//	    executable = False,
//	    fragments = [],
//	    toolchains = [],
//	    doc = None,
//	    provides = [],
//	)
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/starlarkbuildapi/StarlarkRuleFunctionsApi.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/starlark/StarlarkRuleClassFunctions.java
func Rule(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		implementation starlark.Callable
		test           bool
		attrs          *starlark.Dict
		executable     bool
		fragments      *starlark.List
		toolchains     *starlark.List
		doc            starlark.Value = starlark.None
		provides       *starlark.List
	)

	if err := starlark.UnpackArgs("rule", args, kwargs,
		"implementation", &implementation,
		"test?", &test,
		"attrs?", &attrs,
		"executable?", &executable,
		"fragments?", &fragments,
		"toolchains?", &toolchains,
		"doc?", &doc,
		"provides?", &provides,
	); err != nil {
		return nil, err
	}

	// Parse attributes. A descriptor value can be shared between attrs;
	// each binding gets its own named copy of the schema.
	attrMap := make(map[string]*types.AttrDescriptor)
	if attrs != nil {
		for _, item := range attrs.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("rule: attrs keys must be strings, got %s", item[0].Type())
			}
			name := string(key)

			if !isValidAttrName(name) {
				return nil, fmt.Errorf("rule: attribute name %q is not a valid identifier", name)
			}

			// Reserved attribute names
			if name == "name" {
				return nil, fmt.Errorf("rule: 'name' is an implicit attribute and cannot be declared")
			}

			desc, ok := item[1].(*attr.Descriptor)
			if !ok {
				return nil, fmt.Errorf("rule: attrs values must be attr objects, got %s for %q", item[1].Type(), name)
			}
			schema := *desc.Schema()
			schema.Name = name
			attrMap[name] = &schema
		}
	}

	// Parse fragments
	var fragmentList []string
	if fragments != nil {
		iter := fragments.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			s, ok := x.(starlark.String)
			if !ok {
				return nil, fmt.Errorf("rule: fragments must be strings, got %s", x.Type())
			}
			fragmentList = append(fragmentList, string(s))
		}
	}

	// Parse toolchains
	var toolchainList []starlark.Value
	if toolchains != nil {
		iter := toolchains.Iterate()
		defer iter.Done()
		var x starlark.Value
		for iter.Next(&x) {
			toolchainList = append(toolchainList, x)
		}
	}

	// Parse provides. Elements stay as the values that named them; a
	// provider declared earlier in the same .bzl file has no name until the
	// file finishes evaluating.
	var providesList []starlark.Value
	if provides != nil {
		for i := 0; i < provides.Len(); i++ {
			switch provides.Index(i).(type) {
			case *types.Provider, *starlark.Builtin:
				providesList = append(providesList, provides.Index(i))
			default:
				return nil, fmt.Errorf("rule: provides[%d]: got %s, want provider", i, provides.Index(i).Type())
			}
		}
	}

	// Parse doc
	var docStr string
	if doc != starlark.None {
		s, ok := doc.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("rule: doc must be a string, got %s", doc.Type())
		}
		docStr = string(s)
	}

	// Test rules are automatically executable
	if test {
		executable = true
	}

	return types.NewRuleClass("", attrMap,
		types.WithImplementation(implementation),
		types.WithTest(test),
		types.WithExecutable(executable),
		types.WithFragments(fragmentList),
		types.WithToolchains(toolchainList),
		types.WithProvides(providesList),
		types.WithDoc(docStr),
	), nil
}

// isValidAttrName checks if the name is a valid Starlark identifier.
func isValidAttrName(name string) bool {
	if len(name) == 0 {
		return false
	}

	// First character must be letter or underscore
	c := name[0]
	if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_') {
		return false
	}

	// Remaining characters must be letter, digit, or underscore
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}

	return true
}

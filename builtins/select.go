package builtins

import (
	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// Select is the Starlark select() builtin function.
//
// Signature:
//
//	select(x, no_match_error = "")
//
// The select() function creates a configurable attribute value. The dict
// maps configuration conditions (labels) to values; resolution picks the
// matching branch at analysis time.
//
// Special keys:
//   - "//conditions:default" - matches when no other condition matches
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/SelectorList.java
func Select(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x            *starlark.Dict
		noMatchError string
	)

	if err := starlark.UnpackArgs("select", args, kwargs,
		"x", &x,
		"no_match_error?", &noMatchError,
	); err != nil {
		return nil, err
	}

	conditions := make(map[string]starlark.Value)
	for _, item := range x.Items() {
		var keyStr string
		switch k := item[0].(type) {
		case starlark.String:
			keyStr = string(k)
		default:
			// Condition keys can also be Label values.
			keyStr = item[0].String()
		}
		conditions[keyStr] = item[1]
	}

	selector, err := types.NewSelectorValue(conditions, noMatchError)
	if err != nil {
		return nil, err
	}

	// Return a SelectorList wrapping the single selector
	return types.NewSelectorList([]starlark.Value{selector}), nil
}

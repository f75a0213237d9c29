// Package builtins provides the predeclared Starlark builtins of the rule
// dialect.
//
// This includes top-level symbols available in .bzl files such as:
//   - rule() - for defining rules
//   - provider() - for defining providers
//   - select() - for configurable attributes
//   - struct() - for creating immutable structs
//   - depset() - for creating depsets
//   - Label() - for creating labels
//   - attr module - for defining rule attributes
//   - json module - for encoding/decoding JSON
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/starlark/StarlarkGlobalsImpl.java
package builtins

import (
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/albertocavalcante/rules-python-go/attr"
	"github.com/albertocavalcante/rules-python-go/types"
)

// Predeclared returns the predeclared builtins for .bzl files.
// These are the top-level symbols available when evaluating a .bzl file.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		// Core builtins
		"rule":     starlark.NewBuiltin("rule", Rule),
		"provider": starlark.NewBuiltin("provider", Provider),
		"select":   starlark.NewBuiltin("select", Select),
		"struct":   starlark.NewBuiltin("struct", starlarkstruct.Make),

		// Type constructors
		"depset": starlark.NewBuiltin("depset", types.DepsetBuiltin),
		"Label":  starlark.NewBuiltin("Label", types.LabelBuiltin),

		// Modules
		"attr": attr.Module(),
		"json": json.Module,
	}
}

// BuildFilePredeclared returns predeclared builtins for BUILD files.
// BUILD files have a subset of .bzl file builtins plus native rule functions.
func BuildFilePredeclared() starlark.StringDict {
	return starlark.StringDict{
		"select": starlark.NewBuiltin("select", Select),
		"depset": starlark.NewBuiltin("depset", types.DepsetBuiltin),
		"Label":  starlark.NewBuiltin("Label", types.LabelBuiltin),
	}
}

// .bzl file evaluation: export-by-assignment for rules and providers.
//
// rule() and provider() produce anonymous values; the top-level variable a
// value is assigned to in its defining .bzl file becomes its permanent name.
// Starlark evaluation has no assignment hook, so the export pass runs over
// the module's globals after execution.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/StarlarkExportable.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/skyframe/BzlLoadFunction.java
package eval

import (
	"fmt"

	"go.starlark.net/starlark"
)

// ExportableValue is a value that needs to be "exported" when assigned to a
// top-level variable in a .bzl file: rule classes and providers.
type ExportableValue interface {
	starlark.Value

	// IsExported returns true if this value has been exported.
	IsExported() bool

	// Export is called with the top-level variable name the value is
	// assigned to.
	Export(name string) error
}

// ExportGlobals assigns each unexported exportable global its variable name.
// Keys are visited in sorted order, so a value bound to several globals gets
// the alphabetically first name. Underscore-prefixed names export too; they
// only affect display, not loadability.
func ExportGlobals(globals starlark.StringDict) error {
	for _, name := range globals.Keys() {
		v, ok := globals[name].(ExportableValue)
		if !ok || v.IsExported() {
			continue
		}
		if err := v.Export(name); err != nil {
			return fmt.Errorf("exporting %s: %w", name, err)
		}
	}
	return nil
}

// FilterExports returns only the loadable values from a globals dict:
// private names (those starting with _) are dropped.
func FilterExports(globals starlark.StringDict) starlark.StringDict {
	exports := make(starlark.StringDict)
	for name, value := range globals {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		exports[name] = value
	}
	return exports
}

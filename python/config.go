// Package python implements the py_runtime rule of the Python rules dialect.
//
// This file implements the Python configuration fragment: the ambient build
// settings that every py_runtime evaluation reads. The fragment is passed to
// resolution explicitly rather than read from process-wide state.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/rules/python/PythonConfiguration.java
package python

import (
	"fmt"

	"go.starlark.net/starlark"
)

// FragmentName is the name under which the Python fragment is registered on
// a rule context.
const FragmentName = "python"

// Configuration holds the Python-specific build settings. It is a Starlark
// value so rule implementation functions can read it as ctx.fragments.python.
// Reference: PythonConfiguration.java
type Configuration struct {
	useToolchains  bool
	defaultVersion Version
}

var (
	_ starlark.Value    = (*Configuration)(nil)
	_ starlark.HasAttrs = (*Configuration)(nil)
)

// NewConfiguration creates a Configuration. defaultVersion must be a
// concrete target version.
func NewConfiguration(useToolchains bool, defaultVersion Version) (*Configuration, error) {
	if !defaultVersion.IsTargetValue() {
		return nil, fmt.Errorf("default python version must be 'PY2' or 'PY3', got '%s'", defaultVersion)
	}
	return &Configuration{
		useToolchains:  useToolchains,
		defaultVersion: defaultVersion,
	}, nil
}

// DefaultConfiguration returns the settings of a current build: toolchain
// resolution enabled and PY3 as the default version.
// Reference: PythonOptions.java --incompatible_use_python_toolchains (default true)
// Reference: PythonOptions.java --incompatible_py3_is_default (default true)
func DefaultConfiguration() *Configuration {
	return &Configuration{
		useToolchains:  true,
		defaultVersion: DefaultTargetVersion,
	}
}

// UseToolchains returns whether executable Python rules obtain their runtime
// via toolchain resolution. When true, py_runtime targets must state their
// version explicitly.
// Reference: PythonConfiguration.java useToolchains()
func (c *Configuration) UseToolchains() bool {
	return c.useToolchains
}

// DefaultVersion returns the version assumed when a target leaves
// python_version unspecified.
// Reference: PythonConfiguration.java getDefaultPythonVersion()
func (c *Configuration) DefaultVersion() Version {
	return c.defaultVersion
}

func (c *Configuration) String() string        { return "<python fragment>" }
func (c *Configuration) Type() string          { return FragmentName }
func (c *Configuration) Freeze()               {}
func (c *Configuration) Truth() starlark.Bool  { return starlark.True }
func (c *Configuration) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", c.Type()) }

// Attr exposes the configuration fields to Starlark.
// Reference: PythonConfiguration.java @StarlarkConfigurationField annotations
func (c *Configuration) Attr(name string) (starlark.Value, error) {
	switch name {
	case "default_python_version":
		return starlark.String(c.defaultVersion.String()), nil
	case "use_toolchains":
		return starlark.Bool(c.useToolchains), nil
	}
	return nil, nil
}

func (c *Configuration) AttrNames() []string {
	return []string{"default_python_version", "use_toolchains"}
}

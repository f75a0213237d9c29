// Package python implements the py_runtime rule of the Python rules dialect.
//
// This file implements the PyRuntimeInfo provider: the immutable descriptor
// of a resolved Python runtime. The descriptor is a two-variant sum; fields
// that only apply to one operating mode live on the variant, so an illegal
// combination (support files on a platform runtime, say) cannot be
// represented at all.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/rules/python/PyRuntimeInfo.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/starlarkbuildapi/python/PyRuntimeInfoApi.java
package python

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/albertocavalcante/rules-python-go/types"
)

// ProviderName is the Starlark name of the runtime provider.
const ProviderName = "PyRuntimeInfo"

// DefaultStubShebang is the shebang written into Python stub scripts when a
// runtime does not override it.
// Reference: PyRuntimeInfo.java DEFAULT_STUB_SHEBANG
const DefaultStubShebang = "#!/usr/bin/env python3"

// DefaultBootstrapTemplate is the label of the stock bootstrap template.
// Reference: BazelPyRuntimeRule.java bootstrap_template default
const DefaultBootstrapTemplate = "//tools/python:python_bootstrap_template.txt"

// Variant is the operating mode of a resolved runtime. It is a closed set:
// Hermetic and Platform are the only implementations.
type Variant interface {
	isVariant()
}

// Hermetic is an in-build runtime: the interpreter is checked into the
// source tree or produced by another target, and the build system tracks it
// together with its support files.
type Hermetic struct {
	// Interpreter is the interpreter executable.
	Interpreter *types.File
	// Files are the support files needed at run time, such as the standard
	// library shipped alongside an in-tree interpreter.
	Files *types.Depset
}

// Platform is a non-hermetic runtime: an interpreter installed on the host,
// referenced by absolute path and not tracked as a build dependency.
type Platform struct {
	// InterpreterPath is the absolute path of the system interpreter.
	InterpreterPath string
}

func (Hermetic) isVariant() {}
func (Platform) isVariant() {}

// Info is the resolved runtime descriptor, exposed to Starlark as
// PyRuntimeInfo. Once built it is never mutated; any change requires
// building a new descriptor from new inputs.
// Reference: PyRuntimeInfo.java
type Info struct {
	variant           Variant
	coverageTool      *types.File
	coverageFiles     *types.Depset
	version           Version
	stubShebang       string
	bootstrapTemplate *types.File
}

var (
	_ starlark.Value      = (*Info)(nil)
	_ starlark.HasAttrs   = (*Info)(nil)
	_ starlark.Comparable = (*Info)(nil)
)

// InfoProvider is the singleton provider type for PyRuntimeInfo.
// Reference: PyRuntimeInfo.java PROVIDER
var InfoProvider = types.NewProvider(ProviderName, []string{
	"bootstrap_template",
	"coverage_files",
	"coverage_tool",
	"files",
	"interpreter",
	"interpreter_path",
	"python_version",
	"stub_shebang",
}, "Contains information about a Python runtime, as returned by the py_runtime rule.", nil)

// NewHermeticInfo creates the descriptor of an in-build runtime. A nil files
// set is taken as empty. Violations of the descriptor invariants (missing
// interpreter, a coverage tool without its file closure, a non-concrete
// version) are programming errors and panic.
// Reference: PyRuntimeInfo.java createForInBuildRuntime()
func NewHermeticInfo(
	interpreter *types.File,
	files *types.Depset,
	coverageTool *types.File,
	coverageFiles *types.Depset,
	version Version,
	stubShebang string,
	bootstrapTemplate *types.File,
) *Info {
	if interpreter == nil {
		panic("python: hermetic runtime requires an interpreter")
	}
	if files == nil {
		files = types.EmptyDepset()
	}
	return newInfo(Hermetic{Interpreter: interpreter, Files: files},
		coverageTool, coverageFiles, version, stubShebang, bootstrapTemplate)
}

// NewPlatformInfo creates the descriptor of a system runtime referenced by
// absolute path.
// Reference: PyRuntimeInfo.java createForPlatformRuntime()
func NewPlatformInfo(
	interpreterPath string,
	coverageTool *types.File,
	coverageFiles *types.Depset,
	version Version,
	stubShebang string,
	bootstrapTemplate *types.File,
) *Info {
	if interpreterPath == "" {
		panic("python: platform runtime requires an interpreter path")
	}
	return newInfo(Platform{InterpreterPath: interpreterPath},
		coverageTool, coverageFiles, version, stubShebang, bootstrapTemplate)
}

// newInfo enforces the invariants shared by both variants.
// Reference: PyRuntimeInfo.java constructor preconditions
func newInfo(
	variant Variant,
	coverageTool *types.File,
	coverageFiles *types.Depset,
	version Version,
	stubShebang string,
	bootstrapTemplate *types.File,
) *Info {
	if (coverageTool == nil) != (coverageFiles == nil) {
		panic("python: coverage_tool and coverage_files must be set together")
	}
	if !version.IsTargetValue() {
		panic(fmt.Sprintf("python: descriptor version must be a concrete target version, got '%s'", version))
	}
	if stubShebang == "" {
		stubShebang = DefaultStubShebang
	}
	return &Info{
		variant:           variant,
		coverageTool:      coverageTool,
		coverageFiles:     coverageFiles,
		version:           version,
		stubShebang:       stubShebang,
		bootstrapTemplate: bootstrapTemplate,
	}
}

// Variant returns the operating mode: Hermetic or Platform.
func (i *Info) Variant() Variant { return i.variant }

// IsHermetic returns whether the runtime is an in-build runtime.
// Reference: PyRuntimeInfo.java isInBuildRuntime()
func (i *Info) IsHermetic() bool {
	_, ok := i.variant.(Hermetic)
	return ok
}

// CoverageTool returns the resolved coverage tool, or nil.
func (i *Info) CoverageTool() *types.File { return i.coverageTool }

// CoverageFiles returns the file closure of the coverage tool, or nil. It is
// non-nil exactly when CoverageTool is.
func (i *Info) CoverageFiles() *types.Depset { return i.coverageFiles }

// PythonVersion returns the resolved version. It is always a concrete target
// version, never the sentinel.
func (i *Info) PythonVersion() Version { return i.version }

// StubShebang returns the shebang for Python stub scripts.
func (i *Info) StubShebang() string { return i.stubShebang }

// BootstrapTemplate returns the bootstrap template file, or nil.
func (i *Info) BootstrapTemplate() *types.File { return i.bootstrapTemplate }

// FilesToBuild returns the default output set of a target exporting this
// runtime: the interpreter together with its support files for a hermetic
// runtime, nothing for a platform runtime.
func (i *Info) FilesToBuild() *types.Depset {
	switch v := i.variant.(type) {
	case Hermetic:
		d, err := types.NewDepset(types.OrderDefault,
			[]starlark.Value{v.Interpreter}, []*types.Depset{v.Files})
		if err != nil {
			panic(fmt.Sprintf("python: files to build: %v", err))
		}
		return d
	default:
		return types.EmptyDepset()
	}
}

// String returns the Starlark representation.
func (i *Info) String() string {
	var sb strings.Builder
	sb.WriteString(ProviderName)
	sb.WriteString("(")
	switch v := i.variant.(type) {
	case Hermetic:
		fmt.Fprintf(&sb, "interpreter = %s, files = %s", v.Interpreter.String(), v.Files.String())
	case Platform:
		fmt.Fprintf(&sb, "interpreter_path = %q", v.InterpreterPath)
	}
	if i.coverageTool != nil {
		fmt.Fprintf(&sb, ", coverage_tool = %s", i.coverageTool.String())
	}
	fmt.Fprintf(&sb, ", python_version = %q", i.version.String())
	sb.WriteString(")")
	return sb.String()
}

// Type returns "PyRuntimeInfo".
func (i *Info) Type() string { return ProviderName }

// Provider returns the provider symbol that constructs PyRuntimeInfo.
func (i *Info) Provider() *types.Provider { return InfoProvider }

// Freeze is a no-op since the descriptor is immutable from creation.
func (i *Info) Freeze() {}

// Truth returns true.
func (i *Info) Truth() starlark.Bool { return true }

// Hash returns an error (runtime descriptors are not hashable).
func (i *Info) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", ProviderName)
}

// Attr returns an attribute of the descriptor. Fields belonging to the other
// variant answer None, matching the provider's Starlark surface.
// Reference: PyRuntimeInfoApi.java field methods
func (i *Info) Attr(name string) (starlark.Value, error) {
	switch name {
	case "interpreter":
		if v, ok := i.variant.(Hermetic); ok {
			return v.Interpreter, nil
		}
		return starlark.None, nil
	case "interpreter_path":
		if v, ok := i.variant.(Platform); ok {
			return starlark.String(v.InterpreterPath), nil
		}
		return starlark.None, nil
	case "files":
		if v, ok := i.variant.(Hermetic); ok {
			return v.Files, nil
		}
		return starlark.None, nil
	case "coverage_tool":
		if i.coverageTool == nil {
			return starlark.None, nil
		}
		return i.coverageTool, nil
	case "coverage_files":
		if i.coverageFiles == nil {
			return starlark.None, nil
		}
		return i.coverageFiles, nil
	case "python_version":
		return starlark.String(i.version.String()), nil
	case "stub_shebang":
		return starlark.String(i.stubShebang), nil
	case "bootstrap_template":
		if i.bootstrapTemplate == nil {
			return starlark.None, nil
		}
		return i.bootstrapTemplate, nil
	default:
		return nil, starlark.NoSuchAttrError(fmt.Sprintf("%s has no attribute %q", ProviderName, name))
	}
}

// AttrNames returns the list of attribute names.
func (i *Info) AttrNames() []string {
	return []string{
		"bootstrap_template",
		"coverage_files",
		"coverage_tool",
		"files",
		"interpreter",
		"interpreter_path",
		"python_version",
		"stub_shebang",
	}
}

// CompareSameType implements field-wise equality.
func (i *Info) CompareSameType(op syntax.Token, y starlark.Value, depth int) (bool, error) {
	other := y.(*Info)
	switch op {
	case syntax.EQL:
		return i.Equal(other), nil
	case syntax.NEQ:
		return !i.Equal(other), nil
	default:
		return false, fmt.Errorf("%s does not support %s", ProviderName, op)
	}
}

// Equal reports field-wise equality of two descriptors. Resolving the same
// inputs twice yields equal descriptors.
func (i *Info) Equal(other *Info) bool {
	if i == other {
		return true
	}
	if other == nil {
		return false
	}
	switch v := i.variant.(type) {
	case Hermetic:
		o, ok := other.variant.(Hermetic)
		if !ok || !fileEqual(v.Interpreter, o.Interpreter) || !depsetEqual(v.Files, o.Files) {
			return false
		}
	case Platform:
		o, ok := other.variant.(Platform)
		if !ok || v.InterpreterPath != o.InterpreterPath {
			return false
		}
	}
	return fileEqual(i.coverageTool, other.coverageTool) &&
		depsetEqual(i.coverageFiles, other.coverageFiles) &&
		i.version == other.version &&
		i.stubShebang == other.stubShebang &&
		fileEqual(i.bootstrapTemplate, other.bootstrapTemplate)
}

func fileEqual(a, b *types.File) bool {
	if a == nil || b == nil {
		return a == b
	}
	eq, err := a.CompareSameType(syntax.EQL, b, 0)
	return err == nil && eq
}

func depsetEqual(a, b *types.Depset) bool {
	if a == nil || b == nil {
		return a == b
	}
	eq, err := a.CompareSameType(syntax.EQL, b, 0)
	return err == nil && eq
}

// InfoConstructor returns the PyRuntimeInfo callable bound in the Starlark
// predeclared environment. It mirrors the provider's Starlark constructor.
// Reference: PyRuntimeInfoApi.java PyRuntimeInfoProviderApi constructor
func InfoConstructor() *starlark.Builtin {
	return starlark.NewBuiltin(ProviderName, infoConstructor)
}

func infoConstructor(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		interpreterPath   starlark.Value = starlark.None
		interpreter       starlark.Value = starlark.None
		files             starlark.Value = starlark.None
		coverageTool      starlark.Value = starlark.None
		coverageFiles     starlark.Value = starlark.None
		pythonVersion     string
		stubShebang       string         = DefaultStubShebang
		bootstrapTemplate starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(ProviderName, args, kwargs,
		"interpreter_path?", &interpreterPath,
		"interpreter?", &interpreter,
		"files?", &files,
		"coverage_tool?", &coverageTool,
		"coverage_files?", &coverageFiles,
		"python_version", &pythonVersion,
		"stub_shebang?", &stubShebang,
		"bootstrap_template?", &bootstrapTemplate,
	); err != nil {
		return nil, err
	}

	if (interpreter == starlark.None) == (interpreterPath == starlark.None) {
		return nil, fmt.Errorf("%s: exactly one of the 'interpreter' or 'interpreter_path' arguments must be specified", ProviderName)
	}
	hermetic := interpreter != starlark.None
	if !hermetic && files != starlark.None {
		return nil, fmt.Errorf("%s: cannot specify 'files' if 'interpreter_path' is given", ProviderName)
	}
	if (coverageTool == starlark.None) != (coverageFiles == starlark.None) {
		return nil, fmt.Errorf("%s: 'coverage_tool' and 'coverage_files' must both be set or neither", ProviderName)
	}

	version, err := ParseTargetVersion(pythonVersion)
	if err != nil {
		return nil, fmt.Errorf("%s: python_version: %v", ProviderName, err)
	}

	var tool *types.File
	if coverageTool != starlark.None {
		f, ok := coverageTool.(*types.File)
		if !ok {
			return nil, fmt.Errorf("%s: for parameter 'coverage_tool': got %s, want File", ProviderName, coverageTool.Type())
		}
		tool = f
	}
	var toolFiles *types.Depset
	if coverageFiles != starlark.None {
		d, ok := coverageFiles.(*types.Depset)
		if !ok {
			return nil, fmt.Errorf("%s: for parameter 'coverage_files': got %s, want depset", ProviderName, coverageFiles.Type())
		}
		toolFiles = d
	}
	var template *types.File
	if bootstrapTemplate != starlark.None {
		f, ok := bootstrapTemplate.(*types.File)
		if !ok {
			return nil, fmt.Errorf("%s: for parameter 'bootstrap_template': got %s, want File", ProviderName, bootstrapTemplate.Type())
		}
		template = f
	}

	if hermetic {
		interp, ok := interpreter.(*types.File)
		if !ok {
			return nil, fmt.Errorf("%s: for parameter 'interpreter': got %s, want File", ProviderName, interpreter.Type())
		}
		fileSet := types.EmptyDepset()
		if files != starlark.None {
			d, ok := files.(*types.Depset)
			if !ok {
				return nil, fmt.Errorf("%s: for parameter 'files': got %s, want depset", ProviderName, files.Type())
			}
			fileSet = d
		}
		return NewHermeticInfo(interp, fileSet, tool, toolFiles, version, stubShebang, template), nil
	}

	pathStr, ok := interpreterPath.(starlark.String)
	if !ok {
		return nil, fmt.Errorf("%s: for parameter 'interpreter_path': got %s, want string", ProviderName, interpreterPath.Type())
	}
	if pathStr == "" {
		return nil, fmt.Errorf("%s: 'interpreter_path' must be non-empty", ProviderName)
	}
	return NewPlatformInfo(string(pathStr), tool, toolFiles, version, stubShebang, template), nil
}

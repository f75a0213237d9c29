// Package analysis implements the analysis phase of the Python rules dialect.
//
// This file implements ConfiguredTarget, the analyzed form of a target as
// seen by the rules that depend on it. A configured target answers three
// independent capability queries: the files it produces when built, its
// designated executable output if it has one, and its default runfiles if it
// provides any. Callers never need to know the target's concrete kind.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/ConfiguredTarget.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/FileProvider.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/FilesToRunProvider.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/RunfilesProvider.java
package analysis

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/providers"
	"github.com/albertocavalcante/rules-python-go/types"
)

// ConfiguredTarget is the analyzed form of a target: its label and kind, the
// files it builds, and the optional executable, runfiles, and declared
// providers it exposes to dependents.
type ConfiguredTarget struct {
	label           *types.Label
	kind            string
	filesToBuild    *types.Depset
	executable      *types.File
	defaultRunfiles *providers.Runfiles
	declared        []starlark.Value
	frozen          bool
}

var (
	_ starlark.Value    = (*ConfiguredTarget)(nil)
	_ starlark.HasAttrs = (*ConfiguredTarget)(nil)
	_ starlark.Mapping  = (*ConfiguredTarget)(nil)
)

// TargetOption is a functional option for configuring a ConfiguredTarget.
type TargetOption func(*ConfiguredTarget)

// WithExecutable sets the target's designated executable output.
// Reference: FilesToRunProvider.java getExecutable()
func WithExecutable(f *types.File) TargetOption {
	return func(ct *ConfiguredTarget) {
		ct.executable = f
	}
}

// WithDefaultRunfiles sets the target's default runfiles.
// Reference: RunfilesProvider.java getDefaultRunfiles()
func WithDefaultRunfiles(r *providers.Runfiles) TargetOption {
	return func(ct *ConfiguredTarget) {
		ct.defaultRunfiles = r
	}
}

// WithDeclaredProvider attaches a native declared provider, such as a
// PyRuntimeInfo descriptor.
// Reference: RuleConfiguredTargetBuilder.java addNativeDeclaredProvider()
func WithDeclaredProvider(p starlark.Value) TargetOption {
	return func(ct *ConfiguredTarget) {
		ct.declared = append(ct.declared, p)
	}
}

// NewConfiguredTarget creates a ConfiguredTarget. A nil filesToBuild is
// taken as empty.
func NewConfiguredTarget(label *types.Label, kind string, filesToBuild *types.Depset, opts ...TargetOption) *ConfiguredTarget {
	if filesToBuild == nil {
		filesToBuild = types.EmptyDepset()
	}
	ct := &ConfiguredTarget{
		label:        label,
		kind:         kind,
		filesToBuild: filesToBuild,
	}
	for _, opt := range opts {
		opt(ct)
	}
	return ct
}

// NewSourceFileTarget wraps an in-tree file as a configured target producing
// just itself.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/configuredtargets/InputFileConfiguredTarget.java
func NewSourceFileTarget(file *types.File) *ConfiguredTarget {
	d, err := types.FileDepset([]*types.File{file})
	if err != nil {
		panic(fmt.Sprintf("analysis: source file target: %v", err))
	}
	return &ConfiguredTarget{
		label:        file.Owner(),
		kind:         "source file",
		filesToBuild: d,
	}
}

// Label returns the target's label, or nil for anonymous file targets.
func (ct *ConfiguredTarget) Label() *types.Label { return ct.label }

// Kind returns the target kind, such as "py_runtime rule" or "source file".
func (ct *ConfiguredTarget) Kind() string { return ct.kind }

// FilesToBuild returns the files this target produces when built. Never nil.
// Reference: FileProvider.java getFilesToBuild()
func (ct *ConfiguredTarget) FilesToBuild() *types.Depset { return ct.filesToBuild }

// ExecutableOutput returns the target's designated executable output, if it
// has one.
// Reference: FilesToRunProvider.java getExecutable()
func (ct *ConfiguredTarget) ExecutableOutput() (*types.File, bool) {
	if ct.executable == nil {
		return nil, false
	}
	return ct.executable, true
}

// DefaultRunfiles returns the target's default runfiles, if it provides any.
// Reference: RunfilesProvider.java getDefaultRunfiles()
func (ct *ConfiguredTarget) DefaultRunfiles() (*providers.Runfiles, bool) {
	if ct.defaultRunfiles == nil {
		return nil, false
	}
	return ct.defaultRunfiles, true
}

// RunfilesArtifacts returns the artifacts of the target's default runfiles,
// if it provides runfiles.
// Reference: Runfiles.java getArtifacts()
func (ct *ConfiguredTarget) RunfilesArtifacts() (*types.Depset, bool) {
	if ct.defaultRunfiles == nil {
		return nil, false
	}
	return ct.defaultRunfiles.Files(), true
}

// DeclaredProviders returns the native declared providers in attach order.
func (ct *ConfiguredTarget) DeclaredProviders() []starlark.Value {
	out := make([]starlark.Value, len(ct.declared))
	copy(out, ct.declared)
	return out
}

// Provider returns the declared provider whose Starlark type name matches,
// if one was attached.
func (ct *ConfiguredTarget) Provider(name string) (starlark.Value, bool) {
	for _, p := range ct.declared {
		if p.Type() == name {
			return p, true
		}
	}
	return nil, false
}

// Get implements provider indexing, target[PyRuntimeInfo]. The key is the
// provider value itself or a native constructor builtin; unexported providers
// match by identity.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/configuredtargets/AbstractConfiguredTarget.java getIndex()
func (ct *ConfiguredTarget) Get(key starlark.Value) (starlark.Value, bool, error) {
	switch k := key.(type) {
	case *types.Provider:
		for _, p := range ct.declared {
			if pi, ok := p.(*types.ProviderInstance); ok && pi.Provider() == k {
				return pi, true, nil
			}
		}
		if k.IsExported() {
			if p, ok := ct.Provider(k.Name()); ok {
				return p, true, nil
			}
		}
		return nil, false, nil
	case *starlark.Builtin:
		if p, ok := ct.Provider(k.Name()); ok {
			return p, true, nil
		}
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("Target indices must be providers, got %s", key.Type())
	}
}

// String returns the Starlark representation.
func (ct *ConfiguredTarget) String() string {
	if ct.label != nil {
		return fmt.Sprintf("<target %s>", ct.label.String())
	}
	return fmt.Sprintf("<%s target>", ct.kind)
}

// Type returns "Target".
func (ct *ConfiguredTarget) Type() string { return "Target" }

// Freeze marks the target as frozen.
func (ct *ConfiguredTarget) Freeze() {
	if ct.frozen {
		return
	}
	ct.frozen = true
	for _, p := range ct.declared {
		p.Freeze()
	}
}

// Truth returns true.
func (ct *ConfiguredTarget) Truth() starlark.Bool { return true }

// Hash returns an error.
func (ct *ConfiguredTarget) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: Target")
}

// Attr returns an attribute of the target.
func (ct *ConfiguredTarget) Attr(name string) (starlark.Value, error) {
	switch name {
	case "label":
		if ct.label == nil {
			return starlark.None, nil
		}
		return ct.label, nil
	case "kind":
		return starlark.String(ct.kind), nil
	case "files":
		return ct.filesToBuild, nil
	default:
		for _, p := range ct.declared {
			if p.Type() == name {
				return p, nil
			}
		}
		return nil, starlark.NoSuchAttrError(fmt.Sprintf("Target has no attribute %q", name))
	}
}

// AttrNames returns the list of attribute names.
func (ct *ConfiguredTarget) AttrNames() []string {
	names := []string{"files", "kind", "label"}
	for _, p := range ct.declared {
		names = append(names, p.Type())
	}
	sort.Strings(names)
	return names
}

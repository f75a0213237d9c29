// Package python implements the py_runtime rule of the Python rules dialect.
//
// This file implements the rule itself: the attribute schema, the resolution
// of typed attribute values into a PyRuntimeInfo descriptor, and the
// assembly of the configured target around it. Resolution is a pure function
// over its inputs; every user-input problem is accumulated so one evaluation
// reports all of them together.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/rules/python/PyRuntime.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/bazel/rules/python/BazelPyRuntimeRule.java
package python

import (
	"errors"
	"fmt"
	"path"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/analysis"
	"github.com/albertocavalcante/rules-python-go/providers"
	"github.com/albertocavalcante/rules-python-go/types"
)

// RuleName is the rule class name.
const RuleName = "py_runtime"

// versionRequiredMsg is reported when python_version is omitted while the
// configuration mandates toolchain resolution.
// Reference: PyRuntime.java create() lines 96-101
const versionRequiredMsg = "When using Python toolchains, this attribute must be set explicitly to either 'PY2' " +
	"or 'PY3'. See https://github.com/bazelbuild/bazel/issues/7899 for more " +
	"information. You can temporarily avoid this error by reverting to the legacy " +
	"Python runtime mechanism (`--incompatible_use_python_toolchains=false`)."

// RuleClass returns the py_runtime rule schema.
// Reference: BazelPyRuntimeRule.java
func RuleClass() *types.RuleClass {
	attrs := map[string]*types.AttrDescriptor{
		"files": {
			Name:       "files",
			Type:       types.AttrTypeLabelList,
			Default:    starlark.NewList(nil),
			AllowEmpty: true,
			Doc: "For an in-build runtime, this is the set of files comprising this runtime. " +
				"These files will be added to the runfiles of Python binaries that use this runtime. " +
				"For a platform runtime this attribute must not be set.",
		},
		"interpreter": {
			Name:       "interpreter",
			Type:       types.AttrTypeLabel,
			Default:    starlark.None,
			SingleFile: true,
			Doc: "For an in-build runtime, this is the target to invoke as the interpreter. " +
				"For a platform runtime this attribute must not be set.",
		},
		"interpreter_path": {
			Name:    "interpreter_path",
			Type:    types.AttrTypeString,
			Default: starlark.String(""),
			Doc: "For a platform runtime, this is the absolute path of a Python interpreter on the " +
				"target platform. For an in-build runtime this attribute must not be set.",
		},
		"coverage_tool": {
			Name:    "coverage_tool",
			Type:    types.AttrTypeLabel,
			Default: starlark.None,
			Doc: "This is a target to use for collecting code coverage information from py_binary " +
				"and py_test targets. The target must either produce a single file or be an " +
				"executable target.",
		},
		"python_version": {
			Name:            "python_version",
			Type:            types.AttrTypeString,
			Default:         starlark.String(SentinelVersionName),
			NonConfigurable: true,
			AllowedValues:   []string{"PY2", "PY3", SentinelVersionName},
			Doc: "Whether this runtime is for Python major version 2 or 3. Valid values are " +
				"\"PY2\" and \"PY3\".",
		},
		"stub_shebang": {
			Name:    "stub_shebang",
			Type:    types.AttrTypeString,
			Default: starlark.String(DefaultStubShebang),
			Doc: "\"Shebang\" expression prepended to the bootstrapping Python stub script used " +
				"when executing py_binary targets.",
		},
		"bootstrap_template": {
			Name:       "bootstrap_template",
			Type:       types.AttrTypeLabel,
			Default:    starlark.String(DefaultBootstrapTemplate),
			SingleFile: true,
			Doc: "The template to use when building the bootstrap script for py_binary targets. " +
				"Must be a single file.",
		},
	}
	return types.NewRuleClass(RuleName, attrs,
		types.WithFragments([]string{FragmentName}),
		types.WithDoc("Represents a Python runtime used to execute Python code. A py_runtime target can "+
			"represent either a platform runtime or an in-build runtime."))
}

// CoverageTarget is the capability surface of a coverage_tool prerequisite.
// The three queries are independent of each other and of the target's kind:
// a plain file target answers only the first, an executable target typically
// answers all three.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/TransitiveInfoCollection.java
type CoverageTarget interface {
	// FilesToBuild returns the File depset the target produces when built.
	FilesToBuild() *types.Depset
	// ExecutableOutput returns the target's designated executable, if any.
	ExecutableOutput() (*types.File, bool)
	// RunfilesArtifacts returns the artifacts of the target's default
	// runfiles, if the target provides runfiles.
	RunfilesArtifacts() (*types.Depset, bool)
}

// RuntimeInputs are the typed attribute values of one py_runtime target, as
// supplied by the attribute layer. The zero value of an optional field means
// the attribute was not set.
type RuntimeInputs struct {
	// Interpreter is the resolved 'interpreter' artifact, or nil.
	Interpreter *types.File
	// InterpreterPath is the 'interpreter_path' string, or empty.
	InterpreterPath string
	// Files is the support file set; nil is taken as empty.
	Files *types.Depset
	// CoverageTarget is the resolved 'coverage_tool' prerequisite, or nil.
	CoverageTarget CoverageTarget
	// Version is the parsed 'python_version'; SentinelVersion when the
	// attribute was left at its default.
	Version Version
	// StubShebang is the 'stub_shebang' string.
	StubShebang string
	// BootstrapTemplate is the resolved 'bootstrap_template' artifact.
	BootstrapTemplate *types.File
}

// Resolve validates the attributes of a py_runtime target and assembles the
// runtime descriptor. All user-input problems are accumulated: when any
// check fails the returned error is an *analysis.ErrorSet carrying every
// problem found, and no descriptor is produced.
// Reference: PyRuntime.java create()
func Resolve(in RuntimeInputs, cfg *Configuration) (*Info, error) {
	es := &analysis.ErrorSet{}

	files := in.Files
	if files == nil {
		files = types.EmptyDepset()
	}

	hermetic := validateAttributes(in, files, es)
	coverageTool, coverageFiles := resolveCoverageTool(in.CoverageTarget, es)
	version := resolveVersion(in.Version, cfg, es)

	if es.HasErrors() {
		return nil, es
	}
	if !version.IsTargetValue() {
		panic(fmt.Sprintf("python: resolved version '%s' is not a concrete target version", version))
	}

	if hermetic {
		return NewHermeticInfo(in.Interpreter, files, coverageTool, coverageFiles,
			version, in.StubShebang, in.BootstrapTemplate), nil
	}
	return NewPlatformInfo(in.InterpreterPath, coverageTool, coverageFiles,
		version, in.StubShebang, in.BootstrapTemplate), nil
}

// validateAttributes checks the mutual-exclusion and shape constraints on
// the interpreter attributes, reporting every violation, and returns whether
// the runtime is hermetic.
// Reference: PyRuntime.java create() lines 53-66
func validateAttributes(in RuntimeInputs, files *types.Depset, es *analysis.ErrorSet) bool {
	if (in.Interpreter == nil) == (in.InterpreterPath == "") {
		es.RuleError(analysis.AttributeConflict,
			"exactly one of the 'interpreter' or 'interpreter_path' attributes must be specified")
	}
	hermetic := in.Interpreter != nil
	if !hermetic && !files.IsEmpty() {
		es.RuleError(analysis.AttributeConflict,
			"if 'interpreter_path' is given then 'files' must be empty")
	}
	if !hermetic && !path.IsAbs(in.InterpreterPath) {
		es.AttributeError(analysis.AttributeInvalid, "interpreter_path", "must be an absolute path.")
	}
	return hermetic
}

// resolveCoverageTool resolves the optional coverage_tool prerequisite into
// a single tool file plus the closure of files needed to run it. A target
// producing exactly one file is taken as-is, even when it also has an
// executable output; otherwise the executable output is used. The closure is
// a structurally shared union of the target's build outputs and its default
// runfiles, never a flat copy.
// Reference: PyRuntime.java create() lines 68-92
func resolveCoverageTool(target CoverageTarget, es *analysis.ErrorSet) (*types.File, *types.Depset) {
	if target == nil {
		return nil, nil
	}

	toolFiles := target.FilesToBuild()
	if toolFiles == nil {
		toolFiles = types.EmptyDepset()
	}

	var tool *types.File
	if single, ok := toolFiles.Singleton(); ok {
		tool, _ = single.(*types.File)
	} else if exe, ok := target.ExecutableOutput(); ok {
		tool = exe
	} else {
		es.AttributeError(analysis.CoverageToolUnresolvable, "coverage_tool",
			"must be an executable target or must produce exactly one file.")
	}

	closure := []*types.Depset{toolFiles}
	if runfiles, ok := target.RunfilesArtifacts(); ok {
		closure = append(closure, runfiles)
	}
	coverageFiles, err := types.NewDepset(types.OrderDefault, nil, closure)
	if err != nil {
		panic(fmt.Sprintf("python: coverage file closure: %v", err))
	}
	return tool, coverageFiles
}

// resolveVersion produces the concrete runtime version, falling back to the
// configuration default when the attribute was left unspecified. In
// toolchain mode there is no safe default and the version must be stated
// explicitly.
// Reference: PyRuntime.java create() lines 94-107
func resolveVersion(version Version, cfg *Configuration, es *analysis.ErrorSet) Version {
	if version != SentinelVersion {
		return version
	}
	if cfg.UseToolchains() {
		es.AttributeError(analysis.VersionRequiredInToolchainMode, "python_version", versionRequiredMsg)
		return SentinelVersion
	}
	return cfg.DefaultVersion()
}

// Analyze implements the py_runtime rule: it gathers the typed inputs from
// the rule context, resolves them, and builds the configured target carrying
// the PyRuntimeInfo provider. On validation failure it records the errors on
// the context and returns nil.
// Reference: PyRuntime.java create()
func Analyze(rctx *analysis.RuleContext) *analysis.ConfiguredTarget {
	cfg := configurationOf(rctx)
	in := inputsFromRuleContext(rctx)

	info, err := Resolve(in, cfg)
	if err != nil {
		var es *analysis.ErrorSet
		if errors.As(err, &es) {
			for _, e := range es.Errors() {
				rctx.Report(e)
			}
		} else {
			rctx.RuleError(analysis.AttributeInvalid, err.Error())
		}
	}
	if rctx.HasErrors() {
		return nil
	}

	return analysis.NewConfiguredTarget(rctx.Label(), rctx.Rule().TargetKind(), info.FilesToBuild(),
		analysis.WithDefaultRunfiles(providers.EmptyRunfiles),
		analysis.WithDeclaredProvider(info))
}

// configurationOf returns the python fragment registered on the context,
// falling back to the defaults when the analyzer registered none.
func configurationOf(rctx *analysis.RuleContext) *Configuration {
	if f, ok := rctx.Fragment(FragmentName); ok {
		if cfg, ok := f.(*Configuration); ok {
			return cfg
		}
	}
	return DefaultConfiguration()
}

// inputsFromRuleContext gathers the typed attribute values and resolved
// prerequisites of a py_runtime target. Problems with individual attributes
// are reported on the context; gathering continues so later checks still
// run.
func inputsFromRuleContext(rctx *analysis.RuleContext) RuntimeInputs {
	var in RuntimeInputs

	in.Interpreter = rctx.PrerequisiteArtifact("interpreter")
	in.InterpreterPath = stringAttr(rctx, "interpreter_path")
	in.Files = rctx.PrerequisiteArtifacts("files")

	if ct := rctx.Prerequisite("coverage_tool"); ct != nil {
		in.CoverageTarget = ct
	}

	if s := stringAttr(rctx, "python_version"); s != "" {
		v, err := ParseTargetOrSentinelVersion(s)
		if err != nil {
			rctx.AttributeError(analysis.AttributeInvalid, "python_version", err.Error())
		} else {
			in.Version = v
		}
	}

	in.StubShebang = stringAttr(rctx, "stub_shebang")
	in.BootstrapTemplate = rctx.PrerequisiteArtifact("bootstrap_template")
	return in
}

// stringAttr reads a string attribute, reporting a schema mismatch on the
// context.
func stringAttr(rctx *analysis.RuleContext, name string) string {
	s, err := rctx.Attrs().String(name)
	if err != nil {
		rctx.AttributeError(analysis.AttributeInvalid, name, err.Error())
	}
	return s
}

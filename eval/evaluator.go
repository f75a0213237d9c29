// Package eval evaluates the BUILD and .bzl files of the Python rules
// dialect.
//
// The two file kinds get different predeclared environments:
//   - BUILD files declare targets into a Package. The py_runtime rule class,
//     the native helpers (glob, existing_rule, package_name, ...) and the
//     package-level declarations (package, licenses, exports_files) are in
//     scope as top-level names.
//   - .bzl files define reusable values: rules, providers, macros. Their
//     globals are exported under their assignment names once the file has
//     executed, and macros reach the dialect's rules through the native
//     module.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/PackageFactory.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/skyframe/BzlLoadFunction.java
package eval

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/albertocavalcante/rules-python-go/builtins"
	"github.com/albertocavalcante/rules-python-go/loader"
	"github.com/albertocavalcante/rules-python-go/native"
	"github.com/albertocavalcante/rules-python-go/providers"
	"github.com/albertocavalcante/rules-python-go/python"
	"github.com/albertocavalcante/rules-python-go/types"
)

// Evaluator evaluates Starlark files (BUILD and .bzl).
type Evaluator struct {
	bzlLoader        loader.BzlLoader
	fileLoader       loader.Loader
	workspaceRoot    string
	predeclaredBzl   starlark.StringDict
	predeclaredBuild starlark.StringDict
	printHandler     func(msg string)
	cache            map[string]*CachedModule
}

// CachedModule holds a cached module evaluation result.
type CachedModule struct {
	Globals starlark.StringDict
	Err     error
}

// Options configures the Evaluator.
type Options struct {
	BzlLoader  loader.BzlLoader
	FileLoader loader.Loader

	// WorkspaceRoot anchors package names and glob operations. BUILD file
	// paths are interpreted relative to it.
	WorkspaceRoot string

	// PredeclaredBzl and PredeclaredBuild add to (or override) the default
	// predeclared environments.
	PredeclaredBzl   starlark.StringDict
	PredeclaredBuild starlark.StringDict

	PrintHandler func(msg string)
}

// New creates a new Evaluator.
func New(opts Options) *Evaluator {
	predeclaredBzl := makeBzlPredeclared()
	for k, v := range opts.PredeclaredBzl {
		predeclaredBzl[k] = v
	}

	predeclaredBuild := makeBuildPredeclared()
	for k, v := range opts.PredeclaredBuild {
		predeclaredBuild[k] = v
	}

	return &Evaluator{
		bzlLoader:        opts.BzlLoader,
		fileLoader:       opts.FileLoader,
		workspaceRoot:    opts.WorkspaceRoot,
		predeclaredBzl:   predeclaredBzl,
		predeclaredBuild: predeclaredBuild,
		printHandler:     opts.PrintHandler,
		cache:            make(map[string]*CachedModule),
	}
}

// BzlPredeclared returns the default predeclared environment of .bzl files.
// A BzlFileLoader used with this Evaluator should be built over the same
// environment.
func (e *Evaluator) BzlPredeclared() starlark.StringDict {
	return e.predeclaredBzl
}

// SetBzlLoader installs the loader that resolves load() statements. The
// loader is usually built over BzlPredeclared() after the Evaluator exists,
// which is why it cannot always be passed in Options.
func (e *Evaluator) SetBzlLoader(l loader.BzlLoader) {
	e.bzlLoader = l
}

// BzlResult contains the result of evaluating a .bzl file.
type BzlResult struct {
	Globals starlark.StringDict
}

// BuildResult contains the result of evaluating a BUILD file.
type BuildResult struct {
	Package *Package
	Globals starlark.StringDict
}

// EvalBzl evaluates a .bzl file and exports its globals.
func (e *Evaluator) EvalBzl(path string, source []byte) (*BzlResult, error) {
	thread := e.newThread(path)
	loader.SetCurrentPackage(thread, packageOf(path))

	globals, err := starlark.ExecFile(thread, path, source, e.predeclaredBzl)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", path, err)
	}
	if err := ExportGlobals(globals); err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", path, err)
	}

	return &BzlResult{Globals: globals}, nil
}

// EvalBuild evaluates a BUILD file and returns the package it declares.
func (e *Evaluator) EvalBuild(path string, source []byte) (*BuildResult, error) {
	pkg := NewPackage(e.workspaceRoot, path)

	thread := e.newThread(path)
	loader.SetCurrentPackage(thread, pkg.Name)
	native.SetPackageContext(thread, pkg.Context())
	types.SetTargetRegistry(thread, pkg)
	SetPackage(thread, pkg)

	globals, err := starlark.ExecFile(thread, path, source, e.predeclaredBuild)
	if err != nil {
		return nil, fmt.Errorf("evaluating %s: %w", path, err)
	}

	return &BuildResult{Package: pkg, Globals: globals}, nil
}

// EvalBzlFile loads and evaluates a .bzl file from the file loader.
func (e *Evaluator) EvalBzlFile(path string) (*BzlResult, error) {
	if e.fileLoader == nil {
		return nil, fmt.Errorf("no file loader configured")
	}
	source, err := e.fileLoader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return e.EvalBzl(path, source)
}

// EvalBuildFile loads and evaluates a BUILD file from the file loader.
func (e *Evaluator) EvalBuildFile(path string) (*BuildResult, error) {
	if e.fileLoader == nil {
		return nil, fmt.Errorf("no file loader configured")
	}
	source, err := e.fileLoader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return e.EvalBuild(path, source)
}

func (e *Evaluator) newThread(path string) *starlark.Thread {
	thread := &starlark.Thread{
		Name:  path,
		Print: e.makePrintHandler(),
	}
	if e.bzlLoader != nil {
		thread.Load = loader.MakeLoadFunc(e.bzlLoader)
		loader.SetBzlLoader(thread, e.bzlLoader)
	} else {
		thread.Load = e.makeLoadFunc()
	}
	return thread
}

// packageOf derives the package path from a file path.
func packageOf(path string) string {
	pkg := strings.TrimPrefix(filepath.Dir(path), "/")
	if pkg == "." {
		pkg = ""
	}
	return pkg
}

func (e *Evaluator) makePrintHandler() func(*starlark.Thread, string) {
	return func(_ *starlark.Thread, msg string) {
		if e.printHandler != nil {
			e.printHandler(msg)
		}
	}
}

// makeLoadFunc builds the fallback load() implementation used when no
// BzlLoader is configured: modules are file paths resolved through the file
// loader, cached by path.
func (e *Evaluator) makeLoadFunc() func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	return func(thread *starlark.Thread, module string) (starlark.StringDict, error) {
		if cached, ok := e.cache[module]; ok {
			return cached.Globals, cached.Err
		}

		if e.fileLoader == nil {
			return nil, fmt.Errorf("no loader configured for module %q", module)
		}

		source, err := e.fileLoader.Load(module)
		if err != nil {
			e.cache[module] = &CachedModule{Err: err}
			return nil, err
		}

		newThread := &starlark.Thread{
			Name:  module,
			Load:  e.makeLoadFunc(),
			Print: thread.Print,
		}
		loader.SetCurrentPackage(newThread, packageOf(module))

		globals, err := starlark.ExecFile(newThread, module, source, e.predeclaredBzl)
		if err == nil {
			err = ExportGlobals(globals)
		}
		e.cache[module] = &CachedModule{Globals: globals, Err: err}

		return globals, err
	}
}

func makeBzlPredeclared() starlark.StringDict {
	predeclared := builtins.Predeclared()
	predeclared["native"] = nativeModule()
	predeclared["DefaultInfo"] = starlark.NewBuiltin("DefaultInfo", providers.DefaultInfoBuiltin)
	predeclared["OutputGroupInfo"] = starlark.NewBuiltin("OutputGroupInfo", providers.OutputGroupInfoBuiltin)
	predeclared[python.ProviderName] = python.InfoConstructor()
	return predeclared
}

func makeBuildPredeclared() starlark.StringDict {
	predeclared := builtins.BuildFilePredeclared()
	// The native module's members are top-level names in BUILD files.
	for name, member := range native.ModuleMembers() {
		predeclared[name] = member
	}
	predeclared[python.RuleName] = python.RuleClass()
	predeclared["package"] = starlark.NewBuiltin("package", PackageBuiltin)
	predeclared["licenses"] = starlark.NewBuiltin("licenses", LicensesBuiltin)
	predeclared["exports_files"] = starlark.NewBuiltin("exports_files", ExportsFilesBuiltin)
	return predeclared
}

// nativeModule assembles the native module for .bzl macros: the package
// helpers plus the rules of this dialect.
func nativeModule() *starlarkstruct.Module {
	members := native.ModuleMembers()
	members[python.RuleName] = python.RuleClass()
	return &starlarkstruct.Module{Name: "native", Members: members}
}

package eval

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// mapLoader serves module sources from a map, keyed by path.
type mapLoader map[string][]byte

func (m mapLoader) Load(path string) ([]byte, error) {
	src, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such module: %s", path)
	}
	return src, nil
}

func TestEvalBzlExportsRule(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBzl("defs.bzl", []byte(`
def _impl(ctx):
    pass

my_runtime = rule(
    implementation = _impl,
    attrs = {"version": attr.string(default = "PY3")},
)
`))
	if err != nil {
		t.Fatalf("EvalBzl failed: %v", err)
	}

	rc, ok := result.Globals["my_runtime"].(*types.RuleClass)
	if !ok {
		t.Fatalf("my_runtime = %T, want *types.RuleClass", result.Globals["my_runtime"])
	}
	if !rc.IsExported() {
		t.Error("rule class not exported after .bzl evaluation")
	}
	if rc.Name() != "my_runtime" {
		t.Errorf("rule class name = %q, want 'my_runtime'", rc.Name())
	}
}

func TestEvalBzlExportsProvider(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBzl("defs.bzl", []byte(`
RubyRuntimeInfo = provider(fields = ["interpreter_path"])
info = RubyRuntimeInfo(interpreter_path = "/usr/bin/ruby")
`))
	if err != nil {
		t.Fatalf("EvalBzl failed: %v", err)
	}

	p := result.Globals["RubyRuntimeInfo"].(*types.Provider)
	if !p.IsExported() {
		t.Error("provider not exported after .bzl evaluation")
	}
	if p.Name() != "RubyRuntimeInfo" {
		t.Errorf("provider name = %q, want 'RubyRuntimeInfo'", p.Name())
	}

	// An instance created during evaluation reports the exported name too.
	inst := result.Globals["info"].(*types.ProviderInstance)
	if inst.Type() != "RubyRuntimeInfo" {
		t.Errorf("instance Type() = %q, want 'RubyRuntimeInfo'", inst.Type())
	}
}

func TestEvalBzlPredeclared(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBzl("defs.bzl", []byte(`
has_default_info = DefaultInfo != None
has_py_info = PyRuntimeInfo != None
has_output_groups = OutputGroupInfo != None
`))
	if err != nil {
		t.Fatalf("EvalBzl failed: %v", err)
	}

	for _, name := range []string{"has_default_info", "has_py_info", "has_output_groups"} {
		if result.Globals[name] != starlark.True {
			t.Errorf("%s = %v, want True", name, result.Globals[name])
		}
	}
}

func TestEvalBuildDeclaresTarget(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBuild("tools/python/BUILD", []byte(`
py_runtime(
    name = "py3",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	pkg := result.Package
	if pkg.Name != "tools/python" {
		t.Errorf("package name = %q, want 'tools/python'", pkg.Name)
	}

	target := pkg.GetTarget("py3")
	if target == nil {
		t.Fatal("target 'py3' not registered")
	}
	if target.RuleClassName() != "py_runtime" {
		t.Errorf("target kind = %q, want 'py_runtime'", target.RuleClassName())
	}
	if got := target.Label().String(); got != "//tools/python:py3" {
		t.Errorf("target label = %q, want '//tools/python:py3'", got)
	}

	// The target is visible to existing_rule() through the native context.
	attrs := pkg.Context().GetRule("py3")
	if attrs == nil {
		t.Fatal("target 'py3' not mirrored into the native package context")
	}
	if attrs["kind"] != starlark.String("py_runtime") {
		t.Errorf("mirrored kind = %v, want 'py_runtime'", attrs["kind"])
	}
}

func TestEvalBuildDuplicateTarget(t *testing.T) {
	e := New(Options{})

	_, err := e.EvalBuild("pkg/BUILD", []byte(`
py_runtime(name = "py3", interpreter_path = "/usr/bin/python3")
py_runtime(name = "py3", interpreter_path = "/usr/bin/python3.11")
`))
	if err == nil {
		t.Fatal("expected error for duplicate target, got none")
	}
	if !strings.Contains(err.Error(), `duplicate target name "py3"`) {
		t.Errorf("error = %v, want duplicate target message", err)
	}
}

func TestEvalBuildExistingRule(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBuild("pkg/BUILD", []byte(`
py_runtime(name = "py3", interpreter_path = "/usr/bin/python3")
seen = existing_rule("py3") != None
missing = existing_rule("other") == None
`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	if result.Globals["seen"] != starlark.True {
		t.Error("existing_rule does not see the declared target")
	}
	if result.Globals["missing"] != starlark.True {
		t.Error("existing_rule reports a target that was never declared")
	}
}

func TestEvalBuildMacro(t *testing.T) {
	e := New(Options{
		FileLoader: mapLoader{
			"rules.bzl": []byte(`
def py3_runtime(name, path):
    native.py_runtime(
        name = name,
        interpreter_path = path,
        python_version = "PY3",
    )
`),
		},
	})

	result, err := e.EvalBuild("pkg/BUILD", []byte(`
load("rules.bzl", "py3_runtime")

py3_runtime(name = "hermetic", path = "/opt/python3/bin/python3")
`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	target := result.Package.GetTarget("hermetic")
	if target == nil {
		t.Fatal("macro did not register the target")
	}
	v, _ := target.GetAttrValue("python_version")
	if v != starlark.String("PY3") {
		t.Errorf("python_version = %v, want 'PY3'", v)
	}
}

func TestEvalBuildSelect(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBuild("pkg/BUILD", []byte(`
py_runtime(
    name = "py3",
    interpreter_path = "/usr/bin/python3",
    stub_shebang = select({
        "//conditions:default": "#!/usr/bin/env python3",
    }),
)
`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	target := result.Package.GetTarget("py3")
	v, _ := target.GetAttrValue("stub_shebang")
	if _, ok := v.(*types.SelectorList); !ok {
		t.Errorf("stub_shebang = %T, want unresolved selector list", v)
	}
}

func TestExportsFiles(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBuild("runtime/BUILD", []byte(`
exports_files(["python3", "bootstrap.txt"])
`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	f := result.Package.SourceFile("python3")
	if f == nil {
		t.Fatal("exported file 'python3' not recorded")
	}
	if !f.IsSource() {
		t.Error("exported file is not a source file")
	}
	if f.ShortPath() != "runtime/python3" {
		t.Errorf("short path = %q, want 'runtime/python3'", f.ShortPath())
	}
}

func TestExportsFilesTwice(t *testing.T) {
	e := New(Options{})

	_, err := e.EvalBuild("pkg/BUILD", []byte(`
exports_files(["a.py"])
exports_files(["a.py"])
`))
	if err == nil {
		t.Fatal("expected error for double export, got none")
	}
	if !strings.Contains(err.Error(), "exported twice") {
		t.Errorf("error = %v, want exported twice message", err)
	}
}

func TestPackageDefaults(t *testing.T) {
	e := New(Options{})

	result, err := e.EvalBuild("pkg/BUILD", []byte(`
package(
    default_visibility = ["//visibility:public"],
    default_testonly = True,
)
`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	pkg := result.Package
	if len(pkg.DefaultVisibility) != 1 || pkg.DefaultVisibility[0] != "//visibility:public" {
		t.Errorf("default visibility = %v, want [//visibility:public]", pkg.DefaultVisibility)
	}
	if !pkg.DefaultTestonly {
		t.Error("default_testonly not recorded")
	}
}

func TestEvalBuildGlob(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "runtime")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.py", "b.py", "README"} {
		if err := os.WriteFile(filepath.Join(pkgDir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	e := New(Options{WorkspaceRoot: root})

	result, err := e.EvalBuild("runtime/BUILD", []byte(`g = glob(["*.py"])`))
	if err != nil {
		t.Fatalf("EvalBuild failed: %v", err)
	}

	g := result.Globals["g"].(*starlark.List)
	if g.Len() != 2 {
		t.Errorf("glob matched %d files, want 2", g.Len())
	}
}

func TestFilterExports(t *testing.T) {
	globals := starlark.StringDict{
		"public":  starlark.MakeInt(1),
		"_hidden": starlark.MakeInt(2),
	}

	exports := FilterExports(globals)
	if _, ok := exports["public"]; !ok {
		t.Error("public name filtered out")
	}
	if _, ok := exports["_hidden"]; ok {
		t.Error("private name not filtered out")
	}
}

func TestExportGlobalsFirstNameWins(t *testing.T) {
	p := types.NewProvider("", nil, "", nil)
	globals := starlark.StringDict{
		"ZInfo": p,
		"AInfo": p,
	}

	if err := ExportGlobals(globals); err != nil {
		t.Fatalf("ExportGlobals failed: %v", err)
	}
	if p.Name() != "AInfo" {
		t.Errorf("provider name = %q, want 'AInfo' (sorted order)", p.Name())
	}
}

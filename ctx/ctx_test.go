package ctx

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/analysis"
	"github.com/albertocavalcante/rules-python-go/builtins"
	"github.com/albertocavalcante/rules-python-go/eval"
	"github.com/albertocavalcante/rules-python-go/providers"
	"github.com/albertocavalcante/rules-python-go/python"
	"github.com/albertocavalcante/rules-python-go/types"
)

// compileRules evaluates a .bzl snippet the way the loader would, exporting
// rules and providers under their assignment names.
func compileRules(t *testing.T, src string) starlark.StringDict {
	t.Helper()
	predeclared := builtins.Predeclared()
	predeclared["DefaultInfo"] = starlark.NewBuiltin("DefaultInfo", providers.DefaultInfoBuiltin)
	thread := &starlark.Thread{Name: "compile"}
	globals, err := starlark.ExecFile(thread, "defs.bzl", src, predeclared)
	if err != nil {
		t.Fatalf("ExecFile failed: %v", err)
	}
	if err := eval.ExportGlobals(globals); err != nil {
		t.Fatalf("ExportGlobals failed: %v", err)
	}
	return globals
}

// covToolAttrs is the attribute schema used throughout: a source list, a
// single executable tool, and a plain string.
func covToolAttrs() map[string]*types.AttrDescriptor {
	return map[string]*types.AttrDescriptor{
		"srcs": {
			Name:       "srcs",
			Type:       types.AttrTypeLabelList,
			Default:    starlark.NewList(nil),
			AllowEmpty: true,
		},
		"tool": {
			Name:       "tool",
			Type:       types.AttrTypeLabel,
			Default:    starlark.None,
			SingleFile: true,
			Executable: true,
		},
		"out_name": {
			Name:    "out_name",
			Type:    types.AttrTypeString,
			Default: starlark.String(""),
		},
	}
}

// implRule wraps the snippet's _impl function in a rule class.
func implRule(t *testing.T, globals starlark.StringDict) *types.RuleClass {
	t.Helper()
	impl, ok := globals["_impl"].(starlark.Callable)
	if !ok {
		t.Fatalf("_impl is %v, want a function", globals["_impl"])
	}
	return types.NewRuleClass("py_cov_tool", covToolAttrs(), types.WithImplementation(impl))
}

// newTestContext builds a rule context for a py_cov_tool target //tools:cov.
func newTestContext(rc *types.RuleClass, attrValues map[string]starlark.Value) *analysis.RuleContext {
	rule := types.NewRuleInstance(rc, "cov", attrValues)
	rule.SetLabel(types.NewLabel("", "tools", "cov"))
	return analysis.NewRuleContext(rule)
}

// fileTarget builds a prerequisite target producing the given files.
func fileTarget(t *testing.T, label string, files ...*types.File) *analysis.ConfiguredTarget {
	t.Helper()
	l, err := types.ParseLabel(label)
	if err != nil {
		t.Fatalf("ParseLabel(%q): %v", label, err)
	}
	d, err := types.FileDepset(files)
	if err != nil {
		t.Fatalf("FileDepset: %v", err)
	}
	return analysis.NewConfiguredTarget(l, "filegroup rule", d)
}

const noopImpl = "def _impl(ctx):\n    return None\n"

func TestCtxAttrBinding(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, map[string]starlark.Value{
		"out_name": starlark.String("coverage.out"),
	})

	c := New(rctx)

	v, err := c.attr.Attr("out_name")
	if err != nil {
		t.Fatalf("ctx.attr.out_name: %v", err)
	}
	if want := starlark.String("coverage.out"); v != starlark.Value(want) {
		t.Errorf("ctx.attr.out_name = %v, want %v", v, want)
	}

	// A label attribute without a resolved prerequisite reads as None.
	v, err = c.attr.Attr("tool")
	if err != nil {
		t.Fatalf("ctx.attr.tool: %v", err)
	}
	if v != starlark.None {
		t.Errorf("ctx.attr.tool = %v, want None", v)
	}

	if _, err := c.attr.Attr("interpreter"); err == nil {
		t.Error("expected error for an undeclared attribute")
	}
}

func TestCtxFilesBinding(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, nil)

	a := types.NewSourceFile("tools", "a.py")
	b := types.NewSourceFile("tools", "b.py")
	rctx.SetPrerequisites("srcs", []*analysis.ConfiguredTarget{
		analysis.NewSourceFileTarget(a),
		analysis.NewSourceFileTarget(b),
	})

	c := New(rctx)

	v, err := c.files.Attr("srcs")
	if err != nil {
		t.Fatalf("ctx.files.srcs: %v", err)
	}
	list, ok := v.(*starlark.List)
	if !ok {
		t.Fatalf("ctx.files.srcs is %s, want list", v.Type())
	}
	if list.Len() != 2 {
		t.Fatalf("len(ctx.files.srcs) = %d, want 2", list.Len())
	}
	if f := list.Index(0).(*types.File); f.ShortPath() != "tools/a.py" {
		t.Errorf("ctx.files.srcs[0] = %q, want 'tools/a.py'", f.ShortPath())
	}

	v, err = c.attr.Attr("srcs")
	if err != nil {
		t.Fatalf("ctx.attr.srcs: %v", err)
	}
	targets, ok := v.(*starlark.List)
	if !ok || targets.Len() != 2 {
		t.Fatalf("ctx.attr.srcs = %v, want a list of 2 targets", v)
	}
	if _, ok := targets.Index(0).(*analysis.ConfiguredTarget); !ok {
		t.Errorf("ctx.attr.srcs[0] is %s, want Target", targets.Index(0).Type())
	}
}

func TestCtxSingleFileAndExecutable(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, nil)

	exe := types.NewSourceFile("tools", "covtool")
	d, err := types.FileDepset([]*types.File{exe})
	if err != nil {
		t.Fatalf("FileDepset: %v", err)
	}
	label, err := types.ParseLabel("//tools:covtool")
	if err != nil {
		t.Fatalf("ParseLabel: %v", err)
	}
	rctx.SetPrerequisites("tool", []*analysis.ConfiguredTarget{
		analysis.NewConfiguredTarget(label, "py_binary rule", d, analysis.WithExecutable(exe)),
	})

	c := New(rctx)
	if rctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", rctx.Errors())
	}

	if f, _ := c.file.Attr("tool"); f != starlark.Value(exe) {
		t.Errorf("ctx.file.tool = %v, want %v", f, exe)
	}
	if f, _ := c.executable.Attr("tool"); f != starlark.Value(exe) {
		t.Errorf("ctx.executable.tool = %v, want %v", f, exe)
	}
	if v, _ := c.attr.Attr("tool"); v.(*analysis.ConfiguredTarget).Label() != label {
		t.Errorf("ctx.attr.tool = %v, want the tool target", v)
	}
}

func TestCtxSingleFileRequiresOneArtifact(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, nil)

	rctx.SetPrerequisites("tool", []*analysis.ConfiguredTarget{
		fileTarget(t, "//tools:pair",
			types.NewSourceFile("tools", "one"),
			types.NewSourceFile("tools", "two")),
	})

	c := New(rctx)

	if !rctx.HasErrors() {
		t.Fatal("expected an error for a multi-file single_file prerequisite")
	}
	e := rctx.Errors()[0]
	if e.Attr != "tool" || e.Kind != analysis.AttributeInvalid {
		t.Errorf("error = %+v, want AttributeInvalid on 'tool'", e)
	}
	if f, _ := c.file.Attr("tool"); f != starlark.None {
		t.Errorf("ctx.file.tool = %v, want None", f)
	}
}

func TestCtxFragments(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, nil)
	rctx.RegisterFragment(python.FragmentName, python.DefaultConfiguration())

	c := New(rctx)

	frag, err := c.fragments.Attr("python")
	if err != nil {
		t.Fatalf("ctx.fragments.python: %v", err)
	}
	version, err := frag.(starlark.HasAttrs).Attr("default_python_version")
	if err != nil {
		t.Fatalf("default_python_version: %v", err)
	}
	if want := starlark.String("PY3"); version != starlark.Value(want) {
		t.Errorf("default_python_version = %v, want %v", version, want)
	}

	if got := c.fragments.AttrNames(); len(got) != 1 || got[0] != "python" {
		t.Errorf("fragment names = %v, want [python]", got)
	}
	if _, err := c.fragments.Attr("cpp"); err == nil {
		t.Error("expected error for an unregistered fragment")
	}
}

func TestCtxSurface(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, nil)

	c := New(rctx, WithWorkspaceName("test_ws"))

	if got, want := c.String(), "<rule context for //tools:cov>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if c.Type() != "ctx" {
		t.Errorf("Type() = %q, want 'ctx'", c.Type())
	}
	if v, _ := c.Attr("label"); v != starlark.Value(rctx.Label()) {
		t.Errorf("ctx.label = %v, want %v", v, rctx.Label())
	}
	if v, _ := c.Attr("workspace_name"); v != starlark.Value(starlark.String("test_ws")) {
		t.Errorf("ctx.workspace_name = %v, want 'test_ws'", v)
	}
	if v, _ := c.Attr("build_file_path"); v != starlark.Value(starlark.String("tools/BUILD")) {
		t.Errorf("ctx.build_file_path = %v, want 'tools/BUILD'", v)
	}
	if _, err := c.Attr("actions"); err == nil {
		t.Error("expected error for an unknown ctx attribute")
	}
}

func TestRunCollectsProviders(t *testing.T) {
	globals := compileRules(t, `
MyInfo = provider(fields = ["cmd"])

def _impl(ctx):
    default = DefaultInfo(
        files = depset(ctx.files.srcs),
        executable = ctx.executable.tool,
        runfiles = ctx.runfiles(files = ctx.files.srcs),
    )
    return [default, MyInfo(cmd = ctx.expand_location("run $(location :covtool)"))]
`)
	rc := implRule(t, globals)
	rctx := newTestContext(rc, nil)

	a := types.NewSourceFile("tools", "a.py")
	b := types.NewSourceFile("tools", "b.py")
	rctx.SetPrerequisites("srcs", []*analysis.ConfiguredTarget{
		fileTarget(t, "//tools:srcs", a, b),
	})
	exe := types.NewSourceFile("tools", "covtool")
	d, err := types.FileDepset([]*types.File{exe})
	if err != nil {
		t.Fatalf("FileDepset: %v", err)
	}
	label, err := types.ParseLabel("//tools:covtool")
	if err != nil {
		t.Fatalf("ParseLabel: %v", err)
	}
	rctx.SetPrerequisites("tool", []*analysis.ConfiguredTarget{
		analysis.NewConfiguredTarget(label, "py_binary rule", d, analysis.WithExecutable(exe)),
	})

	thread := &starlark.Thread{Name: "analyze"}
	target := Run(thread, rctx, WithWorkspaceName("test_ws"))
	if rctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", rctx.Errors())
	}
	if target == nil {
		t.Fatal("Run returned nil target")
	}

	if got := target.FilesToBuild().Files(); len(got) != 2 {
		t.Errorf("files to build = %d files, want 2", len(got))
	}
	gotExe, ok := target.ExecutableOutput()
	if !ok || gotExe != exe {
		t.Errorf("executable output = %v, want %v", gotExe, exe)
	}
	rf, ok := target.DefaultRunfiles()
	if !ok {
		t.Fatal("target has no default runfiles")
	}
	if rf.Prefix() != "test_ws" {
		t.Errorf("runfiles prefix = %q, want 'test_ws'", rf.Prefix())
	}

	my, ok := target.Provider("MyInfo")
	if !ok {
		t.Fatal("MyInfo provider not declared on the target")
	}
	cmd, err := my.(*types.ProviderInstance).Attr("cmd")
	if err != nil {
		t.Fatalf("MyInfo.cmd: %v", err)
	}
	if want := starlark.String("run tools/covtool"); cmd != starlark.Value(want) {
		t.Errorf("MyInfo.cmd = %v, want %v", cmd, want)
	}
	if _, ok := target.Provider("DefaultInfo"); !ok {
		t.Error("DefaultInfo not declared on the target")
	}

	// The provider symbol indexes the target.
	prov := globals["MyInfo"].(*types.Provider)
	v, found, err := target.Get(prov)
	if err != nil || !found {
		t.Fatalf("target[MyInfo] = (%v, %v, %v), want the instance", v, found, err)
	}
}

func TestRunNone(t *testing.T) {
	rc := implRule(t, compileRules(t, noopImpl))
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if rctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", rctx.Errors())
	}
	if target == nil {
		t.Fatal("Run returned nil target")
	}
	if !target.FilesToBuild().IsEmpty() {
		t.Errorf("files to build = %v, want empty", target.FilesToBuild())
	}
	if _, ok := target.ExecutableOutput(); ok {
		t.Error("target has an executable output, want none")
	}
	if rf, ok := target.DefaultRunfiles(); !ok || !rf.IsEmpty() {
		t.Errorf("default runfiles = (%v, %v), want empty runfiles", rf, ok)
	}
}

func TestRunRejectsNonProvider(t *testing.T) {
	rc := implRule(t, compileRules(t, "def _impl(ctx):\n    return [42]\n"))
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if target != nil {
		t.Fatalf("Run returned %v, want nil", target)
	}
	if !rctx.HasErrors() {
		t.Fatal("expected an error for a non-provider return element")
	}
	e := rctx.Errors()[0]
	if e.Kind != analysis.AttributeInvalid || !strings.Contains(e.Msg, "want a provider instance") {
		t.Errorf("error = %+v, want a provider instance complaint", e)
	}
}

func TestRunRejectsMultipleDefaultInfo(t *testing.T) {
	rc := implRule(t, compileRules(t, "def _impl(ctx):\n    return [DefaultInfo(), DefaultInfo()]\n"))
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if target != nil {
		t.Fatalf("Run returned %v, want nil", target)
	}
	if !rctx.HasErrors() {
		t.Fatal("expected an error for duplicate DefaultInfo")
	}
	if msg := rctx.Errors()[0].Msg; !strings.Contains(msg, "multiple DefaultInfo") {
		t.Errorf("error = %q, want a multiple DefaultInfo complaint", msg)
	}
}

func TestRunImplementationFailure(t *testing.T) {
	rc := implRule(t, compileRules(t, "def _impl(ctx):\n    fail(\"tool misconfigured\")\n"))
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if target != nil {
		t.Fatalf("Run returned %v, want nil", target)
	}
	if !rctx.HasErrors() {
		t.Fatal("expected the fail() message to be recorded")
	}
	if msg := rctx.Errors()[0].Msg; !strings.Contains(msg, "tool misconfigured") {
		t.Errorf("error = %q, want the fail() message", msg)
	}
}

func TestRunNoImplementation(t *testing.T) {
	rc := types.NewRuleClass("py_cov_tool", covToolAttrs())
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if target != nil {
		t.Fatalf("Run returned %v, want nil", target)
	}
	if !rctx.HasErrors() {
		t.Fatal("expected an error for a rule without an implementation")
	}
	if msg := rctx.Errors()[0].Msg; !strings.Contains(msg, "no implementation function") {
		t.Errorf("error = %q, want a missing implementation complaint", msg)
	}
}

func TestPackageRelativeLabel(t *testing.T) {
	globals := compileRules(t, `
MyInfo = provider(fields = ["l"])

def _impl(ctx):
    return [MyInfo(l = ctx.package_relative_label(":other"))]
`)
	rc := implRule(t, globals)
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if rctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", rctx.Errors())
	}

	my, ok := target.Provider("MyInfo")
	if !ok {
		t.Fatal("MyInfo provider not declared on the target")
	}
	v, err := my.(*types.ProviderInstance).Attr("l")
	if err != nil {
		t.Fatalf("MyInfo.l: %v", err)
	}
	if got := v.(*types.Label).String(); got != "//tools:other" {
		t.Errorf("package_relative_label(\":other\") = %q, want '//tools:other'", got)
	}
}

func TestExpandLocation(t *testing.T) {
	a := types.NewSourceFile("tools", "a.py")
	b := types.NewSourceFile("tools", "b.py")
	labelMap := map[string][]*types.File{
		"//tools:one":  {a},
		"//tools:many": {a, b},
	}

	got, err := expandLocation("run $(location //tools:one) now", labelMap)
	if err != nil {
		t.Fatalf("expandLocation: %v", err)
	}
	if want := "run tools/a.py now"; got != want {
		t.Errorf("expansion = %q, want %q", got, want)
	}

	got, err = expandLocation("all: $(locations //tools:many)", labelMap)
	if err != nil {
		t.Fatalf("expandLocation: %v", err)
	}
	if want := "all: tools/a.py tools/b.py"; got != want {
		t.Errorf("plural expansion = %q, want %q", got, want)
	}

	if _, err := expandLocation("$(location //tools:many)", labelMap); err == nil {
		t.Error("expected error expanding a multi-file label through $(location)")
	}
	if _, err := expandLocation("$(location //tools:absent)", labelMap); err == nil {
		t.Error("expected error for an unknown label")
	}
	if _, err := expandLocation("$(location //tools:one", labelMap); err == nil {
		t.Error("expected error for an unmatched parenthesis")
	}

	// Unrelated make variables pass through untouched.
	got, err = expandLocation("$(location_db) $(location //tools:one)", labelMap)
	if err != nil {
		t.Fatalf("expandLocation: %v", err)
	}
	if want := "$(location_db) tools/a.py"; got != want {
		t.Errorf("expansion = %q, want %q", got, want)
	}
}

func TestExpandLocationRejectsNonTargets(t *testing.T) {
	globals := compileRules(t, `
def _impl(ctx):
    ctx.expand_location("x", targets = [42])
    return None
`)
	rc := implRule(t, globals)
	rctx := newTestContext(rc, nil)

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if target != nil {
		t.Fatalf("Run returned %v, want nil", target)
	}
	if !rctx.HasErrors() {
		t.Fatal("expected a type error for a non-Target element")
	}
	if msg := rctx.Errors()[0].Msg; !strings.Contains(msg, "want Target") {
		t.Errorf("error = %q, want a Target type complaint", msg)
	}
}

func TestExpandLocationExtraTargets(t *testing.T) {
	globals := compileRules(t, `
MyInfo = provider(fields = ["cmd"])

def _impl(ctx):
    dep = ctx.attr.tool
    return [MyInfo(cmd = ctx.expand_location("$(location //lib:extra)", targets = [dep]))]
`)
	rc := implRule(t, globals)
	rctx := newTestContext(rc, nil)

	extra := types.NewSourceFile("lib", "extra.py")
	d, err := types.FileDepset([]*types.File{extra})
	if err != nil {
		t.Fatalf("FileDepset: %v", err)
	}
	label, err := types.ParseLabel("//lib:extra")
	if err != nil {
		t.Fatalf("ParseLabel: %v", err)
	}
	rctx.SetPrerequisites("tool", []*analysis.ConfiguredTarget{
		analysis.NewConfiguredTarget(label, "filegroup rule", d),
	})

	target := Run(&starlark.Thread{Name: "analyze"}, rctx)
	if rctx.HasErrors() {
		t.Fatalf("unexpected errors: %v", rctx.Errors())
	}

	my, _ := target.Provider("MyInfo")
	cmd, err := my.(*types.ProviderInstance).Attr("cmd")
	if err != nil {
		t.Fatalf("MyInfo.cmd: %v", err)
	}
	if want := starlark.String("lib/extra.py"); cmd != starlark.Value(want) {
		t.Errorf("MyInfo.cmd = %v, want %v", cmd, want)
	}
}

package attr

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// evalAttr evaluates a snippet with the attr module and two provider values
// predeclared, returning the globals.
func evalAttr(t *testing.T, code string) starlark.StringDict {
	t.Helper()
	globals, err := evalAttrErr(code)
	if err != nil {
		t.Fatalf("ExecFile failed: %v", err)
	}
	return globals
}

func evalAttrErr(code string) (starlark.StringDict, error) {
	thread := &starlark.Thread{Name: "test"}
	predeclared := starlark.StringDict{
		"attr":      Module(),
		"MyInfo":    types.NewProvider("MyInfo", nil, "", nil),
		"OtherInfo": types.NewProvider("OtherInfo", nil, "", nil),
	}
	return starlark.ExecFile(thread, "test.bzl", code, predeclared)
}

// schema extracts the descriptor schema bound to a global.
func schema(t *testing.T, globals starlark.StringDict, name string) *types.AttrDescriptor {
	t.Helper()
	d, ok := globals[name].(*Descriptor)
	if !ok {
		t.Fatalf("%s = %T, want *attr.Descriptor", name, globals[name])
	}
	return d.Schema()
}

func TestStringBuilder(t *testing.T) {
	globals := evalAttr(t, `a = attr.string(default = "PY3", mandatory = True, doc = "version")`)

	s := schema(t, globals, "a")
	if s.Type != types.AttrTypeString {
		t.Errorf("type = %q, want %q", s.Type, types.AttrTypeString)
	}
	if s.Default != starlark.String("PY3") {
		t.Errorf("default = %v, want \"PY3\"", s.Default)
	}
	if !s.Mandatory {
		t.Error("mandatory = false, want true")
	}
	if s.Doc != "version" {
		t.Errorf("doc = %q, want \"version\"", s.Doc)
	}
}

func TestStringValues(t *testing.T) {
	globals := evalAttr(t, `a = attr.string(values = ["fast", "slow"])`)

	s := schema(t, globals, "a")
	if len(s.AllowedValues) != 2 || s.AllowedValues[0] != "fast" || s.AllowedValues[1] != "slow" {
		t.Errorf("allowed values = %v, want [fast slow]", s.AllowedValues)
	}
}

func TestStringValuesNonString(t *testing.T) {
	_, err := evalAttrErr(`a = attr.string(values = [1])`)
	if err == nil {
		t.Fatal("expected error for non-string values element, got none")
	}
	if !strings.Contains(err.Error(), "values element must be a string") {
		t.Errorf("error = %v, want values element message", err)
	}
}

func TestIntBuilder(t *testing.T) {
	globals := evalAttr(t, `a = attr.int(default = 3)`)

	s := schema(t, globals, "a")
	if s.Type != types.AttrTypeInt {
		t.Errorf("type = %q, want %q", s.Type, types.AttrTypeInt)
	}
	if s.Default != starlark.MakeInt(3) {
		t.Errorf("default = %v, want 3", s.Default)
	}
}

func TestBoolBuilder(t *testing.T) {
	globals := evalAttr(t, `a = attr.bool(default = True)`)

	s := schema(t, globals, "a")
	if s.Type != types.AttrTypeBool {
		t.Errorf("type = %q, want %q", s.Type, types.AttrTypeBool)
	}
	if s.Default != starlark.True {
		t.Errorf("default = %v, want True", s.Default)
	}
}

func TestLabelBothFileOptions(t *testing.T) {
	_, err := evalAttrErr(`a = attr.label(allow_files = True, allow_single_file = True)`)
	if err == nil {
		t.Fatal("expected error for both file options, got none")
	}
	if !strings.Contains(err.Error(), "Cannot specify both allow_files and allow_single_file") {
		t.Errorf("error = %v, want both-options message", err)
	}
}

func TestLabelExecutableRequiresCfg(t *testing.T) {
	_, err := evalAttrErr(`a = attr.label(executable = True)`)
	if err == nil {
		t.Fatal("expected error for executable without cfg, got none")
	}
	if !strings.Contains(err.Error(), "cfg parameter is mandatory when executable=True is provided") {
		t.Errorf("error = %v, want cfg mandatory message", err)
	}
}

func TestLabelCfg(t *testing.T) {
	globals := evalAttr(t, `
a = attr.label(executable = True, cfg = "exec")
b = attr.label(cfg = "target")
`)

	if !schema(t, globals, "a").Executable {
		t.Error("executable = false, want true")
	}
	if schema(t, globals, "b").Type != types.AttrTypeLabel {
		t.Error("label with cfg = 'target' rejected")
	}

	_, err := evalAttrErr(`a = attr.label(cfg = "host")`)
	if err == nil {
		t.Fatal("expected error for invalid cfg, got none")
	}
	if !strings.Contains(err.Error(), "cfg must be 'target' or 'exec'") {
		t.Errorf("error = %v, want cfg values message", err)
	}
}

func TestLabelSingleFile(t *testing.T) {
	globals := evalAttr(t, `
a = attr.label(allow_single_file = True)
b = attr.label(allow_single_file = [".py"])
c = attr.label()
`)

	if !schema(t, globals, "a").SingleFile {
		t.Error("allow_single_file = True did not set single file")
	}
	if !schema(t, globals, "b").SingleFile {
		t.Error("allow_single_file = ['.py'] did not set single file")
	}
	if schema(t, globals, "c").SingleFile {
		t.Error("single file set without allow_single_file")
	}
}

func TestLabelProviders(t *testing.T) {
	globals := evalAttr(t, `
a = attr.label(providers = [MyInfo])
b = attr.label_list(providers = [[MyInfo], [OtherInfo]])
`)

	if got := schema(t, globals, "a").RequiredProviders; len(got) != 1 {
		t.Errorf("required providers = %d, want 1", len(got))
	}
	// A list of lists flattens into one requirement set.
	if got := schema(t, globals, "b").RequiredProviders; len(got) != 2 {
		t.Errorf("required providers = %d, want 2", len(got))
	}
}

func TestLabelProvidersBadElement(t *testing.T) {
	_, err := evalAttrErr(`a = attr.label(providers = [1])`)
	if err == nil {
		t.Fatal("expected error for non-provider element, got none")
	}
	if !strings.Contains(err.Error(), "providers[0]: got int, want provider") {
		t.Errorf("error = %v, want provider type message", err)
	}
}

func TestLabelListAllowEmpty(t *testing.T) {
	globals := evalAttr(t, `
a = attr.label_list()
b = attr.label_list(allow_empty = False)
`)

	if !schema(t, globals, "a").AllowEmpty {
		t.Error("allow_empty defaults to false, want true")
	}
	if schema(t, globals, "b").AllowEmpty {
		t.Error("allow_empty = False not recorded")
	}
}

func TestAllowFilesForms(t *testing.T) {
	if _, err := evalAttrErr(`a = attr.label(allow_files = [".py", ".pyc"])`); err != nil {
		t.Errorf("allow_files extension list rejected: %v", err)
	}

	_, err := evalAttrErr(`a = attr.label(allow_files = [1])`)
	if err == nil || !strings.Contains(err.Error(), "allow_files element must be a string") {
		t.Errorf("error = %v, want element type message", err)
	}

	_, err = evalAttrErr(`a = attr.label(allow_files = "x")`)
	if err == nil || !strings.Contains(err.Error(), "allow_files must be a boolean or a list of strings") {
		t.Errorf("error = %v, want allow_files type message", err)
	}
}

// TestDescriptorAttrs verifies the Starlark-visible surface of a descriptor.
func TestDescriptorAttrs(t *testing.T) {
	globals := evalAttr(t, `
a = attr.string(default = "PY3", doc = "version")
d = a.default
m = a.mandatory
doc = a.doc
`)

	if globals["d"] != starlark.String("PY3") {
		t.Errorf("a.default = %v, want \"PY3\"", globals["d"])
	}
	if globals["m"] != starlark.False {
		t.Errorf("a.mandatory = %v, want False", globals["m"])
	}
	if globals["doc"] != starlark.String("version") {
		t.Errorf("a.doc = %v, want \"version\"", globals["doc"])
	}
}

func TestDescriptorString(t *testing.T) {
	globals := evalAttr(t, `a = attr.label_list()`)

	d := globals["a"].(*Descriptor)
	if d.String() != "<attr.label_list>" {
		t.Errorf("String() = %q, want \"<attr.label_list>\"", d.String())
	}
	if d.Type() != "Attribute" {
		t.Errorf("Type() = %q, want \"Attribute\"", d.Type())
	}
}

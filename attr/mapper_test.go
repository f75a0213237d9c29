package attr

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// testRule builds a rule instance of a synthetic rule class located at
// //pkg:x, with the given extra attributes and values.
func testRule(t *testing.T, attrs map[string]*types.AttrDescriptor, values map[string]starlark.Value) *types.RuleInstance {
	t.Helper()
	rc := types.NewRuleClass("test_rule", attrs)
	if values == nil {
		values = map[string]starlark.Value{}
	}
	values["name"] = starlark.String("x")
	ri := types.NewRuleInstance(rc, "x", values)
	label, err := types.ParseLabel("//pkg:x")
	if err != nil {
		t.Fatalf("ParseLabel: %v", err)
	}
	ri.SetLabel(label)
	return ri
}

func selector(t *testing.T, conditions map[string]starlark.Value, noMatchError string) *types.SelectorList {
	t.Helper()
	sv, err := types.NewSelectorValue(conditions, noMatchError)
	if err != nil {
		t.Fatalf("NewSelectorValue: %v", err)
	}
	return types.NewSelectorList([]starlark.Value{sv})
}

func TestMapperString(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"python_version": {Type: types.AttrTypeString, Default: starlark.String("PY3")},
		"stub_shebang":   {Type: types.AttrTypeString},
	}, map[string]starlark.Value{
		"python_version": starlark.String("PY2"),
	})
	m := NewMapper(rule)

	got, err := m.String("python_version")
	if err != nil {
		t.Fatalf("String(python_version) failed: %v", err)
	}
	if got != "PY2" {
		t.Errorf("String(python_version) = %q, want 'PY2'", got)
	}

	// Unset attribute without a value reads as the zero string.
	got, err = m.String("stub_shebang")
	if err != nil {
		t.Fatalf("String(stub_shebang) failed: %v", err)
	}
	if got != "" {
		t.Errorf("String(stub_shebang) = %q, want ''", got)
	}
}

func TestMapperStringDefault(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"python_version": {Type: types.AttrTypeString, Default: starlark.String("PY3")},
	}, nil)
	m := NewMapper(rule)

	got, err := m.String("python_version")
	if err != nil {
		t.Fatalf("String(python_version) failed: %v", err)
	}
	if got != "PY3" {
		t.Errorf("String(python_version) = %q, want 'PY3'", got)
	}
}

func TestMapperBool(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"in_build": {Type: types.AttrTypeBool, Default: starlark.False},
	}, map[string]starlark.Value{
		"in_build": starlark.True,
	})
	m := NewMapper(rule)

	got, err := m.Bool("in_build")
	if err != nil {
		t.Fatalf("Bool(in_build) failed: %v", err)
	}
	if !got {
		t.Errorf("Bool(in_build) = false, want true")
	}
}

func TestMapperStringList(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"tags": {Type: types.AttrTypeStringList},
	}, map[string]starlark.Value{
		"tags": starlark.NewList([]starlark.Value{starlark.String("a"), starlark.String("b")}),
	})
	m := NewMapper(rule)

	got, err := m.StringList("tags")
	if err != nil {
		t.Fatalf("StringList(tags) failed: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("StringList(tags) = %v, want [a b]", got)
	}
}

func TestMapperLabel(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"interpreter": {Type: types.AttrTypeLabel},
	}, map[string]starlark.Value{
		"interpreter": starlark.String(":python3"),
	})
	m := NewMapper(rule)

	got, err := m.Label("interpreter")
	if err != nil {
		t.Fatalf("Label(interpreter) failed: %v", err)
	}
	if got == nil || got.String() != "//pkg:python3" {
		t.Errorf("Label(interpreter) = %v, want //pkg:python3", got)
	}
}

func TestMapperLabelList(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"files": {Type: types.AttrTypeLabelList},
	}, map[string]starlark.Value{
		"files": starlark.NewList([]starlark.Value{
			starlark.String("runtime/a.py"),
			starlark.String("//other:b.py"),
		}),
	})
	m := NewMapper(rule)

	got, err := m.LabelList("files")
	if err != nil {
		t.Fatalf("LabelList(files) failed: %v", err)
	}
	want := []string{"//pkg:runtime/a.py", "//other:b.py"}
	if len(got) != len(want) {
		t.Fatalf("LabelList(files) returned %d labels, want %d", len(got), len(want))
	}
	for i, l := range got {
		if l.String() != want[i] {
			t.Errorf("LabelList(files)[%d] = %v, want %v", i, l, want[i])
		}
	}
}

func TestMapperTypeMismatch(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"in_build": {Type: types.AttrTypeBool},
	}, map[string]starlark.Value{
		"in_build": starlark.True,
	})
	m := NewMapper(rule)

	_, err := m.String("in_build")
	if err == nil {
		t.Fatal("String(in_build) on a bool attribute succeeded, want error")
	}
	if !strings.Contains(err.Error(), "not expected type string") {
		t.Errorf("String(in_build) error = %v, want type mismatch", err)
	}
}

func TestMapperNoSuchAttribute(t *testing.T) {
	rule := testRule(t, nil, nil)
	m := NewMapper(rule)

	if m.Has("interpreter_path") {
		t.Error("Has(interpreter_path) = true for undeclared attribute")
	}
	_, err := m.String("interpreter_path")
	if err == nil {
		t.Fatal("String(interpreter_path) succeeded, want error")
	}
	if !strings.Contains(err.Error(), "no such attribute 'interpreter_path' in 'test_rule' rule") {
		t.Errorf("String(interpreter_path) error = %v", err)
	}
}

func TestMapperSelectDefault(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"python_version": {Type: types.AttrTypeString, Default: starlark.String("PY3")},
	}, map[string]starlark.Value{
		"python_version": selector(t, map[string]starlark.Value{
			"//config:legacy":         starlark.String("PY2"),
			types.DefaultConditionKey: starlark.String("PY3"),
		}, ""),
	})
	m := NewMapper(rule)

	got, err := m.String("python_version")
	if err != nil {
		t.Fatalf("String(python_version) failed: %v", err)
	}
	if got != "PY3" {
		t.Errorf("String(python_version) = %q, want default branch 'PY3'", got)
	}
}

func TestMapperSelectNoneFallsBackToDefault(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"stub_shebang": {Type: types.AttrTypeString, Default: starlark.String("#!/usr/bin/env python3")},
	}, map[string]starlark.Value{
		"stub_shebang": selector(t, map[string]starlark.Value{
			"//config:legacy":         starlark.String("#!/usr/bin/env python2"),
			types.DefaultConditionKey: starlark.None,
		}, ""),
	})
	m := NewMapper(rule)

	got, err := m.String("stub_shebang")
	if err != nil {
		t.Fatalf("String(stub_shebang) failed: %v", err)
	}
	if got != "#!/usr/bin/env python3" {
		t.Errorf("String(stub_shebang) = %q, want attribute default", got)
	}
}

func TestMapperSelectNoDefault(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"python_version": {Type: types.AttrTypeString},
	}, map[string]starlark.Value{
		"python_version": selector(t, map[string]starlark.Value{
			"//config:a": starlark.String("PY2"),
			"//config:b": starlark.String("PY3"),
		}, ""),
	})
	m := NewMapper(rule)

	_, err := m.String("python_version")
	if err == nil {
		t.Fatal("String(python_version) succeeded, want no-match error")
	}
	msg := err.Error()
	if !strings.Contains(msg, `configurable attribute "python_version" in //pkg:x doesn't match this configuration`) {
		t.Errorf("error = %v, want no-match message", err)
	}
	if !strings.Contains(msg, "Would a default condition help?") {
		t.Errorf("error = %v, want default condition hint", err)
	}
	if !strings.Contains(msg, "//config:a") || !strings.Contains(msg, "//config:b") {
		t.Errorf("error = %v, want checked conditions listed", err)
	}
}

func TestMapperSelectNoMatchError(t *testing.T) {
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"python_version": {Type: types.AttrTypeString},
	}, map[string]starlark.Value{
		"python_version": selector(t, map[string]starlark.Value{
			"//config:a": starlark.String("PY2"),
		}, "pick a python version"),
	})
	m := NewMapper(rule)

	_, err := m.String("python_version")
	if err == nil {
		t.Fatal("String(python_version) succeeded, want no-match error")
	}
	if !strings.Contains(err.Error(), "doesn't match this configuration: pick a python version") {
		t.Errorf("error = %v, want custom no_match_error", err)
	}
}

func TestMapperSelectConcatenation(t *testing.T) {
	sv, err := types.NewSelectorValue(map[string]starlark.Value{
		types.DefaultConditionKey: starlark.NewList([]starlark.Value{starlark.String("b"), starlark.String("c")}),
	}, "")
	if err != nil {
		t.Fatalf("NewSelectorValue: %v", err)
	}
	rule := testRule(t, map[string]*types.AttrDescriptor{
		"files": {Type: types.AttrTypeStringList},
	}, map[string]starlark.Value{
		"files": types.NewSelectorList([]starlark.Value{
			starlark.NewList([]starlark.Value{starlark.String("a")}),
			sv,
		}),
	})
	m := NewMapper(rule)

	got, err := m.StringList("files")
	if err != nil {
		t.Fatalf("StringList(files) failed: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("StringList(files) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StringList(files)[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

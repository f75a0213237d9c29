package native

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/albertocavalcante/rules-python-go/types"
	"go.starlark.net/starlark"
)

func TestPackageName(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	SetPackageContext(thread, &PackageContext{
		PackagePath: "some/package",
		RepoName:    "",
	})

	result, err := starlark.Call(thread, Module().Members["package_name"], nil, nil)
	if err != nil {
		t.Fatalf("package_name() failed: %v", err)
	}

	if s, ok := starlark.AsString(result); !ok || s != "some/package" {
		t.Errorf("package_name() = %v, want 'some/package'", result)
	}
}

func TestRepositoryName(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	SetPackageContext(thread, &PackageContext{
		PackagePath: "pkg",
		RepoName:    "my_repo",
	})

	result, err := starlark.Call(thread, Module().Members["repository_name"], nil, nil)
	if err != nil {
		t.Fatalf("repository_name() failed: %v", err)
	}

	if s, ok := starlark.AsString(result); !ok || s != "@my_repo" {
		t.Errorf("repository_name() = %v, want '@my_repo'", result)
	}
}

func TestRepoName(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	SetPackageContext(thread, &PackageContext{
		PackagePath: "pkg",
		RepoName:    "my_repo",
	})

	result, err := starlark.Call(thread, Module().Members["repo_name"], nil, nil)
	if err != nil {
		t.Fatalf("repo_name() failed: %v", err)
	}

	if s, ok := starlark.AsString(result); !ok || s != "my_repo" {
		t.Errorf("repo_name() = %v, want 'my_repo'", result)
	}
}

func TestPackageRelativeLabel(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	SetPackageContext(thread, &PackageContext{
		PackagePath: "some/pkg",
		RepoName:    "",
	})

	tests := []struct {
		input string
		want  string
	}{
		{":target", "//some/pkg:target"},
		{"target", "//some/pkg:target"},
		{"//other/pkg:foo", "//other/pkg:foo"},
		{"@ext//pkg:bar", "@ext//pkg:bar"},
	}

	for _, tc := range tests {
		result, err := starlark.Call(thread, Module().Members["package_relative_label"],
			starlark.Tuple{starlark.String(tc.input)}, nil)
		if err != nil {
			t.Errorf("package_relative_label(%q) failed: %v", tc.input, err)
			continue
		}

		label, ok := result.(*types.Label)
		if !ok {
			t.Errorf("package_relative_label(%q) returned %T, want *types.Label", tc.input, result)
			continue
		}

		if got := label.String(); got != tc.want {
			t.Errorf("package_relative_label(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestExistingRule(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	ctx := &PackageContext{
		PackagePath: "pkg",
		Rules:       make(map[string]map[string]starlark.Value),
	}
	ctx.AddRule("py3", map[string]starlark.Value{
		"kind":             starlark.String("py_runtime"),
		"interpreter_path": starlark.String("/usr/bin/python3"),
	})
	SetPackageContext(thread, ctx)

	// Test existing rule
	result, err := starlark.Call(thread, Module().Members["existing_rule"],
		starlark.Tuple{starlark.String("py3")}, nil)
	if err != nil {
		t.Fatalf("existing_rule('py3') failed: %v", err)
	}

	view, ok := result.(*ExistingRuleView)
	if !ok {
		t.Fatalf("existing_rule() returned %T, want *ExistingRuleView", result)
	}

	// Check name
	name, found, _ := view.Get(starlark.String("name"))
	if !found || name != starlark.String("py3") {
		t.Errorf("view['name'] = %v, want 'py3'", name)
	}

	// Check kind
	kind, found, _ := view.Get(starlark.String("kind"))
	if !found || kind != starlark.String("py_runtime") {
		t.Errorf("view['kind'] = %v, want 'py_runtime'", kind)
	}

	// Test non-existing rule
	result, err = starlark.Call(thread, Module().Members["existing_rule"],
		starlark.Tuple{starlark.String("nonexistent")}, nil)
	if err != nil {
		t.Fatalf("existing_rule('nonexistent') failed: %v", err)
	}
	if result != starlark.None {
		t.Errorf("existing_rule('nonexistent') = %v, want None", result)
	}
}

func TestExistingRules(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	ctx := &PackageContext{
		PackagePath: "pkg",
		Rules:       make(map[string]map[string]starlark.Value),
	}
	ctx.AddRule("py2", map[string]starlark.Value{"kind": starlark.String("py_runtime")})
	ctx.AddRule("py3", map[string]starlark.Value{"kind": starlark.String("py_runtime")})
	SetPackageContext(thread, ctx)

	result, err := starlark.Call(thread, Module().Members["existing_rules"], nil, nil)
	if err != nil {
		t.Fatalf("existing_rules() failed: %v", err)
	}

	view, ok := result.(*ExistingRulesView)
	if !ok {
		t.Fatalf("existing_rules() returned %T, want *ExistingRulesView", result)
	}

	if view.Len() != 2 {
		t.Errorf("len(existing_rules()) = %d, want 2", view.Len())
	}
}

func TestGlob(t *testing.T) {
	// Create a temporary directory structure for testing
	tmpDir, err := os.MkdirTemp("", "glob_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	// Create test files
	for _, name := range []string{"main.py", "util.py", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(""), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	thread := &starlark.Thread{Name: "test"}
	SetPackageContext(thread, &PackageContext{
		PackagePath: "pkg",
		PackageDir:  tmpDir,
	})

	// Test glob with include pattern
	result, err := starlark.Call(thread, Module().Members["glob"], nil, []starlark.Tuple{
		{starlark.String("include"), starlark.NewList([]starlark.Value{starlark.String("*.py")})},
	})
	if err != nil {
		t.Fatalf("glob() failed: %v", err)
	}

	list, ok := result.(*starlark.List)
	if !ok {
		t.Fatalf("glob() returned %T, want *starlark.List", result)
	}

	if list.Len() != 2 {
		t.Errorf("glob(['*.py']) returned %d items, want 2", list.Len())
	}

	// Verify sorted order
	first, _ := starlark.AsString(list.Index(0))
	second, _ := starlark.AsString(list.Index(1))
	if first != "main.py" || second != "util.py" {
		t.Errorf("glob() results not sorted: got [%s, %s], want [main.py, util.py]", first, second)
	}
}

func TestGlobWithExclude(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "glob_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, name := range []string{"main.py", "util.py", "util_test.py"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(""), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	thread := &starlark.Thread{Name: "test"}
	SetPackageContext(thread, &PackageContext{
		PackagePath: "pkg",
		PackageDir:  tmpDir,
	})

	result, err := starlark.Call(thread, Module().Members["glob"], nil, []starlark.Tuple{
		{starlark.String("include"), starlark.NewList([]starlark.Value{starlark.String("*.py")})},
		{starlark.String("exclude"), starlark.NewList([]starlark.Value{starlark.String("*_test.py")})},
	})
	if err != nil {
		t.Fatalf("glob() failed: %v", err)
	}

	list := result.(*starlark.List)
	if list.Len() != 2 {
		t.Errorf("glob(['*.py'], exclude=['*_test.py']) returned %d items, want 2", list.Len())
	}
}

func TestNoContextError(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	// No context set

	funcs := []string{"package_name", "repository_name", "repo_name", "existing_rules"}
	for _, name := range funcs {
		_, err := starlark.Call(thread, Module().Members[name], nil, nil)
		if err == nil {
			t.Errorf("%s() should fail without context", name)
		}
	}
}

package python

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// execInfo runs a Starlark snippet with the PyRuntimeInfo constructor and a
// few helper values predeclared, returning the resulting globals.
func execInfo(t *testing.T, code string) starlark.StringDict {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	predeclared := starlark.StringDict{
		"PyRuntimeInfo": InfoConstructor(),
		"depset":        starlark.NewBuiltin("depset", types.DepsetBuiltin),
		"py3_file":      types.NewSourceFile("runtimes", "bin/python3"),
		"support_file":  types.NewSourceFile("runtimes", "lib/foo.py"),
		"cov_file":      types.NewSourceFile("tools", "coverage.py"),
	}
	globals, err := starlark.ExecFile(thread, "test.bzl", code, predeclared)
	if err != nil {
		t.Fatalf("ExecFile failed: %v", err)
	}
	return globals
}

// execInfoErr runs a Starlark snippet expected to fail and returns the error.
func execInfoErr(t *testing.T, code string) error {
	t.Helper()
	thread := &starlark.Thread{Name: "test"}
	predeclared := starlark.StringDict{
		"PyRuntimeInfo": InfoConstructor(),
		"py3_file":      types.NewSourceFile("runtimes", "bin/python3"),
	}
	_, err := starlark.ExecFile(thread, "test.bzl", code, predeclared)
	if err == nil {
		t.Fatal("ExecFile succeeded, want error")
	}
	return err
}

// TestInfoConstructorPlatform verifies building a platform runtime
// descriptor from Starlark.
func TestInfoConstructorPlatform(t *testing.T) {
	globals := execInfo(t, `
rt = PyRuntimeInfo(
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
path = rt.interpreter_path
interp = rt.interpreter
version = rt.python_version
shebang = rt.stub_shebang
`)

	rt := globals["rt"].(*Info)
	if rt.IsHermetic() {
		t.Error("IsHermetic() = true, want false")
	}
	if got := globals["path"].(starlark.String); got != "/usr/bin/python3" {
		t.Errorf("interpreter_path = %q, want \"/usr/bin/python3\"", got)
	}
	if globals["interp"] != starlark.None {
		t.Errorf("interpreter = %v, want None on a platform runtime", globals["interp"])
	}
	if got := globals["version"].(starlark.String); got != "PY3" {
		t.Errorf("python_version = %q, want \"PY3\"", got)
	}
	if got := globals["shebang"].(starlark.String); string(got) != DefaultStubShebang {
		t.Errorf("stub_shebang = %q, want default %q", got, DefaultStubShebang)
	}
}

// TestInfoConstructorHermetic verifies building an in-build runtime
// descriptor from Starlark.
func TestInfoConstructorHermetic(t *testing.T) {
	globals := execInfo(t, `
rt = PyRuntimeInfo(
    interpreter = py3_file,
    files = depset([support_file]),
    python_version = "PY2",
    stub_shebang = "#!/usr/bin/python",
)
path = rt.interpreter_path
nfiles = len(rt.files.to_list())
`)

	rt := globals["rt"].(*Info)
	v, ok := rt.Variant().(Hermetic)
	if !ok {
		t.Fatalf("variant = %T, want Hermetic", rt.Variant())
	}
	if v.Interpreter.Path() != "runtimes/bin/python3" {
		t.Errorf("interpreter = %q, want \"runtimes/bin/python3\"", v.Interpreter.Path())
	}
	if globals["path"] != starlark.None {
		t.Errorf("interpreter_path = %v, want None on a hermetic runtime", globals["path"])
	}
	if got := globals["nfiles"].(starlark.Int); got.Sign() == 0 {
		t.Error("files is empty, want the support file")
	}
	if rt.PythonVersion() != PY2 {
		t.Errorf("python version = %s, want PY2", rt.PythonVersion())
	}
	if rt.StubShebang() != "#!/usr/bin/python" {
		t.Errorf("stub_shebang = %q, want the override", rt.StubShebang())
	}
}

// TestInfoConstructorCoverage verifies the paired coverage arguments.
func TestInfoConstructorCoverage(t *testing.T) {
	globals := execInfo(t, `
rt = PyRuntimeInfo(
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
    coverage_tool = cov_file,
    coverage_files = depset([cov_file]),
)
`)

	rt := globals["rt"].(*Info)
	if rt.CoverageTool() == nil || rt.CoverageTool().Path() != "tools/coverage.py" {
		t.Errorf("coverage tool = %v, want tools/coverage.py", rt.CoverageTool())
	}
	if rt.CoverageFiles() == nil || len(rt.CoverageFiles().ToList()) != 1 {
		t.Errorf("coverage files = %v, want one file", rt.CoverageFiles())
	}
}

// TestInfoConstructorErrors verifies the constructor's argument validation.
func TestInfoConstructorErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
	}{
		{
			name:    "neither interpreter",
			code:    `rt = PyRuntimeInfo(python_version = "PY3")`,
			wantMsg: "exactly one of the 'interpreter' or 'interpreter_path'",
		},
		{
			name: "both interpreters",
			code: `rt = PyRuntimeInfo(interpreter = py3_file, interpreter_path = "/usr/bin/python3", python_version = "PY3")`,
			wantMsg: "exactly one of the 'interpreter' or 'interpreter_path'",
		},
		{
			name:    "empty interpreter path",
			code:    `rt = PyRuntimeInfo(interpreter_path = "", python_version = "PY3")`,
			wantMsg: "'interpreter_path' must be non-empty",
		},
		{
			name:    "coverage tool without files",
			code:    `rt = PyRuntimeInfo(interpreter_path = "/usr/bin/python3", python_version = "PY3", coverage_tool = py3_file)`,
			wantMsg: "'coverage_tool' and 'coverage_files' must both be set or neither",
		},
		{
			name:    "bad version",
			code:    `rt = PyRuntimeInfo(interpreter_path = "/usr/bin/python3", python_version = "PY4")`,
			wantMsg: "not a valid Python major version",
		},
		{
			name:    "missing version",
			code:    `rt = PyRuntimeInfo(interpreter_path = "/usr/bin/python3")`,
			wantMsg: "python_version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execInfoErr(t, tt.code)
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
}

// TestInfoConstructorPlatformFiles verifies that a platform runtime rejects
// support files at construction time.
func TestInfoConstructorPlatformFiles(t *testing.T) {
	thread := &starlark.Thread{Name: "test"}
	predeclared := starlark.StringDict{
		"PyRuntimeInfo": InfoConstructor(),
		"depset":        starlark.NewBuiltin("depset", types.DepsetBuiltin),
		"support_file":  types.NewSourceFile("runtimes", "lib/foo.py"),
	}
	_, err := starlark.ExecFile(thread, "test.bzl", `
rt = PyRuntimeInfo(
    interpreter_path = "/usr/bin/python3",
    files = depset([support_file]),
    python_version = "PY3",
)
`, predeclared)
	if err == nil {
		t.Fatal("ExecFile succeeded, want files rejection")
	}
	if !strings.Contains(err.Error(), "cannot specify 'files' if 'interpreter_path' is given") {
		t.Errorf("error = %v, want files rejection message", err)
	}
}

// TestInfoFilesToBuild verifies the default build outputs of each variant.
func TestInfoFilesToBuild(t *testing.T) {
	interpreter := types.NewSourceFile("runtimes", "bin/python3")
	support := types.NewSourceFile("runtimes", "lib/foo.py")
	files, err := types.FileDepset([]*types.File{support})
	if err != nil {
		t.Fatalf("FileDepset: %v", err)
	}

	hermetic := NewHermeticInfo(interpreter, files, nil, nil, PY3, "", nil)
	got := hermetic.FilesToBuild().ToList()
	if len(got) != 2 {
		t.Fatalf("hermetic files to build = %d elements, want 2", len(got))
	}
	paths := map[string]bool{}
	for _, v := range got {
		paths[v.(*types.File).Path()] = true
	}
	if !paths["runtimes/bin/python3"] || !paths["runtimes/lib/foo.py"] {
		t.Errorf("hermetic files to build = %v, want interpreter and support file", paths)
	}

	platform := NewPlatformInfo("/usr/bin/python3", nil, nil, PY3, "", nil)
	if !platform.FilesToBuild().IsEmpty() {
		t.Errorf("platform files to build = %v, want empty", platform.FilesToBuild().ToList())
	}
}

// TestInfoEqual verifies field-wise equality of descriptors.
func TestInfoEqual(t *testing.T) {
	a := NewPlatformInfo("/usr/bin/python3", nil, nil, PY3, "", nil)
	b := NewPlatformInfo("/usr/bin/python3", nil, nil, PY3, "", nil)
	c := NewPlatformInfo("/usr/bin/python2", nil, nil, PY3, "", nil)

	if !a.Equal(b) {
		t.Error("identical platform descriptors are not equal")
	}
	if a.Equal(c) {
		t.Error("descriptors with different paths compare equal")
	}

	interpreter := types.NewSourceFile("runtimes", "bin/python3")
	h := NewHermeticInfo(interpreter, nil, nil, nil, PY3, "", nil)
	if a.Equal(h) {
		t.Error("platform and hermetic descriptors compare equal")
	}
}

// TestInfoDefaultShebang verifies that an empty shebang falls back to the
// documented default.
func TestInfoDefaultShebang(t *testing.T) {
	info := NewPlatformInfo("/usr/bin/python3", nil, nil, PY3, "", nil)
	if info.StubShebang() != DefaultStubShebang {
		t.Errorf("stub_shebang = %q, want default %q", info.StubShebang(), DefaultStubShebang)
	}
}

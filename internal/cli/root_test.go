package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWorkspace materializes a workspace in a temp directory, including the
// bootstrap template every py_runtime implicitly references.
func writeWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	files["tools/python/BUILD"] = `exports_files(["python_bootstrap_template.txt"])`
	files["tools/python/python_bootstrap_template.txt"] = "# bootstrap\n"

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// runCommand executes the root command with args, capturing stdout and
// stderr separately.
func runCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errBuf bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errBuf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pyrules v")
}

func TestHelpListsCommands(t *testing.T) {
	out, _, err := runCommand(t, "--help")
	require.NoError(t, err)
	for _, sub := range []string{"analyze", "check", "describe", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestUnknownCommand(t *testing.T) {
	_, _, err := runCommand(t, "frobnicate")
	require.Error(t, err)
}

func TestAnalyzeCommand(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"BUILD": `
py_runtime(
    name = "platform_rt",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
	})

	out, _, err := runCommand(t, "analyze", "--workspace", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "//:platform_rt")
	assert.Contains(t, out, "1 targets analyzed, 0 failed")
}

func TestAnalyzeCommandJSON(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"BUILD": `
py_runtime(
    name = "platform_rt",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
	})

	out, _, err := runCommand(t, "analyze", "-w", dir, "--output", "json")
	require.NoError(t, err)

	var report struct {
		Targets []struct {
			Label   string `json:"label"`
			Runtime *struct {
				InterpreterPath string `json:"interpreter_path"`
			} `json:"runtime"`
		} `json:"targets"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Targets, 1)
	assert.Equal(t, "//:platform_rt", report.Targets[0].Label)
	require.NotNil(t, report.Targets[0].Runtime)
	assert.Equal(t, "/usr/bin/python3", report.Targets[0].Runtime.InterpreterPath)
}

func TestAnalyzeSingleFile(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"app/BUILD": `
py_runtime(
    name = "rt",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
		"BUILD": `
py_runtime(
    name = "other",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
	})

	out, _, err := runCommand(t, "analyze", filepath.Join("app", "BUILD"), "-w", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "//app:rt")
	assert.NotContains(t, out, "//:other")
}

func TestAnalyzePackageDirectoryArg(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"app/BUILD.bazel": `
py_runtime(
    name = "rt",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
		"BUILD": `
py_runtime(
    name = "other",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
	})

	out, _, err := runCommand(t, "analyze", "app", "-w", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "//app:rt")
	assert.NotContains(t, out, "//:other")
}

func TestAnalyzeWatchRejectsFileArg(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{"BUILD": ""})

	_, _, err := runCommand(t, "analyze", "BUILD", "--watch", "-w", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--watch")
}

func TestAnalyzeCommandFailsOnErrors(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"BUILD": `
py_runtime(
    name = "good",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)

py_runtime(
    name = "incomplete",
    python_version = "PY3",
)
`,
	})

	out, _, err := runCommand(t, "analyze", "-w", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis found problems")
	// The full report renders before the error is raised.
	assert.Contains(t, out, "//:good")
	assert.Contains(t, out, "//:incomplete")
	assert.Contains(t, out, "2 targets analyzed, 1 failed")
}

func TestCheckCommandClean(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"BUILD": `
py_runtime(
    name = "rt",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
	})

	out, _, err := runCommand(t, "check", "-w", dir)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCheckCommandFailsOnErrors(t *testing.T) {
	dir := writeWorkspace(t, map[string]string{
		"BUILD": `
py_runtime(
    name = "ok_rt",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)

py_runtime(
    name = "bad",
    interpreter = "bin/python3",
    interpreter_path = "/usr/bin/python3",
    python_version = "PY3",
)
`,
		"bin/python3": "#!",
	})

	out, _, err := runCommand(t, "check", "-w", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis found problems")
	// Only the failing target appears in the output.
	assert.Contains(t, out, "//:bad")
	assert.NotContains(t, out, "//:ok_rt")
}

func TestDescribeList(t *testing.T) {
	out, _, err := runCommand(t, "describe")
	require.NoError(t, err)
	assert.Contains(t, out, "py_runtime(")
	assert.Contains(t, out, "PyRuntimeInfo(")
	assert.Contains(t, out, "DefaultInfo(")
}

func TestDescribeRule(t *testing.T) {
	out, _, err := runCommand(t, "describe", "rule", "py_runtime")
	require.NoError(t, err)
	assert.Contains(t, out, "py_runtime")
	assert.Contains(t, out, "interpreter_path")
}

func TestDescribeBareName(t *testing.T) {
	out, _, err := runCommand(t, "describe", "PyRuntimeInfo")
	require.NoError(t, err)
	assert.Contains(t, out, "interpreter_path")
}

func TestDescribeUnknown(t *testing.T) {
	_, _, err := runCommand(t, "describe", "rule", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule")
}

// Flag wiring sanity: every config key has a persistent flag counterpart.
func TestRootFlagsCoverConfigKeys(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{
		"config", "workspace", "workspace-name", "python-version",
		"use-python-toolchains", "output", "log-level", "log-format", "parallelism",
	} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
}

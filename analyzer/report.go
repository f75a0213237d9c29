// Report assembly and rendering.
package analyzer

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/multierr"

	"github.com/albertocavalcante/rules-python-go/python"
	"github.com/albertocavalcante/rules-python-go/types"
)

// Report is the deterministic result of one analysis pass: every target of
// the analyzed packages in package/name order, plus the files that failed to
// evaluate at all.
type Report struct {
	Root       string          `json:"root,omitempty"`
	Targets    []*TargetReport `json:"targets"`
	LoadErrors []*LoadError    `json:"load_errors,omitempty"`
}

// LoadError records a BUILD or .bzl file whose evaluation failed.
type LoadError struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

// TargetReport is the per-target slice of a Report.
type TargetReport struct {
	Label      string         `json:"label"`
	Kind       string         `json:"kind"`
	Runtime    *RuntimeReport `json:"runtime,omitempty"`
	Files      []string       `json:"files,omitempty"`
	Executable string         `json:"executable,omitempty"`
	Providers  []string       `json:"providers,omitempty"`
	Errors     []ErrorReport  `json:"errors,omitempty"`
}

// Failed reports whether the target's analysis recorded any error.
func (t *TargetReport) Failed() bool { return len(t.Errors) > 0 }

// RuntimeReport summarizes the PyRuntimeInfo of a resolved py_runtime
// target.
type RuntimeReport struct {
	Version         string `json:"python_version"`
	Hermetic        bool   `json:"hermetic"`
	Interpreter     string `json:"interpreter,omitempty"`
	InterpreterPath string `json:"interpreter_path,omitempty"`
	StubShebang     string `json:"stub_shebang,omitempty"`
	CoverageTool    string `json:"coverage_tool,omitempty"`
}

// ErrorReport is one analysis error in report form.
type ErrorReport struct {
	Kind string `json:"kind"`
	Attr string `json:"attr,omitempty"`
	Msg  string `json:"message"`
}

func (e ErrorReport) String() string {
	if e.Attr != "" {
		return fmt.Sprintf("%s: in attribute '%s': %s", e.Kind, e.Attr, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// newTargetReport flattens one analysis outcome into report form.
func newTargetReport(target *types.RuleInstance, res *targetResult) *TargetReport {
	tr := &TargetReport{
		Label: target.Label().String(),
		Kind:  target.RuleClassName(),
	}
	for _, e := range res.errs {
		tr.Errors = append(tr.Errors, ErrorReport{Kind: string(e.Kind), Attr: e.Attr, Msg: e.Msg})
	}

	ct := res.target
	if ct == nil {
		return tr
	}
	for _, f := range ct.FilesToBuild().Files() {
		tr.Files = append(tr.Files, f.Path())
	}
	if exe, ok := ct.ExecutableOutput(); ok {
		tr.Executable = exe.Path()
	}
	for _, p := range ct.DeclaredProviders() {
		tr.Providers = append(tr.Providers, p.Type())
	}
	if v, ok := ct.Provider(python.ProviderName); ok {
		if info, ok := v.(*python.Info); ok {
			tr.Runtime = newRuntimeReport(info)
		}
	}
	return tr
}

func newRuntimeReport(info *python.Info) *RuntimeReport {
	rr := &RuntimeReport{
		Version:     info.PythonVersion().String(),
		Hermetic:    info.IsHermetic(),
		StubShebang: info.StubShebang(),
	}
	switch v := info.Variant().(type) {
	case python.Hermetic:
		rr.Interpreter = v.Interpreter.Path()
	case python.Platform:
		rr.InterpreterPath = v.InterpreterPath
	}
	if tool := info.CoverageTool(); tool != nil {
		rr.CoverageTool = tool.Path()
	}
	return rr
}

// OK reports whether every file evaluated and every target analyzed cleanly.
func (r *Report) OK() bool {
	return len(r.LoadErrors) == 0 && r.FailedCount() == 0
}

// FailedCount returns the number of targets with analysis errors.
func (r *Report) FailedCount() int {
	n := 0
	for _, t := range r.Targets {
		if t.Failed() {
			n++
		}
	}
	return n
}

// Err returns every problem of the report combined into one error, or nil
// when the workspace analyzed cleanly.
func (r *Report) Err() error {
	var err error
	for _, le := range r.LoadErrors {
		err = multierr.Append(err, fmt.Errorf("%s: %s", le.File, le.Err))
	}
	for _, t := range r.Targets {
		for _, e := range t.Errors {
			err = multierr.Append(err, fmt.Errorf("%s: %s", t.Label, e))
		}
	}
	return err
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteText renders the report as plain lines, one target per line with
// error detail indented below.
func (r *Report) WriteText(w io.Writer) error {
	for _, le := range r.LoadErrors {
		if _, err := fmt.Fprintf(w, "ERROR %s: %s\n", le.File, le.Err); err != nil {
			return err
		}
	}
	for _, t := range r.Targets {
		status := "ok"
		if t.Failed() {
			status = "FAILED"
		}
		if _, err := fmt.Fprintf(w, "%s (%s) %s\n", t.Label, t.Kind, status); err != nil {
			return err
		}
		if rt := t.Runtime; rt != nil {
			interp := rt.InterpreterPath
			if rt.Hermetic {
				interp = rt.Interpreter
			}
			if _, err := fmt.Fprintf(w, "  python_version=%s hermetic=%t interpreter=%s\n",
				rt.Version, rt.Hermetic, interp); err != nil {
				return err
			}
		}
		for _, e := range t.Errors {
			if _, err := fmt.Fprintf(w, "  %s\n", e); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "%d targets analyzed, %d failed\n", len(r.Targets), r.FailedCount())
	return err
}

// WriteTable renders the report as a table, with failure detail below.
func (r *Report) WriteTable(w io.Writer) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Label", "Kind", "Version", "Interpreter", "Files", "Status"})

	for _, tr := range r.Targets {
		version, interp := "", ""
		if rt := tr.Runtime; rt != nil {
			version = rt.Version
			interp = rt.InterpreterPath
			if rt.Hermetic {
				interp = rt.Interpreter
			}
		}
		status := "ok"
		if tr.Failed() {
			status = "FAILED"
		}
		t.AppendRow(table.Row{tr.Label, tr.Kind, version, interp, len(tr.Files), status})
	}
	t.Render()

	for _, le := range r.LoadErrors {
		if _, err := fmt.Fprintf(w, "ERROR %s: %s\n", le.File, le.Err); err != nil {
			return err
		}
	}
	for _, tr := range r.Targets {
		for _, e := range tr.Errors {
			if _, err := fmt.Fprintf(w, "%s: %s\n", tr.Label, e); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "(%d targets, %d failed)\n", len(r.Targets), r.FailedCount())
	return err
}

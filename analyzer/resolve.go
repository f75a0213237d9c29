// Target configuration: the depth-first walk turning declared rule instances
// into configured targets.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/skyframe/ConfiguredTargetFunction.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/DependencyResolver.java
package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/analysis"
	"github.com/albertocavalcante/rules-python-go/ctx"
	"github.com/albertocavalcante/rules-python-go/eval"
	"github.com/albertocavalcante/rules-python-go/python"
	"github.com/albertocavalcante/rules-python-go/types"
)

const defaultWorkspaceName = ctx.DefaultWorkspaceName

// targetResult is the analysis outcome of one target: a configured target on
// success, the recorded errors otherwise.
type targetResult struct {
	target *analysis.ConfiguredTarget
	errs   []analysis.Error
}

// resolution is the state of one analysis pass. It configures targets
// depth-first, memoizes results by label, and detects dependency cycles
// through the in-progress stack. All of it runs on a single goroutine.
type resolution struct {
	a          *Analyzer
	packages   map[string]*eval.Package
	pkgErrs    map[string]error
	missing    map[string]bool
	done       map[string]*targetResult
	onStack    map[string]bool
	stack      []string
	thread     *starlark.Thread
	loadErrors []*LoadError
}

func newResolution(a *Analyzer, packages map[string]*eval.Package) *resolution {
	thread := &starlark.Thread{Name: "analysis"}
	if a.printHandler != nil {
		thread.Print = func(_ *starlark.Thread, msg string) { a.printHandler(msg) }
	}
	return &resolution{
		a:        a,
		packages: packages,
		pkgErrs:  make(map[string]error),
		missing:  make(map[string]bool),
		done:     make(map[string]*targetResult),
		onStack:  make(map[string]bool),
		thread:   thread,
	}
}

// configure analyzes the target behind label, reusing the memoized result
// when this pass already produced one.
func (r *resolution) configure(label *types.Label) *targetResult {
	key := label.String()
	if res, ok := r.done[key]; ok {
		return res
	}

	target, pkg := r.lookupRule(label)
	if target == nil {
		res := &targetResult{errs: []analysis.Error{{
			Kind: analysis.AttributeInvalid,
			Msg:  fmt.Sprintf("no such target '%s'", key),
		}}}
		r.done[key] = res
		return res
	}

	r.onStack[key] = true
	r.stack = append(r.stack, key)

	rctx := analysis.NewRuleContext(target)
	rctx.RegisterFragment(python.FragmentName, r.a.cfg)
	r.resolvePrerequisites(rctx, target)

	var ct *analysis.ConfiguredTarget
	if !rctx.HasErrors() {
		if target.RuleClassName() == python.RuleName {
			ct = python.Analyze(rctx)
		} else {
			ct = ctx.Run(r.thread, rctx,
				ctx.WithWorkspaceName(r.a.workspaceName),
				ctx.WithBuildFilePath(pkg.BuildFile))
		}
	}

	r.stack = r.stack[:len(r.stack)-1]
	delete(r.onStack, key)

	res := &targetResult{target: ct, errs: rctx.Errors()}
	r.done[key] = res
	return res
}

// resolvePrerequisites configures the dependency behind every label
// attribute and attaches the results to the rule context. Attribute order is
// sorted so error reports are stable.
func (r *resolution) resolvePrerequisites(rctx *analysis.RuleContext, target *types.RuleInstance) {
	attrs := target.RuleClass().Attrs()
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	mapper := rctx.Attrs()
	for _, name := range names {
		desc := attrs[name]
		// Visibility labels name access groups, not dependencies.
		if name == "visibility" {
			continue
		}
		switch desc.Type {
		case types.AttrTypeLabel:
			label, err := mapper.Label(name)
			if err != nil {
				rctx.AttributeError(analysis.AttributeInvalid, name, err.Error())
				continue
			}
			if label == nil {
				continue
			}
			if dep := r.resolveDep(rctx, name, label, desc.RequiredProviders); dep != nil {
				rctx.SetPrerequisites(name, []*analysis.ConfiguredTarget{dep})
			}
		case types.AttrTypeLabelList:
			labels, err := mapper.LabelList(name)
			if err != nil {
				rctx.AttributeError(analysis.AttributeInvalid, name, err.Error())
				continue
			}
			if len(labels) == 0 {
				continue
			}
			deps := make([]*analysis.ConfiguredTarget, 0, len(labels))
			for _, label := range labels {
				if dep := r.resolveDep(rctx, name, label, desc.RequiredProviders); dep != nil {
					deps = append(deps, dep)
				}
			}
			rctx.SetPrerequisites(name, deps)
		}
	}
}

// resolveDep resolves one prerequisite label: a rule target configures
// recursively, anything else resolves as a source file. Problems are
// recorded against the referencing attribute.
func (r *resolution) resolveDep(rctx *analysis.RuleContext, attrName string, label *types.Label, required []starlark.Value) *analysis.ConfiguredTarget {
	key := label.String()

	if rule, _ := r.lookupRule(label); rule != nil {
		if r.onStack[key] {
			cycle := append(append([]string{}, r.stack...), key)
			rctx.AttributeError(analysis.AttributeInvalid, attrName,
				fmt.Sprintf("cycle in dependency graph: %s", strings.Join(cycle, " -> ")))
			return nil
		}
		dep := r.configure(rule.Label())
		if dep.target == nil {
			rctx.AttributeError(analysis.AttributeInvalid, attrName,
				fmt.Sprintf("errors encountered analyzing dependency '%s'", key))
			return nil
		}
		r.checkProviders(rctx, attrName, key, dep.target, required)
		return dep.target
	}

	if err := r.pkgErrs[label.Pkg()]; err != nil {
		rctx.AttributeError(analysis.AttributeInvalid, attrName,
			fmt.Sprintf("no such package '%s': package contains errors", label.Pkg()))
		return nil
	}

	if file := r.lookupSourceFile(label); file != nil {
		dep := analysis.NewSourceFileTarget(file)
		r.checkProviders(rctx, attrName, key, dep, required)
		return dep
	}

	rctx.AttributeError(analysis.AttributeInvalid, attrName,
		fmt.Sprintf("no such target '%s': not declared in package '%s'", key, label.Pkg()))
	return nil
}

// checkProviders enforces the providers= constraint of the referencing
// attribute against a resolved dependency.
// Reference: RuleContext.java validateDirectPrerequisiteProviders
func (r *resolution) checkProviders(rctx *analysis.RuleContext, attrName, depLabel string, dep *analysis.ConfiguredTarget, required []starlark.Value) {
	for _, p := range required {
		name, err := types.ProviderName(p)
		if err != nil {
			continue
		}
		if _, ok := dep.Provider(name); !ok {
			rctx.AttributeError(analysis.AttributeInvalid, attrName,
				fmt.Sprintf("'%s' does not have mandatory providers: '%s'", depLabel, name))
		}
	}
}

// lookupRule finds the rule target a label names, loading its package on
// demand.
func (r *resolution) lookupRule(label *types.Label) (*types.RuleInstance, *eval.Package) {
	pkg := r.loadPackage(label)
	if pkg == nil {
		return nil, nil
	}
	target := pkg.GetTarget(label.Name())
	if target == nil {
		return nil, nil
	}
	return target, pkg
}

// lookupSourceFile resolves a label to a source file artifact: an exported
// file of its package, or a file present on the filesystem.
func (r *resolution) lookupSourceFile(label *types.Label) *types.File {
	if label.Repo() == "" {
		if pkg, ok := r.packages[label.Pkg()]; ok {
			if f := pkg.SourceFile(label.Name()); f != nil {
				return f
			}
		}
	}
	if r.statFile(label) {
		return types.NewSourceFile(label.Pkg(), label.Name())
	}
	return nil
}

// statFile reports whether the label names an existing file, resolving
// external repositories through the configured roots.
func (r *resolution) statFile(label *types.Label) bool {
	fsys := r.a.fsys
	path := fsys.Join(label.Pkg(), label.Name())
	if repo := label.Repo(); repo != "" {
		root, ok := r.a.externalRepos[repo]
		if !ok {
			return false
		}
		path = fsys.Join(root, label.Pkg(), label.Name())
	}
	fi, err := fsys.Stat(path)
	return err == nil && !fi.IsDir()
}

// loadPackage returns the package of a label, evaluating its BUILD file on
// demand when the pass did not load it up front. Only main-repository
// packages hold rule targets; external repositories resolve as files.
func (r *resolution) loadPackage(label *types.Label) *eval.Package {
	if label.Repo() != "" {
		return nil
	}
	name := label.Pkg()
	if pkg, ok := r.packages[name]; ok {
		return pkg
	}
	if r.missing[name] || r.pkgErrs[name] != nil {
		return nil
	}

	for _, base := range []string{"BUILD.bazel", "BUILD"} {
		path := r.a.fsys.Join(name, base)
		if _, err := r.a.fsys.Stat(path); err != nil {
			continue
		}
		pkg, err := r.a.evalBuildFile(path)
		if err != nil {
			r.pkgErrs[name] = err
			r.loadErrors = append(r.loadErrors, &LoadError{File: path, Err: err.Error()})
			return nil
		}
		r.packages[name] = pkg
		return pkg
	}
	r.missing[name] = true
	return nil
}

// Package analyzer drives workspace analysis for the Python rules dialect.
//
// An Analyzer discovers the BUILD files under a workspace root (or an
// in-memory filesystem), evaluates them concurrently, configures every
// declared target depth-first through its dependencies, and produces a
// deterministic Report of resolved runtimes and analysis errors.
//
// Per-file evaluation results are memoized in a bounded LRU keyed by
// (path, mtime), so watch mode re-evaluates only the packages that changed.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/skyframe/PackageFunction.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/skyframe/ConfiguredTargetFunction.java
package analyzer

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/rules-python-go/eval"
	"github.com/albertocavalcante/rules-python-go/internal/ctxslog"
	"github.com/albertocavalcante/rules-python-go/loader"
	"github.com/albertocavalcante/rules-python-go/python"
)

// defaultMemoSize bounds the BUILD evaluation memo when Options.MemoSize is
// zero.
const defaultMemoSize = 256

// Options configures an Analyzer.
type Options struct {
	// WorkspaceRoot is the directory analyzed as the workspace. BUILD file
	// paths are workspace-relative throughout.
	WorkspaceRoot string

	// FileSystem overrides the OS filesystem rooted at WorkspaceRoot.
	// An in-memory filesystem makes the analyzer hermetic for tests and
	// embedding.
	FileSystem loader.FileSystem

	// Configuration is the python fragment applied to every target.
	// Nil means DefaultConfiguration.
	Configuration *python.Configuration

	// WorkspaceName prefixes runfiles paths built by rule implementations.
	WorkspaceName string

	// ExternalRepos maps repository names to their roots for load() and
	// label resolution.
	ExternalRepos map[string]string

	// Parallelism bounds concurrent BUILD evaluation. Zero means GOMAXPROCS.
	Parallelism int

	// MemoSize bounds the per-file evaluation memo.
	MemoSize int

	// PrintHandler receives print() output from Starlark code.
	PrintHandler func(msg string)
}

// memoKey identifies one evaluated revision of a BUILD file. A changed file
// gets a new mtime and therefore a fresh evaluation; stale revisions age out
// of the LRU.
type memoKey struct {
	path  string
	mtime int64
}

// Analyzer evaluates and analyzes the packages of one workspace. It is safe
// to call Analyze repeatedly; the memo carries unchanged packages across
// runs.
type Analyzer struct {
	root          string
	fsys          loader.FileSystem
	evaluator     *eval.Evaluator
	bzlLoader     *loader.BzlFileLoader
	cfg           *python.Configuration
	workspaceName string
	externalRepos map[string]string
	parallelism   int
	printHandler  func(msg string)
	memo          *lru.Cache[memoKey, *eval.Package]
}

// New creates an Analyzer for the workspace described by opts.
func New(opts Options) (*Analyzer, error) {
	fsys := opts.FileSystem
	if fsys == nil {
		fsys = loader.NewOSFileSystem(opts.WorkspaceRoot)
	}
	cfg := opts.Configuration
	if cfg == nil {
		cfg = python.DefaultConfiguration()
	}
	workspaceName := opts.WorkspaceName
	if workspaceName == "" {
		workspaceName = defaultWorkspaceName
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	memoSize := opts.MemoSize
	if memoSize <= 0 {
		memoSize = defaultMemoSize
	}
	memo, err := lru.New[memoKey, *eval.Package](memoSize)
	if err != nil {
		return nil, err
	}

	evaluator := eval.New(eval.Options{
		FileLoader:    loader.NewFileSystemLoader(fsys),
		WorkspaceRoot: opts.WorkspaceRoot,
		PrintHandler:  opts.PrintHandler,
	})
	bzlLoader := loader.NewBzlFileLoader(fsys, opts.WorkspaceRoot,
		loader.WithPredeclared(evaluator.BzlPredeclared()),
		loader.WithPostExec(eval.ExportGlobals),
		loader.WithRepoMapping(opts.ExternalRepos),
	)
	evaluator.SetBzlLoader(bzlLoader)

	return &Analyzer{
		root:          opts.WorkspaceRoot,
		fsys:          fsys,
		evaluator:     evaluator,
		bzlLoader:     bzlLoader,
		cfg:           cfg,
		workspaceName: workspaceName,
		externalRepos: opts.ExternalRepos,
		parallelism:   parallelism,
		printHandler:  opts.PrintHandler,
		memo:          memo,
	}, nil
}

// Configuration returns the python fragment the analyzer applies.
func (a *Analyzer) Configuration() *python.Configuration { return a.cfg }

// Analyze discovers and analyzes every package of the workspace.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	log := ctxslog.FromContext(ctx)

	buildFiles, err := a.DiscoverBuildFiles()
	if err != nil {
		return nil, err
	}
	log.Debug("discovered BUILD files", "count", len(buildFiles))

	return a.analyze(ctx, buildFiles)
}

// AnalyzeFile analyzes the package declared by one workspace-relative BUILD
// file. Dependencies on other packages are loaded on demand, but only the
// named package's targets appear in the report.
func (a *Analyzer) AnalyzeFile(ctx context.Context, buildFile string) (*Report, error) {
	return a.analyze(ctx, []string{buildFile})
}

func (a *Analyzer) analyze(ctx context.Context, buildFiles []string) (*Report, error) {
	log := ctxslog.FromContext(ctx)
	report := &Report{Root: a.root}

	type pkgResult struct {
		pkg *eval.Package
		err error
	}
	results := make([]pkgResult, len(buildFiles))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.parallelism)
	for i, buildFile := range buildFiles {
		i, buildFile := i, buildFile
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			pkg, err := a.evalBuildFile(buildFile)
			results[i] = pkgResult{pkg: pkg, err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	packages := make(map[string]*eval.Package, len(buildFiles))
	for i, r := range results {
		if r.err != nil {
			log.Warn("package evaluation failed", "file", buildFiles[i], "error", r.err)
			report.LoadErrors = append(report.LoadErrors, &LoadError{
				File: buildFiles[i],
				Err:  r.err.Error(),
			})
			continue
		}
		packages[r.pkg.Name] = r.pkg
	}

	res := newResolution(a, packages)
	for _, pkgName := range sortedPackageNames(packages) {
		pkg := packages[pkgName]
		for _, name := range pkg.TargetNames() {
			target := pkg.Targets[name]
			report.Targets = append(report.Targets, newTargetReport(target, res.configure(target.Label())))
		}
	}
	report.LoadErrors = append(report.LoadErrors, res.loadErrors...)

	log.Info("analysis complete",
		"packages", len(packages),
		"targets", len(report.Targets),
		"failed", report.FailedCount(),
	)
	return report, nil
}

// evalBuildFile evaluates one BUILD file, reusing the memoized package when
// the file has not changed since it was last evaluated.
func (a *Analyzer) evalBuildFile(path string) (*eval.Package, error) {
	fi, err := a.fsys.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	key := memoKey{path: path, mtime: fi.ModTime().UnixNano()}
	if pkg, ok := a.memo.Get(key); ok {
		return pkg, nil
	}

	result, err := a.evaluator.EvalBuildFile(path)
	if err != nil {
		return nil, err
	}
	a.memo.Add(key, result.Package)
	return result.Package, nil
}

// Invalidate drops every memoized evaluation result. Watch mode calls it
// when a .bzl file changes, since the BUILD memo cannot see macro edits made
// behind a load().
func (a *Analyzer) Invalidate() {
	a.memo.Purge()
	a.bzlLoader.ClearCache()
}

func sortedPackageNames(packages map[string]*eval.Package) []string {
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

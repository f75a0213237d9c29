// BUILD file evaluation: the Package accumulator and the package-level
// builtins (package, licenses, exports_files).
//
// A BUILD file declares targets by calling rule functions; the Package
// collects them, assigns their labels, and mirrors them into the native
// package context so existing_rule() and existing_rules() can observe them
// mid-evaluation.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/PackageFactory.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/Package.java
package eval

import (
	"fmt"
	"path/filepath"
	"sort"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/native"
	"github.com/albertocavalcante/rules-python-go/types"
)

// ThreadKeyPackage is the key for storing the Package in the thread.
const ThreadKeyPackage = "rules-python-go:package"

// Package represents a package (a directory with a BUILD file). It collects
// the targets and exported source files declared during BUILD evaluation.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/packages/Package.java
type Package struct {
	// Name is the package path (e.g., "tools/python"). Empty for the root
	// package.
	Name string

	// Root is the workspace root path.
	Root string

	// BuildFile is the path to the BUILD file.
	BuildFile string

	// Targets maps target names to their instances.
	Targets map[string]*types.RuleInstance

	// SourceFiles maps exported file names to their artifacts.
	SourceFiles map[string]*types.File

	// DefaultVisibility is the default visibility for targets in this package.
	DefaultVisibility []string

	// DefaultTestonly is the default testonly value for targets.
	DefaultTestonly bool

	// DefaultDeprecation is the default deprecation message.
	DefaultDeprecation string

	pctx *native.PackageContext
}

var _ types.TargetRegistry = (*Package)(nil)

// NewPackage creates a Package for the given BUILD file path.
func NewPackage(root, buildFile string) *Package {
	dir := filepath.Dir(buildFile)
	name := dir
	if root != "" && dir != root {
		if rel, err := filepath.Rel(root, dir); err == nil {
			name = rel
		}
	}
	if name == "." {
		name = ""
	}

	pkgDir := dir
	if !filepath.IsAbs(pkgDir) && root != "" {
		pkgDir = filepath.Join(root, pkgDir)
	}

	return &Package{
		Name:        name,
		Root:        root,
		BuildFile:   buildFile,
		Targets:     make(map[string]*types.RuleInstance),
		SourceFiles: make(map[string]*types.File),
		pctx: &native.PackageContext{
			PackagePath:      name,
			PackageDir:       pkgDir,
			BuildFileLocator: native.DefaultBuildFileLocator{},
		},
	}
}

// Context returns the native package context backing this package.
func (p *Package) Context() *native.PackageContext { return p.pctx }

// RegisterTarget records a target created by a rule call. The target gets
// its label here, since only the package knows where it lives.
// Reference: Package.java Builder.addRule()
func (p *Package) RegisterTarget(target *types.RuleInstance) error {
	name := target.Name()
	if _, exists := p.Targets[name]; exists {
		return fmt.Errorf("duplicate target name %q in package %q", name, p.Name)
	}
	if _, exists := p.SourceFiles[name]; exists {
		return fmt.Errorf("target %q in package %q conflicts with an exported file of the same name", name, p.Name)
	}
	target.SetLabel(types.NewLabel("", p.Name, name))
	p.Targets[name] = target

	attrs := make(map[string]starlark.Value, len(target.AttrValues())+1)
	for k, v := range target.AttrValues() {
		attrs[k] = v
	}
	attrs["kind"] = starlark.String(target.RuleClassName())
	p.pctx.AddRule(name, attrs)
	return nil
}

// ExportFile records a source file exported by exports_files().
// Reference: PackageFactory.java exportsFiles()
func (p *Package) ExportFile(name string) error {
	if _, exists := p.Targets[name]; exists {
		return fmt.Errorf("exported file %q conflicts with target of the same name in package %q", name, p.Name)
	}
	if _, exists := p.SourceFiles[name]; exists {
		return fmt.Errorf("file %q exported twice in package %q", name, p.Name)
	}
	p.SourceFiles[name] = types.NewSourceFile(p.Name, name)
	return nil
}

// GetTarget returns a target by name, or nil if not found.
func (p *Package) GetTarget(name string) *types.RuleInstance {
	return p.Targets[name]
}

// SourceFile returns an exported source file by name, or nil.
func (p *Package) SourceFile(name string) *types.File {
	return p.SourceFiles[name]
}

// TargetNames returns the target names in sorted order.
func (p *Package) TargetNames() []string {
	names := make([]string, 0, len(p.Targets))
	for name := range p.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPackage stores the Package in the thread for use during BUILD evaluation.
func SetPackage(thread *starlark.Thread, pkg *Package) {
	thread.SetLocal(ThreadKeyPackage, pkg)
}

// GetPackage retrieves the Package from the thread.
func GetPackage(thread *starlark.Thread) *Package {
	if pkg := thread.Local(ThreadKeyPackage); pkg != nil {
		return pkg.(*Package)
	}
	return nil
}

// PackageBuiltin implements the package() function for BUILD files.
// It is called at most once, at the top of a BUILD file, to set
// package-level defaults.
//
// Signature: package(default_visibility = None, default_deprecation = None, default_testonly = False, features = [])
//
// Reference: PackageFactory.java packageCallable
func PackageBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("package: unexpected positional arguments")
	}

	pkg := GetPackage(thread)
	if pkg == nil {
		return nil, fmt.Errorf("package() can only be called from BUILD files")
	}

	for _, kv := range kwargs {
		key := string(kv[0].(starlark.String))
		val := kv[1]

		switch key {
		case "default_visibility":
			if list, ok := val.(*starlark.List); ok {
				var visibility []string
				for i := 0; i < list.Len(); i++ {
					if s, ok := list.Index(i).(starlark.String); ok {
						visibility = append(visibility, string(s))
					}
				}
				pkg.DefaultVisibility = visibility
			}
		case "default_deprecation":
			if s, ok := val.(starlark.String); ok {
				pkg.DefaultDeprecation = string(s)
			}
		case "default_testonly":
			if b, ok := val.(starlark.Bool); ok {
				pkg.DefaultTestonly = bool(b)
			}
		case "features":
			// Features are handled at the analysis phase
		default:
			return nil, fmt.Errorf("package: unexpected keyword argument %q", key)
		}
	}

	return starlark.None, nil
}

// LicensesBuiltin implements the licenses() function for BUILD files
// (deprecated; accepted and ignored).
func LicensesBuiltin(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return starlark.None, nil
}

// ExportsFilesBuiltin implements exports_files() for BUILD files. Each
// listed file becomes a source file artifact of the package, so other
// packages can reference it (a checked-in interpreter, a bootstrap
// template).
//
// Signature: exports_files(srcs, visibility = None, licenses = None)
//
// Reference: PackageFactory.java exportsFiles()
func ExportsFilesBuiltin(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	pkg := GetPackage(thread)
	if pkg == nil {
		return nil, fmt.Errorf("exports_files() can only be called from BUILD files")
	}

	var srcs *starlark.List
	var visibility starlark.Value = starlark.None
	var licenses starlark.Value = starlark.None

	if err := starlark.UnpackArgs("exports_files", args, kwargs,
		"srcs", &srcs,
		"visibility?", &visibility,
		"licenses?", &licenses,
	); err != nil {
		return nil, err
	}

	for i := 0; i < srcs.Len(); i++ {
		s, ok := srcs.Index(i).(starlark.String)
		if !ok {
			return nil, fmt.Errorf("exports_files: srcs element must be a string, got %s", srcs.Index(i).Type())
		}
		if err := pkg.ExportFile(string(s)); err != nil {
			return nil, err
		}
	}

	// Visibility and license declarations are accepted and not modeled.
	return starlark.None, nil
}

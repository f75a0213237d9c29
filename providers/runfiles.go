// Package providers implements the built-in providers of the Python rules
// dialect: DefaultInfo, OutputGroupInfo, and the runfiles container they
// carry.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/Runfiles.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/starlarkbuildapi/RunfilesApi.java
package providers

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// Runfiles is the set of files a target needs at runtime, such as the
// support files a coverage tool reads next to its executable. Conceptually
// a map of paths to files forming a symlink tree.
type Runfiles struct {
	// prefix is the directory all runfiles live under (the workspace name).
	prefix string

	files          *types.Depset
	symlinks       *types.Depset
	rootSymlinks   *types.Depset
	emptyFilenames *types.Depset

	frozen bool
}

var (
	_ starlark.Value    = (*Runfiles)(nil)
	_ starlark.HasAttrs = (*Runfiles)(nil)
)

// EmptyRunfiles is the runfiles of a target with no runtime dependencies.
// Every py_runtime target carries it.
// Reference: Runfiles.java EMPTY
var EmptyRunfiles = &Runfiles{
	files:          types.EmptyDepset(),
	symlinks:       types.EmptyDepset(),
	rootSymlinks:   types.EmptyDepset(),
	emptyFilenames: types.EmptyDepset(),
	frozen:         true,
}

// NewRunfiles creates an empty mutable Runfiles under the given prefix.
func NewRunfiles(prefix string) *Runfiles {
	return &Runfiles{
		prefix:         prefix,
		files:          types.EmptyDepset(),
		symlinks:       types.EmptyDepset(),
		rootSymlinks:   types.EmptyDepset(),
		emptyFilenames: types.EmptyDepset(),
	}
}

// String returns the Starlark representation.
func (r *Runfiles) String() string {
	return fmt.Sprintf("Runfiles(empty_files = %s, files = %s, root_symlinks = %s, symlinks = %s)",
		r.emptyFilenames.String(),
		r.files.String(),
		r.rootSymlinks.String(),
		r.symlinks.String())
}

// Type returns "runfiles".
func (r *Runfiles) Type() string { return "runfiles" }

// Freeze marks the runfiles as frozen.
func (r *Runfiles) Freeze() {
	if r.frozen {
		return
	}
	r.frozen = true
	r.files.Freeze()
	r.symlinks.Freeze()
	r.rootSymlinks.Freeze()
	r.emptyFilenames.Freeze()
}

// Truth returns true if the runfiles is non-empty.
func (r *Runfiles) Truth() starlark.Bool {
	return starlark.Bool(!r.IsEmpty())
}

// Hash returns an error.
func (r *Runfiles) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: runfiles")
}

// Attr returns an attribute of the runfiles.
// Reference: RunfilesApi.java
func (r *Runfiles) Attr(name string) (starlark.Value, error) {
	switch name {
	case "files":
		return r.files, nil
	case "symlinks":
		return r.symlinks, nil
	case "root_symlinks":
		return r.rootSymlinks, nil
	case "empty_filenames":
		return r.emptyFilenames, nil
	case "merge":
		return starlark.NewBuiltin("runfiles.merge", r.mergeMethod), nil
	case "merge_all":
		return starlark.NewBuiltin("runfiles.merge_all", r.mergeAllMethod), nil
	default:
		return nil, starlark.NoSuchAttrError(fmt.Sprintf("runfiles has no attribute %q", name))
	}
}

// AttrNames returns the list of attribute names.
func (r *Runfiles) AttrNames() []string {
	return []string{
		"empty_filenames",
		"files",
		"merge",
		"merge_all",
		"root_symlinks",
		"symlinks",
	}
}

// Prefix returns the runfiles prefix (workspace name).
func (r *Runfiles) Prefix() string { return r.prefix }

// Files returns the files depset.
func (r *Runfiles) Files() *types.Depset { return r.files }

// Symlinks returns the symlinks depset.
func (r *Runfiles) Symlinks() *types.Depset { return r.symlinks }

// RootSymlinks returns the root symlinks depset.
func (r *Runfiles) RootSymlinks() *types.Depset { return r.rootSymlinks }

// EmptyFilenames returns the empty filenames depset.
func (r *Runfiles) EmptyFilenames() *types.Depset { return r.emptyFilenames }

// IsEmpty returns true if there are no runfiles.
// Reference: Runfiles.java isEmpty()
func (r *Runfiles) IsEmpty() bool {
	return !bool(r.files.Truth()) && !bool(r.symlinks.Truth()) && !bool(r.rootSymlinks.Truth())
}

// SetFiles sets the files depset.
func (r *Runfiles) SetFiles(files *types.Depset) {
	if r.frozen {
		return
	}
	r.files = files
}

// SetSymlinks sets the symlinks depset.
func (r *Runfiles) SetSymlinks(symlinks *types.Depset) {
	if r.frozen {
		return
	}
	r.symlinks = symlinks
}

// SetRootSymlinks sets the root symlinks depset.
func (r *Runfiles) SetRootSymlinks(rootSymlinks *types.Depset) {
	if r.frozen {
		return
	}
	r.rootSymlinks = rootSymlinks
}

// SetEmptyFilenames sets the empty filenames depset.
func (r *Runfiles) SetEmptyFilenames(emptyFilenames *types.Depset) {
	if r.frozen {
		return
	}
	r.emptyFilenames = emptyFilenames
}

// Merge returns a runfiles object holding the contents of this one and the
// argument. The merged sets share structure with the inputs.
// Reference: Runfiles.java merge()
func (r *Runfiles) Merge(other *Runfiles) (*Runfiles, error) {
	if r.IsEmpty() {
		return other, nil
	}
	if other.IsEmpty() {
		return r, nil
	}

	prefix := r.prefix
	if prefix == "" {
		prefix = other.prefix
	}
	result := NewRunfiles(prefix)

	var err error
	if result.files, err = mergeDepsets(r.files, other.files); err != nil {
		return nil, err
	}
	if result.symlinks, err = mergeDepsets(r.symlinks, other.symlinks); err != nil {
		return nil, err
	}
	if result.rootSymlinks, err = mergeDepsets(r.rootSymlinks, other.rootSymlinks); err != nil {
		return nil, err
	}
	if result.emptyFilenames, err = mergeDepsets(r.emptyFilenames, other.emptyFilenames); err != nil {
		return nil, err
	}
	return result, nil
}

func mergeDepsets(a, b *types.Depset) (*types.Depset, error) {
	return types.NewDepset(types.OrderDefault, nil, []*types.Depset{a, b})
}

func (r *Runfiles) mergeMethod(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var other *Runfiles
	if err := starlark.UnpackArgs("runfiles.merge", args, kwargs, "other", &other); err != nil {
		return nil, err
	}
	return r.Merge(other)
}

// MergeAll returns a runfiles object holding the contents of this one and
// every element of the sequence. Merging exactly one non-empty runfiles
// returns that object unchanged.
// Reference: Runfiles.java mergeAll()
func (r *Runfiles) MergeAll(others []*Runfiles) (*Runfiles, error) {
	var result *Runfiles
	var uniqueNonEmpty *Runfiles

	if !r.IsEmpty() {
		result = r
		uniqueNonEmpty = r
	}

	for _, other := range others {
		if other.IsEmpty() {
			continue
		}
		if result == nil {
			result = other
			uniqueNonEmpty = other
			continue
		}
		uniqueNonEmpty = nil
		var err error
		result, err = result.Merge(other)
		if err != nil {
			return nil, err
		}
	}

	if uniqueNonEmpty != nil {
		return uniqueNonEmpty, nil
	}
	if result != nil {
		return result, nil
	}
	return EmptyRunfiles, nil
}

func (r *Runfiles) mergeAllMethod(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var otherList *starlark.List
	if err := starlark.UnpackArgs("runfiles.merge_all", args, kwargs, "other", &otherList); err != nil {
		return nil, err
	}

	others := make([]*Runfiles, 0, otherList.Len())
	iter := otherList.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		rf, ok := v.(*Runfiles)
		if !ok {
			return nil, fmt.Errorf("merge_all: expected runfiles, got %s", v.Type())
		}
		others = append(others, rf)
	}

	return r.MergeAll(others)
}

// RunfilesBuilder accumulates direct files, symlinks, and merged runfiles
// before building an immutable set.
// Reference: Runfiles.Builder in Runfiles.java
type RunfilesBuilder struct {
	prefix          string
	files           []starlark.Value
	transitiveFiles []*types.Depset
	symlinks        []*types.SymlinkEntry
	rootSymlinks    []*types.SymlinkEntry
	transitive      []*Runfiles
}

// NewRunfilesBuilder creates a new RunfilesBuilder.
func NewRunfilesBuilder(prefix string) *RunfilesBuilder {
	return &RunfilesBuilder{prefix: prefix}
}

// AddFile adds a file to the runfiles.
func (rb *RunfilesBuilder) AddFile(f *types.File) {
	rb.files = append(rb.files, f)
}

// AddFiles adds multiple files to the runfiles.
func (rb *RunfilesBuilder) AddFiles(files []*types.File) {
	for _, f := range files {
		rb.files = append(rb.files, f)
	}
}

// AddTransitiveFiles adds a depset of files without flattening it.
func (rb *RunfilesBuilder) AddTransitiveFiles(files *types.Depset) {
	rb.transitiveFiles = append(rb.transitiveFiles, files)
}

// AddSymlink adds a symlink.
func (rb *RunfilesBuilder) AddSymlink(link string, target *types.File) {
	rb.symlinks = append(rb.symlinks, types.NewSymlinkEntry(link, target))
}

// AddRootSymlink adds a root symlink.
func (rb *RunfilesBuilder) AddRootSymlink(link string, target *types.File) {
	rb.rootSymlinks = append(rb.rootSymlinks, types.NewSymlinkEntry(link, target))
}

// Merge merges another Runfiles into the one being built.
func (rb *RunfilesBuilder) Merge(other *Runfiles) {
	rb.transitive = append(rb.transitive, other)
}

// Build creates the Runfiles.
func (rb *RunfilesBuilder) Build() (*Runfiles, error) {
	r := NewRunfiles(rb.prefix)

	transitiveFiles := make([]*types.Depset, 0, len(rb.transitiveFiles)+len(rb.transitive))
	transitiveFiles = append(transitiveFiles, rb.transitiveFiles...)
	for _, t := range rb.transitive {
		transitiveFiles = append(transitiveFiles, t.files)
	}
	files, err := types.NewDepset(types.OrderDefault, rb.files, transitiveFiles)
	if err != nil {
		return nil, err
	}
	r.files = files

	symlinkValues := make([]starlark.Value, len(rb.symlinks))
	for i, s := range rb.symlinks {
		symlinkValues[i] = s
	}
	var transitiveSymlinks []*types.Depset
	for _, t := range rb.transitive {
		transitiveSymlinks = append(transitiveSymlinks, t.symlinks)
	}
	symlinks, err := types.NewDepset(types.OrderDefault, symlinkValues, transitiveSymlinks)
	if err != nil {
		return nil, err
	}
	r.symlinks = symlinks

	rootSymlinkValues := make([]starlark.Value, len(rb.rootSymlinks))
	for i, s := range rb.rootSymlinks {
		rootSymlinkValues[i] = s
	}
	var transitiveRootSymlinks []*types.Depset
	for _, t := range rb.transitive {
		transitiveRootSymlinks = append(transitiveRootSymlinks, t.rootSymlinks)
	}
	rootSymlinks, err := types.NewDepset(types.OrderDefault, rootSymlinkValues, transitiveRootSymlinks)
	if err != nil {
		return nil, err
	}
	r.rootSymlinks = rootSymlinks

	return r, nil
}

// RunfilesBuiltin is the Starlark runfiles constructor, reached through
// ctx.runfiles in rule implementation functions.
//
// Parameters:
//   - files: list of Files to include
//   - transitive_files: depset of Files to include transitively
//   - symlinks: dict mapping paths to Files
//   - root_symlinks: dict mapping paths to Files at the runfiles root
func RunfilesBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		filesList       *starlark.List
		transitiveFiles *types.Depset
		symlinksDict    *starlark.Dict
		rootSymlinksArg *starlark.Dict
	)

	if err := starlark.UnpackArgs("runfiles", args, kwargs,
		"files?", &filesList,
		"transitive_files?", &transitiveFiles,
		"symlinks?", &symlinksDict,
		"root_symlinks?", &rootSymlinksArg,
	); err != nil {
		return nil, err
	}

	prefix := ""
	if ws := thread.Local("workspace_name"); ws != nil {
		if s, ok := ws.(string); ok {
			prefix = s
		}
	}

	rb := NewRunfilesBuilder(prefix)

	if filesList != nil {
		iter := filesList.Iterate()
		defer iter.Done()
		var v starlark.Value
		for iter.Next(&v) {
			f, ok := v.(*types.File)
			if !ok {
				return nil, fmt.Errorf("runfiles: files must contain File objects, got %s", v.Type())
			}
			rb.AddFile(f)
		}
	}

	if transitiveFiles != nil {
		rb.AddTransitiveFiles(transitiveFiles)
	}

	if symlinksDict != nil {
		for _, item := range symlinksDict.Items() {
			path, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("runfiles: symlink keys must be strings")
			}
			target, ok := item[1].(*types.File)
			if !ok {
				return nil, fmt.Errorf("runfiles: symlink values must be File objects, got %s", item[1].Type())
			}
			rb.AddSymlink(string(path), target)
		}
	}

	if rootSymlinksArg != nil {
		for _, item := range rootSymlinksArg.Items() {
			path, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("runfiles: root_symlinks keys must be strings")
			}
			target, ok := item[1].(*types.File)
			if !ok {
				return nil, fmt.Errorf("runfiles: root_symlinks values must be File objects, got %s", item[1].Type())
			}
			rb.AddRootSymlink(string(path), target)
		}
	}

	return rb.Build()
}

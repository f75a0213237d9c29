// Package providers implements the built-in providers of the Python rules
// dialect.
//
// OutputGroupInfo implementation based on:
// - bazel/src/main/java/com/google/devtools/build/lib/analysis/OutputGroupInfo.java
// - bazel/src/main/java/com/google/devtools/build/lib/starlarkbuildapi/OutputGroupInfoApi.java
package providers

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

const (
	// HiddenOutputGroupPrefix marks output groups not reported to the user.
	// Reference: OutputGroupInfo.java HIDDEN_OUTPUT_GROUP_PREFIX
	HiddenOutputGroupPrefix = "_"

	// DefaultOutputGroup is the output group built when none is named.
	// Reference: OutputGroupInfo.java DEFAULT
	DefaultOutputGroup = "default"
)

// OutputGroupInfoProvider is the singleton provider type for OutputGroupInfo.
// Reference: OutputGroupInfo.java STARLARK_CONSTRUCTOR
var OutputGroupInfoProvider = types.NewProvider("OutputGroupInfo", nil,
	"A provider that indicates what output groups a rule has.", nil)

// OutputGroupInfo maps named output groups to file sets. Rule implementation
// functions return it alongside DefaultInfo to expose secondary outputs,
// such as a coverage tool's report templates.
//
// Reference: OutputGroupInfo.java
type OutputGroupInfo struct {
	groups map[string]*types.Depset

	frozen bool
}

var (
	_ starlark.Value     = (*OutputGroupInfo)(nil)
	_ starlark.HasAttrs  = (*OutputGroupInfo)(nil)
	_ starlark.Mapping   = (*OutputGroupInfo)(nil)
	_ starlark.Iterable  = (*OutputGroupInfo)(nil)
	_ starlark.Indexable = (*OutputGroupInfo)(nil)
)

// NewOutputGroupInfo creates a new OutputGroupInfo.
func NewOutputGroupInfo() *OutputGroupInfo {
	return &OutputGroupInfo{
		groups: make(map[string]*types.Depset),
	}
}

// NewOutputGroupInfoWithGroups creates an OutputGroupInfo with the given groups.
func NewOutputGroupInfoWithGroups(groups map[string]*types.Depset) *OutputGroupInfo {
	og := NewOutputGroupInfo()
	for k, v := range groups {
		og.groups[k] = v
	}
	return og
}

// String returns the Starlark representation.
func (o *OutputGroupInfo) String() string {
	return fmt.Sprintf("OutputGroupInfo(%v)", o.groupNames())
}

// Type returns "OutputGroupInfo".
func (o *OutputGroupInfo) Type() string { return "OutputGroupInfo" }

// Freeze marks the info as frozen.
func (o *OutputGroupInfo) Freeze() {
	if o.frozen {
		return
	}
	o.frozen = true
	for _, v := range o.groups {
		v.Freeze()
	}
}

// Truth returns true if there are any groups.
func (o *OutputGroupInfo) Truth() starlark.Bool {
	return starlark.Bool(len(o.groups) > 0)
}

// Hash returns an error.
func (o *OutputGroupInfo) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: OutputGroupInfo")
}

// Attr returns the file set of an output group.
// Reference: OutputGroupInfo.java getValue()
func (o *OutputGroupInfo) Attr(name string) (starlark.Value, error) {
	if ds, ok := o.groups[name]; ok {
		return ds, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("OutputGroupInfo has no output group %q", name))
}

// AttrNames returns the sorted output group names.
func (o *OutputGroupInfo) AttrNames() []string {
	return o.groupNames()
}

func (o *OutputGroupInfo) groupNames() []string {
	names := make([]string, 0, len(o.groups))
	for k := range o.groups {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Get implements starlark.Mapping (dict-like access).
func (o *OutputGroupInfo) Get(key starlark.Value) (v starlark.Value, found bool, err error) {
	name, ok := key.(starlark.String)
	if !ok {
		return nil, false, fmt.Errorf("OutputGroupInfo: key must be string, got %s", key.Type())
	}
	if ds, ok := o.groups[string(name)]; ok {
		return ds, true, nil
	}
	return starlark.None, false, nil
}

// Index implements starlark.Indexable over the sorted group names.
func (o *OutputGroupInfo) Index(i int) starlark.Value {
	names := o.groupNames()
	if i < 0 || i >= len(names) {
		return nil
	}
	return starlark.String(names[i])
}

// Len returns the number of output groups.
func (o *OutputGroupInfo) Len() int {
	return len(o.groups)
}

// Iterate implements starlark.Iterable over the group names.
func (o *OutputGroupInfo) Iterate() starlark.Iterator {
	return &outputGroupIterator{names: o.groupNames()}
}

type outputGroupIterator struct {
	names []string
	index int
}

func (it *outputGroupIterator) Next(p *starlark.Value) bool {
	if it.index >= len(it.names) {
		return false
	}
	*p = starlark.String(it.names[it.index])
	it.index++
	return true
}

func (it *outputGroupIterator) Done() {}

// GetOutputGroup returns the artifacts in an output group, or an empty set
// if the group is not present. Never nil.
// Reference: OutputGroupInfo.java getOutputGroup()
func (o *OutputGroupInfo) GetOutputGroup(name string) *types.Depset {
	if ds, ok := o.groups[name]; ok {
		return ds
	}
	return types.EmptyDepset()
}

// SetOutputGroup sets an output group.
func (o *OutputGroupInfo) SetOutputGroup(name string, files *types.Depset) {
	if o.frozen {
		return
	}
	o.groups[name] = files
}

// ContainsKey returns true if the output group exists.
func (o *OutputGroupInfo) ContainsKey(name string) bool {
	_, ok := o.groups[name]
	return ok
}

// Groups returns all output groups.
func (o *OutputGroupInfo) Groups() map[string]*types.Depset {
	return o.groups
}

// Provider returns the OutputGroupInfo provider.
func (o *OutputGroupInfo) Provider() *types.Provider {
	return OutputGroupInfoProvider
}

// OutputGroupInfoBuiltin is the Starlark constructor for OutputGroupInfo.
// Each keyword argument names a group; values are depsets or lists of Files.
// Reference: OutputGroupInfo.java OutputGroupInfoProvider.constructor()
func OutputGroupInfoBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("OutputGroupInfo: unexpected positional arguments")
	}

	info := NewOutputGroupInfo()

	for _, kv := range kwargs {
		groupName := string(kv[0].(starlark.String))
		value := kv[1]

		var depset *types.Depset

		switch v := value.(type) {
		case *types.Depset:
			depset = v
		case *starlark.List:
			items := make([]starlark.Value, v.Len())
			for i := 0; i < v.Len(); i++ {
				item := v.Index(i)
				if _, ok := item.(*types.File); !ok {
					return nil, fmt.Errorf("OutputGroupInfo: output group %q contains non-File: %s",
						groupName, item.Type())
				}
				items[i] = item
			}
			var err error
			depset, err = types.NewDepset(types.OrderDefault, items, nil)
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("OutputGroupInfo: output group %q must be a depset or list of Files, got %s",
				groupName, value.Type())
		}

		info.groups[groupName] = depset
	}

	return info, nil
}

// SingleGroup creates an OutputGroupInfo with a single output group.
// Reference: OutputGroupInfo.java singleGroup()
func SingleGroup(group string, files *types.Depset) *OutputGroupInfo {
	return NewOutputGroupInfoWithGroups(map[string]*types.Depset{
		group: files,
	})
}

// IsHiddenOutputGroup returns true for groups that reports should skip.
func IsHiddenOutputGroup(name string) bool {
	return len(name) > 0 && name[0] == '_'
}

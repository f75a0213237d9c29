package ctx

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/analysis"
)

// memberStruct is the read-only string-keyed struct behind ctx.attr and its
// siblings. Members are fixed at construction; Starlark can only read them.
// Reference: StarlarkAttributesCollection.java
type memberStruct struct {
	name    string
	members map[string]starlark.Value
	frozen  bool
}

var (
	_ starlark.Value    = (*memberStruct)(nil)
	_ starlark.HasAttrs = (*memberStruct)(nil)
)

func newMemberStruct(name string) *memberStruct {
	return &memberStruct{name: name, members: make(map[string]starlark.Value)}
}

func (ms *memberStruct) set(name string, v starlark.Value) {
	ms.members[name] = v
}

// String returns the string representation.
func (ms *memberStruct) String() string { return "<" + ms.name + ">" }

// Type returns "struct".
func (ms *memberStruct) Type() string { return "struct" }

// Freeze marks the struct and its members as frozen.
func (ms *memberStruct) Freeze() {
	if ms.frozen {
		return
	}
	ms.frozen = true
	for _, v := range ms.members {
		v.Freeze()
	}
}

// Truth returns true.
func (ms *memberStruct) Truth() starlark.Bool { return starlark.True }

// Hash returns an error (structs are unhashable).
func (ms *memberStruct) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: struct")
}

// Attr returns a member by name.
func (ms *memberStruct) Attr(name string) (starlark.Value, error) {
	if v, ok := ms.members[name]; ok {
		return v, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("%s has no attribute %q", ms.name, name))
}

// AttrNames returns the sorted member names.
func (ms *memberStruct) AttrNames() []string {
	names := make([]string, 0, len(ms.members))
	for name := range ms.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fragmentCollection exposes the configuration fragments registered on the
// rule context as ctx.fragments.<name>.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/starlark/FragmentCollection.java
type fragmentCollection struct {
	rctx *analysis.RuleContext
}

var (
	_ starlark.Value    = (*fragmentCollection)(nil)
	_ starlark.HasAttrs = (*fragmentCollection)(nil)
)

// String returns the string representation.
func (fc *fragmentCollection) String() string { return "<fragments>" }

// Type returns "fragments".
func (fc *fragmentCollection) Type() string { return "fragments" }

// Freeze is a no-op; the collection is a view over the rule context.
func (fc *fragmentCollection) Freeze() {}

// Truth returns true.
func (fc *fragmentCollection) Truth() starlark.Bool { return starlark.True }

// Hash returns an error (fragment collections are unhashable).
func (fc *fragmentCollection) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: fragments")
}

// Attr returns the named fragment. Only fragments that are Starlark values
// are visible from an implementation function.
func (fc *fragmentCollection) Attr(name string) (starlark.Value, error) {
	if f, ok := fc.rctx.Fragment(name); ok {
		if v, ok := f.(starlark.Value); ok {
			return v, nil
		}
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf(
		"there is no configuration fragment named %q in target configuration", name))
}

// AttrNames returns the registered fragment names.
func (fc *fragmentCollection) AttrNames() []string {
	return fc.rctx.FragmentNames()
}

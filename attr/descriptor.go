package attr

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/types"
)

// Descriptor is the Starlark value returned by the attr.* builders: an
// attribute schema waiting to be bound to a name in rule(attrs = {...}).
// It wraps the schema the rule machinery consumes, so rule() unwraps it
// directly.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/starlark/StarlarkAttrModule.java (Descriptor)
type Descriptor struct {
	schema *types.AttrDescriptor
	frozen bool
}

var (
	_ starlark.Value    = (*Descriptor)(nil)
	_ starlark.HasAttrs = (*Descriptor)(nil)
)

// NewDescriptor wraps an attribute schema as a Starlark value.
func NewDescriptor(schema *types.AttrDescriptor) *Descriptor {
	return &Descriptor{schema: schema}
}

// Schema returns the wrapped attribute schema.
func (d *Descriptor) Schema() *types.AttrDescriptor { return d.schema }

// String returns the Starlark representation.
// Reference: StarlarkAttrModule.java Descriptor.repr()
func (d *Descriptor) String() string {
	return fmt.Sprintf("<attr.%s>", d.schema.Type)
}

// Type returns "Attribute" as the Starlark type name.
// Reference: StarlarkAttrModuleApi.java - @StarlarkBuiltin name = "Attribute"
func (d *Descriptor) Type() string { return "Attribute" }

// Freeze marks the descriptor as frozen.
func (d *Descriptor) Freeze() {
	if d.frozen {
		return
	}
	d.frozen = true
	if d.schema.Default != nil {
		d.schema.Default.Freeze()
	}
}

// Truth returns true.
func (d *Descriptor) Truth() starlark.Bool { return true }

// Hash returns an error (descriptors are not hashable).
func (d *Descriptor) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: Attribute")
}

// Attr returns an attribute of the descriptor.
func (d *Descriptor) Attr(name string) (starlark.Value, error) {
	switch name {
	case "default":
		if d.schema.Default != nil {
			return d.schema.Default, nil
		}
		return starlark.None, nil
	case "mandatory":
		return starlark.Bool(d.schema.Mandatory), nil
	case "doc":
		if d.schema.Doc != "" {
			return starlark.String(d.schema.Doc), nil
		}
		return starlark.None, nil
	default:
		return nil, starlark.NoSuchAttrError(fmt.Sprintf("Attribute has no attribute %q", name))
	}
}

// AttrNames returns the list of attribute names.
func (d *Descriptor) AttrNames() []string {
	return []string{"default", "mandatory", "doc"}
}

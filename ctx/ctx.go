package ctx

import (
	"fmt"
	"path"

	"go.starlark.net/starlark"

	"github.com/albertocavalcante/rules-python-go/analysis"
	"github.com/albertocavalcante/rules-python-go/providers"
	"github.com/albertocavalcante/rules-python-go/types"
)

// DefaultWorkspaceName is used when the analyzer does not name the workspace.
// Reference: LabelConstants.java DEFAULT_REPOSITORY_DIRECTORY
const DefaultWorkspaceName = "__main__"

// workspaceNameKey is the thread-local under which the runfiles constructor
// finds the workspace name.
const workspaceNameKey = "workspace_name"

// Ctx is the object bound to the single parameter of a rule implementation
// function. It is built once per target from the rule context and is
// read-only from Starlark.
// Reference: StarlarkRuleContext.java
type Ctx struct {
	rctx          *analysis.RuleContext
	workspaceName string
	buildFilePath string

	attr       *memberStruct
	files      *memberStruct
	file       *memberStruct
	executable *memberStruct
	fragments  *fragmentCollection

	// labelFiles maps each label spelling usable in a $(location) expression
	// to the files it resolves to.
	labelFiles map[string][]*types.File

	frozen bool
}

var (
	_ starlark.Value    = (*Ctx)(nil)
	_ starlark.HasAttrs = (*Ctx)(nil)
)

// Option configures the ctx object under construction.
type Option func(*Ctx)

// WithWorkspaceName sets the workspace name reported by ctx.workspace_name
// and used as the runfiles prefix.
func WithWorkspaceName(name string) Option {
	return func(c *Ctx) { c.workspaceName = name }
}

// WithBuildFilePath overrides the BUILD file path reported by
// ctx.build_file_path.
func WithBuildFilePath(p string) Option {
	return func(c *Ctx) { c.buildFilePath = p }
}

// New materializes the ctx object for a rule context. Attribute values that
// fail to resolve are reported on the context and surface as None.
func New(rctx *analysis.RuleContext, opts ...Option) *Ctx {
	c := &Ctx{
		rctx:          rctx,
		workspaceName: DefaultWorkspaceName,
		attr:          newMemberStruct("ctx.attr"),
		files:         newMemberStruct("ctx.files"),
		file:          newMemberStruct("ctx.file"),
		executable:    newMemberStruct("ctx.executable"),
		labelFiles:    make(map[string][]*types.File),
	}
	c.fragments = &fragmentCollection{rctx: rctx}
	for _, opt := range opts {
		opt(c)
	}
	if c.buildFilePath == "" {
		c.buildFilePath = path.Join(rctx.Label().Pkg(), "BUILD")
	}
	c.bind()
	return c
}

// bind populates the attribute member structs from the rule's schema. Label
// attributes reflect their resolved prerequisites; everything else comes
// straight from the attribute mapper.
// Reference: StarlarkAttributesCollection.java Builder.addAttribute()
func (c *Ctx) bind() {
	mapper := c.rctx.Attrs()
	for name, desc := range c.rctx.Rule().RuleClass().Attrs() {
		switch desc.Type {
		case types.AttrTypeLabel:
			c.bindLabel(name, desc)
		case types.AttrTypeLabelList:
			c.bindLabelList(name)
		default:
			v, err := mapper.Value(name)
			if err != nil {
				c.rctx.AttributeError(analysis.AttributeInvalid, name, err.Error())
				v = starlark.None
			}
			c.attr.set(name, v)
		}
	}
}

func (c *Ctx) bindLabel(name string, desc *types.AttrDescriptor) {
	target := c.rctx.Prerequisite(name)
	if target == nil {
		c.attr.set(name, starlark.None)
		c.files.set(name, starlark.NewList(nil))
		if desc.SingleFile {
			c.file.set(name, starlark.None)
		}
		if desc.Executable {
			c.executable.set(name, starlark.None)
		}
		return
	}

	c.attr.set(name, target)
	files := target.FilesToBuild().Files()
	c.files.set(name, fileList(files))
	c.recordFiles(target.Label(), files)

	if desc.SingleFile {
		if f := c.rctx.PrerequisiteArtifact(name); f != nil {
			c.file.set(name, f)
		} else {
			c.file.set(name, starlark.None)
		}
	}
	if desc.Executable {
		if exe, ok := target.ExecutableOutput(); ok {
			c.executable.set(name, exe)
		} else {
			c.executable.set(name, starlark.None)
		}
	}
}

func (c *Ctx) bindLabelList(name string) {
	targets := c.rctx.Prerequisites(name)
	elems := make([]starlark.Value, 0, len(targets))
	var files []*types.File
	for _, target := range targets {
		elems = append(elems, target)
		fs := target.FilesToBuild().Files()
		files = append(files, fs...)
		c.recordFiles(target.Label(), fs)
	}
	c.attr.set(name, starlark.NewList(elems))
	c.files.set(name, fileList(files))
}

// recordFiles indexes a prerequisite's files under its label spellings for
// $(location) expansion. A prerequisite in the consuming target's package is
// also reachable by its short ":name" form.
func (c *Ctx) recordFiles(label *types.Label, files []*types.File) {
	if label == nil {
		return
	}
	c.labelFiles[label.String()] = files
	current := c.rctx.Label()
	if label.Repo() == current.Repo() && label.Pkg() == current.Pkg() {
		c.labelFiles[":"+label.Name()] = files
	}
}

// String returns the string representation.
func (c *Ctx) String() string {
	return fmt.Sprintf("<rule context for %s>", c.rctx.Label())
}

// Type returns "ctx".
func (c *Ctx) Type() string { return "ctx" }

// Freeze marks the ctx and its members as frozen.
func (c *Ctx) Freeze() {
	if c.frozen {
		return
	}
	c.frozen = true
	c.attr.Freeze()
	c.files.Freeze()
	c.file.Freeze()
	c.executable.Freeze()
}

// Truth returns true.
func (c *Ctx) Truth() starlark.Bool { return starlark.True }

// Hash returns an error (ctx is unhashable).
func (c *Ctx) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: ctx")
}

// Attr returns a ctx attribute by name.
// Reference: StarlarkRuleContextApi.java
func (c *Ctx) Attr(name string) (starlark.Value, error) {
	switch name {
	case "attr":
		return c.attr, nil
	case "build_file_path":
		return starlark.String(c.buildFilePath), nil
	case "executable":
		return c.executable, nil
	case "expand_location":
		return starlark.NewBuiltin("expand_location", c.expandLocationMethod), nil
	case "file":
		return c.file, nil
	case "files":
		return c.files, nil
	case "fragments":
		return c.fragments, nil
	case "label":
		return c.rctx.Label(), nil
	case "package_relative_label":
		return starlark.NewBuiltin("package_relative_label", c.packageRelativeLabelMethod), nil
	case "runfiles":
		return starlark.NewBuiltin("runfiles", providers.RunfilesBuiltin), nil
	case "workspace_name":
		return starlark.String(c.workspaceName), nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("ctx has no attribute %q", name))
}

// AttrNames returns the list of attribute names.
func (c *Ctx) AttrNames() []string {
	return []string{
		"attr",
		"build_file_path",
		"executable",
		"expand_location",
		"file",
		"files",
		"fragments",
		"label",
		"package_relative_label",
		"runfiles",
		"workspace_name",
	}
}

// expandLocationMethod implements ctx.expand_location(input, targets=[]).
// The targets keyword extends the lookup scope beyond the rule's own
// prerequisites.
// Reference: StarlarkRuleContext.java expandLocation()
func (c *Ctx) expandLocationMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var input string
	var targets *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "input", &input, "targets?", &targets); err != nil {
		return nil, err
	}

	labelMap := c.labelFiles
	if targets != nil && targets.Len() > 0 {
		labelMap = make(map[string][]*types.File, len(c.labelFiles)+targets.Len())
		for k, v := range c.labelFiles {
			labelMap[k] = v
		}
		current := c.rctx.Label()
		for i := 0; i < targets.Len(); i++ {
			target, ok := targets.Index(i).(*analysis.ConfiguredTarget)
			if !ok {
				return nil, fmt.Errorf("%s: for targets, got element of type %s, want Target",
					b.Name(), targets.Index(i).Type())
			}
			label := target.Label()
			if label == nil {
				continue
			}
			files := target.FilesToBuild().Files()
			labelMap[label.String()] = files
			if label.Repo() == current.Repo() && label.Pkg() == current.Pkg() {
				labelMap[":"+label.Name()] = files
			}
		}
	}

	out, err := expandLocation(input, labelMap)
	if err != nil {
		return nil, err
	}
	return starlark.String(out), nil
}

// packageRelativeLabelMethod implements ctx.package_relative_label(input).
// A string is parsed relative to the package of the target being analyzed;
// a Label passes through unchanged.
// Reference: StarlarkRuleContext.java packageRelativeLabel()
func (c *Ctx) packageRelativeLabelMethod(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var input starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &input); err != nil {
		return nil, err
	}
	switch v := input.(type) {
	case *types.Label:
		return v, nil
	case starlark.String:
		current := c.rctx.Label()
		l, err := types.ParseLabelRelative(string(v), current.Repo(), current.Pkg())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return l, nil
	}
	return nil, fmt.Errorf("%s: got %s, want string or Label", b.Name(), input.Type())
}

// providerInstance is any Starlark value that advertises the provider symbol
// that constructed it. DefaultInfo, OutputGroupInfo, PyRuntimeInfo, and the
// instances of provider() all satisfy it.
type providerInstance interface {
	starlark.Value
	Provider() *types.Provider
}

// Run calls the rule's implementation function and assembles the configured
// target from the providers it returns. On failure the problems are recorded
// on the rule context and the target is nil, mirroring the native rule path.
// Reference: StarlarkRuleConfiguredTargetUtil.java buildRule()
func Run(thread *starlark.Thread, rctx *analysis.RuleContext, opts ...Option) *analysis.ConfiguredTarget {
	impl := rctx.Rule().RuleClass().Implementation()
	if impl == nil {
		rctx.RuleError(analysis.AttributeInvalid,
			fmt.Sprintf("rule '%s' has no implementation function", rctx.Rule().RuleClassName()))
		return nil
	}

	c := New(rctx, opts...)

	prev := thread.Local(workspaceNameKey)
	thread.SetLocal(workspaceNameKey, c.workspaceName)
	ret, err := starlark.Call(thread, impl, starlark.Tuple{c}, nil)
	thread.SetLocal(workspaceNameKey, prev)
	if err != nil {
		rctx.RuleError(analysis.AttributeInvalid, err.Error())
		return nil
	}

	target := c.targetFromReturn(ret)
	if rctx.HasErrors() {
		return nil
	}
	return target
}

// targetFromReturn interprets an implementation function's return value. A
// rule returns None or a list of providers; at most one DefaultInfo shapes
// the target itself and every other provider is attached as declared.
// Reference: StarlarkRuleConfiguredTargetUtil.java addProviders()
func (c *Ctx) targetFromReturn(ret starlark.Value) *analysis.ConfiguredTarget {
	rctx := c.rctx

	var def *providers.DefaultInfo
	var declared []starlark.Value

	switch v := ret.(type) {
	case starlark.NoneType:
	case *starlark.List:
		for i := 0; i < v.Len(); i++ {
			elem := v.Index(i)
			if d, ok := elem.(*providers.DefaultInfo); ok {
				if def != nil {
					rctx.RuleError(analysis.AttributeInvalid,
						"rule implementation function returned multiple DefaultInfo providers")
					return nil
				}
				def = d
				continue
			}
			if _, ok := elem.(providerInstance); ok {
				declared = append(declared, elem)
				continue
			}
			rctx.RuleError(analysis.AttributeInvalid,
				fmt.Sprintf("rule implementation function returned an element of type %s, want a provider instance", elem.Type()))
			return nil
		}
	default:
		rctx.RuleError(analysis.AttributeInvalid,
			fmt.Sprintf("rule implementation function returned %s, want None or a list of providers", ret.Type()))
		return nil
	}

	files := types.EmptyDepset()
	var topts []analysis.TargetOption
	if def != nil {
		if f := def.Files(); f != nil {
			files = f
		}
		if exe := def.Executable(); exe != nil {
			topts = append(topts, analysis.WithExecutable(exe))
		}
		if rf := def.DefaultRunfiles(); rf != nil {
			topts = append(topts, analysis.WithDefaultRunfiles(rf))
		} else {
			topts = append(topts, analysis.WithDefaultRunfiles(providers.EmptyRunfiles))
		}
		topts = append(topts, analysis.WithDeclaredProvider(def))
	} else {
		topts = append(topts, analysis.WithDefaultRunfiles(providers.EmptyRunfiles))
	}
	for _, p := range declared {
		topts = append(topts, analysis.WithDeclaredProvider(p))
	}

	return analysis.NewConfiguredTarget(rctx.Label(), rctx.Rule().TargetKind(), files, topts...)
}

// fileList converts a file slice to a Starlark list.
func fileList(files []*types.File) *starlark.List {
	elems := make([]starlark.Value, len(files))
	for i, f := range files {
		elems[i] = f
	}
	return starlark.NewList(elems)
}

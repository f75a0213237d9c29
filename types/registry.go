package types

import (
	"go.starlark.net/starlark"
)

// ThreadKeyTargetRegistry is the thread-local key under which BUILD file
// evaluation installs the registry receiving created targets.
const ThreadKeyTargetRegistry = "rules-python-go:target-registry"

// TargetRegistry receives rule instances as a BUILD file creates them.
// eval.Package implements it.
// Reference: Package.java Builder.addRule()
type TargetRegistry interface {
	// RegisterTarget records a newly created target. It fails when the
	// target's name collides with one already in the package.
	RegisterTarget(*RuleInstance) error
}

// SetTargetRegistry installs the registry in the thread.
func SetTargetRegistry(thread *starlark.Thread, reg TargetRegistry) {
	thread.SetLocal(ThreadKeyTargetRegistry, reg)
}

// CurrentTargetRegistry returns the thread's registry, or nil outside BUILD
// file evaluation.
func CurrentTargetRegistry(thread *starlark.Thread) TargetRegistry {
	if reg, ok := thread.Local(ThreadKeyTargetRegistry).(TargetRegistry); ok {
		return reg
	}
	return nil
}

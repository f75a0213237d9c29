// Package ctx materializes the ctx object handed to a rule's Starlark
// implementation function and turns the function's return value into a
// configured target.
//
// The object is a read-only view over an analysis.RuleContext. Attribute
// values appear under ctx.attr; a label attribute resolves to its
// prerequisite target there, and additionally surfaces the files the
// prerequisites build as ctx.files.<name>, the single file of an
// allow_single_file attribute as ctx.file.<name>, and the executable of an
// executable attribute as ctx.executable.<name>. Configuration fragments
// registered on the context appear under ctx.fragments.
//
// Run drives an implementation function end to end: it builds the ctx,
// calls the function, and interprets the returned provider list, with
// DefaultInfo shaping the target's files, executable, and runfiles.
// Problems are recorded on the rule context the same way the native
// py_runtime path records them.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/starlark/StarlarkRuleContext.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/starlark/StarlarkRuleConfiguredTargetUtil.java
package ctx

// Package analysis implements the analysis phase of the Python rules dialect:
// it turns validated rule instances into configured targets carrying resolved
// providers, accumulating every attribute problem of a target into one report
// instead of stopping at the first.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/RuleContext.java
// Reference: bazel/src/main/java/com/google/devtools/build/lib/analysis/RuleErrorConsumer.java
package analysis

import (
	"fmt"

	"go.uber.org/multierr"
)

// ErrorKind classifies a user-input validation error.
type ErrorKind string

const (
	// AttributeConflict reports mutually exclusive attributes that are both
	// set, neither set, or otherwise in an impossible combination.
	AttributeConflict ErrorKind = "AttributeConflict"

	// AttributeInvalid reports a value failing a shape constraint, such as a
	// relative path where an absolute one is required.
	AttributeInvalid ErrorKind = "AttributeInvalid"

	// CoverageToolUnresolvable reports a coverage_tool target that produces
	// multiple files and exposes no executable output.
	CoverageToolUnresolvable ErrorKind = "CoverageToolUnresolvable"

	// VersionRequiredInToolchainMode reports an omitted python_version while
	// the configuration mandates toolchain resolution.
	VersionRequiredInToolchainMode ErrorKind = "VersionRequiredInToolchainMode"
)

// Error is one validation error against a rule instance. Attr is empty for
// rule-level errors; otherwise it names the offending attribute.
// Reference: RuleErrorConsumer.java ruleError / attributeError
type Error struct {
	Kind ErrorKind
	Attr string
	Msg  string
}

// Error implements the error interface.
func (e Error) Error() string {
	if e.Attr != "" {
		return fmt.Sprintf("in attribute '%s': %s", e.Attr, e.Msg)
	}
	return e.Msg
}

// ErrorSet accumulates validation errors in the order they were reported.
// A nil or empty set means the evaluation succeeded. The zero value is ready
// to use.
//
// Reference: RuleErrorConsumer.java - "Errors should be reported and
// accumulated rather than thrown so that a single evaluation reports every
// problem at once."
type ErrorSet struct {
	errs []Error
}

// Add appends an error to the set.
func (s *ErrorSet) Add(e Error) {
	s.errs = append(s.errs, e)
}

// RuleError reports a rule-level error not tied to a single attribute.
// Reference: RuleErrorConsumer.java ruleError()
func (s *ErrorSet) RuleError(kind ErrorKind, msg string) {
	s.Add(Error{Kind: kind, Msg: msg})
}

// AttributeError reports an error against a named attribute.
// Reference: RuleErrorConsumer.java attributeError()
func (s *ErrorSet) AttributeError(kind ErrorKind, attr, msg string) {
	s.Add(Error{Kind: kind, Attr: attr, Msg: msg})
}

// HasErrors returns whether any error has been reported.
// Reference: RuleErrorConsumer.java hasErrors()
func (s *ErrorSet) HasErrors() bool {
	return s != nil && len(s.errs) > 0
}

// Errors returns the accumulated errors in report order.
func (s *ErrorSet) Errors() []Error {
	if s == nil {
		return nil
	}
	out := make([]Error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Err returns the accumulated errors combined into a single error value, or
// nil if the set is empty.
func (s *ErrorSet) Err() error {
	if !s.HasErrors() {
		return nil
	}
	var err error
	for _, e := range s.errs {
		err = multierr.Append(err, e)
	}
	return err
}

// Error implements the error interface so a non-empty set can be returned
// directly from resolution entry points.
func (s *ErrorSet) Error() string {
	if !s.HasErrors() {
		return "no errors"
	}
	return s.Err().Error()
}

// Package python implements the py_runtime rule of the Python rules dialect:
// the version enum, the python configuration fragment, the PyRuntimeInfo
// provider, and the resolution of rule attributes into an immutable runtime
// descriptor.
//
// This file implements the Python major-version enum.
// Reference: bazel/src/main/java/com/google/devtools/build/lib/rules/python/PythonVersion.java
package python

import "fmt"

// Version is a Python major version. The zero value is SentinelVersion,
// meaning the python_version attribute was left unspecified.
type Version int

const (
	// SentinelVersion is the placeholder default of the python_version
	// attribute. It never appears in a resolved runtime descriptor.
	// Reference: PythonVersion.java _INTERNAL_SENTINEL
	SentinelVersion Version = iota

	// PY2 is Python 2.
	PY2

	// PY3 is Python 3.
	PY3
)

// SentinelVersionName is the attribute-level spelling of SentinelVersion.
const SentinelVersionName = "_INTERNAL_SENTINEL"

// DefaultTargetVersion is the version assumed when the attribute is
// unspecified and the configuration permits a default.
// Reference: PythonVersion.java DEFAULT_TARGET_VALUE
const DefaultTargetVersion = PY3

// String returns the attribute-level spelling of the version.
func (v Version) String() string {
	switch v {
	case PY2:
		return "PY2"
	case PY3:
		return "PY3"
	case SentinelVersion:
		return SentinelVersionName
	default:
		return fmt.Sprintf("Version(%d)", int(v))
	}
}

// IsTargetValue returns whether v is a concrete version a target can be
// built for, as opposed to the unspecified sentinel.
// Reference: PythonVersion.java isTargetValue()
func (v Version) IsTargetValue() bool {
	return v == PY2 || v == PY3
}

// ParseTargetVersion parses a concrete target version. The sentinel is
// rejected.
// Reference: PythonVersion.java parseTargetValue()
func ParseTargetVersion(s string) (Version, error) {
	switch s {
	case "PY2":
		return PY2, nil
	case "PY3":
		return PY3, nil
	default:
		return SentinelVersion, fmt.Errorf("'%s' is not a valid Python major version, should be one of 'PY2' or 'PY3'", s)
	}
}

// ParseTargetOrSentinelVersion parses the value of a python_version
// attribute, which may be a concrete version or the unspecified sentinel.
// Reference: PythonVersion.java parseTargetOrSentinelValue()
func ParseTargetOrSentinelVersion(s string) (Version, error) {
	if s == SentinelVersionName {
		return SentinelVersion, nil
	}
	v, err := ParseTargetVersion(s)
	if err != nil {
		return SentinelVersion, fmt.Errorf("'%s' is not a valid Python major version, should be one of 'PY2', 'PY3', or '%s'", s, SentinelVersionName)
	}
	return v, nil
}

// TargetVersions returns the concrete versions in declaration order.
// Reference: PythonVersion.java TARGET_STRINGS
func TargetVersions() []Version {
	return []Version{PY2, PY3}
}

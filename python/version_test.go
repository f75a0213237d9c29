package python

import (
	"strings"
	"testing"
)

// TestVersionString verifies the canonical names of the version values.
func TestVersionString(t *testing.T) {
	tests := []struct {
		version Version
		want    string
	}{
		{PY2, "PY2"},
		{PY3, "PY3"},
		{SentinelVersion, SentinelVersionName},
	}
	for _, tt := range tests {
		if got := tt.version.String(); got != tt.want {
			t.Errorf("Version.String() = %q, want %q", got, tt.want)
		}
	}
}

// TestIsTargetValue verifies that only the concrete versions count as
// target values.
func TestIsTargetValue(t *testing.T) {
	if SentinelVersion.IsTargetValue() {
		t.Error("sentinel IsTargetValue() = true, want false")
	}
	for _, v := range TargetVersions() {
		if !v.IsTargetValue() {
			t.Errorf("%s IsTargetValue() = false, want true", v)
		}
	}
}

// TestParseTargetVersion verifies parsing of user-supplied version strings.
func TestParseTargetVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"PY2", PY2, false},
		{"PY3", PY3, false},
		{"", 0, true},
		{"PY4", 0, true},
		{"py3", 0, true},
		{SentinelVersionName, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTargetVersion(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTargetVersion(%q) succeeded, want error", tt.input)
			} else if !strings.Contains(err.Error(), "not a valid Python major version") {
				t.Errorf("ParseTargetVersion(%q) error = %v, want version message", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTargetVersion(%q) failed: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTargetVersion(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

// TestParseTargetOrSentinelVersion verifies that the sentinel name is
// accepted where an unset attribute round-trips through a string.
func TestParseTargetOrSentinelVersion(t *testing.T) {
	got, err := ParseTargetOrSentinelVersion(SentinelVersionName)
	if err != nil {
		t.Fatalf("ParseTargetOrSentinelVersion(sentinel) failed: %v", err)
	}
	if got != SentinelVersion {
		t.Errorf("ParseTargetOrSentinelVersion(sentinel) = %s, want sentinel", got)
	}

	if _, err := ParseTargetOrSentinelVersion("PY4"); err == nil {
		t.Error("ParseTargetOrSentinelVersion(\"PY4\") succeeded, want error")
	}
}

// TestNewConfiguration verifies that the configuration rejects a
// non-target default version.
func TestNewConfiguration(t *testing.T) {
	cfg, err := NewConfiguration(true, PY3)
	if err != nil {
		t.Fatalf("NewConfiguration failed: %v", err)
	}
	if !cfg.UseToolchains() {
		t.Error("UseToolchains() = false, want true")
	}
	if cfg.DefaultVersion() != PY3 {
		t.Errorf("DefaultVersion() = %s, want PY3", cfg.DefaultVersion())
	}

	if _, err := NewConfiguration(false, SentinelVersion); err == nil {
		t.Error("NewConfiguration with sentinel default succeeded, want error")
	}
}

// TestDefaultConfiguration verifies the out-of-the-box configuration.
func TestDefaultConfiguration(t *testing.T) {
	cfg := DefaultConfiguration()
	if !cfg.UseToolchains() {
		t.Error("default UseToolchains() = false, want true")
	}
	if cfg.DefaultVersion() != DefaultTargetVersion {
		t.Errorf("default version = %s, want %s", cfg.DefaultVersion(), DefaultTargetVersion)
	}
}

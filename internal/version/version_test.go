package version

import (
	"strings"
	"testing"
)

func TestSetInfo(t *testing.T) {
	originalVersion := Version
	originalBuildTime := BuildTime
	originalGitCommit := GitCommit
	originalGoVersion := GoVersion

	defer func() {
		Version = originalVersion
		BuildTime = originalBuildTime
		GitCommit = originalGitCommit
		GoVersion = originalGoVersion
	}()

	SetInfo("1.0.0", "2024-01-01T00:00:00Z", "abc123", "go1.26")

	if Version != "1.0.0" {
		t.Errorf("Version = %s, want 1.0.0", Version)
	}
	if BuildTime != "2024-01-01T00:00:00Z" {
		t.Errorf("BuildTime = %s, want 2024-01-01T00:00:00Z", BuildTime)
	}
	if GitCommit != "abc123" {
		t.Errorf("GitCommit = %s, want abc123", GitCommit)
	}
	if GoVersion != "go1.26" {
		t.Errorf("GoVersion = %s, want go1.26", GoVersion)
	}

	got := String()
	for _, want := range []string{"1.0.0", "abc123", "2024-01-01T00:00:00Z", "go1.26"} {
		if !strings.Contains(got, want) {
			t.Errorf("String() = %q, missing %q", got, want)
		}
	}
}

func TestSetInfoEmptyValues(t *testing.T) {
	originalVersion := Version
	defer func() { Version = originalVersion }()

	Version = "keep"
	SetInfo("", "", "", "")

	if Version != "keep" {
		t.Errorf("Version = %s, empty value must not override", Version)
	}
}

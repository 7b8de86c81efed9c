package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "0.3.0"
	Commit = "f00dcafe"
	BuildTime = "2026-02-01T12:00:00Z"

	got := String()
	want := "0.3.0 (f00dcafe) built 2026-02-01T12:00:00Z"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDefaults(t *testing.T) {
	// ldflags may overwrite these in release builds, but they must
	// never be empty.
	for name, v := range map[string]string{
		"Version":   Version,
		"Commit":    Commit,
		"BuildTime": BuildTime,
	} {
		if strings.TrimSpace(v) == "" {
			t.Errorf("%s is empty", name)
		}
	}
}

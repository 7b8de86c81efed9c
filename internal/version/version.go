// Package version carries build identity, stamped via ldflags:
//
//	go build -ldflags "-X github.com/bracketworks/livecast/internal/version.Version=1.0.0 \
//	                   -X github.com/bracketworks/livecast/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/bracketworks/livecast/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import "fmt"

var (
	// Version is the semantic release version.
	Version = "dev"

	// Commit is the short git commit hash.
	Commit = "unknown"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// String renders the full build identity for logs and /stats.
func String() string {
	return fmt.Sprintf("%s (%s) built %s", Version, Commit, BuildTime)
}

package version

import "fmt"

// Build metadata, set with -ldflags "-X github.com/oshokin/secpi-console/internal/version.Version=...".
var (
	// Version of the console and mock API; "dev" for untagged local builds.
	Version = "dev"
	// Commit is the git revision the binaries were built from.
	Commit = "unknown"
	// BuildTime is the RFC 3339 UTC time of the build.
	BuildTime = "unknown"
)

// Short returns the version alone, as printed by `version --short`.
func Short() string {
	return Version
}

// Full returns the version with its commit and build time.
func Full() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime)
}

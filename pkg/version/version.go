// Package version carries build metadata injected at link time.
package version

// Set via -ldflags "-X github.com/apertium/apertium-stats-service/pkg/version.Version=...".
var (
	// Version is the semantic version of the binary.
	Version = "dev"

	// Commit is the VCS revision the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

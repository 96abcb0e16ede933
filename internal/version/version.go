// Package version holds build-time metadata injected via -ldflags.
package version

var (
	// Version is the current engine version.
	Version = "dev"
	// GitSHA is the git commit SHA this binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

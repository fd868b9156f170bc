// Package version holds the build version reported by the CLI.
package version

// Version is set by ldflags during build (-X .../internal/version.Version=vX.Y.Z).
var Version = "v0.1.0-dev"

// BuildTime is the build timestamp, set by ldflags during build.
var BuildTime = "unknown"

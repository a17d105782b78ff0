// Package buildinfo exposes version metadata injected at build time via
// -ldflags.
package buildinfo

var (
	// Version is the release version, "dev" for local builds.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = ""
	// BuildDate is the build timestamp.
	BuildDate = ""
)

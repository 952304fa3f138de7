package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for the version subcommand and the
// startup log line.
func String() string {
	return fmt.Sprintf("edfreplay %s (%s, built %s)", Version, GitSHA, BuildTime)
}

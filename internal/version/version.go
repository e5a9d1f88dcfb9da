// Package version carries build metadata stamped in with -ldflags.
package version

import "fmt"

// Set at link time, e.g.
// -X github.com/banshee-data/seizure-classifier/internal/version.Version=v0.3.0
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build metadata for the -version flag.
func String() string {
	return fmt.Sprintf("classify %s (%s, built %s)", Version, GitSHA, BuildTime)
}

// Package version holds build metadata injected at link time.
package version

import "fmt"

// Set via -ldflags "-X github.com/mrnjifanda/jifijs-sub000/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a human-readable version string.
func Info() string {
	return fmt.Sprintf("jifijs %s (commit %s, built %s)", Version, Commit, Date)
}

// Package version carries build metadata shared by all edgebench tools.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X edgebench/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String formats the version line printed by every tool's -version flag.
func String(tool string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", tool, Version, GitCommit, BuildTime, runtime.Version())
}

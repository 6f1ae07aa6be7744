// Package buildinfo holds version and build metadata stamped at
// compile time via ldflags, the same information a container exposes
// in its Identity's agentInfo (spec §6, common.agentInfo) and in a
// command-line "version" subcommand.
package buildinfo

import (
	"fmt"
	"runtime"
	"time"
)

// These variables are set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

// startTime records when the process started.
var startTime = time.Now()

// Info returns compile-time and platform metadata, suitable for a
// "version" subcommand or for populating coatyconfig.AgentInfo.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}
}

// Uptime returns the duration since process start.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// String returns a one-line summary for logging and version output.
func String() string {
	return fmt.Sprintf("coaty-go %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}

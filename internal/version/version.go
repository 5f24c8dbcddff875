package version

import (
	"fmt"
	"io"
	"runtime"
)

// Set through -ldflags at build time
var (
	App       = "mailauth"
	Version   string
	GitCommit string
	BuildTime string
)

// Number returns the release version, or "dev" for local builds
func Number() string {
	if Version != "" {
		return Version
	}
	return "dev"
}

// Write prints the build information to w
func Write(w io.Writer) {
	fmt.Fprintf(w, "%s version %s\n", App, Number())
	if GitCommit != "" {
		fmt.Fprintf(w, "Git commit: %s\n", shortCommit())
	}
	if BuildTime != "" {
		fmt.Fprintf(w, "Build time: %s\n", BuildTime)
	}
	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "Built for: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func shortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// Package version exposes build metadata set via ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/spvbuild/internal/version.Version=v0.3.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Version is the release version of the binary.
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version. When no version was
// injected, the module version recorded by the Go toolchain is used.
func String() string {
	v := Version
	if v == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
			v = info.Main.Version
		}
	}
	return fmt.Sprintf("spvbuild %s (commit %s, built %s)", v, GitCommit, BuildTime)
}

// Package version provides build version information.
//
// Values are injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/longkey1/securechat/internal/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When they are not, the module version and VCS settings recorded by the
// Go toolchain are used.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// These variables are set via -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type buildInfo struct {
	version string
	commit  string
	time    string
}

func current() buildInfo {
	info := buildInfo{version: Version, commit: GitCommit, time: BuildTime}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fillFromBuildInfo(info, bi)
}

func fillFromBuildInfo(info buildInfo, bi *debug.BuildInfo) buildInfo {
	if info.version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.commit == "unknown" {
				info.commit = s.Value
				if len(info.commit) > 7 {
					info.commit = info.commit[:7]
				}
			}
		case "vcs.time":
			if info.time == "unknown" {
				info.time = s.Value
			}
		}
	}
	return info
}

// Info returns version, commit, build time and Go version.
func Info() string {
	info := current()
	return fmt.Sprintf("securechat %s\n  Commit: %s\n  Built: %s\n  Go: %s %s/%s",
		info.version, info.commit, info.time, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version number.
func Short() string {
	return current().version
}

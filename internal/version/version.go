// Package version reports which canvas-client build is running.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/canvas-sync/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/canvas-sync/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/canvas-sync/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Plain `go build` / `go install` binaries fall back to the VCS stamp the
// toolchain embeds.
package version

import "runtime/debug"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const unknown = "unknown"

// Info is the resolved build identity.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"`
}

// Get returns the ldflags values, filling unset ones from the embedded
// build info.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = fillFromSettings(info, bi.Settings)
	}
	return info
}

func fillFromSettings(info Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == unknown && s.Value != "" {
				info.Commit = s.Value
				if len(info.Commit) > 7 {
					info.Commit = info.Commit[:7]
				}
			}
		case "vcs.time":
			if info.BuildTime == unknown && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String formats the build for `canvas-client version` and the status page.
func String() string {
	info := Get()
	s := info.Version + " (" + info.Commit + ") built " + info.BuildTime
	if info.Modified {
		s += " +dirty"
	}
	return s
}

// LogAttrs returns the build info as slog key/value pairs.
func LogAttrs() []any {
	info := Get()
	return []any{"version", info.Version, "commit", info.Commit, "build_time", info.BuildTime}
}

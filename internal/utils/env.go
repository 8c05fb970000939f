package utils

import (
	"os"
	"runtime/debug"
)

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

// BuildInfo describes the running binary for /version and the CLI.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// ReadBuildInfo prefers PSYMETRICS_COMMIT and PSYMETRICS_BUILD_TIME, falling
// back to the VCS stamp embedded by the Go toolchain.
func ReadBuildInfo(version string) BuildInfo {
	info := BuildInfo{Version: version, Commit: "unknown", BuildTime: "unknown"}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = bi.GoVersion
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				info.Commit = s.Value
			case "vcs.time":
				info.BuildTime = s.Value
			}
		}
	}
	info.Commit = SafeEnv("PSYMETRICS_COMMIT", info.Commit)
	info.BuildTime = SafeEnv("PSYMETRICS_BUILD_TIME", info.BuildTime)
	return info
}

// Package misc holds small helpers which do not belong anywhere else.
package misc

import (
	"runtime/debug"
)

const appName = "wawbook"

// Set at build time via -ldflags, build info is used as a fallback.
var (
	version = ""
	gitHash = ""
)

// GetAppName returns program name to be used in logs, temporary file names, etc.
func GetAppName() string {
	return appName
}

// GetVersion returns program version.
func GetVersion() string {
	if len(version) > 0 {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && len(bi.Main.Version) > 0 {
		return bi.Main.Version
	}
	return "unknown"
}

// GetGitHash returns git revision program was built from.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

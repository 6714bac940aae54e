// Package misc keeps build time information about the program.
package misc

import (
	"path/filepath"
	"runtime/debug"
	"strings"
)

// Values below are expected to be set by the linker:
//
//	go build -ldflags "-X epdf/misc.version=1.2.3 -X epdf/misc.gitHash=abcdef"
var (
	version = "dev"
	gitHash = "unknown"
	appName = "epdf"
)

// GetVersion returns program version.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return strings.TrimPrefix(bi.Main.Version, "v")
	}
	return version
}

// GetGitHash returns git hash of the sources program was built from.
func GetGitHash() string {
	if gitHash != "unknown" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) > 0 {
				return s.Value
			}
		}
	}
	return gitHash
}

// GetAppName returns program name used for temporary files, logs and reports.
func GetAppName() string {
	return strings.TrimSuffix(filepath.Base(appName), filepath.Ext(appName))
}

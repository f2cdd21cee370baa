// Package version records the build identity of the sip binary.
package version

import (
	"runtime/debug"
)

// Version is the release version. Overridden at build time via
// -ldflags "-X .../internal/version.Version=v1.2.3".
var Version = "dev"

// Commit is the VCS revision baked in at build time. When empty the
// module build info is consulted instead.
var Commit = ""

// String returns the human-readable version, with the short commit
// when one is known.
func String() string {
	c := ResolveCommit()
	if c == "" {
		return Version
	}
	return Version + " (" + ShortCommit(c) + ")"
}

// ResolveCommit returns the build commit, preferring the linker-set
// value and falling back to vcs.revision from the build info.
func ResolveCommit() string {
	if Commit != "" {
		return Commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return ""
}

// ShortCommit truncates a commit hash to 12 characters.
func ShortCommit(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

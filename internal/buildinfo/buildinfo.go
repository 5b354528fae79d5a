// Package buildinfo reports the version stamped into the observer binary.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// version is overridden with -ldflags "-X .../buildinfo.version=v1.2.3".
var version = "dev"

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// SetVersion allows build scripts to override the CLI version information.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// Version returns the semantic version or module version of the build.
func Version() string {
	if version != "dev" {
		return version
	}
	if info, ok := readBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

// Revision returns the short VCS revision, suffixed with "+dirty" for
// modified trees, or "" when the binary carries no VCS stamp.
func Revision() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev != "" && dirty {
		rev += "+dirty"
	}
	return rev
}

// Describe joins the version and revision for display.
func Describe() string {
	parts := []string{Version()}
	if rev := Revision(); rev != "" {
		parts = append(parts, rev)
	}
	return strings.Join(parts, " ")
}

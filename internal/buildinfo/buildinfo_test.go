package buildinfo

import (
	"runtime/debug"
	"testing"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = orig })
}

func TestVersionPrefersOverride(t *testing.T) {
	orig := version
	t.Cleanup(func() { version = orig })
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}})

	SetVersion("v1.2.3")
	if got := Version(); got != "v1.2.3" {
		t.Fatalf("expected override, got %q", got)
	}
	SetVersion("")
	if got := Version(); got != "v1.2.3" {
		t.Fatalf("empty override should be ignored, got %q", got)
	}
}

func TestVersionFallsBackToModule(t *testing.T) {
	orig := version
	version = "dev"
	t.Cleanup(func() { version = orig })

	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if got := Version(); got != "dev" {
		t.Fatalf("expected dev for devel builds, got %q", got)
	}
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}})
	if got := Version(); got != "v0.3.0" {
		t.Fatalf("expected module version, got %q", got)
	}
}

func TestRevisionShortensAndMarksDirty(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
	}})
	if got := Revision(); got != "0123456789ab+dirty" {
		t.Fatalf("unexpected revision %q", got)
	}
}

func TestRevisionWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil)
	if got := Revision(); got != "" {
		t.Fatalf("expected empty revision, got %q", got)
	}
}

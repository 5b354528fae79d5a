package runmanifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/offlinefirst/action-observer/pkg/config"
)

func testLayout(root string) Layout {
	return BuildLayout(config.PathsConfig{
		DataDir: root,
		RawDir:  filepath.Join(root, "raw"),
		LogFile: filepath.Join(root, "observer_log.jsonl"),
	})
}

func TestBuildLayoutAndRelativePaths(t *testing.T) {
	layout := testLayout("/tmp/data")

	if layout.ManifestPath != filepath.Join("/tmp/data", "session.json") {
		t.Fatalf("unexpected manifest path: %s", layout.ManifestPath)
	}

	rel := layout.RelativePaths()
	if rel.Data != "." {
		t.Fatalf("expected relative data dir '.', got %q", rel.Data)
	}
	if rel.Raw != "raw" {
		t.Fatalf("expected raw directory name, got %s", rel.Raw)
	}
	if rel.Log != "observer_log.jsonl" {
		t.Fatalf("unexpected log path %s", rel.Log)
	}
	if rel.Database != "sessions.db" {
		t.Fatalf("unexpected database path %s", rel.Database)
	}
}

func TestRelativePathsKeepOutsideLocations(t *testing.T) {
	layout := BuildLayout(config.PathsConfig{DataDir: "data", RawDir: "media", LogFile: "data/log.jsonl"})
	if got := layout.RelativePaths().Raw; got != "media" {
		t.Fatalf("expected outside path to be kept, got %s", got)
	}
}

func TestEnsureFilesystemCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	layout := BuildLayout(config.PathsConfig{
		DataDir: filepath.Join(dir, "data"),
		RawDir:  filepath.Join(dir, "data", "raw"),
		LogFile: filepath.Join(dir, "logs", "observer_log.jsonl"),
	})

	if err := EnsureFilesystem(layout); err != nil {
		t.Fatalf("EnsureFilesystem failed: %v", err)
	}
	for _, p := range []string{layout.DataDir, layout.RawDir, filepath.Dir(layout.LogPath)} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("expected path %s: %v", p, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected directory at %s", p)
		}
	}
	if _, err := os.Stat(layout.LogPath); err != nil {
		t.Fatalf("expected event log file: %v", err)
	}
}

func TestEnsureFilesystemFailsWhenDataDirIsFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "data")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	if err := EnsureFilesystem(testLayout(blocker)); err == nil {
		t.Fatalf("expected error when data dir is a file")
	}
}

func TestNewManifest(t *testing.T) {
	cfg := config.Default()
	cfg.Source = "config.yaml"
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))

	man := New(Options{
		SessionID:  "abc",
		CreatedAt:  now,
		Hostname:   "host",
		AppVersion: "test",
		Config:     cfg,
		Layout:     testLayout("/tmp/data"),
	})

	if man.SchemaVersion != SchemaVersion {
		t.Fatalf("unexpected schema version: %d", man.SchemaVersion)
	}
	if man.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected CreatedAt in UTC, got %s", man.CreatedAt.Location())
	}
	if man.Settings.PushToTalkKey != cfg.Observer.PushToTalkKey {
		t.Fatalf("settings mismatch for push-to-talk key")
	}
	if man.Status.State != StatePending {
		t.Fatalf("expected pending state, got %s", man.Status.State)
	}
	if man.Paths.Manifest != "session.json" {
		t.Fatalf("unexpected manifest path: %s", man.Paths.Manifest)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	layout := testLayout(dir)
	cfg := config.Default()
	now := time.Now().UTC().Round(time.Second)

	man := New(Options{SessionID: "session", CreatedAt: now, Hostname: "host", AppVersion: "version", Config: cfg, Layout: layout})
	man.Status.State = StateCompleted
	man.Status.Counts = map[string]int{"click": 2, "type": 1}
	man.Status.Controller = []ControllerTimelineEntry{{State: "running", Timestamp: now}}

	if err := Save(man, layout.ManifestPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(layout.ManifestPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.SessionID != man.SessionID {
		t.Fatalf("expected SessionID %s, got %s", man.SessionID, loaded.SessionID)
	}
	if loaded.Status.Counts["click"] != 2 {
		t.Fatalf("expected counts to survive, got %v", loaded.Status.Counts)
	}
	if len(loaded.Status.Controller) != 1 || !loaded.Status.Controller[0].Timestamp.Equal(now) {
		t.Fatalf("unexpected timeline %+v", loaded.Status.Controller)
	}
}

func TestResolveBundlePath(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 12, 9, 30, 0, 0, time.UTC)

	existing := filepath.Join(dir, "observer_20240512_093000.tar.gz")
	if err := os.WriteFile(existing, nil, 0o644); err != nil {
		t.Fatalf("prep existing bundle: %v", err)
	}
	path, err := ResolveBundlePath(dir, now)
	if err != nil {
		t.Fatalf("ResolveBundlePath failed: %v", err)
	}
	if want := filepath.Join(dir, "observer_20240512_093000_01.tar.gz"); path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	if _, err := ResolveBundlePath(" ", now); err == nil {
		t.Fatalf("expected error for empty bundles dir")
	}
}

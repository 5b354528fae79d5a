package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/offlinefirst/action-observer/pkg/config"
	"github.com/offlinefirst/action-observer/pkg/input"
	"github.com/offlinefirst/action-observer/pkg/runmanifest"
	"github.com/offlinefirst/action-observer/pkg/store"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	root := filepath.Join(t.TempDir(), "data")
	cfg.Paths = config.PathsConfig{
		DataDir: root,
		RawDir:  filepath.Join(root, "raw"),
		LogFile: filepath.Join(root, "observer_log.jsonl"),
	}
	cfg.Observer.PollIntervalMS = 20
	cfg.Observer.PollTimeoutMS = 20
	cfg.Observer.DebounceMS = 50
	return cfg
}

// withShortDemo replaces the synthetic script with a click, "hi" and a short
// push-to-talk cycle.
func withShortDemo(t *testing.T) {
	t.Helper()
	orig := demoSteps
	demoSteps = func(ptt input.Key) []input.Step {
		steps := []input.Step{input.ClickAt(10*time.Millisecond, "left", 100, 200)}
		steps = append(steps, input.TypeText(10*time.Millisecond, 5*time.Millisecond, "hi")...)
		steps = append(steps,
			input.PressKey(10*time.Millisecond, ptt),
			input.ReleaseKey(300*time.Millisecond, ptt),
		)
		return steps
	}
	t.Cleanup(func() { demoSteps = orig })
}

func TestRunCommandPlanOnly(t *testing.T) {
	ctx := &AppContext{Config: testConfig(t), Logger: newTestLogger()}

	var stdout bytes.Buffer
	if err := runObserver(context.Background(), ctx, runOptions{planOnly: true}, &stdout); err != nil {
		t.Fatalf("runObserver returned error: %v", err)
	}
	if !bytes.Contains(stdout.Bytes(), []byte("Resolved configuration")) {
		t.Fatalf("expected plan output, got %q", stdout.String())
	}
	if !bytes.Contains(stdout.Bytes(), []byte("observer.push_to_talk_key: ctrl_r")) {
		t.Fatalf("expected push-to-talk key in plan, got %q", stdout.String())
	}
	if _, err := os.Stat(ctx.Config.Paths.DataDir); !os.IsNotExist(err) {
		t.Fatalf("plan-only must not create the data directory")
	}
}

func TestRunSyntheticSessionRecordsEverything(t *testing.T) {
	withShortDemo(t)
	cfg := testConfig(t)
	app := &AppContext{Config: cfg, Logger: newTestLogger()}

	origHost := hostname
	hostname = func() (string, error) { return "test-host", nil }
	defer func() { hostname = origHost }()

	var stdout bytes.Buffer
	if err := runObserver(context.Background(), app, runOptions{synthetic: true}, &stdout); err != nil {
		t.Fatalf("runObserver returned error: %v", err)
	}

	layout := runmanifest.BuildLayout(cfg.Paths)
	man, err := runmanifest.Load(layout.ManifestPath)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	if man.Status.State != runmanifest.StateCompleted {
		t.Fatalf("expected completed state, got %q", man.Status.State)
	}
	if man.Status.Termination != terminationScript {
		t.Fatalf("expected script termination, got %q", man.Status.Termination)
	}
	if man.Hostname != "test-host" || man.SessionID == "" {
		t.Fatalf("unexpected manifest identity %+v", man)
	}
	if man.Status.StartedAt == nil || man.Status.EndedAt == nil {
		t.Fatalf("expected lifecycle timestamps in manifest")
	}
	if len(man.Status.Controller) == 0 {
		t.Fatalf("expected controller timeline persisted to manifest")
	}
	if len(man.Status.Subsystems) != 3 {
		t.Fatalf("expected three subsystem statuses, got %+v", man.Status.Subsystems)
	}
	for _, sub := range man.Status.Subsystems {
		if sub.State != runmanifest.SubsystemStateReady {
			t.Fatalf("expected synthetic subsystems ready, got %+v", sub)
		}
	}
	want := map[string]int{"click": 1, "type": 1, "audio_command": 1}
	for kind, n := range want {
		if man.Status.Counts[kind] != n {
			t.Fatalf("expected %d %s events, got counts %v", n, kind, man.Status.Counts)
		}
	}

	db, err := store.Open(layout.DBPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer db.Close()
	sessions, err := db.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != man.SessionID || sessions[0].Clicks != 1 || sessions[0].AudioCommands != 1 {
		t.Fatalf("unexpected session history %+v", sessions)
	}

	logData, err := os.ReadFile(layout.LogPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(logData), `"text":"hi"`) {
		t.Fatalf("expected typed text in log, got %s", logData)
	}

	out := stdout.String()
	for _, fragment := range []string{"Starting Observer Service...", "--- Observer stopped ---", "Session " + man.SessionID, "events: click=1 type=1", "Controller timeline"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in output, got %q", fragment, out)
		}
	}
}

func TestRunStopsWhenContextCancelled(t *testing.T) {
	orig := demoSteps
	demoSteps = func(ptt input.Key) []input.Step {
		return []input.Step{input.ClickAt(time.Hour, "left", 1, 1)}
	}
	defer func() { demoSteps = orig }()

	cfg := testConfig(t)
	app := &AppContext{Config: cfg, Logger: newTestLogger()}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	var stdout bytes.Buffer
	if err := runObserver(ctx, app, runOptions{synthetic: true}, &stdout); err != nil {
		t.Fatalf("runObserver returned error: %v", err)
	}
	man, err := runmanifest.Load(runmanifest.BuildLayout(cfg.Paths).ManifestPath)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if man.Status.Termination != terminationCancelled {
		t.Fatalf("expected cancellation termination, got %q", man.Status.Termination)
	}
}

func TestRunStopsAfterDuration(t *testing.T) {
	orig := demoSteps
	demoSteps = func(ptt input.Key) []input.Step {
		return []input.Step{input.ClickAt(time.Hour, "left", 1, 1)}
	}
	defer func() { demoSteps = orig }()

	cfg := testConfig(t)
	app := &AppContext{Config: cfg, Logger: newTestLogger()}
	var stdout bytes.Buffer
	if err := runObserver(context.Background(), app, runOptions{synthetic: true, duration: 50 * time.Millisecond}, &stdout); err != nil {
		t.Fatalf("runObserver returned error: %v", err)
	}
	man, err := runmanifest.Load(runmanifest.BuildLayout(cfg.Paths).ManifestPath)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if man.Status.Termination != terminationDuration {
		t.Fatalf("expected duration termination, got %q", man.Status.Termination)
	}
}

func TestRunManifestFailureStopsSession(t *testing.T) {
	withShortDemo(t)
	cfg := testConfig(t)
	app := &AppContext{Config: cfg, Logger: newTestLogger()}

	boom := errors.New("disk full")
	origSave := manifestSave
	manifestSave = func(runmanifest.Manifest, string) error { return boom }
	defer func() { manifestSave = origSave }()

	var stdout bytes.Buffer
	err := runObserver(context.Background(), app, runOptions{synthetic: true}, &stdout)
	if !errors.Is(err, boom) {
		t.Fatalf("expected manifest error, got %v", err)
	}
	if !strings.Contains(stdout.String(), "--- Observer stopped ---") {
		t.Fatalf("expected observer to shut down, got %q", stdout.String())
	}
}

func TestRunRejectsBadPushToTalkKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Observer.PushToTalkKey = ""
	app := &AppContext{Config: cfg, Logger: newTestLogger()}
	if err := runObserver(context.Background(), app, runOptions{synthetic: true}, io.Discard); err == nil {
		t.Fatalf("expected error for empty push-to-talk key")
	}
}

func TestSelectBackendsNativeUnavailable(t *testing.T) {
	if input.DetectEnvironment().Provider == input.ProviderGoHook {
		t.Skip("native hooks compiled in")
	}
	if _, err := selectBackends(config.BackendNative, input.NamedKey("ctrl_r")); err == nil {
		t.Fatalf("expected error selecting native backends without native build")
	}
	if _, err := selectBackends("quantum", input.NamedKey("ctrl_r")); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	be, err := selectBackends(config.BackendSynthetic, input.NamedKey("ctrl_r"))
	if err != nil {
		t.Fatalf("select synthetic: %v", err)
	}
	if be.source.Name() != input.ProviderSynthetic {
		t.Fatalf("expected scripted source, got %s", be.source.Name())
	}
}

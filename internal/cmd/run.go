package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/offlinefirst/action-observer/internal/buildinfo"
	"github.com/offlinefirst/action-observer/pkg/config"
	"github.com/offlinefirst/action-observer/pkg/events"
	"github.com/offlinefirst/action-observer/pkg/input"
	"github.com/offlinefirst/action-observer/pkg/notify"
	"github.com/offlinefirst/action-observer/pkg/observer"
	"github.com/offlinefirst/action-observer/pkg/runmanifest"
	"github.com/offlinefirst/action-observer/pkg/store"
)

// Termination causes reported by the run command.
const (
	terminationSignal    = "interrupt signal"
	terminationDuration  = "duration elapsed"
	terminationScript    = "script finished"
	terminationCancelled = "context cancelled"
)

type runOptions struct {
	planOnly  bool
	synthetic bool
	duration  time.Duration
}

func (rc *RootCommand) newRunCommand() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a recording session",
		Long: `Starts the observer and records until interrupted (Ctrl+C), until
--duration elapses, or until a synthetic script has been replayed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := rc.ensureAppContext()
			if err != nil {
				return err
			}
			return runObserver(cmd.Context(), app, opts, rc.stdout)
		},
	}
	cmd.Flags().BoolVar(&opts.planOnly, "plan-only", false, "Print the resolved configuration without starting capture")
	cmd.Flags().BoolVar(&opts.synthetic, "synthetic", false, "Record a scripted session with synthetic screen and audio backends")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop automatically after this long (0 records until interrupted)")
	return cmd
}

var (
	timeNow      = time.Now
	hostname     = os.Hostname
	manifestSave = runmanifest.Save
	stopSignals  = []os.Signal{os.Interrupt, syscall.SIGTERM}
)

func runObserver(ctx context.Context, app *AppContext, opts runOptions, stdout io.Writer) error {
	if app == nil {
		return fmt.Errorf("application context unavailable")
	}
	cfg := app.Config
	app.Logger.Info("run command invoked", "plan_only", opts.planOnly, "synthetic", opts.synthetic, "duration", opts.duration, "config_source", cfg.Source)

	if opts.planOnly {
		printRunPlan(app, stdout)
		return nil
	}

	ptt, err := input.ParseKey(cfg.Observer.PushToTalkKey)
	if err != nil {
		return fmt.Errorf("parse push-to-talk key: %w", err)
	}
	mode := cfg.Observer.Backend
	if opts.synthetic {
		mode = config.BackendSynthetic
	}
	be, err := selectBackends(mode, ptt)
	if err != nil {
		return err
	}
	redactor, err := events.NewRedactor(cfg.Privacy.RedactEmails, cfg.Privacy.RedactPatterns)
	if err != nil {
		return fmt.Errorf("compile redaction patterns: %w", err)
	}

	layout := runmanifest.BuildLayout(cfg.Paths)
	ctrl, err := observer.New(observer.Options{
		Layout:       layout,
		Sources:      []input.Source{be.source},
		Screens:      be.screens,
		Audio:        be.audio,
		Logger:       app.Logger,
		Clock:        timeNow,
		PollInterval: cfg.Observer.PollInterval(),
		PollTimeout:  cfg.Observer.PollTimeout(),
		JoinTimeout:  cfg.Observer.JoinTimeout(),
		Debounce:     cfg.Observer.Debounce(),
		PushToTalk:   ptt,
		SampleRate:   cfg.Observer.SampleRate,
		RegionSize:   cfg.Observer.RegionSize,
		ImageFormat:  cfg.Observer.ImageFormat,
		Redactor:     redactor,
		Notifier:     notify.New(notify.Options{Enabled: cfg.Notifications.Enabled}),
	})
	if err != nil {
		return fmt.Errorf("configure observer: %w", err)
	}

	sink := lineSink(stdout)
	if err := ctrl.Start(sink); err != nil {
		return fmt.Errorf("start observer: %w", err)
	}

	host, err := hostname()
	if err != nil {
		host = "unknown"
	}
	manifest := runmanifest.New(runmanifest.Options{
		SessionID:  ctrl.SessionID(),
		CreatedAt:  timeNow(),
		Hostname:   host,
		AppVersion: buildinfo.Version(),
		Config:     cfg,
		Layout:     layout,
	})
	manifest.Settings.Backend = mode
	started := timeNow().UTC()
	manifest.Status.State = runmanifest.StateRunning
	manifest.Status.Summary = "recording in progress"
	manifest.Status.StartedAt = &started
	manifest.Status.Subsystems = subsystemStatuses(mode == config.BackendSynthetic)
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		ctrl.StopWith("manifest write failed")
		ctrl.Wait()
		return fmt.Errorf("write manifest: %w", err)
	}

	reason := waitForStop(ctx, be.source, opts.duration)
	app.Logger.Info("stopping observer", "reason", reason)
	ctrl.StopWith(reason)
	summary := ctrl.Wait()

	startedAt, endedAt := summary.StartedAt, summary.EndedAt
	manifest.Status.StartedAt = &startedAt
	manifest.Status.EndedAt = &endedAt
	manifest.Status.Termination = summary.Termination
	manifest.Status.Counts = countsByName(summary.Counts)
	manifest.Status.JoinTimeouts = summary.JoinTimeouts
	manifest.Status.Controller = summary.Timeline
	manifest.Status.State = runmanifest.StateCompleted
	manifest.Status.Summary = fmt.Sprintf("recorded %d events (%s)", totalEvents(summary.Counts), summary.Termination)
	if err := manifestSave(manifest, layout.ManifestPath); err != nil {
		return fmt.Errorf("finalise manifest: %w", err)
	}

	if err := recordSession(context.WithoutCancel(ctx), layout, summary); err != nil {
		app.Logger.Error("record session history failed", "error", err)
		return fmt.Errorf("record session history: %w", err)
	}

	printRunSummary(stdout, layout, summary)
	return nil
}

// waitForStop blocks until a signal, the duration limit, a finished script or
// ctx ends the session, and names the cause.
func waitForStop(ctx context.Context, src input.Source, limit time.Duration) string {
	sigCtx, stop := signal.NotifyContext(ctx, stopSignals...)
	defer stop()

	var timeout <-chan time.Time
	if limit > 0 {
		timer := time.NewTimer(limit)
		defer timer.Stop()
		timeout = timer.C
	}
	var finished <-chan struct{}
	if s, ok := src.(interface{ Done() <-chan struct{} }); ok {
		finished = s.Done()
	}

	select {
	case <-sigCtx.Done():
		if ctx.Err() != nil {
			return terminationCancelled
		}
		return terminationSignal
	case <-timeout:
		return terminationDuration
	case <-finished:
		return terminationScript
	}
}

func recordSession(ctx context.Context, layout runmanifest.Layout, summary observer.Summary) error {
	db, err := store.Open(layout.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Record(ctx, store.Session{
		ID:              summary.SessionID,
		StartedAt:       summary.StartedAt,
		EndedAt:         summary.EndedAt,
		Termination:     summary.Termination,
		Clicks:          summary.Counts[events.KindClick],
		Typing:          summary.Counts[events.KindType],
		KeyPresses:      summary.Counts[events.KindKeyPress],
		AudioCommands:   summary.Counts[events.KindAudioCommand],
		FailedWrites:    summary.FailedWrites,
		CaptureFailures: summary.CaptureFailures,
		JoinTimeouts:    summary.JoinTimeouts,
		LogPath:         layout.LogPath,
	})
}

// lineSink serialises output lines from the controller's goroutines.
func lineSink(w io.Writer) func(string) {
	var mu sync.Mutex
	return func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(w, line)
	}
}

func countsByName(counts map[events.Kind]int) map[string]int {
	out := make(map[string]int, len(counts))
	for kind, n := range counts {
		out[string(kind)] = n
	}
	return out
}

func totalEvents(counts map[events.Kind]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

func printRunSummary(stdout io.Writer, layout runmanifest.Layout, summary observer.Summary) {
	fmt.Fprintf(stdout, "Session %s\n", summary.SessionID)
	fmt.Fprintf(stdout, "  recorded: %s (%s)\n", summary.EndedAt.Sub(summary.StartedAt).Round(time.Millisecond), summary.Termination)

	kinds := []events.Kind{events.KindClick, events.KindType, events.KindKeyPress, events.KindAudioCommand}
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%s", kind, humanize.Comma(int64(summary.Counts[kind]))))
	}
	fmt.Fprintf(stdout, "  events: %s\n", strings.Join(parts, " "))
	if summary.FailedWrites > 0 || summary.CaptureFailures > 0 {
		fmt.Fprintf(stdout, "  failures: %d log writes, %d captures\n", summary.FailedWrites, summary.CaptureFailures)
	}

	if info, err := os.Stat(layout.LogPath); err == nil {
		fmt.Fprintf(stdout, "  log: %s (%s)\n", layout.LogPath, humanize.Bytes(uint64(info.Size())))
	}
	files, size := dirUsage(layout.RawDir)
	fmt.Fprintf(stdout, "  raw media: %s (%d files, %s)\n", layout.RawDir, files, humanize.Bytes(size))
	fmt.Fprintf(stdout, "  manifest: %s\n", layout.ManifestPath)

	if len(summary.JoinTimeouts) > 0 {
		sorted := append([]string(nil), summary.JoinTimeouts...)
		sort.Strings(sorted)
		fmt.Fprintf(stdout, "  join timeouts: %s\n", strings.Join(sorted, ", "))
	}
	if len(summary.Timeline) > 0 {
		fmt.Fprintf(stdout, "  Controller timeline:\n")
		for _, entry := range summary.Timeline {
			fmt.Fprintf(stdout, "    - %s -> %s", entry.Timestamp.Format(time.RFC3339), entry.State)
			if entry.Reason != "" {
				fmt.Fprintf(stdout, " (%s)", entry.Reason)
			}
			fmt.Fprintln(stdout)
		}
	}
}

func dirUsage(dir string) (int, uint64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	var files int
	var size uint64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		files++
		size += uint64(info.Size())
	}
	return files, size
}

func printRunPlan(ctx *AppContext, stdout io.Writer) {
	c := ctx.Config
	fmt.Fprintf(stdout, "Resolved configuration (source: %s)\n", c.Source)
	fmt.Fprintf(stdout, "  paths.data_dir: %s\n", c.Paths.DataDir)
	fmt.Fprintf(stdout, "  paths.raw_dir: %s\n", c.Paths.RawDir)
	fmt.Fprintf(stdout, "  paths.log_file: %s\n", c.Paths.LogFile)
	fmt.Fprintf(stdout, "  observer.debounce_ms: %d\n", c.Observer.DebounceMS)
	fmt.Fprintf(stdout, "  observer.poll_interval_ms: %d\n", c.Observer.PollIntervalMS)
	fmt.Fprintf(stdout, "  observer.poll_timeout_ms: %d\n", c.Observer.PollTimeoutMS)
	fmt.Fprintf(stdout, "  observer.join_timeout_ms: %d\n", c.Observer.JoinTimeoutMS)
	fmt.Fprintf(stdout, "  observer.push_to_talk_key: %s\n", c.Observer.PushToTalkKey)
	fmt.Fprintf(stdout, "  observer.region_size: %d\n", c.Observer.RegionSize)
	fmt.Fprintf(stdout, "  observer.image_format: %s\n", c.Observer.ImageFormat)
	fmt.Fprintf(stdout, "  observer.sample_rate: %d\n", c.Observer.SampleRate)
	fmt.Fprintf(stdout, "  observer.backend: %s\n", c.Observer.Backend)
	fmt.Fprintf(stdout, "  privacy.redact_emails: %t\n", c.Privacy.RedactEmails)
	fmt.Fprintf(stdout, "  notifications.enabled: %t\n", c.Notifications.Enabled)
	fmt.Fprintf(stdout, "  logging.level: %s\n", c.Logging.Level)
	fmt.Fprintf(stdout, "  logging.format: %s\n", c.Logging.Format)
}

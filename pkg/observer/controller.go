// Package observer wires input sources, the screenshot worker, the key
// debouncer, the push-to-talk session and the log writer into one recording
// session with an ordered, bounded shutdown.
package observer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/offlinefirst/action-observer/pkg/audio"
	"github.com/offlinefirst/action-observer/pkg/events"
	"github.com/offlinefirst/action-observer/pkg/input"
	"github.com/offlinefirst/action-observer/pkg/keybuffer"
	"github.com/offlinefirst/action-observer/pkg/logwriter"
	"github.com/offlinefirst/action-observer/pkg/queue"
	"github.com/offlinefirst/action-observer/pkg/runmanifest"
	"github.com/offlinefirst/action-observer/pkg/screenshots"
)

// ErrRunning is returned by Start while a session is active.
var ErrRunning = errors.New("observer already running")

// Defaults applied when Options leave a duration unset.
const (
	DefaultPollInterval = time.Second
	DefaultJoinTimeout  = 3 * time.Second
)

// Termination causes recorded in the summary.
const (
	TerminationStopRequested = "stop requested"
	TerminationStartFailed   = "start failed"
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// Notifier surfaces session milestones outside the terminal.
type Notifier interface {
	Notify(title, message string) error
}

// Options configure a Controller.
type Options struct {
	Layout  runmanifest.Layout
	Sources []input.Source
	Screens screenshots.Provider
	Audio   audio.Backend
	Logger  *slog.Logger
	Clock   func() time.Time
	// Scheduler drives the debounce timer; nil uses wall-clock timers.
	Scheduler keybuffer.Scheduler

	PollInterval time.Duration
	PollTimeout  time.Duration
	JoinTimeout  time.Duration
	Debounce     time.Duration

	PushToTalk  input.Key
	SampleRate  int
	RegionSize  int
	ImageFormat string
	Redactor    events.Redactor
	Notifier    Notifier
}

// Summary reports how a session went.
type Summary struct {
	SessionID       string
	StartedAt       time.Time
	EndedAt         time.Time
	Termination     string
	Counts          map[events.Kind]int
	FailedWrites    int
	CaptureFailures int
	JoinTimeouts    []string
	Timeline        []runmanifest.ControllerTimelineEntry
}

// Controller owns the stop flag, both queues and every worker of a session.
// Stop may be called from any goroutine.
type Controller struct {
	opts Options

	stop atomic.Bool

	mu         sync.Mutex
	state      State
	stopReason string
	timeline   []runmanifest.ControllerTimelineEntry
	done       chan struct{}
	summary    Summary
	session    string
	sink       func(string)
}

// session holds the per-run plumbing created by Start.
type session struct {
	id        string
	startedAt time.Time
	output    func(string)
	logger    *slog.Logger

	screenQ   *queue.Queue[screenshots.Request]
	logQ      *queue.Queue[events.Event]
	writer    *logwriter.Writer
	shots     *screenshots.Worker
	debouncer *keybuffer.Debouncer
	audio     *audio.Session

	cancel     context.CancelFunc
	writerDone chan struct{}
	shotsDone  chan struct{}

	// emitMu orders hand-offs to the log queue against the final drain.
	emitMu sync.Mutex
	closed bool
}

// emit hands an event to the log writer. Events arriving after the final
// drain are reported rather than silently dropped.
func (s *session) emit(e events.Event) {
	s.emitMu.Lock()
	if !s.closed {
		s.logQ.Put(e)
		s.emitMu.Unlock()
		return
	}
	s.emitMu.Unlock()
	s.output(fmt.Sprintf("Event lost after shutdown: %s at %d", e.Kind(), e.Time()))
	s.logger.Warn("event lost after shutdown", slog.String("kind", string(e.Kind())), slog.Int64("timestamp", e.Time()))
}

// New validates options and returns an idle controller.
func New(opts Options) (*Controller, error) {
	if len(opts.Sources) == 0 {
		return nil, errors.New("at least one input source is required")
	}
	for i, src := range opts.Sources {
		if src == nil {
			return nil, fmt.Errorf("input source %d is nil", i)
		}
	}
	if opts.Screens == nil {
		return nil, errors.New("screen capture provider is required")
	}
	if opts.Audio == nil {
		return nil, audio.ErrNoBackend
	}
	if opts.Layout.RawDir == "" || opts.Layout.LogPath == "" {
		return nil, errors.New("layout must name the raw media directory and log file")
	}
	if opts.PushToTalk == (input.Key{}) {
		return nil, errors.New("push-to-talk key is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = logwriter.DefaultPollTimeout
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	if opts.Debounce <= 0 {
		opts.Debounce = keybuffer.DefaultWindow
	}
	if _, err := screenshots.NormalizeFormat(opts.ImageFormat); err != nil {
		return nil, err
	}
	return &Controller{opts: opts, state: StateIdle}, nil
}

// State reports the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the identifier of the current or last session.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Stop requests shutdown. It only sets the stop flag; the supervising loop
// notices it on its next poll.
func (c *Controller) Stop() {
	c.StopWith(TerminationStopRequested)
}

// StopWith requests shutdown and records reason as the termination cause. The
// first reason wins.
func (c *Controller) StopWith(reason string) {
	c.mu.Lock()
	first := c.stopReason == "" && c.state == StateRunning
	if c.stopReason == "" {
		c.stopReason = reason
	}
	sink := c.sink
	c.mu.Unlock()
	if first && sink != nil {
		sink("Stop signal received. Initiating observer shutdown...")
	}
	c.stop.Store(true)
}

// Run starts a session and blocks until it has shut down.
func (c *Controller) Run(sink func(string)) (Summary, error) {
	if err := c.Start(sink); err != nil {
		return Summary{}, err
	}
	return c.Wait(), nil
}

// Wait blocks until the active session has shut down and returns its summary.
// It returns the previous summary, or a zero Summary, when nothing is running.
func (c *Controller) Wait() Summary {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return Summary{}
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Start prepares directories, launches the workers and sources, and returns
// while the session runs in the background. A failure to create the data
// directories is returned and nothing is started.
func (c *Controller) Start(sink func(string)) error {
	if sink == nil {
		sink = func(string) {}
	}

	c.mu.Lock()
	if c.state == StateRunning || c.state == StateStopping {
		c.mu.Unlock()
		return ErrRunning
	}
	c.state = StateRunning
	c.stopReason = ""
	c.timeline = nil
	c.done = make(chan struct{})
	c.sink = sink
	c.stop.Store(false)
	c.mu.Unlock()

	s, err := c.prepare(sink)
	if err != nil {
		c.mu.Lock()
		c.state = StateIdle
		c.summary = Summary{Termination: TerminationStartFailed, Timeline: c.timeline}
		close(c.done)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.session = s.id
	c.mu.Unlock()
	c.record(StateRunning, "sources started")

	sink("--- Observer is now running ---")
	c.notify("Observer", "Recording session started")
	c.opts.Logger.Info("observer running", slog.String("session", s.id), slog.Int("sources", len(c.opts.Sources)))

	go c.supervise(s)
	return nil
}

func (c *Controller) prepare(sink func(string)) (*session, error) {
	o := c.opts
	sink("Starting Observer Service...")
	sink(fmt.Sprintf(" - Log file: %s", o.Layout.LogPath))
	sink(fmt.Sprintf(" - Push-to-Talk key: %s", o.PushToTalk))

	if err := runmanifest.EnsureFilesystem(o.Layout); err != nil {
		return nil, fmt.Errorf("prepare data directories: %w", err)
	}

	s := &session{
		id:        uuid.NewString(),
		startedAt: o.Clock().UTC(),
		output:    sink,
		logger:    o.Logger,
		screenQ:   queue.New[screenshots.Request](),
		logQ:      queue.New[events.Event](),
	}

	var err error
	s.writer, err = logwriter.Open(o.Layout.LogPath, logwriter.Options{
		Queue:       s.logQ,
		Output:      sink,
		Logger:      o.Logger,
		Redactor:    o.Redactor,
		PollTimeout: o.PollTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	s.debouncer, err = keybuffer.New(keybuffer.Options{
		Window:    o.Debounce,
		Clock:     o.Clock,
		Scheduler: o.Scheduler,
		Emit:      s.emit,
	})
	if err != nil {
		_ = s.writer.Close()
		return nil, fmt.Errorf("initialise key buffer: %w", err)
	}

	s.shots, err = screenshots.NewWorker(screenshots.Options{
		Queue:       s.screenQ,
		Emit:        s.emit,
		Provider:    o.Screens,
		Dir:         o.Layout.RawDir,
		Format:      o.ImageFormat,
		RegionSize:  o.RegionSize,
		Output:      sink,
		Logger:      o.Logger,
		PollTimeout: o.PollTimeout,
	})
	if err != nil {
		_ = s.writer.Close()
		return nil, fmt.Errorf("initialise screenshot worker: %w", err)
	}

	s.audio, err = audio.NewSession(audio.Options{
		Backend:    o.Audio,
		Dir:        o.Layout.RawDir,
		SampleRate: o.SampleRate,
		Emit:       s.emit,
		Flush:      s.debouncer.Flush,
		Output:     sink,
		Notify:     func(title, message string) { c.notify(title, message) },
		Logger:     o.Logger,
		Clock:      o.Clock,
	})
	if err != nil {
		_ = s.writer.Close()
		return nil, fmt.Errorf("initialise audio session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.writerDone = make(chan struct{})
	s.shotsDone = make(chan struct{})
	go func() {
		defer close(s.writerDone)
		s.writer.Run(ctx)
	}()
	go func() {
		defer close(s.shotsDone)
		s.shots.Run(ctx)
	}()
	c.record(StateRunning, "workers started")

	for i, src := range o.Sources {
		c.attach(s, src)
		if err := src.Start(); err != nil {
			for _, started := range o.Sources[:i] {
				_ = started.Stop()
			}
			s.screenQ.PutSentinel()
			s.logQ.PutSentinel()
			c.join(s.shotsDone, "screenshot worker", sink)
			c.join(s.writerDone, "log writer", sink)
			cancel()
			_ = s.writer.Close()
			return nil, fmt.Errorf("start %s input source: %w", src.Name(), err)
		}
	}
	return s, nil
}

// attach registers the pipeline callbacks. Each callback does a single
// non-blocking hand-off.
func (c *Controller) attach(s *session, src input.Source) {
	ptt := c.opts.PushToTalk
	clock := c.opts.Clock
	src.OnClick(func(click input.Click) {
		s.screenQ.Put(screenshots.Request{
			Timestamp: clock().Unix(),
			Button:    click.Button,
			X:         click.X,
			Y:         click.Y,
		})
	})
	src.OnKeyPress(func(key input.Key) {
		if key.Matches(ptt) {
			s.audio.Press()
			return
		}
		s.debouncer.Press(key)
	})
	src.OnKeyRelease(func(key input.Key) {
		if key.Matches(ptt) {
			s.audio.Release()
		}
	})
}

func (c *Controller) supervise(s *session) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for !c.stop.Load() {
		<-ticker.C
	}
	c.shutdown(s)
}

func (c *Controller) shutdown(s *session) {
	c.mu.Lock()
	reason := c.stopReason
	c.mu.Unlock()
	if reason == "" {
		reason = TerminationStopRequested
	}
	sink := s.output
	sink("Observer main loop received stop signal.")
	c.setState(StateStopping)
	c.record(StateStopping, reason)

	var timeouts []string

	for _, src := range c.opts.Sources {
		if err := src.Stop(); err != nil {
			sink(fmt.Sprintf("Error stopping %s input source: %v", src.Name(), err))
			c.opts.Logger.Warn("stop input source", slog.String("source", src.Name()), slog.String("error", err.Error()))
		}
	}
	s.audio.Abort()
	if !s.audio.Wait(c.opts.JoinTimeout) {
		timeouts = append(timeouts, "audio session")
		sink("Audio session did not finish in time.")
	}
	c.record(StateStopping, "sources stopped")

	s.screenQ.PutSentinel()
	s.logQ.PutSentinel()

	sink("Waiting for observer worker threads...")
	if !c.join(s.shotsDone, "screenshot worker", sink) {
		timeouts = append(timeouts, "screenshot worker")
	}
	if !c.join(s.writerDone, "log writer", sink) {
		timeouts = append(timeouts, "log writer")
	}
	s.cancel()
	c.record(StateStopping, "workers joined")

	sink("Flushing final key buffer...")
	s.debouncer.Flush()
	s.emitMu.Lock()
	s.closed = true
	s.emitMu.Unlock()
	if n := s.writer.Drain(); n > 0 {
		c.opts.Logger.Debug("drained trailing events", slog.Int("count", n))
	}
	if err := s.writer.Close(); err != nil {
		sink(fmt.Sprintf("Error closing event log: %v", err))
		c.opts.Logger.Warn("close event log", slog.String("error", err.Error()))
	}

	ended := c.opts.Clock().UTC()
	c.record(StateStopped, reason)

	c.mu.Lock()
	c.summary = Summary{
		SessionID:       s.id,
		StartedAt:       s.startedAt,
		EndedAt:         ended,
		Termination:     reason,
		Counts:          s.writer.Counts(),
		FailedWrites:    s.writer.Failed(),
		CaptureFailures: s.shots.Failures(),
		JoinTimeouts:    timeouts,
		Timeline:        append([]runmanifest.ControllerTimelineEntry(nil), c.timeline...),
	}
	c.state = StateStopped
	done := c.done
	c.mu.Unlock()

	c.opts.Logger.Info("observer stopped",
		slog.String("session", s.id),
		slog.String("termination", reason),
		slog.Int("join_timeouts", len(timeouts)),
	)
	sink("--- Observer stopped ---")
	c.notify("Observer", "Recording session stopped")
	close(done)
}

// join waits for done up to the join timeout and reports whether it closed.
func (c *Controller) join(done <-chan struct{}, name string, sink func(string)) bool {
	timer := time.NewTimer(c.opts.JoinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		sink(fmt.Sprintf("Warning: %s did not stop within %s.", name, c.opts.JoinTimeout))
		c.opts.Logger.Warn("worker join timed out", slog.String("worker", name), slog.Duration("timeout", c.opts.JoinTimeout))
		return false
	}
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) record(state State, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeline = append(c.timeline, runmanifest.ControllerTimelineEntry{
		State:     string(state),
		Reason:    reason,
		Timestamp: c.opts.Clock().UTC(),
	})
}

func (c *Controller) notify(title, message string) {
	if c.opts.Notifier == nil {
		return
	}
	if err := c.opts.Notifier.Notify(title, message); err != nil {
		c.opts.Logger.Debug("notification failed", slog.String("error", err.Error()))
	}
}

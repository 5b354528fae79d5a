// Package audio records push-to-talk voice commands. A press opens an input
// stream, the matching release closes it, and the captured samples are saved
// as a WAV file announced by one audio command event.
package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/offlinefirst/action-observer/pkg/events"
)

// DefaultSampleRate matches what speech recognisers expect.
const DefaultSampleRate = 16000

// ErrNoBackend is returned when a session is built without an audio backend.
var ErrNoBackend = errors.New("audio backend is required")

// Backend opens microphone input streams.
type Backend interface {
	Name() string
	// Open prepares a mono stream delivering float32 samples in [-1, 1] to
	// onFrames. onFrames may be called from a backend-owned goroutine and must
	// not retain the slice.
	Open(sampleRate int, onFrames func([]float32)) (Stream, error)
}

// Stream is an open input stream.
type Stream interface {
	Start() error
	// Close stops delivery; no onFrames call happens after it returns.
	Close() error
}

// State is the push-to-talk state.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Options configure a Session.
type Options struct {
	Backend    Backend
	Dir        string
	SampleRate int
	Emit       func(events.Event)
	// Flush runs before a recording starts so pending typed text is logged
	// ahead of the voice command.
	Flush  func()
	Output func(string)
	Notify func(title, message string)
	Logger *slog.Logger
	Clock  func() time.Time
}

// Session is the push-to-talk state machine. Press and Release are called
// from the key callback; Abort and Wait from the controller at shutdown.
type Session struct {
	backend    Backend
	dir        string
	sampleRate int
	emit       func(events.Event)
	flush      func()
	output     func(string)
	notify     func(string, string)
	logger     *slog.Logger
	clock      func() time.Time

	mu      sync.Mutex
	current *recording
	saved   int
	wg      sync.WaitGroup
}

type recording struct {
	stop chan struct{}
}

// NewSession validates options and returns an idle session.
func NewSession(opts Options) (*Session, error) {
	if opts.Backend == nil {
		return nil, ErrNoBackend
	}
	if opts.Emit == nil {
		return nil, errors.New("emit function is required")
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.SampleRate == 0 {
		opts.SampleRate = DefaultSampleRate
	}
	if opts.SampleRate < 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if opts.Flush == nil {
		opts.Flush = func() {}
	}
	if opts.Output == nil {
		opts.Output = func(string) {}
	}
	if opts.Notify == nil {
		opts.Notify = func(string, string) {}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Session{
		backend:    opts.Backend,
		dir:        opts.Dir,
		sampleRate: opts.SampleRate,
		emit:       opts.Emit,
		flush:      opts.Flush,
		output:     opts.Output,
		notify:     opts.Notify,
		logger:     opts.Logger,
		clock:      opts.Clock,
	}, nil
}

// State reports whether a recording is in progress.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return Recording
	}
	return Idle
}

// Saved returns the number of audio commands emitted.
func (s *Session) Saved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Press starts a recording. It is a no-op while already recording.
func (s *Session) Press() {
	s.mu.Lock()
	if s.current != nil {
		s.mu.Unlock()
		return
	}
	rec := &recording{stop: make(chan struct{})}
	s.current = rec
	s.wg.Add(1)
	s.mu.Unlock()

	s.flush()
	go s.record(rec)
}

// Release ends the active recording, if any.
func (s *Session) Release() {
	if s.end() {
		s.output("...recording stopped.")
	}
}

// Abort ends the active recording during shutdown. Captured audio is still
// saved.
func (s *Session) Abort() {
	if s.end() {
		s.output("Recording interrupted by shutdown.")
	}
}

func (s *Session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	close(s.current.stop)
	s.current = nil
	return true
}

// Wait blocks until every recording goroutine has finished or timeout
// elapses. It reports whether all recordings finished.
func (s *Session) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Session) record(rec *recording) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.fail(rec, "Unexpected error during audio recording", fmt.Errorf("%v", r))
		}
	}()

	s.output("Recording audio...")
	s.notify("Observer", "Recording started")

	var (
		framesMu sync.Mutex
		frames   []float32
	)
	stream, err := s.backend.Open(s.sampleRate, func(buf []float32) {
		framesMu.Lock()
		frames = append(frames, buf...)
		framesMu.Unlock()
	})
	if err != nil {
		s.fail(rec, "Error opening audio device", err)
		return
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		s.fail(rec, "Error starting audio stream", err)
		return
	}

	<-rec.stop

	if err := stream.Close(); err != nil {
		s.output(fmt.Sprintf("Error closing audio stream: %v", err))
		s.logger.Warn("close audio stream", slog.String("error", err.Error()))
	}

	framesMu.Lock()
	samples := frames
	framesMu.Unlock()
	s.save(samples)
}

func (s *Session) save(samples []float32) {
	if len(samples) == 0 {
		s.output("No audio captured.")
		return
	}
	ts := s.clock().Unix()
	path := filepath.Join(s.dir, fmt.Sprintf("%d_audio.wav", ts))
	if err := WriteWAV(path, samples, s.sampleRate); err != nil {
		_ = os.Remove(path)
		s.output(fmt.Sprintf("Error saving audio file %s: %v", path, err))
		s.logger.Warn("save audio", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	duration := Duration(len(samples), s.sampleRate)
	s.emit(events.AudioCommand{Timestamp: ts, AudioPath: path, Duration: duration})

	s.mu.Lock()
	s.saved++
	s.mu.Unlock()

	s.output(fmt.Sprintf("Saved audio to %s", path))
	s.notify("Observer", "Recording finished")
	s.logger.Info("audio command saved", slog.String("path", path), slog.Float64("duration", duration))
}

// fail reports err and returns the session to Idle if rec is still active.
func (s *Session) fail(rec *recording, message string, err error) {
	s.mu.Lock()
	if s.current == rec {
		s.current = nil
	}
	s.mu.Unlock()
	s.output(fmt.Sprintf("%s: %v", message, err))
	s.logger.Warn(strings.ToLower(message), slog.String("backend", s.backend.Name()), slog.String("error", err.Error()))
}

// Duration returns samples/sampleRate seconds rounded to two decimals.
func Duration(samples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return math.Round(float64(samples)/float64(sampleRate)*100) / 100
}

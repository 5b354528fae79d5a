package audio

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"github.com/offlinefirst/action-observer/pkg/events"
)

// fakeBackend delivers a fixed number of samples on Start.
type fakeBackend struct {
	mu       sync.Mutex
	samples  int
	openErr  error
	panicMsg string
	opened   int
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(rate int, onFrames func([]float32)) (Stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.panicMsg != "" {
		panic(b.panicMsg)
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened++
	return &fakeStream{samples: b.samples, onFrames: onFrames}, nil
}

func (b *fakeBackend) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

type fakeStream struct {
	samples  int
	onFrames func([]float32)
}

func (s *fakeStream) Start() error {
	if s.samples > 0 {
		s.onFrames(make([]float32, s.samples))
	}
	return nil
}

func (s *fakeStream) Close() error { return nil }

type collector struct {
	mu     sync.Mutex
	events []events.Event
	lines  []string
}

func (c *collector) emit(e events.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) output(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func newSession(t *testing.T, backend Backend, out *collector, flush func()) *Session {
	t.Helper()
	s, err := NewSession(Options{
		Backend:    backend,
		Dir:        t.TempDir(),
		SampleRate: 16000,
		Emit:       out.emit,
		Flush:      flush,
		Output:     out.output,
		Clock:      func() time.Time { return time.Unix(1700000003, 0) },
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func TestPressReleaseEmitsOneAudioCommand(t *testing.T) {
	out := &collector{}
	flushed := 0
	s := newSession(t, &fakeBackend{samples: 20000}, out, func() { flushed++ })

	s.Press()
	if s.State() != Recording {
		t.Fatalf("expected recording state")
	}
	s.Release()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}

	if flushed != 1 {
		t.Fatalf("expected key buffer flush on press, got %d", flushed)
	}
	if out.count() != 1 {
		t.Fatalf("expected one event, got %d", out.count())
	}
	cmd, ok := out.events[0].(events.AudioCommand)
	if !ok {
		t.Fatalf("unexpected event %T", out.events[0])
	}
	if cmd.Duration != 1.25 {
		t.Fatalf("expected duration 1.25, got %v", cmd.Duration)
	}
	if cmd.Timestamp != 1700000003 {
		t.Fatalf("unexpected timestamp %d", cmd.Timestamp)
	}

	f, err := os.Open(cmd.AudioPath)
	if err != nil {
		t.Fatalf("open wav: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("expected a valid wav file")
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected wav format: rate=%d chans=%d depth=%d", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
}

func TestPressWhileRecordingIsNoOp(t *testing.T) {
	out := &collector{}
	backend := &fakeBackend{samples: 1600}
	s := newSession(t, backend, out, nil)

	s.Press()
	s.Press()
	s.Press()
	s.Release()
	s.Release()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}
	if backend.openCount() != 1 {
		t.Fatalf("expected a single stream, got %d", backend.openCount())
	}
	if out.count() != 1 {
		t.Fatalf("expected one audio command, got %d", out.count())
	}
	if s.Saved() != 1 {
		t.Fatalf("expected one saved recording, got %d", s.Saved())
	}
}

func TestNoFramesEmitsNothing(t *testing.T) {
	out := &collector{}
	s := newSession(t, &fakeBackend{}, out, nil)
	s.Press()
	s.Release()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}
	if out.count() != 0 {
		t.Fatalf("expected no events, got %d", out.count())
	}
}

func TestDeviceErrorReturnsToIdle(t *testing.T) {
	out := &collector{}
	s := newSession(t, &fakeBackend{openErr: errors.New("invalid device")}, out, nil)
	s.Press()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}
	if s.State() != Idle {
		t.Fatalf("expected idle after device error")
	}
	if out.count() != 0 {
		t.Fatalf("expected no events, got %d", out.count())
	}
	found := false
	for _, line := range out.lines {
		if line == "Error opening audio device: invalid device" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected device error in output, got %v", out.lines)
	}
	// A late release after the failure must not panic.
	s.Release()
}

func TestBackendPanicIsContained(t *testing.T) {
	out := &collector{}
	s := newSession(t, &fakeBackend{panicMsg: "driver crashed"}, out, nil)
	s.Press()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}
	if s.State() != Idle {
		t.Fatalf("expected idle after panic")
	}
	if out.count() != 0 {
		t.Fatalf("expected no events after panic")
	}
}

func TestAbortSavesCapturedAudio(t *testing.T) {
	out := &collector{}
	s := newSession(t, &fakeBackend{samples: 800}, out, nil)
	s.Press()
	s.Abort()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}
	if out.count() != 1 {
		t.Fatalf("expected aborted recording to be saved")
	}
}

func TestToneBackendDeliversFrames(t *testing.T) {
	out := &collector{}
	s := newSession(t, Tone{}, out, nil)
	s.Press()
	time.Sleep(100 * time.Millisecond)
	s.Release()
	if !s.Wait(2 * time.Second) {
		t.Fatalf("recording did not finish")
	}
	if out.count() != 1 {
		t.Fatalf("expected one audio command from tone backend, got %d", out.count())
	}
}

func TestDuration(t *testing.T) {
	cases := []struct {
		samples, rate int
		want          float64
	}{
		{16000, 16000, 1},
		{20000, 16000, 1.25},
		{1234, 16000, 0.08},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := Duration(tc.samples, tc.rate); got != tc.want {
			t.Fatalf("Duration(%d, %d) = %v, want %v", tc.samples, tc.rate, got, tc.want)
		}
	}
}

func TestNewSessionRequiresBackend(t *testing.T) {
	_, err := NewSession(Options{Dir: t.TempDir(), Emit: func(events.Event) {}})
	if !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
}

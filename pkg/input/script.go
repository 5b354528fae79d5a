package input

import (
	"errors"
	"sync"
	"time"
)

// Step is one scripted input event, delivered Delay after the previous step.
type Step struct {
	Delay   time.Duration
	Click   *Click
	Press   *Key
	Release *Key
}

// ClickAt scripts a pointer press.
func ClickAt(delay time.Duration, button string, x, y int) Step {
	return Step{Delay: delay, Click: &Click{Button: button, X: x, Y: y}}
}

// PressKey scripts a key press.
func PressKey(delay time.Duration, key Key) Step {
	return Step{Delay: delay, Press: &key}
}

// ReleaseKey scripts a key release.
func ReleaseKey(delay time.Duration, key Key) Step {
	return Step{Delay: delay, Release: &key}
}

// TypeText scripts one press per rune, the first after delay and the rest
// separated by gap. Spaces are scripted as the named space key.
func TypeText(delay, gap time.Duration, text string) []Step {
	steps := make([]Step, 0, len(text))
	wait := delay
	for _, r := range text {
		key := CharKey(r)
		if r == ' ' {
			key = NamedKey("space")
		}
		steps = append(steps, PressKey(wait, key))
		wait = gap
	}
	return steps
}

// Script replays a fixed sequence of input events. It stands in for real OS
// hooks on platforms without a native backend and in tests.
type Script struct {
	handlers

	steps []Step

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewScript builds a scripted source from steps.
func NewScript(steps ...Step) *Script {
	return &Script{steps: append([]Step(nil), steps...)}
}

// Name identifies the adapter.
func (s *Script) Name() string {
	return ProviderSynthetic
}

// Start begins replaying the script on its own goroutine.
func (s *Script) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("script source already started")
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.replay(s.stop, s.done)
	return nil
}

// Done is closed once every step has been delivered or the source stopped.
func (s *Script) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Script) replay(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for _, step := range s.steps {
		if step.Delay > 0 {
			timer := time.NewTimer(step.Delay)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
		} else {
			select {
			case <-stop:
				return
			default:
			}
		}
		switch {
		case step.Click != nil:
			s.emitClick(*step.Click)
		case step.Press != nil:
			s.emitPress(*step.Press)
		case step.Release != nil:
			s.emitRelease(*step.Release)
		}
	}
}

// Stop halts the replay and waits for the replay goroutine to exit.
func (s *Script) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done
	return nil
}

// DemoScript is the synthetic session used when no native hooks are compiled
// in: a click, a short typed phrase terminated by enter, and a push-to-talk
// cycle on pushToTalk.
func DemoScript(pushToTalk Key) []Step {
	steps := []Step{ClickAt(200*time.Millisecond, "left", 100, 200)}
	steps = append(steps, TypeText(300*time.Millisecond, 120*time.Millisecond, "hello world")...)
	steps = append(steps,
		PressKey(150*time.Millisecond, NamedKey("enter")),
		PressKey(400*time.Millisecond, pushToTalk),
		ReleaseKey(time.Second, pushToTalk),
		ClickAt(300*time.Millisecond, "right", 640, 360),
	)
	return steps
}

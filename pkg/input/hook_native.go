//go:build native

package input

import (
	"errors"
	"fmt"
	"sync"
	"unicode"

	hook "github.com/robotn/gohook"
)

const nativeAvailable = true

// libuiohook virtual key codes for the keys the observer names.
var namedKeycodes = map[uint16]string{
	0x0001: "esc",
	0x000E: "backspace",
	0x000F: "tab",
	0x001C: "enter",
	0x0039: "space",
	0x003A: "caps_lock",
	0x002A: "shift",
	0x0036: "shift_r",
	0x001D: "ctrl_l",
	0x0E1D: "ctrl_r",
	0x0038: "alt_l",
	0x0E38: "alt_r",
	0x0E5B: "cmd",
	0x0E5C: "cmd_r",
	0xE048: "up",
	0xE050: "down",
	0xE04B: "left",
	0xE04D: "right",
	0x0E47: "home",
	0x0E4F: "end",
	0x0E49: "page_up",
	0x0E51: "page_down",
	0x0E52: "insert",
	0x0E53: "delete",
	0x003B: "f1", 0x003C: "f2", 0x003D: "f3", 0x003E: "f4",
	0x003F: "f5", 0x0040: "f6", 0x0041: "f7", 0x0042: "f8",
	0x0043: "f9", 0x0044: "f10", 0x0057: "f11", 0x0058: "f12",
}

var buttonNames = map[uint16]string{
	1: "left",
	2: "right",
	3: "middle",
}

// DefaultSource installs global hooks through libuiohook.
func DefaultSource(Key) (Source, error) {
	return &hookSource{}, nil
}

type hookSource struct {
	handlers

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func (s *hookSource) Name() string {
	return ProviderGoHook
}

func (s *hookSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("input hook already started")
	}
	stream := hook.Start()
	if stream == nil {
		return fmt.Errorf("start input hook: no event stream")
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(stream, s.stop, s.done)
	return nil
}

func (s *hookSource) loop(stream chan hook.Event, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-stream:
			if !ok {
				return
			}
			s.dispatch(ev)
		}
	}
}

func (s *hookSource) dispatch(ev hook.Event) {
	switch ev.Kind {
	case hook.MouseHold:
		s.emitClick(Click{Button: buttonName(ev.Button), X: int(ev.X), Y: int(ev.Y)})
	case hook.KeyDown:
		// Typed events carry the translated character; named keys arrive as
		// KeyHold below.
		if ev.Keychar != ' ' && unicode.IsPrint(ev.Keychar) {
			s.emitPress(CharKey(ev.Keychar))
		}
	case hook.KeyHold:
		if name, ok := namedKeycodes[ev.Keycode]; ok {
			s.emitPress(NamedKey(name))
		}
	case hook.KeyUp:
		if name, ok := namedKeycodes[ev.Keycode]; ok {
			s.emitRelease(NamedKey(name))
			return
		}
		if r := hook.RawcodetoKeychar(ev.Rawcode); r != "" {
			for _, ch := range r {
				s.emitRelease(CharKey(ch))
				break
			}
		}
	}
}

func (s *hookSource) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	hook.End()
	<-done
	return nil
}

func buttonName(button uint16) string {
	if name, ok := buttonNames[button]; ok {
		return name
	}
	return fmt.Sprintf("button%d", button)
}

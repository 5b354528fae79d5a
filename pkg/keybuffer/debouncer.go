// Package keybuffer aggregates raw key presses into typing runs. Printable
// keys accumulate until the idle window elapses or an interrupting key
// arrives; special keys are logged individually after the pending run.
package keybuffer

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/offlinefirst/action-observer/pkg/events"
	"github.com/offlinefirst/action-observer/pkg/input"
)

// DefaultWindow is the idle gap that closes a typing run.
const DefaultWindow = 1500 * time.Millisecond

// Timer is a pending scheduled call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type wallScheduler struct{}

func (wallScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Options configures a Debouncer.
type Options struct {
	// Window defaults to DefaultWindow.
	Window time.Duration
	Clock  func() time.Time
	// Emit receives events while the debouncer lock is held, so consecutive
	// emissions arrive in order. It must not call back into the Debouncer.
	Emit      func(events.Event)
	Scheduler Scheduler
}

// Debouncer is safe for concurrent use by the key callback, the audio session
// and the controller.
type Debouncer struct {
	window    time.Duration
	clock     func() time.Time
	emit      func(events.Event)
	scheduler Scheduler

	mu     sync.Mutex
	buf    strings.Builder
	anchor int64
	timer  Timer
	// gen is bumped whenever the pending timer is replaced or canceled so a
	// callback already in flight can tell it has been superseded.
	gen uint64
}

// New validates opts and constructs a Debouncer.
func New(opts Options) (*Debouncer, error) {
	if opts.Emit == nil {
		return nil, errors.New("emit function is required")
	}
	if opts.Window < 0 {
		return nil, errors.New("window must be positive")
	}
	if opts.Window == 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Scheduler == nil {
		opts.Scheduler = wallScheduler{}
	}
	return &Debouncer{
		window:    opts.Window,
		clock:     opts.Clock,
		emit:      opts.Emit,
		scheduler: opts.Scheduler,
	}, nil
}

// Press feeds one key press into the buffer.
func (d *Debouncer) Press(key input.Key) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case key.Printable():
		if d.buf.Len() == 0 {
			d.anchor = d.clock().Unix()
		}
		d.buf.WriteRune(key.Char)
		d.rearmLocked()
	default:
		// Special and modifier keys end the run and are logged themselves.
		d.flushLocked()
		d.emit(events.KeyPress{Timestamp: d.clock().Unix(), Key: key.Label()})
	}
}

// Flush emits any buffered text as one Typing event and cancels the pending
// timer.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked()
}

// Pending returns the buffered text.
func (d *Debouncer) Pending() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buf.String()
}

func (d *Debouncer) rearmLocked() {
	d.cancelLocked()
	gen := d.gen
	d.timer = d.scheduler.AfterFunc(d.window, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.gen != gen {
			return
		}
		d.flushLocked()
	})
}

func (d *Debouncer) cancelLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) flushLocked() {
	d.cancelLocked()
	if d.buf.Len() == 0 {
		return
	}
	text := d.buf.String()
	d.buf.Reset()
	d.emit(events.Typing{Timestamp: d.anchor, Text: text})
}

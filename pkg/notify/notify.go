// Package notify shows desktop notifications for observer milestones.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// DefaultMinInterval suppresses repeats of the same message.
const DefaultMinInterval = 2 * time.Second

// Options configure a Desktop notifier.
type Options struct {
	Enabled bool
	// AppName prefixes every title.
	AppName     string
	MinInterval time.Duration
	Clock       func() time.Time
}

// Desktop sends notifications through the platform notification service.
// A disabled notifier accepts every call and does nothing.
type Desktop struct {
	opts Options
	send func(title, message, icon string) error

	mu   sync.Mutex
	last map[string]time.Time
}

// New builds a Desktop notifier.
func New(opts Options) *Desktop {
	if opts.AppName == "" {
		opts.AppName = "Observer"
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = DefaultMinInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Desktop{opts: opts, send: beeep.Notify, last: make(map[string]time.Time)}
}

// Enabled reports whether notifications are delivered.
func (d *Desktop) Enabled() bool { return d != nil && d.opts.Enabled }

// Notify delivers one notification. Identical messages inside MinInterval
// are dropped.
func (d *Desktop) Notify(title, message string) error {
	if !d.Enabled() {
		return nil
	}
	key := title + "\x00" + message
	now := d.opts.Clock()

	d.mu.Lock()
	if prev, ok := d.last[key]; ok && now.Sub(prev) < d.opts.MinInterval {
		d.mu.Unlock()
		return nil
	}
	d.last[key] = now
	d.mu.Unlock()

	fullTitle := d.opts.AppName
	if title != "" {
		fullTitle = fmt.Sprintf("%s: %s", d.opts.AppName, title)
	}
	if err := d.send(fullTitle, message, ""); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

package events

import (
	"strings"
)

// Kind identifies an event variant on the wire.
type Kind string

const (
	KindClick        Kind = "click"
	KindType         Kind = "type"
	KindKeyPress     Kind = "key_press"
	KindAudioCommand Kind = "audio_command"
)

// Field is a single variant-specific key/value pair in wire order.
type Field struct {
	Key   string
	Value any
}

// Event is implemented by Click, Typing, KeyPress and AudioCommand only.
type Event interface {
	Kind() Kind
	// Time returns the event timestamp in whole seconds since the Unix epoch.
	Time() int64
	// Fields lists the variant fields, excluding timestamp and kind.
	Fields() []Field

	sealed()
}

// Click records a pointer press together with the screenshots taken for it.
// A nil path means the corresponding capture failed.
type Click struct {
	Timestamp      int64
	Button         string
	X              int
	Y              int
	FullscreenPath *string
	RegionPath     *string
}

func (Click) Kind() Kind    { return KindClick }
func (c Click) Time() int64 { return c.Timestamp }
func (Click) sealed()       {}
func (c Click) Fields() []Field {
	return []Field{
		{Key: "button", Value: c.Button},
		{Key: "x", Value: c.X},
		{Key: "y", Value: c.Y},
		{Key: "fullscreen_img", Value: c.FullscreenPath},
		{Key: "region_img", Value: c.RegionPath},
	}
}

// Typing records one contiguous run of printable input.
type Typing struct {
	Timestamp int64
	Text      string
}

func (Typing) Kind() Kind    { return KindType }
func (t Typing) Time() int64 { return t.Timestamp }
func (Typing) sealed()       {}
func (t Typing) Fields() []Field {
	return []Field{{Key: "text", Value: t.Text}}
}

// KeyPress records a special key such as "[enter]" or " ".
type KeyPress struct {
	Timestamp int64
	Key       string
}

func (KeyPress) Kind() Kind    { return KindKeyPress }
func (k KeyPress) Time() int64 { return k.Timestamp }
func (KeyPress) sealed()       {}
func (k KeyPress) Fields() []Field {
	return []Field{{Key: "key", Value: k.Key}}
}

// AudioCommand records a saved push-to-talk recording. Duration is in seconds.
type AudioCommand struct {
	Timestamp int64
	AudioPath string
	Duration  float64
}

func (AudioCommand) Kind() Kind    { return KindAudioCommand }
func (a AudioCommand) Time() int64 { return a.Timestamp }
func (AudioCommand) sealed()       {}
func (a AudioCommand) Fields() []Field {
	return []Field{
		{Key: "audio_file", Value: a.AudioPath},
		{Key: "duration", Value: a.Duration},
	}
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

// NormalizePath rewrites every backslash separator to a forward slash.
func NormalizePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// NormalizePaths returns a copy of event whose filesystem paths use forward
// slashes regardless of the host platform.
func NormalizePaths(event Event) Event {
	switch e := event.(type) {
	case Click:
		if e.FullscreenPath != nil {
			e.FullscreenPath = StringPtr(NormalizePath(*e.FullscreenPath))
		}
		if e.RegionPath != nil {
			e.RegionPath = StringPtr(NormalizePath(*e.RegionPath))
		}
		return e
	case AudioCommand:
		e.AudioPath = NormalizePath(e.AudioPath)
		return e
	default:
		return event
	}
}

// Package events defines the records the observer persists: clicks, typed
// text runs, special key presses and push-to-talk audio commands. Events are
// plain values; the log writer is the only component that serializes them.
package events

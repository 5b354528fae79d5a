// Package logwriter appends observer events to the durable JSON-lines log.
package logwriter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/offlinefirst/action-observer/pkg/events"
	"github.com/offlinefirst/action-observer/pkg/queue"
)

// DefaultPollTimeout bounds each wait on the log queue.
const DefaultPollTimeout = 500 * time.Millisecond

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("event log closed")

// Options configure a Writer.
type Options struct {
	Queue       *queue.Queue[events.Event]
	Output      func(string)
	Logger      *slog.Logger
	Redactor    events.Redactor
	PollTimeout time.Duration
}

// Writer drains the log queue and appends one line per event.
type Writer struct {
	path        string
	file        *os.File
	queue       *queue.Queue[events.Event]
	output      func(string)
	logger      *slog.Logger
	redactor    events.Redactor
	pollTimeout time.Duration

	mu     sync.Mutex
	counts map[events.Kind]int
	failed int
}

// Open creates the parent directory if needed and opens path for appending.
func Open(path string, opts Options) (*Writer, error) {
	if path == "" {
		return nil, errors.New("log path must not be empty")
	}
	if opts.Queue == nil {
		return nil, errors.New("log queue must be provided")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = func(string) {}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	poll := opts.PollTimeout
	if poll <= 0 {
		poll = DefaultPollTimeout
	}

	return &Writer{
		path:        path,
		file:        file,
		queue:       opts.Queue,
		output:      output,
		logger:      logger,
		redactor:    opts.Redactor,
		pollTimeout: poll,
		counts:      make(map[events.Kind]int),
	}, nil
}

// Path returns the log file location.
func (w *Writer) Path() string {
	return w.path
}

// Run consumes the queue until a sentinel arrives or ctx is canceled. Items
// queued behind the sentinel are written before Run returns.
func (w *Writer) Run(ctx context.Context) {
	defer w.output("Log worker stopping.")
	for {
		if ctx.Err() != nil {
			return
		}
		event, status := w.queue.Get(w.pollTimeout)
		switch status {
		case queue.Empty:
			continue
		case queue.Sentinel:
			w.Drain()
			return
		case queue.Item:
			w.write(event)
		}
	}
}

// Drain writes every event still queued and reports how many were written.
func (w *Writer) Drain() int {
	pending := w.queue.Drain()
	for _, event := range pending {
		w.write(event)
	}
	return len(pending)
}

// Write serializes a single event directly, bypassing the queue.
func (w *Writer) Write(event events.Event) error {
	if event == nil {
		return errors.New("event must not be nil")
	}
	line := Encode(w.redactor.ApplyEvent(events.NormalizePaths(event)))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		w.failed++
		return ErrClosed
	}
	if _, err := w.file.Write(line); err != nil {
		w.failed++
		return fmt.Errorf("append %s event: %w", event.Kind(), err)
	}
	w.counts[event.Kind()]++
	return nil
}

// write appends one queued event and echoes typed text to the output sink.
func (w *Writer) write(event events.Event) {
	if err := w.Write(event); err != nil {
		w.output(fmt.Sprintf("Error logging event: %v", err))
		w.logger.Warn("event log write failed", "error", err)
		return
	}
	if t, ok := event.(events.Typing); ok {
		w.output(fmt.Sprintf("Logged typing: '%s'", w.redactor.ApplyString(t.Text)))
	}
}

// Counts returns a copy of the per-kind totals written so far.
func (w *Writer) Counts() map[events.Kind]int {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[events.Kind]int, len(w.counts))
	for k, v := range w.counts {
		out[k] = v
	}
	return out
}

// Failed reports how many events could not be appended.
func (w *Writer) Failed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

// Close syncs and closes the log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if closeErr != nil {
		return fmt.Errorf("close event log: %w", closeErr)
	}
	if syncErr != nil {
		return fmt.Errorf("sync event log: %w", syncErr)
	}
	return nil
}

// Encode renders event as a single newline-terminated JSON object with a
// fixed field order. A field value that cannot be encoded is replaced by a
// placeholder naming its type so one bad value never loses the event.
func Encode(event events.Event) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	buf.WriteString(fmt.Sprintf("%d", event.Time()))
	buf.WriteString(`,"event":`)
	writeValue(&buf, string(event.Kind()))
	for _, field := range event.Fields() {
		buf.WriteByte(',')
		writeValue(&buf, field.Key)
		buf.WriteByte(':')
		writeValue(&buf, field.Value)
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

func writeValue(buf *bytes.Buffer, value any) {
	data, err := json.MarshalNoEscape(value)
	if err != nil {
		data, _ = json.MarshalNoEscape(Placeholder(value))
	}
	buf.Write(data)
}

// Placeholder describes a value that could not be serialized.
func Placeholder(value any) string {
	return fmt.Sprintf("<unserializable: %T>", value)
}

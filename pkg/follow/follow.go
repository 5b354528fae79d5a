// Package follow prints the event log and, optionally, keeps printing lines
// as the observer appends them.
package follow

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultRescan is how often the file is re-read when no watch event arrives.
const DefaultRescan = 500 * time.Millisecond

// Options configure a Tail call.
type Options struct {
	Path   string
	Out    io.Writer
	Follow bool
	// Rescan bounds the delay between an append and its output when the
	// watcher misses an event.
	Rescan time.Duration
}

// Tail copies complete lines from the log to Out. Without Follow it returns
// after the current end of file; with Follow it keeps going until ctx ends.
// A partial trailing line is held back until its newline arrives.
func Tail(ctx context.Context, opts Options) error {
	if opts.Out == nil {
		return errors.New("output writer is required")
	}
	f, err := os.Open(opts.Path)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	t := &tailer{file: f, out: opts.Out}
	// reopen swaps t.file, so close whichever file is current on return.
	defer func() { t.file.Close() }()
	if err := t.drain(); err != nil {
		return err
	}
	if !opts.Follow {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory so a recreated log is noticed.
	if err := watcher.Add(filepath.Dir(opts.Path)); err != nil {
		return fmt.Errorf("watch log directory: %w", err)
	}

	rescan := opts.Rescan
	if rescan <= 0 {
		rescan = DefaultRescan
	}
	ticker := time.NewTicker(rescan)
	defer ticker.Stop()

	target := filepath.Clean(opts.Path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if err := t.reopen(opts.Path); err != nil {
					return err
				}
			}
			if err := t.drain(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log: %w", err)
		case <-ticker.C:
			if err := t.drain(); err != nil {
				return err
			}
		}
	}
}

type tailer struct {
	file    *os.File
	out     io.Writer
	offset  int64
	partial []byte
}

func (t *tailer) reopen(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopen log: %w", err)
	}
	t.file.Close()
	t.file = f
	t.offset = 0
	t.partial = nil
	return nil
}

// drain emits every complete line between the last offset and EOF.
func (t *tailer) drain() error {
	info, err := t.file.Stat()
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	if info.Size() < t.offset {
		t.offset = 0
		t.partial = nil
	}
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek log: %w", err)
	}
	reader := bufio.NewReader(t.file)
	for {
		chunk, err := reader.ReadBytes('\n')
		t.offset += int64(len(chunk))
		if len(chunk) > 0 {
			t.partial = append(t.partial, chunk...)
			if bytes.HasSuffix(t.partial, []byte{'\n'}) {
				if _, werr := t.out.Write(t.partial); werr != nil {
					return fmt.Errorf("write line: %w", werr)
				}
				t.partial = t.partial[:0]
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read log: %w", err)
		}
	}
}

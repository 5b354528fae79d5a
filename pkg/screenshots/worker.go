// Package screenshots turns queued click coordinates into click events carrying
// a full-screen capture and a small region around the pointer.
package screenshots

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/offlinefirst/action-observer/pkg/events"
	"github.com/offlinefirst/action-observer/pkg/queue"
)

// DefaultPollTimeout bounds each wait on the request queue.
const DefaultPollTimeout = 500 * time.Millisecond

// Request is a click waiting for its captures.
type Request struct {
	Timestamp int64
	Button    string
	X         int
	Y         int
}

// Options configure a Worker.
type Options struct {
	Queue    *queue.Queue[Request]
	Emit     func(events.Event)
	Provider Provider
	Dir      string
	// Format is "png" (default) or "jpeg".
	Format      string
	RegionSize  int
	Output      func(string)
	Logger      *slog.Logger
	PollTimeout time.Duration
}

// Worker is the single consumer of the screenshot queue.
type Worker struct {
	queue       *queue.Queue[Request]
	emit        func(events.Event)
	provider    Provider
	dir         string
	format      string
	regionSize  int
	output      func(string)
	logger      *slog.Logger
	pollTimeout time.Duration

	processed atomic.Int64
	failures  atomic.Int64
}

// NewWorker validates options and returns a worker.
func NewWorker(opts Options) (*Worker, error) {
	if opts.Queue == nil {
		return nil, errors.New("request queue is required")
	}
	if opts.Emit == nil {
		return nil, errors.New("emit function is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("capture provider is required")
	}
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("output directory is required")
	}
	format, err := NormalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.RegionSize == 0 {
		opts.RegionSize = DefaultRegionSize
	}
	if opts.RegionSize < 0 {
		return nil, errors.New("region size must be positive")
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.Output == nil {
		opts.Output = func(string) {}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Worker{
		queue:       opts.Queue,
		emit:        opts.Emit,
		provider:    opts.Provider,
		dir:         opts.Dir,
		format:      format,
		regionSize:  opts.RegionSize,
		output:      opts.Output,
		logger:      opts.Logger,
		pollTimeout: opts.PollTimeout,
	}, nil
}

// NormalizeFormat canonicalises an image format name.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "png":
		return "png", nil
	case "jpeg", "jpg":
		return "jpeg", nil
	default:
		return "", fmt.Errorf("unsupported image format %q", format)
	}
}

// Run processes requests until the sentinel arrives or ctx is canceled.
// Items queued behind the sentinel are left in the queue.
func (w *Worker) Run(ctx context.Context) {
	defer w.output("Screenshot worker stopping.")
	for {
		if ctx.Err() != nil {
			return
		}
		req, status := w.queue.Get(w.pollTimeout)
		switch status {
		case queue.Sentinel:
			return
		case queue.Item:
			w.emit(w.Process(ctx, req))
		}
	}
}

// Process captures both images for req and returns its click event. A failed
// capture leaves the matching path nil.
func (w *Worker) Process(ctx context.Context, req Request) events.Click {
	click := events.Click{
		Timestamp: req.Timestamp,
		Button:    req.Button,
		X:         req.X,
		Y:         req.Y,
	}

	fullPath := w.mediaPath(req.Timestamp, "fullscreen")
	if img, err := w.provider.CaptureFull(ctx); err != nil {
		w.warn("Error capturing full screen", err)
	} else if err := w.save(fullPath, img); err != nil {
		w.warn("Error saving full screen image", err)
	} else {
		click.FullscreenPath = events.StringPtr(fullPath)
	}

	regionPath := w.mediaPath(req.Timestamp, "region")
	if img, err := w.captureRegion(ctx, req.X, req.Y); err != nil {
		w.warn("Error grabbing region", err)
	} else if err := w.save(regionPath, img); err != nil {
		w.warn("Error saving region image", err)
	} else {
		click.RegionPath = events.StringPtr(regionPath)
	}

	w.processed.Add(1)
	w.logger.Debug("click captured",
		slog.Int64("timestamp", req.Timestamp),
		slog.Int("x", req.X),
		slog.Int("y", req.Y),
		slog.Bool("fullscreen", click.FullscreenPath != nil),
		slog.Bool("region", click.RegionPath != nil),
	)
	return click
}

// Processed returns the number of click events produced.
func (w *Worker) Processed() int {
	return int(w.processed.Load())
}

// Failures returns the number of captures that produced a nil path.
func (w *Worker) Failures() int {
	return int(w.failures.Load())
}

func (w *Worker) captureRegion(ctx context.Context, x, y int) (image.Image, error) {
	monitor, err := w.provider.PrimaryMonitor()
	if err != nil {
		return nil, err
	}
	rect := RegionFor(x, y, monitor, w.regionSize)
	img, err := w.provider.CaptureRegion(ctx, rect)
	if err != nil {
		return nil, fmt.Errorf("at %v: %w", rect, err)
	}
	return img, nil
}

func (w *Worker) mediaPath(ts int64, suffix string) string {
	ext := "png"
	if w.format == "jpeg" {
		ext = "jpg"
	}
	return filepath.Join(w.dir, fmt.Sprintf("%d_%s.%s", ts, suffix, ext))
}

func (w *Worker) save(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if w.format == "jpeg" {
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	} else {
		err = png.Encode(f, img)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("encode %s: %w", w.format, err)
	}
	return nil
}

func (w *Worker) warn(message string, err error) {
	w.failures.Add(1)
	w.output(fmt.Sprintf("%s: %v", message, err))
	w.logger.Warn(strings.ToLower(message), slog.String("error", err.Error()))
}

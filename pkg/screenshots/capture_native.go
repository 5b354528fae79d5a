//go:build native

package screenshots

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/offlinefirst/action-observer/pkg/permissions"
)

const nativeAvailable = true

// DefaultProvider captures the real screen.
func DefaultProvider() (Provider, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, ErrNoMonitor
	}
	return nativeProvider{}, nil
}

type nativeProvider struct{}

func (nativeProvider) Name() string {
	return providerNative
}

func (nativeProvider) PrimaryMonitor() (Monitor, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return Monitor{}, ErrNoMonitor
	}
	b := screenshot.GetDisplayBounds(0)
	return Monitor{Left: b.Min.X, Top: b.Min.Y, Width: b.Dx(), Height: b.Dy()}, nil
}

func (p nativeProvider) CaptureFull(ctx context.Context) (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoMonitor
	}
	var all image.Rectangle
	for i := 0; i < n; i++ {
		all = all.Union(screenshot.GetDisplayBounds(i))
	}
	return p.CaptureRegion(ctx, all)
}

func (nativeProvider) CaptureRegion(ctx context.Context, rect image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		if permissions.ProbeScreenRecording(nil).Status == permissions.StatusDenied {
			return nil, newPermissionError(err.Error())
		}
		return nil, fmt.Errorf("capture rect %v: %w", rect, err)
	}
	return img, nil
}

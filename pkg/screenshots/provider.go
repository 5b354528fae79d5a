package screenshots

import (
	"context"
	"image"
)

// DefaultRegionSize is the edge length of the square region saved around a
// click.
const DefaultRegionSize = 100

// Monitor is a display rectangle in virtual-screen coordinates.
type Monitor struct {
	Left   int
	Top    int
	Width  int
	Height int
}

// Bounds returns the monitor as an image rectangle.
func (m Monitor) Bounds() image.Rectangle {
	return image.Rect(m.Left, m.Top, m.Left+m.Width, m.Top+m.Height)
}

// Provider grabs pixels from the screen.
type Provider interface {
	Name() string
	PrimaryMonitor() (Monitor, error)
	// CaptureFull grabs every attached display as a single image.
	CaptureFull(ctx context.Context) (image.Image, error)
	CaptureRegion(ctx context.Context, rect image.Rectangle) (image.Image, error)
}

// RegionFor returns the size×size square centred on (x, y), shifted so that it
// never crosses the monitor edges. Monitors smaller than size pin the region to
// their top-left corner.
func RegionFor(x, y int, m Monitor, size int) image.Rectangle {
	half := size / 2
	left := clamp(x-half, m.Left, m.Left+m.Width-size)
	top := clamp(y-half, m.Top, m.Top+m.Height-size)
	return image.Rect(left, top, left+size, top+size)
}

func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

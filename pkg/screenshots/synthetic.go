package screenshots

import (
	"context"
	"image"
	"image/color"
)

// Synthetic renders deterministic gradient frames for a fixed virtual monitor.
type Synthetic struct {
	Monitor Monitor
}

// NewSynthetic returns a provider with a 1280×800 primary monitor at the
// origin.
func NewSynthetic() *Synthetic {
	return &Synthetic{Monitor: Monitor{Width: 1280, Height: 800}}
}

func (s *Synthetic) Name() string {
	return providerSynthetic
}

func (s *Synthetic) PrimaryMonitor() (Monitor, error) {
	return s.Monitor, nil
}

func (s *Synthetic) CaptureFull(ctx context.Context) (image.Image, error) {
	return s.CaptureRegion(ctx, s.Monitor.Bounds())
}

func (s *Synthetic) CaptureRegion(ctx context.Context, rect image.Rectangle) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rect.Empty() || !rect.In(s.Monitor.Bounds()) {
		return nil, errOutOfBounds(rect, s.Monitor)
	}
	img := image.NewRGBA(rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 96, G: uint8(x % 255), B: uint8(y % 255), A: 255})
		}
	}
	return img, nil
}

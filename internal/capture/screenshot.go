package capture

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"github.com/junsooki/AirDesk/internal/frame"
)

// ScreenshotGrabber reads screens with kbinani/screenshot.
type ScreenshotGrabber struct{}

func (ScreenshotGrabber) Grab(ctx context.Context, screen frame.DesktopScreen) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds := screen.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: %q has no area", ErrDisplayNotFound, screen.OutputName)
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, fmt.Errorf("capture %q: %w", screen.OutputName, err)
	}
	return img, nil
}

package capture

import (
	"context"

	"github.com/junsooki/AirDesk/internal/frame"
)

// FullFrameCapturer is the slow strategy: every call repaints the whole
// screen with one dirty fragment.
type FullFrameCapturer struct {
	grabber Grabber
}

func NewFullFrameCapturer(g Grabber) *FullFrameCapturer {
	return &FullFrameCapturer{grabber: g}
}

func (c *FullFrameCapturer) Capture(ctx context.Context, screen frame.DesktopScreen, _ bool) (*frame.FragmentedImage, error) {
	img, err := c.grabber.Grab(ctx, screen)
	if err != nil {
		return nil, err
	}
	return wholeFrame(normalize(img)), nil
}

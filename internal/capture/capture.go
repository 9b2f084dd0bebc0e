package capture

import (
	"context"
	"errors"
	"image"

	"github.com/junsooki/AirDesk/internal/frame"
)

var (
	// ErrAccessLost means the capture mechanism went away (session switch,
	// lock screen, elevation prompt). The diff baseline is discarded.
	ErrAccessLost = errors.New("capture: access to the display was lost")

	// ErrDisplayNotFound is returned for a screen that is no longer attached.
	ErrDisplayNotFound = errors.New("capture: display not found")
)

// Provider produces the changes on screen since its previous call. Dirty
// fragments carry raw RGBA payloads with bounds relative to the screen
// origin. A nil image with a nil error means nothing to send this tick.
type Provider interface {
	Capture(ctx context.Context, screen frame.DesktopScreen, fullFrame bool) (*frame.FragmentedImage, error)
}

// Grabber reads the full contents of one screen. The returned image is owned
// by the caller.
type Grabber interface {
	Grab(ctx context.Context, screen frame.DesktopScreen) (*image.RGBA, error)
}

// MoveReporter supplies the regions the OS reports as moved since the last
// grab, such as window drags and scrolls.
type MoveReporter interface {
	Moves(ctx context.Context, screen frame.DesktopScreen) ([]frame.MovedImageFragment, error)
}

// DesktopSource enumerates the attached screens. Implementations must not
// cache across calls; the topology can change at any time.
type DesktopSource interface {
	Desktop(ctx context.Context) (frame.DesktopInfo, error)
}

// normalize shifts img so its bounds start at (0,0) without copying pixels.
func normalize(img *image.RGBA) *image.RGBA {
	if img.Rect.Min == (image.Point{}) {
		return img
	}
	return &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: image.Rect(0, 0, img.Rect.Dx(), img.Rect.Dy())}
}

func wholeFrame(img *image.RGBA) *frame.FragmentedImage {
	return &frame.FragmentedImage{
		Dirty: []frame.DirtyImageFragment{frame.RawFragment(img, img.Bounds(), image.Point{})},
	}
}

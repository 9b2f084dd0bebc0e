// Package display shows the rebuilt remote screen in a local window and
// turns local mouse and keyboard activity into input events for the host.
package display

import (
	"image"
	"math"

	"github.com/junsooki/AirDesk/internal/input"
)

// FrameSource provides the current canvas.
type FrameSource interface {
	Snapshot() *image.RGBA
}

// InputSink forwards input events to the host.
type InputSink interface {
	SendInput(e *input.Event) error
}

// viewport maps between window pixels and remote screen pixels for a frame
// letterboxed into the window.
type viewport struct {
	scale   float64
	offsetX float64
	offsetY float64
	origin  image.Point
}

// fit returns the viewport that letterboxes frame into a view of the given
// size.
func fit(viewW, viewH int, frame image.Rectangle) viewport {
	fw, fh := float64(frame.Dx()), float64(frame.Dy())
	if fw == 0 || fh == 0 {
		return viewport{scale: 1, origin: frame.Min}
	}
	vw, vh := float64(viewW), float64(viewH)
	scale := math.Min(vw/fw, vh/fh)
	return viewport{
		scale:   scale,
		offsetX: (vw - fw*scale) / 2,
		offsetY: (vh - fh*scale) / 2,
		origin:  frame.Min,
	}
}

// remote converts a window position to remote screen coordinates.
func (v viewport) remote(x, y int) (float64, float64) {
	rx := (float64(x)-v.offsetX)/v.scale + float64(v.origin.X)
	ry := (float64(y)-v.offsetY)/v.scale + float64(v.origin.Y)
	return rx, ry
}

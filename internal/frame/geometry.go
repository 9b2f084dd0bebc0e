// Package frame holds the differential frame model shared by the capture,
// encode, wire and render stages.
package frame

import (
	"image"
	"math"
)

// Rectangle is a region in screen coordinates as carried on the wire.
type Rectangle struct {
	X      int16
	Y      int16
	Width  uint16
	Height uint16
}

// Point is a position in screen coordinates.
type Point struct {
	X int16
	Y int16
}

// Rect builds a Rectangle from its components.
func Rect(x, y int16, w, h uint16) Rectangle {
	return Rectangle{X: x, Y: y, Width: w, Height: h}
}

// RectangleFrom converts an image.Rectangle, clamping each component to the
// range the wire format can carry.
func RectangleFrom(r image.Rectangle) Rectangle {
	r = r.Canon()
	return Rectangle{
		X:      clampInt16(r.Min.X),
		Y:      clampInt16(r.Min.Y),
		Width:  clampUint16(r.Dx()),
		Height: clampUint16(r.Dy()),
	}
}

// Image returns the rectangle as an image.Rectangle.
func (r Rectangle) Image() image.Rectangle {
	x, y := int(r.X), int(r.Y)
	return image.Rect(x, y, x+int(r.Width), y+int(r.Height))
}

// Empty reports whether the rectangle covers no pixels.
func (r Rectangle) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

// Area is the number of pixels covered by r.
func (r Rectangle) Area() int {
	return int(r.Width) * int(r.Height)
}

// Image returns the point as an image.Point.
func (p Point) Image() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

func clampInt16(v int) int16 {
	switch {
	case v < math.MinInt16:
		return math.MinInt16
	case v > math.MaxInt16:
		return math.MaxInt16
	}
	return int16(v)
}

func clampUint16(v int) uint16 {
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint16:
		return math.MaxUint16
	}
	return uint16(v)
}

package frame

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// MaxFragments is the largest number of moved or dirty fragments a single
// frame can carry.
const MaxFragments = math.MaxUint16

var (
	ErrTooManyFragments = errors.New("frame: too many fragments")
	ErrMixedCompression = errors.New("frame: dirty fragments disagree on compression")
	ErrCompressed       = errors.New("frame: payload is compressed")
	ErrShortPixels      = errors.New("frame: raw payload shorter than bounds")
)

// MovedImageFragment instructs the receiver to copy pixels already on
// screen from Source to Bounds.
type MovedImageFragment struct {
	Bounds Rectangle
	Source Point
}

// SourceRect is the region the pixels are copied from.
func (m MovedImageFragment) SourceRect() image.Rectangle {
	src := m.Source.Image()
	return image.Rectangle{Min: src, Max: src.Add(image.Pt(int(m.Bounds.Width), int(m.Bounds.Height)))}
}

// DirtyImageFragment is a full repaint of Bounds. Before encoding the
// payload holds tightly packed RGBA pixels; afterwards it holds a JPEG
// stream and Compressed is set.
type DirtyImageFragment struct {
	Bounds     Rectangle
	Payload    []byte
	Compressed bool
}

// RawFragment copies the pixels of r out of img into a new raw fragment.
// r is relative to img's origin; Bounds is set to r translated by offset.
func RawFragment(img *image.RGBA, r image.Rectangle, offset image.Point) DirtyImageFragment {
	r = r.Intersect(img.Bounds())
	w, h := r.Dx(), r.Dy()
	pix := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		start := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(pix[y*4*w:(y+1)*4*w], img.Pix[start:start+4*w])
	}
	return DirtyImageFragment{
		Bounds:  RectangleFrom(r.Sub(img.Bounds().Min).Add(offset)),
		Payload: pix,
	}
}

// RGBA wraps a raw payload as an image without copying. The image origin
// is (0,0).
func (d DirtyImageFragment) RGBA() (*image.RGBA, error) {
	if d.Compressed {
		return nil, ErrCompressed
	}
	w, h := int(d.Bounds.Width), int(d.Bounds.Height)
	if len(d.Payload) < 4*w*h {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrShortPixels, len(d.Payload), 4*w*h)
	}
	return &image.RGBA{
		Pix:    d.Payload[:4*w*h],
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}, nil
}

// FragmentedImage is one differential frame: the moves and repaints that
// turn the previous screen state into the current one.
type FragmentedImage struct {
	StreamID byte
	Moved    []MovedImageFragment
	Dirty    []DirtyImageFragment
}

// Empty reports whether the frame carries no changes.
func (f *FragmentedImage) Empty() bool {
	return len(f.Moved) == 0 && len(f.Dirty) == 0
}

// Compressed reports whether the dirty payloads are JPEG streams. A frame
// without dirty fragments reports false.
func (f *FragmentedImage) Compressed() bool {
	return len(f.Dirty) > 0 && f.Dirty[0].Compressed
}

// Validate checks the fragment counts and that all dirty fragments are in
// the same stage.
func (f *FragmentedImage) Validate() error {
	if len(f.Moved) > MaxFragments {
		return fmt.Errorf("%w: %d moved", ErrTooManyFragments, len(f.Moved))
	}
	if len(f.Dirty) > MaxFragments {
		return fmt.Errorf("%w: %d dirty", ErrTooManyFragments, len(f.Dirty))
	}
	for i := 1; i < len(f.Dirty); i++ {
		if f.Dirty[i].Compressed != f.Dirty[0].Compressed {
			return ErrMixedCompression
		}
	}
	return nil
}

// PayloadSize sums the dirty payload lengths.
func (f *FragmentedImage) PayloadSize() int {
	n := 0
	for _, d := range f.Dirty {
		n += len(d.Payload)
	}
	return n
}

// Extent is the smallest rectangle covering every fragment's bounds.
func (f *FragmentedImage) Extent() image.Rectangle {
	var r image.Rectangle
	for _, m := range f.Moved {
		r = r.Union(m.Bounds.Image())
	}
	for _, d := range f.Dirty {
		r = r.Union(d.Bounds.Image())
	}
	return r
}

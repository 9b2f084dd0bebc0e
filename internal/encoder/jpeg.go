package encoder

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/junsooki/AirDesk/internal/frame"
)

// JPEGEncoder encodes fragments as baseline JPEG. It reuses one scratch
// buffer across calls, so each stream loop owns its own encoder.
type JPEGEncoder struct {
	scratch bytes.Buffer
	gray    *image.Gray
}

// NewJPEGEncoder creates a JPEG encoder.
func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{}
}

// Compress encodes img. Grayscale converts to a single channel before
// encoding. image/jpeg always writes 4:2:0 for colour input, so 4:4:0 and
// 4:4:4 requests produce 4:2:0 streams.
func (e *JPEGEncoder) Compress(img image.Image, quality int, sub frame.Subsampling) ([]byte, error) {
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	if sub == frame.SubsamplingGrayscale {
		img = e.toGray(img)
	}

	e.scratch.Reset()
	if err := jpeg.Encode(&e.scratch, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	out := make([]byte, e.scratch.Len())
	copy(out, e.scratch.Bytes())
	return out, nil
}

func (e *JPEGEncoder) toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if e.gray == nil || cap(e.gray.Pix) < b.Dx()*b.Dy() {
		e.gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	} else {
		e.gray.Pix = e.gray.Pix[:b.Dx()*b.Dy()]
		e.gray.Stride = b.Dx()
		e.gray.Rect = image.Rect(0, 0, b.Dx(), b.Dy())
	}
	draw.Draw(e.gray, e.gray.Rect, img, b.Min, draw.Src)
	return e.gray
}

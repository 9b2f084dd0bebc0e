package decoder

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/AirDesk/internal/encoder"
	"github.com/junsooki/AirDesk/internal/frame"
)

func TestJPEGDecoderRoundTripDimensions(t *testing.T) {
	t.Parallel()
	src := image.NewRGBA(image.Rect(0, 0, 33, 17))
	for y := 0; y < 17; y++ {
		for x := 0; x < 33; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF})
		}
	}
	for _, sub := range []frame.Subsampling{frame.SubsamplingGrayscale, frame.Subsampling420} {
		data, err := encoder.NewJPEGEncoder().Compress(src, 85, sub)
		require.NoError(t, err)

		img, err := NewJPEGDecoder().Decode(data)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 33, 17), img.Bounds())

		// Lossy codec: compare within tolerance, not bytes.
		c := img.RGBAAt(10, 10)
		assert.InDelta(t, 0x80, int(c.G), 6)
		assert.Equal(t, uint8(255), c.A)
	}
}

func TestJPEGDecoderRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, err := NewJPEGDecoder().Decode([]byte("not a jpeg"))
	assert.Error(t, err)
}

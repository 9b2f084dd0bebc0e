package encoder

import (
	"fmt"
	"image"

	"github.com/junsooki/AirDesk/internal/frame"
)

// Encoder compresses one dirty fragment.
type Encoder interface {
	Compress(img image.Image, quality int, sub frame.Subsampling) ([]byte, error)
}

// CompressFrame replaces every raw dirty payload in img with its compressed
// form, using the quality and chroma layout from settings. Frames that are
// already compressed are left alone.
func CompressFrame(enc Encoder, img *frame.FragmentedImage, settings frame.StreamSettings) error {
	if img.Compressed() {
		return nil
	}
	sub := settings.ColorFlags.Subsampling()
	for i := range img.Dirty {
		d := &img.Dirty[i]
		if d.Bounds.Empty() {
			d.Payload = nil
			d.Compressed = true
			continue
		}
		raw, err := d.RGBA()
		if err != nil {
			return fmt.Errorf("dirty fragment %d: %w", i, err)
		}
		data, err := enc.Compress(raw, int(settings.JPEGQuality), sub)
		if err != nil {
			return fmt.Errorf("compress dirty fragment %d: %w", i, err)
		}
		d.Payload = data
		d.Compressed = true
	}
	return nil
}

package decoder

import "image"

// Decoder turns a compressed dirty payload back into pixels.
type Decoder interface {
	Decode(data []byte) (*image.RGBA, error)
}

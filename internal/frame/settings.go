package frame

// ColorFlags selects chroma subsampling and carries the refresh request.
type ColorFlags byte

const (
	Color420     ColorFlags = 1 << 0
	Color440     ColorFlags = 1 << 1
	ColorRefresh ColorFlags = 1 << 2

	Color444                  = Color420 | Color440
	ColorGrayscale ColorFlags = 0
)

// Subsampling is the JPEG chroma layout derived from ColorFlags.
type Subsampling int

const (
	SubsamplingGrayscale Subsampling = iota
	Subsampling420
	Subsampling440
	Subsampling444
)

func (s Subsampling) String() string {
	return [...]string{"grayscale", "4:2:0", "4:4:0", "4:4:4"}[s]
}

// Subsampling decodes the chroma bits.
func (c ColorFlags) Subsampling() Subsampling {
	switch c & Color444 {
	case Color444:
		return Subsampling444
	case Color440:
		return Subsampling440
	case Color420:
		return Subsampling420
	}
	return SubsamplingGrayscale
}

// Refresh reports whether a full capture is requested.
func (c ColorFlags) Refresh() bool {
	return c&ColorRefresh != 0
}

// StreamSettings control encoding and flow for one viewer.
type StreamSettings struct {
	ColorFlags              ColorFlags
	JPEGQuality             byte
	MaxFPS                  byte
	MaxUnacknowledgedFrames byte
}

// DefaultStreamSettings returns the settings a new session starts with.
func DefaultStreamSettings() StreamSettings {
	return StreamSettings{
		ColorFlags:              Color420,
		JPEGQuality:             70,
		MaxFPS:                  30,
		MaxUnacknowledgedFrames: 3,
	}
}

// Clamp forces every field into its valid range.
func (s StreamSettings) Clamp() StreamSettings {
	if s.JPEGQuality < 1 {
		s.JPEGQuality = 1
	}
	if s.JPEGQuality > 100 {
		s.JPEGQuality = 100
	}
	if s.MaxFPS < 1 {
		s.MaxFPS = 1
	}
	if s.MaxUnacknowledgedFrames < 1 {
		s.MaxUnacknowledgedFrames = 1
	}
	return s
}

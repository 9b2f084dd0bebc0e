package renderer

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/AirDesk/internal/clock"
	"github.com/junsooki/AirDesk/internal/frame"
)

const failKey = 0xEE

var (
	red   = color.RGBA{R: 0xFF, A: 0xFF}
	green = color.RGBA{G: 0xFF, A: 0xFF}
	blue  = color.RGBA{B: 0xFF, A: 0xFF}
)

// gatedDecoder decodes payloads of the form [key, r, g, b] into a solid
// 4x4 image. Decoding a key with a gate blocks until the gate is closed.
type gatedDecoder struct {
	mu    sync.Mutex
	gates map[byte]chan struct{}
}

func (d *gatedDecoder) gate(key byte) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gates == nil {
		d.gates = make(map[byte]chan struct{})
	}
	g := make(chan struct{})
	d.gates[key] = g
	return g
}

func (d *gatedDecoder) Decode(data []byte) (*image.RGBA, error) {
	d.mu.Lock()
	g := d.gates[data[0]]
	d.mu.Unlock()
	if g != nil {
		<-g
	}
	if data[0] == failKey {
		return nil, errors.New("corrupt payload")
	}
	return solid(4, 4, color.RGBA{R: data[1], G: data[2], B: data[3], A: 0xFF}), nil
}

type recordingAck struct {
	mu  sync.Mutex
	ids []byte
}

func (a *recordingAck) AcknowledgeFrame(id byte) error {
	a.mu.Lock()
	a.ids = append(a.ids, id)
	a.mu.Unlock()
	return nil
}

func (a *recordingAck) acked() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.ids...)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encoded(key byte, x, y int16, c color.RGBA) frame.DirtyImageFragment {
	return frame.DirtyImageFragment{
		Bounds:     frame.Rect(x, y, 4, 4),
		Payload:    []byte{key, c.R, c.G, c.B},
		Compressed: true,
	}
}

func raw(x, y int16, c color.RGBA) frame.DirtyImageFragment {
	img := solid(4, 4, c)
	return frame.RawFragment(img, img.Bounds(), image.Pt(int(x), int(y)))
}

type fixture struct {
	renderer *Renderer
	decoder  *gatedDecoder
	ack      *recordingAck
	clock    *clock.Fake
	updates  []image.Rectangle
	mu       sync.Mutex
}

func newFixture(t *testing.T, budget int) *fixture {
	t.Helper()
	f := &fixture{
		decoder: &gatedDecoder{},
		ack:     &recordingAck{},
		clock:   clock.NewFake(time.Unix(0, 0)),
	}
	f.renderer = New(Config{
		Decoder:      f.decoder,
		Acknowledger: f.ack,
		OnUpdate: func(r image.Rectangle) {
			f.mu.Lock()
			f.updates = append(f.updates, r)
			f.mu.Unlock()
		},
		RetryBudget: budget,
		Clock:       f.clock,
	})
	t.Cleanup(f.renderer.Close)
	return f
}

func (f *fixture) waitAcks(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.ack.acked()) == n }, 2*time.Second, time.Millisecond)
}

func (f *fixture) pixel(x, y int) color.RGBA {
	return f.renderer.Snapshot().RGBAAt(x, y)
}

func TestFramesPaintInArrivalOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	release := f.decoder.gate(2)

	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 5, Dirty: []frame.DirtyImageFragment{encoded(1, 0, 0, red)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 5, Dirty: []frame.DirtyImageFragment{encoded(2, 0, 0, green)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 5, Dirty: []frame.DirtyImageFragment{encoded(3, 2, 2, blue)}})

	f.waitAcks(t, 1)
	assert.Equal(t, red, f.pixel(1, 1))
	assert.Equal(t, red, f.pixel(3, 3))

	close(release)
	f.waitAcks(t, 3)
	assert.Equal(t, green, f.pixel(1, 1), "frame 2 painted")
	assert.Equal(t, blue, f.pixel(3, 3), "frame 3 painted over frame 2")
	assert.Equal(t, []byte{5, 5, 5}, f.ack.acked())
}

func TestMovesApplyBeforeDirty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{raw(0, 0, red)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{
		Moved: []frame.MovedImageFragment{{Bounds: frame.Rect(4, 0, 4, 4), Source: frame.Point{X: 0, Y: 0}}},
		Dirty: []frame.DirtyImageFragment{raw(0, 0, green)},
	})
	f.waitAcks(t, 2)

	assert.Equal(t, green, f.pixel(1, 1))
	assert.Equal(t, red, f.pixel(5, 1))
	assert.Equal(t, image.Rect(0, 0, 8, 4), f.renderer.Bounds())
}

func TestOverlappingMove(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	left := solid(4, 4, red)
	right := solid(4, 4, blue)
	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{
		frame.RawFragment(left, left.Bounds(), image.Pt(0, 0)),
		frame.RawFragment(right, right.Bounds(), image.Pt(4, 0)),
	}})
	// Scroll the 8px strip right by 2.
	f.renderer.HandleFrame(&frame.FragmentedImage{
		Moved: []frame.MovedImageFragment{{Bounds: frame.Rect(2, 0, 6, 4), Source: frame.Point{}}},
	})
	f.waitAcks(t, 2)

	assert.Equal(t, red, f.pixel(3, 0))
	assert.Equal(t, red, f.pixel(5, 0))
	assert.Equal(t, blue, f.pixel(6, 0))
	assert.Equal(t, blue, f.pixel(7, 0))
}

func TestEmptyFrameIsAcknowledgedWithoutPainting(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 1, Dirty: []frame.DirtyImageFragment{raw(0, 0, red)}})
	before := f.renderer.Snapshot()
	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 1})
	f.waitAcks(t, 2)

	assert.Equal(t, before, f.renderer.Snapshot())
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Len(t, f.updates, 1)
}

func TestEmptyFrameWaitsItsTurn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	release := f.decoder.gate(1)

	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 1, Dirty: []frame.DirtyImageFragment{encoded(1, 0, 0, red)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 2})
	assert.Empty(t, f.ack.acked())

	close(release)
	f.waitAcks(t, 2)
	assert.Equal(t, []byte{1, 2}, f.ack.acked())
}

func TestCanvasOnlyGrows(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{raw(0, 0, red)}})
	assert.Equal(t, image.Rect(0, 0, 4, 4), f.renderer.Bounds())

	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{raw(10, 10, blue)}})
	assert.Equal(t, image.Rect(0, 0, 14, 14), f.renderer.Bounds())
	assert.Equal(t, red, f.pixel(0, 0))

	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{raw(2, 2, green)}})
	assert.Equal(t, image.Rect(0, 0, 14, 14), f.renderer.Bounds())
}

func TestDecodeFailureKeepsStalePixels(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)

	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 3, Dirty: []frame.DirtyImageFragment{raw(0, 0, red)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 3, Dirty: []frame.DirtyImageFragment{encoded(failKey, 0, 0, green)}})
	f.waitAcks(t, 2)

	assert.Equal(t, red, f.pixel(1, 1))
}

func TestRetryBudgetForcesPaint(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 3)
	release := f.decoder.gate(1)

	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 1, Dirty: []frame.DirtyImageFragment{encoded(1, 0, 0, green)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 1, Dirty: []frame.DirtyImageFragment{raw(4, 0, red)}})

	f.clock.Advance(DefaultRetryInterval)
	f.clock.Advance(DefaultRetryInterval)
	assert.Empty(t, f.ack.acked())

	f.clock.Advance(DefaultRetryInterval)
	assert.Equal(t, []byte{1, 1}, f.ack.acked())
	assert.Equal(t, red, f.pixel(5, 1))
	assert.Equal(t, color.RGBA{}, f.pixel(1, 1), "missing fragment left unpainted")

	// The late decode must not paint over a frame that was already applied.
	close(release)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, color.RGBA{}, f.pixel(1, 1))
	assert.Zero(t, f.clock.Pending())
}

func TestFramesAfterCloseAreDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	f.renderer.Close()
	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{raw(0, 0, red)}})
	assert.Empty(t, f.ack.acked())
	assert.True(t, f.renderer.Bounds().Empty())
}

func TestResetClearsCanvas(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 0)
	release := f.decoder.gate(1)
	defer close(release)

	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{raw(0, 0, red)}})
	f.renderer.HandleFrame(&frame.FragmentedImage{Dirty: []frame.DirtyImageFragment{encoded(1, 0, 0, green)}})
	f.renderer.Reset()
	assert.True(t, f.renderer.Bounds().Empty())

	f.renderer.HandleFrame(&frame.FragmentedImage{StreamID: 9, Dirty: []frame.DirtyImageFragment{raw(0, 0, blue)}})
	f.waitAcks(t, 2)
	assert.Equal(t, []byte{0, 9}, f.ack.acked())
	assert.Equal(t, blue, f.pixel(0, 0))
}

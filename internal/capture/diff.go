package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"github.com/junsooki/AirDesk/internal/frame"
)

// DefaultTileSize is the edge length of the squares compared between grabs.
const DefaultTileSize = 64

// DiffCapturer is the fast strategy. It keeps the previous grab as a
// baseline and reports only the tiles that changed, plus any moves the
// MoveReporter supplies. The baseline resets when the screen geometry
// changes, when access is lost, and on explicit full-frame requests; a
// reset sends the whole screen.
type DiffCapturer struct {
	grabber  Grabber
	moves    MoveReporter
	tileSize int

	mu         sync.Mutex
	baseline   *image.RGBA
	baseScreen frame.DesktopScreen
}

// DiffOption configures a DiffCapturer.
type DiffOption func(*DiffCapturer)

// WithMoveReporter adds a source of moved regions.
func WithMoveReporter(m MoveReporter) DiffOption {
	return func(c *DiffCapturer) { c.moves = m }
}

// WithTileSize overrides DefaultTileSize.
func WithTileSize(n int) DiffOption {
	return func(c *DiffCapturer) {
		if n > 0 {
			c.tileSize = n
		}
	}
}

func NewDiffCapturer(g Grabber, opts ...DiffOption) *DiffCapturer {
	c := &DiffCapturer{grabber: g, tileSize: DefaultTileSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset drops the baseline so the next capture is a full frame.
func (c *DiffCapturer) Reset() {
	c.mu.Lock()
	c.baseline = nil
	c.mu.Unlock()
}

func (c *DiffCapturer) Capture(ctx context.Context, screen frame.DesktopScreen, fullFrame bool) (*frame.FragmentedImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var moved []frame.MovedImageFragment
	if c.moves != nil && c.baseline != nil && !fullFrame {
		var err error
		moved, err = c.moves.Moves(ctx, screen)
		if err != nil {
			c.baseline = nil
			return nil, fmt.Errorf("query moved regions: %w", err)
		}
	}

	grabbed, err := c.grabber.Grab(ctx, screen)
	if err != nil {
		if errors.Is(err, ErrAccessLost) {
			c.baseline = nil
		}
		return nil, err
	}
	img := normalize(grabbed)

	if fullFrame || c.baseline == nil || c.baseScreen != screen || c.baseline.Rect != img.Rect {
		c.baseline = img
		c.baseScreen = screen
		return wholeFrame(img), nil
	}

	// Replay the moves on the baseline so it matches what the viewer will
	// hold once it applies them, then diff what is left.
	for _, m := range moved {
		draw.Draw(c.baseline, m.Bounds.Image(), c.baseline, m.Source.Image(), draw.Src)
	}
	out := &frame.FragmentedImage{Moved: moved}
	out.Dirty = diffTiles(c.baseline, img, c.tileSize)
	c.baseline = img
	return out, nil
}

// diffTiles compares prev and next tile by tile and returns one raw
// fragment per horizontal run of changed tiles.
func diffTiles(prev, next *image.RGBA, tile int) []frame.DirtyImageFragment {
	bounds := next.Bounds()
	var dirty []frame.DirtyImageFragment
	for ty := bounds.Min.Y; ty < bounds.Max.Y; ty += tile {
		runStart := -1
		for tx := bounds.Min.X; tx < bounds.Max.X; tx += tile {
			r := image.Rect(tx, ty, tx+tile, ty+tile).Intersect(bounds)
			if tileChanged(prev, next, r) {
				if runStart < 0 {
					runStart = tx
				}
				continue
			}
			if runStart >= 0 {
				dirty = append(dirty, frame.RawFragment(next, image.Rect(runStart, ty, tx, ty+tile).Intersect(bounds), image.Point{}))
				runStart = -1
			}
		}
		if runStart >= 0 {
			dirty = append(dirty, frame.RawFragment(next, image.Rect(runStart, ty, bounds.Max.X, ty+tile).Intersect(bounds), image.Point{}))
		}
	}
	return dirty
}

func tileChanged(prev, next *image.RGBA, r image.Rectangle) bool {
	width := 4 * r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		a := prev.PixOffset(r.Min.X, y)
		b := next.PixOffset(r.Min.X, y)
		if !bytes.Equal(prev.Pix[a:a+width], next.Pix[b:b+width]) {
			return true
		}
	}
	return false
}

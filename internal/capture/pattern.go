package capture

import (
	"context"
	"image"
	"sync"

	"github.com/junsooki/AirDesk/internal/frame"
)

// PatternGrabber draws a synthetic desktop: a static gradient with a grid
// and a block that moves one step per grab. It stands in for a real display
// on headless hosts and in tests.
type PatternGrabber struct {
	mu   sync.Mutex
	tick int
}

func (p *PatternGrabber) Grab(ctx context.Context, screen frame.DesktopScreen) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	tick := p.tick
	p.tick++
	p.mu.Unlock()

	w, h := int(screen.Width), int(screen.Height)
	if w == 0 || h == 0 {
		return nil, ErrDisplayNotFound
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	pix, stride := img.Pix, img.Stride
	for y := 0; y < h; y++ {
		g := uint8(50 + y*100/h)
		off := y * stride
		for x := 0; x < w; x++ {
			i := off + x*4
			pix[i+0] = uint8(50 + x*100/w)
			pix[i+1] = g
			pix[i+2] = 100
			pix[i+3] = 255
			if x%50 == 0 || y%50 == 0 {
				pix[i+0], pix[i+1], pix[i+2] = 255, 255, 255
			}
		}
	}

	const block = 24
	bx := (tick * 8) % max(w-block, 1)
	by := h / 2
	for y := by; y < min(by+block, h); y++ {
		for x := bx; x < min(bx+block, w); x++ {
			i := y*stride + x*4
			pix[i+0], pix[i+1], pix[i+2] = 255, 100, 100
		}
	}
	return img, nil
}

package display

import (
	"context"
	"image"
	"log/slog"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/junsooki/AirDesk/internal/input"
)

// EbitenDisplay renders the remote screen using Ebitengine and captures input.
type EbitenDisplay struct {
	source FrameSource
	sink   InputSink
	title  string
	logger *slog.Logger

	dirty atomic.Bool
	ctx   context.Context

	// The fields below belong to the game loop.
	frame      *image.RGBA
	texture    *ebiten.Image
	view       viewport
	prevMouseX int
	prevMouseY int
	keys       []ebiten.Key
}

// NewEbitenDisplay creates an Ebitengine window that draws source and sends
// input to sink.
func NewEbitenDisplay(source FrameSource, sink InputSink, title string, logger *slog.Logger) *EbitenDisplay {
	return &EbitenDisplay{source: source, sink: sink, title: title, logger: logger}
}

// Invalidate marks the canvas as changed. Safe to call from any goroutine.
func (d *EbitenDisplay) Invalidate(image.Rectangle) {
	d.dirty.Store(true)
}

// Run starts the Ebitengine game loop and returns when the window is closed
// or ctx is cancelled. Must be called from the main goroutine.
func (d *EbitenDisplay) Run(ctx context.Context) error {
	d.ctx = ctx
	ebiten.SetWindowSize(1280, 720)
	ebiten.SetWindowTitle(d.title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(d)
}

func (d *EbitenDisplay) Update() error {
	if d.ctx.Err() != nil {
		return ebiten.Termination
	}
	if d.dirty.Swap(false) {
		d.frame = d.source.Snapshot()
	}
	if d.frame == nil || d.frame.Rect.Empty() {
		return nil
	}
	w, h := ebiten.WindowSize()
	d.view = fit(w, h, d.frame.Rect)
	d.captureMouseInput()
	d.captureKeyboardInput()
	return nil
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	frame := d.frame
	if frame == nil || frame.Rect.Empty() {
		return
	}
	fw, fh := frame.Rect.Dx(), frame.Rect.Dy()
	if d.texture == nil || d.texture.Bounds().Dx() != fw || d.texture.Bounds().Dy() != fh {
		if d.texture != nil {
			d.texture.Deallocate()
		}
		d.texture = ebiten.NewImage(fw, fh)
	}
	d.texture.WritePixels(frame.Pix)

	view := fit(screen.Bounds().Dx(), screen.Bounds().Dy(), frame.Rect)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(view.scale, view.scale)
	op.GeoM.Translate(view.offsetX, view.offsetY)
	op.Filter = ebiten.FilterLinear
	screen.DrawImage(d.texture, op)
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}

var mouseButtons = []struct {
	eb  ebiten.MouseButton
	btn input.MouseButton
}{
	{ebiten.MouseButtonLeft, input.MouseButtonLeft},
	{ebiten.MouseButtonRight, input.MouseButtonRight},
	{ebiten.MouseButtonMiddle, input.MouseButtonMiddle},
}

func (d *EbitenDisplay) captureMouseInput() {
	mx, my := ebiten.CursorPosition()
	x, y := d.view.remote(mx, my)

	if mx != d.prevMouseX || my != d.prevMouseY {
		d.prevMouseX, d.prevMouseY = mx, my
		d.send(&input.Event{Type: input.EventMouseMove, X: x, Y: y})
	}
	for _, b := range mouseButtons {
		if inpututil.IsMouseButtonJustPressed(b.eb) {
			d.send(&input.Event{Type: input.EventMouseDown, X: x, Y: y, Button: b.btn})
		}
		if inpututil.IsMouseButtonJustReleased(b.eb) {
			d.send(&input.Event{Type: input.EventMouseUp, X: x, Y: y, Button: b.btn})
		}
	}
	if dx, dy := ebiten.Wheel(); dx != 0 || dy != 0 {
		d.send(&input.Event{Type: input.EventMouseScroll, ScrollDX: dx, ScrollDY: dy})
	}
}

func (d *EbitenDisplay) captureKeyboardInput() {
	mods := currentModifiers()
	d.keys = inpututil.AppendJustPressedKeys(d.keys[:0])
	for _, k := range d.keys {
		if code, ok := macKeyCodes[k]; ok {
			d.send(&input.Event{Type: input.EventKeyDown, KeyCode: code, Modifiers: mods})
		}
	}
	d.keys = inpututil.AppendJustReleasedKeys(d.keys[:0])
	for _, k := range d.keys {
		if code, ok := macKeyCodes[k]; ok {
			d.send(&input.Event{Type: input.EventKeyUp, KeyCode: code, Modifiers: mods})
		}
	}
}

func (d *EbitenDisplay) send(e *input.Event) {
	if d.sink == nil {
		return
	}
	if err := d.sink.SendInput(e); err != nil {
		d.logger.Debug("send input", "type", e.Type, "error", err)
	}
}

func currentModifiers() uint8 {
	var m uint8
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		m |= input.ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		m |= input.ModControl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		m |= input.ModAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMeta) {
		m |= input.ModMeta
	}
	return m
}

// macKeyCodes maps Ebitengine keys to macOS virtual key codes.
var macKeyCodes = map[ebiten.Key]uint16{
	ebiten.KeyA: 0x00, ebiten.KeyS: 0x01, ebiten.KeyD: 0x02, ebiten.KeyF: 0x03,
	ebiten.KeyH: 0x04, ebiten.KeyG: 0x05, ebiten.KeyZ: 0x06, ebiten.KeyX: 0x07,
	ebiten.KeyC: 0x08, ebiten.KeyV: 0x09, ebiten.KeyB: 0x0B, ebiten.KeyQ: 0x0C,
	ebiten.KeyW: 0x0D, ebiten.KeyE: 0x0E, ebiten.KeyR: 0x0F, ebiten.KeyY: 0x10,
	ebiten.KeyT: 0x11, ebiten.Key1: 0x12, ebiten.Key2: 0x13, ebiten.Key3: 0x14,
	ebiten.Key4: 0x15, ebiten.Key6: 0x16, ebiten.Key5: 0x17, ebiten.Key9: 0x19,
	ebiten.Key7: 0x1A, ebiten.Key8: 0x1C, ebiten.Key0: 0x1D, ebiten.KeyO: 0x1F,
	ebiten.KeyU: 0x20, ebiten.KeyI: 0x22, ebiten.KeyP: 0x23, ebiten.KeyL: 0x25,
	ebiten.KeyJ: 0x26, ebiten.KeyK: 0x28, ebiten.KeyN: 0x2D, ebiten.KeyM: 0x2E,
	ebiten.KeyEnter: 0x24, ebiten.KeyTab: 0x30, ebiten.KeySpace: 0x31,
	ebiten.KeyBackspace: 0x33, ebiten.KeyEscape: 0x35,
	ebiten.KeyArrowLeft: 0x7B, ebiten.KeyArrowRight: 0x7C,
	ebiten.KeyArrowDown: 0x7D, ebiten.KeyArrowUp: 0x7E,
	ebiten.KeyF1: 0x7A, ebiten.KeyF2: 0x78, ebiten.KeyF3: 0x63, ebiten.KeyF4: 0x76,
	ebiten.KeyF5: 0x60, ebiten.KeyF6: 0x61, ebiten.KeyF7: 0x62, ebiten.KeyF8: 0x64,
	ebiten.KeyF9: 0x65, ebiten.KeyF10: 0x6D, ebiten.KeyF11: 0x67, ebiten.KeyF12: 0x6F,
	ebiten.KeyDelete: 0x75, ebiten.KeyHome: 0x73, ebiten.KeyEnd: 0x77,
	ebiten.KeyPageUp: 0x74, ebiten.KeyPageDown: 0x79,
}

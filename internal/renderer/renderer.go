// Package renderer rebuilds the host's screen on the viewer from a stream of
// fragmented frames. Fragments decode concurrently; frames are painted
// strictly in arrival order.
package renderer

import (
	"image"
	"image/draw"
	"log/slog"
	"sync"
	"time"

	"github.com/junsooki/AirDesk/internal/clock"
	"github.com/junsooki/AirDesk/internal/decoder"
	"github.com/junsooki/AirDesk/internal/frame"
)

const (
	DefaultRetryInterval = 4 * time.Millisecond
	DefaultRetryBudget   = 250
)

// Acknowledger tells the host a frame has been painted.
type Acknowledger interface {
	AcknowledgeFrame(streamID byte) error
}

// Config holds a Renderer's collaborators. Decoder and Acknowledger are
// required.
type Config struct {
	Decoder      decoder.Decoder
	Acknowledger Acknowledger

	// OnUpdate, if set, is called after a frame changed the canvas, with
	// the union of the rectangles it painted.
	OnUpdate func(changed image.Rectangle)

	RetryInterval time.Duration
	RetryBudget   int
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Renderer owns the viewer's canvas.
type Renderer struct {
	decoder  decoder.Decoder
	ack      Acknowledger
	onUpdate func(image.Rectangle)
	interval time.Duration
	budget   int
	clock    clock.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	canvas   *image.RGBA
	lastSeq  uint64
	nextSeq  uint64
	pending  map[uint64]*pendingFrame
	attempts int
	retry    clock.Timer
	closed   bool
}

type pendingFrame struct {
	seq       uint64
	img       *frame.FragmentedImage
	decoded   []*image.RGBA
	remaining int
	applied   bool
}

type appliedFrame struct {
	streamID byte
	changed  image.Rectangle
	empty    bool
}

func New(cfg Config) *Renderer {
	r := &Renderer{
		decoder:  cfg.Decoder,
		ack:      cfg.Acknowledger,
		onUpdate: cfg.OnUpdate,
		interval: cfg.RetryInterval,
		budget:   cfg.RetryBudget,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		canvas:   image.NewRGBA(image.Rectangle{}),
		nextSeq:  1,
		pending:  make(map[uint64]*pendingFrame),
	}
	if r.interval <= 0 {
		r.interval = DefaultRetryInterval
	}
	if r.budget <= 0 {
		r.budget = DefaultRetryBudget
	}
	if r.clock == nil {
		r.clock = clock.Real()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// HandleFrame queues img for painting and starts decoding its dirty
// fragments. The renderer takes ownership of img.
func (r *Renderer) HandleFrame(img *frame.FragmentedImage) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.lastSeq++
	f := &pendingFrame{
		seq:     r.lastSeq,
		img:     img,
		decoded: make([]*image.RGBA, len(img.Dirty)),
	}
	r.pending[f.seq] = f
	for i := range img.Dirty {
		d := &img.Dirty[i]
		switch {
		case d.Bounds.Empty():
		case !d.Compressed:
			raw, err := d.RGBA()
			if err != nil {
				r.logger.Warn("raw fragment", "seq", f.seq, "fragment", i, "error", err)
				continue
			}
			f.decoded[i] = raw
		default:
			f.remaining++
			go r.decode(f, i, d.Payload)
		}
	}
	r.mu.Unlock()
	r.tryApply()
}

func (r *Renderer) decode(f *pendingFrame, i int, payload []byte) {
	img, err := r.decoder.Decode(payload)
	if err != nil {
		r.logger.Warn("decode fragment", "seq", f.seq, "fragment", i, "bounds", f.img.Dirty[i].Bounds.Image(), "error", err)
	}
	r.mu.Lock()
	if !f.applied {
		f.decoded[i] = img
		f.remaining--
	}
	r.mu.Unlock()
	r.tryApply()
}

// tryApply paints every frame that is next in line and fully decoded. When
// the head frame is still decoding it schedules another attempt.
func (r *Renderer) tryApply() {
	r.mu.Lock()
	var done []appliedFrame
	for !r.closed {
		f := r.pending[r.nextSeq]
		if f == nil {
			break
		}
		if f.remaining > 0 {
			if r.attempts < r.budget {
				r.scheduleRetry()
				break
			}
			r.logger.Error("frame painted before all fragments decoded",
				"seq", f.seq, "stream", f.img.StreamID, "missing", f.remaining, "attempts", r.attempts)
		}
		done = append(done, r.apply(f))
		delete(r.pending, f.seq)
		r.nextSeq = max(r.nextSeq, f.seq+1)
		r.attempts = 0
	}
	r.mu.Unlock()

	for _, a := range done {
		if err := r.ack.AcknowledgeFrame(a.streamID); err != nil {
			r.logger.Warn("acknowledge frame", "stream", a.streamID, "error", err)
		}
		if !a.empty && r.onUpdate != nil {
			r.onUpdate(a.changed)
		}
	}
}

func (r *Renderer) scheduleRetry() {
	if r.retry != nil {
		return
	}
	r.retry = r.clock.AfterFunc(r.interval, func() {
		r.mu.Lock()
		r.retry = nil
		r.attempts++
		r.mu.Unlock()
		r.tryApply()
	})
}

// apply paints f: moves first, then dirty fragments. Called with mu held.
func (r *Renderer) apply(f *pendingFrame) appliedFrame {
	f.applied = true
	out := appliedFrame{streamID: f.img.StreamID, empty: f.img.Empty()}
	if out.empty {
		return out
	}
	for _, m := range f.img.Moved {
		dst := m.Bounds.Image()
		r.grow(dst)
		draw.Draw(r.canvas, dst, r.canvas, m.Source.Image(), draw.Src)
		out.changed = out.changed.Union(dst)
	}
	for i, d := range f.img.Dirty {
		dst := d.Bounds.Image()
		r.grow(dst)
		out.changed = out.changed.Union(dst)
		src := f.decoded[i]
		if src == nil {
			continue
		}
		draw.Draw(r.canvas, dst, src, src.Bounds().Min, draw.Src)
	}
	return out
}

// grow enlarges the canvas to cover rect. The canvas never shrinks.
func (r *Renderer) grow(rect image.Rectangle) {
	if rect.Empty() || rect.In(r.canvas.Rect) {
		return
	}
	grown := image.NewRGBA(r.canvas.Rect.Union(rect))
	draw.Draw(grown, r.canvas.Rect, r.canvas, r.canvas.Rect.Min, draw.Src)
	r.canvas = grown
}

// Snapshot returns a copy of the canvas.
func (r *Renderer) Snapshot() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := image.NewRGBA(r.canvas.Rect)
	copy(out.Pix, r.canvas.Pix)
	return out
}

// Bounds returns the canvas extent.
func (r *Renderer) Bounds() image.Rectangle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canvas.Rect
}

// Reset drops queued frames and clears the canvas, for use when the viewer
// starts a new stream. Sequence numbers keep counting.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.pending {
		f.applied = true
	}
	r.pending = make(map[uint64]*pendingFrame)
	r.nextSeq = r.lastSeq + 1
	r.attempts = 0
	r.canvas = image.NewRGBA(image.Rectangle{})
}

// Close stops pending retries. Frames handled after Close are dropped.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.retry != nil {
		r.retry.Stop()
		r.retry = nil
	}
}

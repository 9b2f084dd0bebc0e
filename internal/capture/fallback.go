package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/junsooki/AirDesk/internal/clock"
	"github.com/junsooki/AirDesk/internal/frame"
)

const (
	DefaultFailureThreshold = 3
	DefaultFailureWindow    = 2 * time.Second
	DefaultCooldown         = 5 * time.Second
)

// Mode names the strategy a Fallback is currently serving from.
type Mode int

const (
	ModeFast Mode = iota
	ModeSlow
)

func (m Mode) String() string {
	return [...]string{"fast", "slow"}[m]
}

// Fallback serves captures from the fast strategy and switches to the slow
// one for a cooldown period after repeated fast failures. A single fast
// failure is reported as an empty tick so the stream keeps going.
type Fallback struct {
	fast, slow Provider
	clock      clock.Clock
	logger     *slog.Logger

	threshold int
	window    time.Duration
	cooldown  time.Duration

	mu        sync.Mutex
	failures  []time.Time
	slowUntil time.Time
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

func WithClock(c clock.Clock) FallbackOption {
	return func(f *Fallback) { f.clock = c }
}

func WithLogger(l *slog.Logger) FallbackOption {
	return func(f *Fallback) { f.logger = l }
}

// WithPolicy sets how many failures inside window trigger a cooldown.
func WithPolicy(threshold int, window, cooldown time.Duration) FallbackOption {
	return func(f *Fallback) {
		f.threshold = max(threshold, 1)
		f.window = window
		f.cooldown = cooldown
	}
}

func NewFallback(fast, slow Provider, opts ...FallbackOption) *Fallback {
	f := &Fallback{
		fast:      fast,
		slow:      slow,
		clock:     clock.Real(),
		logger:    slog.Default(),
		threshold: DefaultFailureThreshold,
		window:    DefaultFailureWindow,
		cooldown:  DefaultCooldown,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Mode reports the strategy the next capture will use.
func (f *Fallback) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clock.Now().Before(f.slowUntil) {
		return ModeSlow
	}
	return ModeFast
}

func (f *Fallback) Capture(ctx context.Context, screen frame.DesktopScreen, fullFrame bool) (*frame.FragmentedImage, error) {
	f.mu.Lock()
	now := f.clock.Now()
	if now.Before(f.slowUntil) {
		f.mu.Unlock()
		return f.slow.Capture(ctx, screen, true)
	}
	if !f.slowUntil.IsZero() {
		// Cooldown over. The fast baseline is stale, so start it fresh.
		f.slowUntil = time.Time{}
		fullFrame = true
		f.logger.Info("retrying fast capture", "screen", screen.OutputName)
	}
	f.mu.Unlock()

	img, err := f.fast.Capture(ctx, screen, fullFrame)
	if err == nil {
		return img, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	f.mu.Lock()
	now = f.clock.Now()
	kept := f.failures[:0]
	for _, at := range f.failures {
		if now.Sub(at) < f.window {
			kept = append(kept, at)
		}
	}
	f.failures = append(kept, now)
	tripped := len(f.failures) >= f.threshold
	if tripped {
		f.failures = nil
		f.slowUntil = now.Add(f.cooldown)
	}
	f.mu.Unlock()

	if !tripped {
		f.logger.Debug("fast capture failed", "screen", screen.OutputName, "error", err)
		return nil, nil
	}
	f.logger.Warn("fast capture unavailable, falling back to full-frame capture",
		"screen", screen.OutputName, "cooldown", f.cooldown, "error", err)
	return f.slow.Capture(ctx, screen, true)
}

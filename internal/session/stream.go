package session

import (
	"context"
	"errors"
	"time"

	"github.com/junsooki/AirDesk/internal/capture"
	"github.com/junsooki/AirDesk/internal/encoder"
	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/protocol"
)

func (s *Session) startStream(ctx context.Context, epoch uint32, display int, screen frame.DesktopScreen) {
	ctx, cancel := context.WithCancel(ctx)
	st := &stream{epoch: epoch, cancel: cancel, done: make(chan struct{})}
	s.stream = st
	s.state.Store(int32(StateStreaming))
	s.logger.Info("streaming started", "epoch", byte(epoch), "screen", screen.OutputName,
		"width", screen.Width, "height", screen.Height)

	go func() {
		defer close(st.done)
		s.run(ctx, epoch, display, screen)
	}()
}

// stopStream cancels the running loop, invalidates its epoch and waits for
// it to exit. A loop that outlives the join timeout has its connection
// closed under it.
func (s *Session) stopStream() {
	st := s.stream
	if st == nil {
		return
	}
	s.stream = nil
	st.cancel()
	s.nextEpoch()
	s.state.Store(int32(StateIdle))

	expired := make(chan struct{})
	timer := s.clock.AfterFunc(s.joinTimeout, func() { close(expired) })
	defer timer.Stop()

	select {
	case <-st.done:
		s.logger.Info("streaming stopped", "epoch", byte(st.epoch))
	case <-expired:
		s.logger.Error("stream loop ignored cancellation, closing connection",
			"epoch", byte(st.epoch), "timeout", s.joinTimeout)
		s.conn.Close()
	}
}

// run is the capture, encode and send loop for one epoch.
func (s *Session) run(ctx context.Context, epoch uint32, display int, screen frame.DesktopScreen) {
	logger := s.logger.With("epoch", byte(epoch))
	full := true
	last := s.clock.Now()

	for {
		if !s.waitForCredit(ctx) {
			return
		}
		settings := s.Settings()
		if s.refresh.Swap(false) {
			full = true
		}

		img, err := s.capture.Capture(ctx, screen, full)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			s.captureLog.Do(func() {
				logger.Warn("capture failed", "error", err)
			})
			if errors.Is(err, capture.ErrDisplayNotFound) {
				if next, rerr := s.resolveScreen(ctx, display); rerr == nil {
					screen = next
				}
			}
		case img != nil:
			sent, err := s.deliver(ctx, epoch, img, settings)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, errStale) {
					logger.Error("stream send failed", "error", err)
				}
				return
			}
			full = !sent
		}

		var ok bool
		last, ok = s.pace(ctx, last, settings.MaxFPS)
		if !ok {
			return
		}
	}
}

var errStale = errors.New("frame belongs to a previous stream")

// deliver compresses img, tags it with epoch and sends it. It reports false
// when the frame was dropped, so the caller resynchronises with a full one.
func (s *Session) deliver(ctx context.Context, epoch uint32, img *frame.FragmentedImage, settings frame.StreamSettings) (bool, error) {
	if err := encoder.CompressFrame(s.encoder, img, settings); err != nil {
		s.logger.Warn("compress frame", "error", err)
		return false, nil
	}
	img.StreamID = byte(epoch)
	msg, err := protocol.MarshalFrame(img)
	if err != nil {
		s.logger.Warn("marshal frame", "error", err)
		return false, nil
	}
	if ctx.Err() != nil {
		return false, errStale
	}
	if err := s.sendFrame(epoch, msg); err != nil {
		return false, err
	}
	return true, nil
}

// waitForCredit blocks while the viewer has too many frames outstanding.
func (s *Session) waitForCredit(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		limit := int64(s.Settings().MaxUnacknowledgedFrames)
		if s.framesSent.Load()-s.framesAcked.Load() < limit {
			return true
		}
		s.clock.Sleep(pollInterval)
	}
}

// pace sleeps until last + 1s/maxFps and returns the new tick time. A loop
// that is already behind re-anchors at now instead of bursting.
func (s *Session) pace(ctx context.Context, last time.Time, maxFPS byte) (time.Time, bool) {
	period := time.Second / time.Duration(max(maxFPS, 1))
	next := last.Add(period)
	now := s.clock.Now()
	if !next.After(now) {
		return now, ctx.Err() == nil
	}
	for {
		if ctx.Err() != nil {
			return next, false
		}
		remaining := next.Sub(s.clock.Now())
		if remaining <= 0 {
			return next, true
		}
		s.clock.Sleep(min(remaining, pollInterval))
	}
}

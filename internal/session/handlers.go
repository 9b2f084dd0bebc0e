package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/input"
	"github.com/junsooki/AirDesk/internal/protocol"
)

var (
	errUnsupportedStream = errors.New("unsupported stream type")
	errNoScreens         = errors.New("desktop has no screens")
)

func (s *Session) handleStartStreaming(ctx context.Context, payload []byte) error {
	req, err := protocol.ParseStartStreaming(payload)
	if err != nil {
		return malformed(err)
	}
	if req.StreamType != protocol.StreamTypeJPEG {
		return unspecified(fmt.Errorf("%w: %d", errUnsupportedStream, req.StreamType))
	}
	screen, err := s.resolveScreen(ctx, int(req.Display))
	if err != nil {
		return unspecified(err)
	}

	s.stopStream()
	epoch := s.nextEpoch()
	s.framesSent.Store(0)
	s.framesAcked.Store(0)
	s.screen = screen

	if err := s.send(protocol.StartStreamingReply(byte(epoch))); err != nil {
		return err
	}
	s.startStream(ctx, epoch, int(req.Display), screen)
	return nil
}

// resolveScreen enumerates the desktop and picks screen i, falling back to
// the primary screen when i is out of range.
func (s *Session) resolveScreen(ctx context.Context, i int) (frame.DesktopScreen, error) {
	info, err := s.desktop.Desktop(ctx)
	if err != nil {
		return frame.DesktopScreen{}, fmt.Errorf("enumerate desktop: %w", err)
	}
	if len(info.Screens) == 0 {
		return frame.DesktopScreen{}, errNoScreens
	}
	screen, ok := info.Screen(i)
	if !ok {
		s.logger.Warn("display index out of range, using primary", "display", i, "screens", len(info.Screens))
		screen = info.Screens[0]
	}
	return screen, nil
}

func (s *Session) handleStopStreaming(ctx context.Context, payload []byte) error {
	s.stopStream()
	return nil
}

func (s *Session) handleAcknowledgeFrame(ctx context.Context, payload []byte) error {
	id, err := protocol.ParseAcknowledgeFrame(payload)
	if err != nil {
		return malformed(err)
	}
	if id == byte(s.epoch.Load()) {
		s.framesAcked.Add(1)
	}
	return nil
}

func (s *Session) handleReproduceUserInput(ctx context.Context, payload []byte) error {
	if len(payload) == 0 {
		return malformed(fmt.Errorf("input event: %w", protocol.ErrShortPayload))
	}
	event, err := input.Unmarshal(payload)
	if err != nil {
		return malformed(err)
	}
	if s.injector == nil {
		return nil
	}
	event.X += float64(s.screen.X)
	event.Y += float64(s.screen.Y)
	if err := s.injector.Inject(event); err != nil {
		return unspecified(fmt.Errorf("inject %s: %w", event.Type, err))
	}
	return nil
}

func (s *Session) handleGetDesktopInfo(ctx context.Context, payload []byte) error {
	info, err := s.desktop.Desktop(ctx)
	if err != nil {
		return unspecified(fmt.Errorf("enumerate desktop: %w", err))
	}
	msg, err := protocol.MarshalDesktopInfo(info)
	if err != nil {
		return unspecified(err)
	}
	return s.send(msg)
}

func (s *Session) handleSetStreamSettings(ctx context.Context, payload []byte) error {
	settings, err := protocol.ParseSetStreamSettings(payload)
	if err != nil {
		return malformed(err)
	}
	if settings.ColorFlags.Refresh() {
		s.refresh.Store(true)
	}
	settings = settings.Clamp()
	settings.ColorFlags &^= frame.ColorRefresh

	s.settingsMu.Lock()
	s.settings = settings
	s.settingsMu.Unlock()
	s.logger.Debug("stream settings changed",
		"subsampling", settings.ColorFlags.Subsampling(),
		"quality", settings.JPEGQuality,
		"max_fps", settings.MaxFPS,
		"max_unacked", settings.MaxUnacknowledgedFrames)
	return nil
}

func (s *Session) handleGetStreamSettings(ctx context.Context, payload []byte) error {
	return s.send(protocol.StreamSettingsReply(s.Settings()))
}

func (s *Session) handleKeepAlive(ctx context.Context, payload []byte) error {
	return nil
}

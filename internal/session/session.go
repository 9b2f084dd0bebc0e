// Package session serves one viewer connection: it answers protocol
// requests and, while streaming, runs the capture, encode and send loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/junsooki/AirDesk/internal/capture"
	"github.com/junsooki/AirDesk/internal/clock"
	"github.com/junsooki/AirDesk/internal/encoder"
	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/input"
	"github.com/junsooki/AirDesk/internal/protocol"
	"github.com/junsooki/AirDesk/internal/transport"
)

const (
	// DefaultJoinTimeout bounds how long StopStreaming waits for the loop.
	DefaultJoinTimeout = 3 * time.Second

	// pollInterval is the longest any wait in the loop goes without
	// checking for cancellation.
	pollInterval = 10 * time.Millisecond
)

// State is the session's streaming state.
type State int32

const (
	StateIdle State = iota
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Config holds a session's collaborators. Capture must not be shared with
// another session; a DiffCapturer keeps a per-viewer baseline.
type Config struct {
	Conn     transport.Conn
	Capture  capture.Provider
	Encoder  encoder.Encoder
	Desktop  capture.DesktopSource
	Injector input.Injector

	// Settings are the initial stream settings. The zero value selects
	// frame.DefaultStreamSettings.
	Settings    frame.StreamSettings
	JoinTimeout time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

type handler func(ctx context.Context, payload []byte) error

// Session is the host side of one viewer connection.
type Session struct {
	id          string
	conn        transport.Conn
	capture     capture.Provider
	encoder     encoder.Encoder
	desktop     capture.DesktopSource
	injector    input.Injector
	clock       clock.Clock
	logger      *slog.Logger
	joinTimeout time.Duration
	handlers    [256]handler

	// writeMu serialises replies and frames on conn.
	writeMu sync.Mutex

	settingsMu sync.Mutex
	settings   frame.StreamSettings
	refresh    atomic.Bool

	epoch       atomic.Uint32
	framesSent  atomic.Int64
	framesAcked atomic.Int64
	state       atomic.Int32

	// stream and screen are owned by the Serve goroutine.
	stream *stream
	screen frame.DesktopScreen

	captureLog rate.Sometimes
}

type stream struct {
	epoch  uint32
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a session around cfg.Conn. Call Serve to run it.
func New(cfg Config) *Session {
	s := &Session{
		id:          uuid.NewString(),
		conn:        cfg.Conn,
		capture:     cfg.Capture,
		encoder:     cfg.Encoder,
		desktop:     cfg.Desktop,
		injector:    cfg.Injector,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		joinTimeout: cfg.JoinTimeout,
		settings:    cfg.Settings,
		captureLog:  rate.Sometimes{First: 3, Interval: 5 * time.Second},
	}
	if s.encoder == nil {
		s.encoder = encoder.NewJPEGEncoder()
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session", s.id)
	if s.joinTimeout <= 0 {
		s.joinTimeout = DefaultJoinTimeout
	}
	if s.settings == (frame.StreamSettings{}) {
		s.settings = frame.DefaultStreamSettings()
	}
	s.settings = s.settings.Clamp()
	s.settings.ColorFlags &^= frame.ColorRefresh

	s.handlers[protocol.CmdStartStreaming] = s.handleStartStreaming
	s.handlers[protocol.CmdStopStreaming] = s.handleStopStreaming
	s.handlers[protocol.CmdAcknowledgeFrame] = s.handleAcknowledgeFrame
	s.handlers[protocol.CmdReproduceUserInput] = s.handleReproduceUserInput
	s.handlers[protocol.CmdGetDesktopInfo] = s.handleGetDesktopInfo
	s.handlers[protocol.CmdSetStreamSettings] = s.handleSetStreamSettings
	s.handlers[protocol.CmdGetStreamSettings] = s.handleGetStreamSettings
	s.handlers[protocol.CmdKeepAlive] = s.handleKeepAlive
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State reports whether a stream is running.
func (s *Session) State() State { return State(s.state.Load()) }

// Epoch returns the current stream id as it appears on the wire.
func (s *Session) Epoch() byte { return byte(s.epoch.Load()) }

// Settings returns the current stream settings.
func (s *Session) Settings() frame.StreamSettings {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()
	return s.settings
}

// Serve reads requests until the connection fails or ctx is cancelled,
// then stops any running stream and closes the connection. A clean close
// by the peer returns nil.
func (s *Session) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()
	defer s.stopStream()

	s.logger.Info("session started")
	defer s.logger.Info("session ended")

	for {
		msg, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}
		if err := s.dispatch(ctx, msg); err != nil {
			return err
		}
	}
}

// requestError is answered with a one-byte error reply; the session keeps
// going.
type requestError struct {
	code protocol.Command
	err  error
}

func (e *requestError) Error() string { return fmt.Sprintf("%s: %v", e.code, e.err) }
func (e *requestError) Unwrap() error { return e.err }

func malformed(err error) error {
	return &requestError{code: protocol.CmdErrorSyntax, err: err}
}

func unspecified(err error) error {
	return &requestError{code: protocol.CmdErrorUnspecified, err: err}
}

func (s *Session) dispatch(ctx context.Context, msg []byte) error {
	cmd, payload, err := protocol.Split(msg)
	if err != nil {
		return s.replyError(protocol.CmdErrorSyntax, "empty request", err)
	}
	h := s.handlers[cmd]
	if h == nil {
		return s.replyError(protocol.CmdErrorCommandUnknown, "unknown command", fmt.Errorf("%w: byte %d", protocol.ErrUnknownCommand, byte(cmd)))
	}
	err = h(ctx, payload)
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return s.replyError(reqErr.code, cmd.String()+" failed", reqErr.err)
	}
	return err
}

func (s *Session) replyError(code protocol.Command, msg string, err error) error {
	s.logger.Warn(msg, "reply", code, "error", err)
	return s.send(protocol.ErrorReply(code))
}

// send writes one message. A failed write closes the connection, which ends
// Serve and the stream loop.
func (s *Session) send(msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.write(msg)
}

// sendFrame writes a frame of stream epoch unless the stream has been
// superseded. The check and the write share writeMu with nextEpoch, so no
// frame of an old stream follows a Stop or Start on the wire.
func (s *Session) sendFrame(epoch uint32, msg []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.epoch.Load() != epoch {
		return errStale
	}
	s.framesSent.Add(1)
	return s.write(msg)
}

// nextEpoch invalidates the current stream id and returns the new one.
func (s *Session) nextEpoch() uint32 {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.epoch.Add(1)
}

// write must be called with writeMu held.
func (s *Session) write(msg []byte) error {
	if err := s.conn.WriteMessage(msg); err != nil {
		s.conn.Close()
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

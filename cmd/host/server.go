package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/junsooki/AirDesk/internal/capture"
	"github.com/junsooki/AirDesk/internal/config"
	"github.com/junsooki/AirDesk/internal/encoder"
	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/input"
	"github.com/junsooki/AirDesk/internal/peer"
	"github.com/junsooki/AirDesk/internal/session"
	"github.com/junsooki/AirDesk/internal/signaling"
	"github.com/junsooki/AirDesk/internal/transport"
)

// patternScreen is the single screen a pattern-capture host reports.
var patternScreen = frame.DesktopScreen{AdapterName: "virtual", OutputName: "pattern", Width: 1280, Height: 720}

// server accepts viewer connections over WebSocket and, when signaling is
// configured, over WebRTC. Every connection gets its own session and
// capture pipeline.
type server struct {
	cfg      *config.HostConfig
	logger   *slog.Logger
	settings frame.StreamSettings
	desktop  capture.DesktopSource
	injector input.Injector
	grabber  func() capture.Grabber

	// sessMu orders track against drain so no session is added once
	// drain has started waiting.
	sessMu   sync.Mutex
	draining bool
	sessions sync.WaitGroup

	peersMu sync.Mutex
	peers   map[string]*peer.Host
}

func newServer(cfg *config.HostConfig, logger *slog.Logger) (*server, error) {
	settings, err := cfg.Stream.Settings()
	if err != nil {
		return nil, err
	}
	s := &server{
		cfg:      cfg,
		logger:   logger,
		settings: settings,
		peers:    make(map[string]*peer.Host),
	}
	switch cfg.Capture {
	case config.CapturePattern:
		s.desktop = capture.StaticDesktop{Screens: []frame.DesktopScreen{patternScreen}}
		s.injector = input.NewRecorder(logger)
		s.grabber = func() capture.Grabber { return &capture.PatternGrabber{} }
	default:
		s.desktop = capture.ScreenshotDesktop{}
		s.injector = input.PlatformInjector()
		s.grabber = capture.PlatformGrabber
	}
	return s, nil
}

// provider builds the capture pipeline for one viewer: the tile diff with a
// full-frame fallback.
func (s *server) provider() capture.Provider {
	g := s.grabber()
	fast := capture.NewDiffCapturer(g, capture.WithTileSize(s.cfg.TileSize))
	slow := capture.NewFullFrameCapturer(g)
	return capture.NewFallback(fast, slow, capture.WithLogger(s.logger))
}

// serveConn runs one session until the connection ends.
func (s *server) serveConn(ctx context.Context, conn transport.Conn, remote string) {
	if !s.track() {
		s.logger.Info("shutting down, refusing connection", "remote", remote)
		conn.Close()
		return
	}
	defer s.sessions.Done()

	sess := session.New(session.Config{
		Conn:        conn,
		Capture:     s.provider(),
		Encoder:     encoder.NewJPEGEncoder(),
		Desktop:     s.desktop,
		Injector:    s.injector,
		Settings:    s.settings,
		JoinTimeout: s.cfg.JoinTimeout,
		Logger:      s.logger.With("remote", remote),
	})
	if err := sess.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("session failed", "session", sess.ID(), "remote", remote, "error", err)
	}
}

// track registers a new session unless the server is draining.
func (s *server) track() bool {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if s.draining {
		return false
	}
	s.sessions.Add(1)
	return true
}

// drain refuses new sessions and waits for the running ones to end.
func (s *server) drain() {
	s.sessMu.Lock()
	s.draining = true
	s.sessMu.Unlock()
	s.sessions.Wait()
}

func (s *server) handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /desktop", func(w http.ResponseWriter, r *http.Request) {
		conn, err := transport.Upgrade(w, r)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.serveConn(ctx, conn, r.RemoteAddr)
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Run serves until ctx is cancelled or a component fails.
func (s *server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.cfg.Listen != "" {
		httpServer := &http.Server{
			Addr:              s.cfg.Listen,
			Handler:           s.handler(ctx),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			s.logger.Info("listening", "addr", s.cfg.Listen, "endpoint", "/desktop")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
	}

	if s.cfg.SignalingURL != "" {
		g.Go(func() error { return s.runSignaling(ctx) })
	}

	err := g.Wait()
	s.drain()
	return err
}

func (s *server) runSignaling(ctx context.Context) error {
	self := signaling.Identity{ID: s.cfg.HostID, Role: signaling.RoleHost}
	self.Name, _ = os.Hostname()
	if info, err := s.desktop.Desktop(ctx); err == nil {
		self.Screens = len(info.Screens)
	} else {
		s.logger.Warn("enumerate screens", "error", err)
	}

	var sig *signaling.Client
	sig = signaling.NewClient(s.cfg.SignalingURL, self, signaling.Handler{
		OnRegistered: func() {
			s.logger.Info("host ready, share this ID with controllers", "id", s.cfg.HostID)
		},
		OnOffer: func(from string, payload json.RawMessage) {
			s.handleOffer(ctx, sig, from, payload)
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			s.peersMu.Lock()
			h := s.peers[from]
			s.peersMu.Unlock()
			if h == nil {
				return
			}
			if err := h.HandleICECandidate(payload); err != nil {
				s.logger.Warn("handle ICE candidate", "peer", from, "error", err)
			}
		},
	}, s.logger)

	if err := sig.Connect(ctx); err != nil {
		return err
	}
	defer sig.Close()

	select {
	case <-ctx.Done():
		s.closePeers()
		return nil
	case <-sig.Done():
		s.closePeers()
		return errors.New("signaling connection lost")
	}
}

func (s *server) handleOffer(ctx context.Context, sig *signaling.Client, from string, payload json.RawMessage) {
	h, err := peer.NewHost(sig, from, s.logger)
	if err != nil {
		s.logger.Warn("create host peer", "peer", from, "error", err)
		return
	}
	s.peersMu.Lock()
	if old := s.peers[from]; old != nil {
		old.Close()
	}
	s.peers[from] = h
	s.peersMu.Unlock()

	if err := h.HandleOffer(payload); err != nil {
		s.logger.Warn("handle offer", "peer", from, "error", err)
		s.dropPeer(from, h)
		return
	}

	go func() {
		defer s.dropPeer(from, h)
		select {
		case conn := <-h.Conn():
			s.serveConn(ctx, conn, "webrtc:"+from)
		case <-time.After(30 * time.Second):
			s.logger.Warn("data channel never opened", "peer", from)
		case <-ctx.Done():
		}
	}()
}

func (s *server) dropPeer(id string, h *peer.Host) {
	s.peersMu.Lock()
	if s.peers[id] == h {
		delete(s.peers, id)
	}
	s.peersMu.Unlock()
	h.Close()
}

func (s *server) closePeers() {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	for id, h := range s.peers {
		h.Close()
		delete(s.peers, id)
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/junsooki/AirDesk/internal/config"
	"github.com/junsooki/AirDesk/internal/peer"
	"github.com/junsooki/AirDesk/internal/signaling"
	"github.com/junsooki/AirDesk/internal/transport"
)

// connect opens the protocol connection to the host, either directly over
// WebSocket or through the signaling server and a WebRTC data channel. The
// returned func releases everything connect created.
func connect(ctx context.Context, cfg *config.ControllerConfig, logger *slog.Logger) (transport.Conn, func(), error) {
	if cfg.URL != "" {
		conn, err := transport.Dial(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("connected", "url", cfg.URL)
		return conn, func() { conn.Close() }, nil
	}
	return connectPeer(ctx, cfg, logger)
}

func connectPeer(ctx context.Context, cfg *config.ControllerConfig, logger *slog.Logger) (transport.Conn, func(), error) {
	var ctrl atomic.Pointer[peer.Controller]
	registered := make(chan struct{})
	failed := make(chan string, 1)

	sig := signaling.NewClient(cfg.SignalingURL, signaling.Identity{ID: cfg.ControllerID, Role: signaling.RoleController}, signaling.Handler{
		OnRegistered: func() { close(registered) },
		OnAnswer: func(from string, payload json.RawMessage) {
			c := ctrl.Load()
			if c == nil || from != cfg.HostID {
				return
			}
			if err := c.HandleAnswer(payload); err != nil {
				logger.Warn("handle answer", "error", err)
			}
		},
		OnICECandidate: func(from string, payload json.RawMessage) {
			c := ctrl.Load()
			if c == nil || from != cfg.HostID {
				return
			}
			if err := c.HandleICECandidate(payload); err != nil {
				logger.Warn("handle ICE candidate", "error", err)
			}
		},
		OnHostDisconnected: func(hostID string) {
			if hostID == cfg.HostID {
				logger.Warn("host disconnected from signaling", "host", hostID)
			}
		},
		OnError: func(msg string) {
			select {
			case failed <- msg:
			default:
			}
		},
	}, logger)

	if err := sig.Connect(ctx); err != nil {
		return nil, nil, err
	}
	select {
	case <-registered:
	case msg := <-failed:
		sig.Close()
		return nil, nil, fmt.Errorf("signaling: %s", msg)
	case <-sig.Done():
		return nil, nil, errors.New("signaling connection lost")
	case <-ctx.Done():
		sig.Close()
		return nil, nil, ctx.Err()
	}

	c, err := peer.NewController(sig, cfg.HostID, logger)
	if err != nil {
		sig.Close()
		return nil, nil, err
	}
	ctrl.Store(c)

	conn, err := c.Connect(ctx)
	if err != nil {
		c.Close()
		sig.Close()
		return nil, nil, fmt.Errorf("connect to host %s: %w", cfg.HostID, err)
	}
	logger.Info("connected", "host", cfg.HostID, "channel", conn.Label())
	return conn, func() {
		conn.Close()
		c.Close()
		sig.Close()
	}, nil
}

// Package peer negotiates the optional WebRTC path. The host answers a
// controller's offer and the controller opens one ordered data channel,
// "desktop", that carries the streaming protocol.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/AirDesk/internal/transport"
)

// ChannelLabel names the data channel carrying the protocol.
const ChannelLabel = "desktop"

// ICEServers is the default ICE server configuration.
var ICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
}

// Signaler relays negotiation messages to the remote peer.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// NewPeerConnection creates a configured PeerConnection.
func NewPeerConnection(logger *slog.Logger) (*webrtc.PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: ICEServers})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Info("peer connection state", "state", state.String())
	})
	return pc, nil
}

func trickle(pc *webrtc.PeerConnection, sig Signaler, target func() string, logger *slog.Logger) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		to := target()
		if to == "" {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Warn("marshal ICE candidate", "error", err)
			return
		}
		if err := sig.SendICECandidate(to, data); err != nil {
			logger.Warn("send ICE candidate", "error", err)
		}
	})
}

func addCandidate(pc *webrtc.PeerConnection, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("decode ICE candidate: %w", err)
	}
	return pc.AddICECandidate(candidate)
}

// waitOpen blocks until dc opens or ctx ends.
func waitOpen(ctx context.Context, dc *webrtc.DataChannel, conn *transport.DataChannelConn) (*transport.DataChannelConn, error) {
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })
	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		return conn, nil
	}
	select {
	case <-opened:
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

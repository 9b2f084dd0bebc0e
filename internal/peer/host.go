package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/AirDesk/internal/transport"
)

// Host is the answering side of one controller's connection.
type Host struct {
	pc     *webrtc.PeerConnection
	sig    Signaler
	peerID string
	logger *slog.Logger

	once sync.Once
	conn chan *transport.DataChannelConn
}

// NewHost prepares to answer an offer from peerID. The returned Host
// delivers the protocol connection on Conn once the controller's data
// channel opens.
func NewHost(sig Signaler, peerID string, logger *slog.Logger) (*Host, error) {
	logger = logger.With("peer", peerID)
	pc, err := NewPeerConnection(logger)
	if err != nil {
		return nil, err
	}
	h := &Host{
		pc:     pc,
		sig:    sig,
		peerID: peerID,
		logger: logger,
		conn:   make(chan *transport.DataChannelConn, 1),
	}
	trickle(pc, sig, func() string { return peerID }, logger)

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			logger.Warn("ignoring data channel", "label", dc.Label())
			return
		}
		conn := transport.NewDataChannelConn(dc)
		dc.OnOpen(func() {
			h.once.Do(func() { h.conn <- conn })
		})
	})
	return h, nil
}

// Conn delivers the protocol connection once it opens.
func (h *Host) Conn() <-chan *transport.DataChannelConn {
	return h.conn
}

// HandleOffer applies the controller's offer and sends the answer.
func (h *Host) HandleOffer(payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}
	if err := h.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := h.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return h.sig.SendAnswer(h.peerID, data)
}

// HandleICECandidate adds a remote ICE candidate.
func (h *Host) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(h.pc, payload)
}

// Close shuts down the peer connection.
func (h *Host) Close() error {
	return h.pc.Close()
}

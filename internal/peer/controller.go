package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/AirDesk/internal/transport"
)

// Controller is the offering side. It creates the data channel.
type Controller struct {
	pc     *webrtc.PeerConnection
	sig    Signaler
	hostID string
	dc     *webrtc.DataChannel
	conn   *transport.DataChannelConn
}

// NewController creates the peer connection and the ordered, reliable
// protocol data channel.
func NewController(sig Signaler, hostID string, logger *slog.Logger) (*Controller, error) {
	logger = logger.With("host", hostID)
	pc, err := NewPeerConnection(logger)
	if err != nil {
		return nil, err
	}
	ordered := true
	dc, err := pc.CreateDataChannel(ChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	trickle(pc, sig, func() string { return hostID }, logger)
	return &Controller{
		pc:     pc,
		sig:    sig,
		hostID: hostID,
		dc:     dc,
		conn:   transport.NewDataChannelConn(dc),
	}, nil
}

// Connect sends the offer and waits for the data channel to open.
func (c *Controller) Connect(ctx context.Context) (*transport.DataChannelConn, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	data, err := json.Marshal(offer)
	if err != nil {
		return nil, err
	}
	if err := c.sig.SendOffer(c.hostID, data); err != nil {
		return nil, fmt.Errorf("send offer: %w", err)
	}
	return waitOpen(ctx, c.dc, c.conn)
}

// HandleAnswer applies the host's answer.
func (c *Controller) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return c.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (c *Controller) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(c.pc, payload)
}

// Close shuts down the peer connection.
func (c *Controller) Close() error {
	return c.pc.Close()
}

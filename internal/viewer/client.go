// Package viewer is the controller side of the streaming protocol. A Client
// sends requests to the host, routes replies back to their callers and
// hands streamed frames to a FrameHandler.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/junsooki/AirDesk/internal/frame"
	"github.com/junsooki/AirDesk/internal/input"
	"github.com/junsooki/AirDesk/internal/protocol"
	"github.com/junsooki/AirDesk/internal/transport"
)

// FrameHandler receives every frame the host streams.
type FrameHandler interface {
	HandleFrame(img *frame.FragmentedImage)
}

// RemoteError is an error reply from the host.
type RemoteError struct {
	Code protocol.Command
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("viewer: host replied %s", e.Code)
}

// ErrNotRunning is returned to callers waiting on a reply when Run exits.
var ErrNotRunning = errors.New("viewer: client is not running")

// noStream marks a client with no active stream; every frame is dropped.
const noStream = -1

type call struct {
	cmd   protocol.Command
	reply chan []byte
}

// Client speaks the protocol over one connection. Requests may be issued
// from any goroutine; Run must be running for replies to arrive.
type Client struct {
	conn   transport.Conn
	frames FrameHandler
	logger *slog.Logger

	writeMu sync.Mutex
	// stream is the id frames must carry to be painted, or noStream.
	stream atomic.Int32

	mu      sync.Mutex
	pending []*call
	stopped bool
}

func NewClient(conn transport.Conn, frames FrameHandler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{conn: conn, frames: frames, logger: logger}
	c.stream.Store(noStream)
	return c
}

// SetFrameHandler replaces the frame handler. It must be called before Run.
func (c *Client) SetFrameHandler(h FrameHandler) {
	c.frames = h
}

// Run reads from the connection until it closes or ctx is cancelled. It is
// the only reader of the connection.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		c.conn.Close()
	}()
	defer c.failPending()

	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.route(msg)
	}
}

func (c *Client) route(msg []byte) {
	cmd, _, err := protocol.Split(msg)
	if err != nil {
		c.logger.Warn("empty message from host")
		return
	}
	if cmd == protocol.CmdGetScreenCapture {
		img, err := protocol.UnmarshalFrame(msg)
		if err != nil {
			c.logger.Warn("bad frame", "error", err)
			return
		}
		if id := c.stream.Load(); id == noStream || byte(id) != img.StreamID {
			c.logger.Debug("dropping frame of a previous stream", "stream", img.StreamID, "current", id)
			return
		}
		if c.frames != nil {
			c.frames.HandleFrame(img)
		}
		return
	}

	c.mu.Lock()
	idx := -1
	for i, p := range c.pending {
		// Error replies carry no correlation; they answer the oldest
		// outstanding request.
		if p.cmd == cmd || cmd.IsError() {
			idx = i
			break
		}
	}
	var target *call
	if idx >= 0 {
		target = c.pending[idx]
		c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
	}
	c.mu.Unlock()

	if target == nil {
		if cmd.IsError() {
			c.logger.Warn("host rejected a request", "reply", cmd)
		} else {
			c.logger.Warn("unsolicited reply", "command", cmd)
		}
		return
	}
	// The stream id is recorded here, before Run reads the frames that
	// follow the reply.
	if target.cmd == protocol.CmdStartStreaming && !cmd.IsError() {
		if id, err := protocol.ParseStartStreamingReply(msg); err == nil {
			c.stream.Store(int32(id))
		}
	}
	target.reply <- msg
}

func (c *Client) failPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.stopped = true
	c.mu.Unlock()
	for _, p := range pending {
		close(p.reply)
	}
}

func (c *Client) send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(msg)
}

// request sends msg and waits for the reply to cmd.
func (c *Client) request(ctx context.Context, cmd protocol.Command, msg []byte) ([]byte, error) {
	p := &call{cmd: cmd, reply: make(chan []byte, 1)}
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil, ErrNotRunning
	}
	c.pending = append(c.pending, p)
	c.mu.Unlock()

	if err := c.send(msg); err != nil {
		c.forget(p)
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}
	select {
	case reply, ok := <-p.reply:
		if !ok {
			return nil, ErrNotRunning
		}
		if rc := protocol.Command(reply[0]); rc.IsError() {
			return nil, &RemoteError{Code: rc}
		}
		return reply, nil
	case <-ctx.Done():
		c.forget(p)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(p *call) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.pending {
		if q == p {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

// StartStreaming asks the host to stream display and returns the stream id
// its frames will carry. Frames with any other id are dropped from then on.
func (c *Client) StartStreaming(ctx context.Context, streamType, display byte) (byte, error) {
	c.stream.Store(noStream)
	reply, err := c.request(ctx, protocol.CmdStartStreaming, protocol.StartStreamingRequest(streamType, display))
	if err != nil {
		return 0, err
	}
	return protocol.ParseStartStreamingReply(reply)
}

// StopStreaming ends the stream. Frames still in flight are dropped.
func (c *Client) StopStreaming() error {
	c.stream.Store(noStream)
	return c.send(protocol.StopStreamingRequest())
}

// AcknowledgeFrame reports a painted frame back to the host.
func (c *Client) AcknowledgeFrame(streamID byte) error {
	return c.send(protocol.AcknowledgeFrameRequest(streamID))
}

func (c *Client) SetStreamSettings(s frame.StreamSettings) error {
	return c.send(protocol.SetStreamSettingsRequest(s))
}

func (c *Client) GetStreamSettings(ctx context.Context) (frame.StreamSettings, error) {
	reply, err := c.request(ctx, protocol.CmdGetStreamSettings, protocol.GetStreamSettingsRequest())
	if err != nil {
		return frame.StreamSettings{}, err
	}
	return protocol.ParseStreamSettingsReply(reply)
}

func (c *Client) GetDesktopInfo(ctx context.Context) (frame.DesktopInfo, error) {
	reply, err := c.request(ctx, protocol.CmdGetDesktopInfo, protocol.GetDesktopInfoRequest())
	if err != nil {
		return frame.DesktopInfo{}, err
	}
	return protocol.UnmarshalDesktopInfo(reply)
}

// SendInput forwards a keyboard or mouse event. Coordinates are relative to
// the streamed screen.
func (c *Client) SendInput(e *input.Event) error {
	data, err := input.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode input event: %w", err)
	}
	return c.send(protocol.ReproduceUserInputRequest(data))
}

func (c *Client) KeepAlive() error {
	return c.send(protocol.KeepAliveRequest())
}

// Close closes the connection, which ends Run.
func (c *Client) Close() error {
	return c.conn.Close()
}

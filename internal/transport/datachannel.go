package transport

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// DataChannelConn carries the protocol over an ordered, reliable WebRTC
// data channel. Messages delivered before the first ReadMessage call are
// buffered.
type DataChannelConn struct {
	dc       *webrtc.DataChannel
	incoming chan []byte

	once sync.Once
	done chan struct{}
}

// NewDataChannelConn wraps dc. The channel should be created with
// Ordered set and no retransmit limit.
func NewDataChannelConn(dc *webrtc.DataChannel) *DataChannelConn {
	c := &DataChannelConn{
		dc:       dc,
		incoming: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if msg.IsString {
			return
		}
		select {
		case c.incoming <- msg.Data:
		case <-c.done:
		}
	})
	dc.OnClose(func() {
		c.shutdown()
	})
	return c
}

// Label returns the underlying channel label.
func (c *DataChannelConn) Label() string {
	return c.dc.Label()
}

func (c *DataChannelConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.incoming:
		return msg, nil
	default:
	}
	select {
	case msg := <-c.incoming:
		return msg, nil
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *DataChannelConn) WriteMessage(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	if err := c.dc.Send(data); err != nil {
		return fmt.Errorf("data channel send: %w", err)
	}
	return nil
}

func (c *DataChannelConn) Close() error {
	c.shutdown()
	return c.dc.Close()
}

func (c *DataChannelConn) shutdown() {
	c.once.Do(func() { close(c.done) })
}

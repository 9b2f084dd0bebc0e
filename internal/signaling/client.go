// Package signaling is the client for the WebSocket rendezvous server that
// pairs hosts with controllers and relays their WebRTC negotiation.
package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 25 * time.Second
	writeWait    = 10 * time.Second
)

// ErrNotConnected is returned by sends before Connect or after Close.
var ErrNotConnected = errors.New("signaling: not connected")

// Identity is what a client registers under. Hosts also advertise the name
// and screen count of the desktop they share.
type Identity struct {
	ID      string
	Role    Role
	Name    string
	Screens int
}

// Handler callbacks for incoming signaling messages. Callbacks run on the
// read goroutine, one at a time.
type Handler struct {
	OnRegistered       func()
	OnOffer            func(from string, payload json.RawMessage)
	OnAnswer           func(from string, payload json.RawMessage)
	OnICECandidate     func(from string, payload json.RawMessage)
	OnHostsUpdated     func(hosts []HostInfo)
	OnHostDisconnected func(hostID string)
	OnError            func(msg string)
}

// Client is a WebSocket signaling client.
type Client struct {
	url    string
	self   Identity
	routes map[Kind]func(Message)
	logger *slog.Logger
	rtt    atomic.Int64

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	closed bool
}

// NewClient creates a signaling client.
func NewClient(url string, self Identity, handler Handler, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:    url,
		self:   self,
		logger: logger.With("signaling", url),
		done:   make(chan struct{}),
	}
	c.routes = c.buildRoutes(handler)
	return c
}

func (c *Client) buildRoutes(h Handler) map[Kind]func(Message) {
	relay := func(fn func(string, json.RawMessage)) func(Message) {
		return func(m Message) {
			if fn != nil {
				fn(m.From, m.Payload)
			}
		}
	}
	hosts := func(m Message) {
		if h.OnHostsUpdated != nil {
			h.OnHostsUpdated(m.Hosts)
		}
	}
	return map[Kind]func(Message){
		KindRegistered: func(Message) {
			c.logger.Info("registered", "id", c.self.ID, "role", c.self.Role)
			if h.OnRegistered != nil {
				h.OnRegistered()
			}
		},
		KindOffer:        relay(h.OnOffer),
		KindAnswer:       relay(h.OnAnswer),
		KindICECandidate: relay(h.OnICECandidate),
		KindHosts:        hosts,
		KindHostsUpdated: hosts,
		KindHostDisconnected: func(m Message) {
			if h.OnHostDisconnected != nil {
				h.OnHostDisconnected(m.HostID)
			}
		},
		KindError: func(m Message) {
			c.logger.Warn("signaling server error", "message", m.Error)
			if h.OnError != nil {
				h.OnError(m.Error)
			}
		},
		KindPong: func(m Message) {
			if m.Sent > 0 {
				c.rtt.Store(int64(time.Since(time.UnixMilli(m.Sent))))
			}
		},
	}
}

// Connect dials the signaling server, registers, and starts reading.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("signaling dial: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.send(c.registration()); err != nil {
		c.Close()
		return fmt.Errorf("signaling register: %w", err)
	}

	go c.readLoop()
	go c.pingLoop()
	return nil
}

func (c *Client) registration() Message {
	msg := Message{Kind: KindRegister, ID: c.self.ID, Role: c.self.Role}
	if c.self.Role == RoleHost {
		msg.Host = &HostInfo{ID: c.self.ID, Name: c.self.Name, Screens: c.self.Screens, Online: true}
	}
	return msg
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// RTT is the round trip of the last answered ping, zero before the first.
func (c *Client) RTT() time.Duration {
	return time.Duration(c.rtt.Load())
}

// Close shuts down the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
	}
}

// SendOffer sends an SDP offer to target.
func (c *Client) SendOffer(target string, payload json.RawMessage) error {
	return c.send(Message{Kind: KindOffer, Target: target, Payload: payload})
}

// SendAnswer sends an SDP answer to target.
func (c *Client) SendAnswer(target string, payload json.RawMessage) error {
	return c.send(Message{Kind: KindAnswer, Target: target, Payload: payload})
}

// SendICECandidate sends an ICE candidate to target.
func (c *Client) SendICECandidate(target string, payload json.RawMessage) error {
	return c.send(Message{Kind: KindICECandidate, Target: target, Payload: payload})
}

// ListHosts asks the server for the hosts currently online. The answer
// arrives through Handler.OnHostsUpdated.
func (c *Client) ListHosts() error {
	return c.send(Message{Kind: KindListHosts})
}

func (c *Client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.closed {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *Client) readLoop() {
	defer c.Close()
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("signaling read failed", "error", err)
			}
			return
		}
		if err := msg.validate(); err != nil {
			c.logger.Warn("dropping signaling message", "error", err)
			continue
		}
		route, ok := c.routes[msg.Kind]
		if !ok {
			c.logger.Debug("ignoring signaling message", "type", msg.Kind)
			continue
		}
		route(msg)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.send(Message{Kind: KindPing, Sent: time.Now().UnixMilli()}); err != nil {
				c.logger.Debug("signaling ping failed", "error", err)
			}
		}
	}
}

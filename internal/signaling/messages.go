package signaling

import (
	"encoding/json"
	"fmt"
)

// Kind is the type tag of a signaling message.
type Kind string

const (
	KindRegister         Kind = "register"
	KindRegistered       Kind = "registered"
	KindListHosts        Kind = "list-hosts"
	KindHosts            Kind = "hosts"
	KindHostsUpdated     Kind = "hosts-updated"
	KindOffer            Kind = "offer"
	KindAnswer           Kind = "answer"
	KindICECandidate     Kind = "ice-candidate"
	KindPing             Kind = "ping"
	KindPong             Kind = "pong"
	KindError            Kind = "error"
	KindHostDisconnected Kind = "host-disconnected"
)

// Role is what a client registers as.
type Role string

const (
	RoleHost       Role = "host"
	RoleController Role = "controller"
)

// Message is the JSON envelope exchanged with the rendezvous server.
type Message struct {
	Kind    Kind            `json:"type"`
	ID      string          `json:"id,omitempty"`
	Role    Role            `json:"clientType,omitempty"`
	From    string          `json:"from,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Hosts   []HostInfo      `json:"list,omitempty"`
	// Host is the desktop a host advertises when it registers.
	Host   *HostInfo `json:"host,omitempty"`
	HostID string    `json:"hostId,omitempty"`
	Error  string    `json:"message,omitempty"`
	// Sent is a unix millisecond timestamp carried by pings and echoed by
	// pongs.
	Sent int64 `json:"timestamp,omitempty"`
}

// HostInfo describes a host sharing its desktop.
type HostInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Screens int    `json:"screens,omitempty"`
	Online  bool   `json:"online"`
}

// relayed reports whether m is WebRTC negotiation forwarded from a peer.
func (m Message) relayed() bool {
	switch m.Kind {
	case KindOffer, KindAnswer, KindICECandidate:
		return true
	}
	return false
}

func (m Message) validate() error {
	if m.Kind == "" {
		return fmt.Errorf("message without type")
	}
	if m.relayed() && m.From == "" {
		return fmt.Errorf("%s without sender", m.Kind)
	}
	return nil
}

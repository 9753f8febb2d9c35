// Package collab defines the contracts the gossip core consumes from its
// host environment: transport, peer identity, scoring, subscription
// bookkeeping, randomness and time. The core (internal/gossip) depends
// only on these interfaces, never on a concrete transport stack — wiring
// a real libp2p-style host, a test harness, or a simulation all look the
// same from the core's point of view.
package collab

import "fmt"

// PeerID is an opaque remote-peer identifier. The core never parses it.
type PeerID string

// Topic is a UTF-8 topic name.
type Topic string

// MessageID is an opaque identifier derived from a Message by GetMessageID.
type MessageID string

// ProtocolVersion is the GossipSub dialect a peer speaks.
type ProtocolVersion int

const (
	ProtocolV10 ProtocolVersion = iota
	ProtocolV11
)

func (v ProtocolVersion) String() string {
	if v == ProtocolV11 {
		return "v1.1"
	}
	return "v1.0"
}

// Message is the payload the core forwards. Signature and Data are opaque
// to the core; From/Seqno/Topics are inspected for id derivation and
// mesh/fanout routing.
type Message struct {
	From      PeerID
	Seqno     []byte
	Topics    []Topic
	Data      []byte
	Signature []byte
}

func (m *Message) String() string {
	return fmt.Sprintf("Message{from=%s, topics=%v, size=%d}", m.From, m.Topics, len(m.Data))
}

// PeerInfo is a peer-exchange candidate carried opaquely in a PRUNE.
type PeerInfo struct {
	PeerID       PeerID
	SignedRecord []byte
}

// Control message kinds, dispatched by the ControlHandler.

// Graft requests that the sender be admitted to topic's mesh.
type Graft struct {
	Topic Topic
}

// Prune signals mesh removal, optionally carrying a backoff and PX peers
// (v1.1 only).
type Prune struct {
	Topic   Topic
	Backoff *uint64 // seconds; nil if absent
	Peers   []PeerInfo
}

// IHave lazily announces recently seen message ids.
type IHave struct {
	Topic      Topic
	MessageIDs []MessageID
}

// IWant pulls full messages for previously announced ids.
type IWant struct {
	MessageIDs []MessageID
}

// RPC is one batch of control items and/or messages addressed to a single
// peer. Grafts/Prunes/IHaves/IWants/Messages are independent repeated
// fields, mirroring the wire RPC envelope.
type RPC struct {
	Grafts   []Graft
	Prunes   []Prune
	IHaves   []IHave
	IWants   []IWant
	Messages []*Message
}

// Empty reports whether the RPC carries nothing worth sending.
func (r *RPC) Empty() bool {
	return len(r.Grafts) == 0 && len(r.Prunes) == 0 && len(r.IHaves) == 0 &&
		len(r.IWants) == 0 && len(r.Messages) == 0
}

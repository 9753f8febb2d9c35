package collab

import "context"

// PeerHandle exposes the two observable attributes the core needs about a
// connected peer beyond its id.
type PeerHandle interface {
	// IsOutbound reports whether this side dialed the connection.
	IsOutbound() bool
	// ProtocolVersion reports the GossipSub dialect the peer negotiated.
	ProtocolVersion() ProtocolVersion
}

// ScoreParams is the subset of the scoring engine's configuration the core
// reads directly, rather than through a Score() call.
type ScoreParams struct {
	GossipThreshold             float64
	PublishThreshold            float64
	GraylistThreshold           float64
	AcceptPXThreshold           float64
	OpportunisticGraftThreshold float64
	// IsDirect reports whether a peer is a configuration-pinned direct
	// peer, meshed regardless of score.
	IsDirect func(PeerID) bool
}

// PeerScore is the scoring capability the core consults and feeds events
// to. Its numeric model is an external subsystem; the core only needs to
// query a score and fire notifications.
type PeerScore interface {
	// Score returns the peer's current aggregate score.
	Score(p PeerID) float64
	Params() ScoreParams

	NotifyConnected(p PeerID)
	NotifyDisconnected(p PeerID)
	NotifyMeshed(p PeerID, t Topic)
	NotifyPruned(p PeerID, t Topic)
	NotifySeen(p PeerID, t Topic)
	NotifyUnseenValid(p PeerID, t Topic)
	NotifyUnseenInvalid(p PeerID, t Topic)
	// NotifyRouterMisbehavior records delta penalty points (delta >= 1) for
	// a protocol-level misbehaviour, e.g. a flood-detected re-graft or a
	// broken IWANT promise.
	NotifyRouterMisbehavior(p PeerID, delta int)
}

// PeersInTopic reports which connected peers are subscribed to a topic.
// Ownership of subscription bookkeeping lives outside the core.
type PeersInTopic func(t Topic) []PeerID

// GetMessageID derives a MessageID from a Message.
type GetMessageID func(m *Message) MessageID

// SeenMessages exposes the outer router's deduplication set. The core
// consults it but never mutates it.
type SeenMessages interface {
	Has(id MessageID) bool
}

// PublishResult is the outcome of one SubmitPublish attempt.
type PublishResult struct {
	Peer PeerID
	Err  error
}

// Transport is the outbound I/O boundary. SubmitPublish sends one message
// immediately; AddPendingRPCPart/FlushAllPending batch control-plane RPC
// fragments per peer for a later flush, e.g. at the end of control
// handling or a heartbeat tick.
type Transport interface {
	// SubmitPublish asynchronously sends msg to peer. The returned channel
	// receives exactly one result once the underlying transport completes
	// (success or failure) — never blocking the caller. It must be safe
	// for concurrent use: the core may call it from a retry goroutine
	// while the executor is also sending.
	SubmitPublish(ctx context.Context, peer PeerID, msg *Message) <-chan error

	AddPendingRPCPart(peer PeerID, part RPCPart)
	FlushAllPending()
}

// RPCPart is a single control-plane fragment queued for a peer. Exactly
// one field is set.
type RPCPart struct {
	Graft *Graft
	Prune *Prune
	IHave *IHave
	IWant *IWant
}

// ConnectCallback hands a peer-exchange candidate to the outer connection
// manager. The core never validates the signed record itself.
type ConnectCallback func(id PeerID, signedRecord []byte)

// Rand is the randomness source used for shuffles and uniform sampling.
// Injected so tests can run with a deterministic seed.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
	Intn(n int) int
}

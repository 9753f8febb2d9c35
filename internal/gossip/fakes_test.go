package gossip

import (
	"context"
	"sync"

	"github.com/gossipmesh/engine/pkg/collab"
)

// fakeTransport records every queued RPC part and published message.
// SubmitPublishFunc lets a test override the result without touching
// call sites.
type fakeTransport struct {
	mu sync.Mutex

	Published []publishedMsg
	Pending   map[collab.PeerID][]collab.RPCPart
	Flushes   int

	SubmitPublishFunc func(ctx context.Context, peer collab.PeerID, msg *collab.Message) <-chan error
}

type publishedMsg struct {
	Peer collab.PeerID
	Msg  *collab.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{Pending: make(map[collab.PeerID][]collab.RPCPart)}
}

func (f *fakeTransport) SubmitPublish(ctx context.Context, peer collab.PeerID, msg *collab.Message) <-chan error {
	f.mu.Lock()
	f.Published = append(f.Published, publishedMsg{Peer: peer, Msg: msg})
	f.mu.Unlock()
	if f.SubmitPublishFunc != nil {
		return f.SubmitPublishFunc(ctx, peer, msg)
	}
	result := make(chan error, 1)
	result <- nil
	return result
}

func (f *fakeTransport) AddPendingRPCPart(peer collab.PeerID, part collab.RPCPart) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pending[peer] = append(f.Pending[peer], part)
}

func (f *fakeTransport) FlushAllPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Flushes++
	f.Pending = make(map[collab.PeerID][]collab.RPCPart)
}

func (f *fakeTransport) pendingFor(peer collab.PeerID) []collab.RPCPart {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Pending[peer]
}

// fakeScore is a collab.PeerScore with per-peer scores set directly by
// the test and every notification recorded for assertion.
type fakeScore struct {
	mu sync.Mutex

	scores map[collab.PeerID]float64
	params collab.ScoreParams

	Meshed        []collab.PeerID
	Pruned        []collab.PeerID
	Misbehaviors  map[collab.PeerID]int
}

func newFakeScore() *fakeScore {
	return &fakeScore{
		scores:       make(map[collab.PeerID]float64),
		Misbehaviors: make(map[collab.PeerID]int),
		params: collab.ScoreParams{
			GossipThreshold:             -500,
			PublishThreshold:            -1000,
			GraylistThreshold:           -2500,
			AcceptPXThreshold:           10,
			OpportunisticGraftThreshold: 5,
		},
	}
}

func (f *fakeScore) setScore(p collab.PeerID, v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[p] = v
}

func (f *fakeScore) Score(p collab.PeerID) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[p]
}

func (f *fakeScore) Params() collab.ScoreParams { return f.params }

func (f *fakeScore) NotifyConnected(collab.PeerID)    {}
func (f *fakeScore) NotifyDisconnected(collab.PeerID) {}

func (f *fakeScore) NotifyMeshed(p collab.PeerID, _ collab.Topic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Meshed = append(f.Meshed, p)
}

func (f *fakeScore) NotifyPruned(p collab.PeerID, _ collab.Topic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pruned = append(f.Pruned, p)
}

func (f *fakeScore) NotifySeen(collab.PeerID, collab.Topic)          {}
func (f *fakeScore) NotifyUnseenValid(collab.PeerID, collab.Topic)   {}
func (f *fakeScore) NotifyUnseenInvalid(collab.PeerID, collab.Topic) {}

func (f *fakeScore) NotifyRouterMisbehavior(p collab.PeerID, delta int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Misbehaviors[p] += delta
}

// fakeRand is deterministic: Shuffle is a no-op and Intn always
// returns 0, so sampling tests get predictable, reviewable output.
type fakeRand struct{}

func (fakeRand) Shuffle(int, func(int, int)) {}
func (fakeRand) Intn(int) int                { return 0 }

func fixedPeerHandle(outbound bool, version collab.ProtocolVersion) func(collab.PeerID) (collab.PeerHandle, bool) {
	h := &fakePeerHandle{outbound: outbound, version: version}
	return func(collab.PeerID) (collab.PeerHandle, bool) { return h, true }
}

type fakePeerHandle struct {
	outbound bool
	version  collab.ProtocolVersion
}

func (h *fakePeerHandle) IsOutbound() bool                     { return h.outbound }
func (h *fakePeerHandle) ProtocolVersion() collab.ProtocolVersion { return h.version }

func fakeGetMessageID(m *collab.Message) collab.MessageID {
	return collab.MessageID(string(m.From) + ":" + string(m.Seqno))
}

package gossip

import (
	"github.com/gossipmesh/engine/pkg/collab"
	"github.com/gossipmesh/engine/pkg/log"
)

// heartbeat drives the periodic mesh-maintenance algorithm of §4.7: mesh
// balancing (graft-up/prune-down), opportunistic grafting, fanout
// expiry, lazy gossip emission, stale-IWANT sweeping and cache rotation.
// It never runs concurrently with message/control handling; the engine's
// single-threaded executor serialises every call into it.
type heartbeat struct {
	params Params

	mesh      *meshManager
	backoff   *backoffTable
	trackers  *requestTrackers
	cache     *messageCache
	publisher *publisher

	score        collab.PeerScore
	transport    collab.Transport
	rand         collab.Rand
	peersInTopic collab.PeersInTopic
	peerHandle   func(collab.PeerID) (collab.PeerHandle, bool)
	peerRecord   func(collab.PeerID) ([]byte, bool)

	ticks int

	metrics *metrics
	log     *log.Component
}

func newHeartbeat(
	params Params,
	mesh *meshManager,
	backoff *backoffTable,
	trackers *requestTrackers,
	cache *messageCache,
	publisher *publisher,
	score collab.PeerScore,
	transport collab.Transport,
	rand collab.Rand,
	peersInTopic collab.PeersInTopic,
	peerHandle func(collab.PeerID) (collab.PeerHandle, bool),
	peerRecord func(collab.PeerID) ([]byte, bool),
	metrics *metrics,
) *heartbeat {
	return &heartbeat{
		params:       params,
		mesh:         mesh,
		backoff:      backoff,
		trackers:     trackers,
		cache:        cache,
		publisher:    publisher,
		score:        score,
		transport:    transport,
		rand:         rand,
		peersInTopic: peersInTopic,
		peerHandle:   peerHandle,
		peerRecord:   peerRecord,
		metrics:      metrics,
		log:          log.Logger("gossip.heartbeat"),
	}
}

// tick runs one heartbeat. The caller is responsible for the ticker
// itself (see engine.go); tick is pure logic over injected state.
func (h *heartbeat) tick() {
	h.ticks++
	h.trackers.resetWindow()

	for _, peer := range h.trackers.sweepStaleIWants(h.params.IWantFollowupTime) {
		h.score.NotifyRouterMisbehavior(peer, 1)
		h.metrics.incMisbehavior()
	}

	for _, topic := range h.mesh.topicNames() {
		if h.mesh.subscribed(topic) {
			h.balanceMesh(topic)
		}
		h.metrics.setMeshSize(topic, h.mesh.meshSize(topic))
		h.metrics.setFanoutSize(topic, h.mesh.fanoutSize(topic))
	}

	h.mesh.expireFanout(h.params.FanoutTTL)

	for _, topic := range h.mesh.topicNames() {
		h.publisher.emitGossip(topic)
	}

	h.cache.shift()
	h.transport.FlushAllPending()
}

func (h *heartbeat) balanceMesh(topic collab.Topic) {
	members := h.mesh.meshPeers(topic)

	h.pruneNegativeScored(topic, members)
	members = h.mesh.meshPeers(topic)

	switch {
	case len(members) < h.params.DLow:
		h.graftUp(topic, members, h.params.D-len(members))
	case len(members) > h.params.DHigh:
		h.pruneDown(topic, members)
	}

	h.ensureOutbound(topic)

	if h.params.OpportunisticGraftTicks > 0 && h.ticks%h.params.OpportunisticGraftTicks == 0 {
		h.opportunisticGraft(topic)
	}
}

// pruneNegativeScored evicts mesh members whose score has dropped below
// zero, regardless of current mesh size.
func (h *heartbeat) pruneNegativeScored(topic collab.Topic, members []collab.PeerID) {
	sp := h.score.Params()
	for _, peer := range members {
		if sp.IsDirect != nil && sp.IsDirect(peer) {
			continue
		}
		if h.score.Score(peer) < 0 {
			h.pruneOne(topic, peer)
		}
	}
}

func (h *heartbeat) graftUp(topic collab.Topic, members []collab.PeerID, n int) {
	if n <= 0 {
		return
	}
	inMesh := toSet(members)
	sp := h.score.Params()

	var candidates []collab.PeerID
	for _, peer := range h.peersInTopic(topic) {
		if inMesh[peer] {
			continue
		}
		if h.backoff.isBackoff(peer, topic) {
			continue
		}
		if sp.IsDirect != nil && sp.IsDirect(peer) {
			continue
		}
		if h.score.Score(peer) < 0 {
			continue
		}
		candidates = append(candidates, peer)
	}

	picked := sampleN(h.rand, candidates, n)
	for _, peer := range picked {
		h.mesh.graft(topic, peer)
		h.score.NotifyMeshed(peer, topic)
		h.sendGraft(peer, topic)
	}
}

// pruneDown trims an over-full mesh back to D, per §4.7 step 3c: the
// DScore highest-scoring members are kept verbatim, the remainder is
// shuffled, and if the prospective D-sized set would fall short of the
// outbound floor DOut, outbound peers are pulled forward from the part
// of the shuffled remainder that would otherwise be dropped so the
// outbound floor is met by construction rather than by a later top-up
// that could grow the mesh past D.
func (h *heartbeat) pruneDown(topic collab.Topic, members []collab.PeerID) {
	keep := h.topScored(members, h.params.DScore)
	keepSet := toSet(keep)

	var rest []collab.PeerID
	for _, peer := range members {
		if !keepSet[peer] {
			rest = append(rest, peer)
		}
	}
	rest = sampleN(h.rand, rest, len(rest))

	prospective := append(append([]collab.PeerID{}, keep...), rest...)
	if len(prospective) > h.params.D {
		prospective = prospective[:h.params.D]
	}
	prospectiveSet := toSet(prospective)

	outboundCount := 0
	for _, peer := range prospective {
		if handle, ok := h.peerHandle(peer); ok && handle.IsOutbound() {
			outboundCount++
		}
	}

	needed := h.params.DOut - outboundCount
	var outPicks []collab.PeerID
	if needed > 0 {
		for _, peer := range rest {
			if len(outPicks) >= needed {
				break
			}
			if prospectiveSet[peer] {
				continue
			}
			if handle, ok := h.peerHandle(peer); ok && handle.IsOutbound() {
				outPicks = append(outPicks, peer)
			}
		}
	}

	retained := make(map[collab.PeerID]bool, h.params.D)
	var ordered []collab.PeerID
	for _, peer := range concatPeers(outPicks, keep, rest) {
		if retained[peer] {
			continue
		}
		if len(ordered) >= h.params.D {
			break
		}
		retained[peer] = true
		ordered = append(ordered, peer)
	}

	for _, peer := range members {
		if !retained[peer] {
			h.pruneOne(topic, peer)
		}
	}
}

func concatPeers(lists ...[]collab.PeerID) []collab.PeerID {
	var out []collab.PeerID
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func (h *heartbeat) pruneOne(topic collab.Topic, peer collab.PeerID) {
	h.log.Debug("pruning mesh peer", "peer", string(peer), "topic", string(topic))
	h.mesh.prune(topic, peer)
	h.score.NotifyPruned(peer, topic)

	includePX := false
	if handle, ok := h.peerHandle(peer); ok {
		includePX = handle.ProtocolVersion() == collab.ProtocolV11
	}
	seconds := uint64(h.params.PruneBackoff.Seconds())
	h.backoff.set(peer, topic, h.params.PruneBackoff)
	prune := buildPrune(topic, seconds, includePX, h.rand, h.mesh.meshPeers(topic), peer, h.params.MaxPrunePeers, h.peerRecord)
	h.transport.AddPendingRPCPart(peer, collab.RPCPart{Prune: prune})
	h.metrics.incControlSent("prune")
}

func (h *heartbeat) sendGraft(peer collab.PeerID, topic collab.Topic) {
	h.transport.AddPendingRPCPart(peer, collab.RPCPart{Graft: &collab.Graft{Topic: topic}})
	h.metrics.incControlSent("graft")
}

// ensureOutbound tops the mesh up with outbound-dialed peers if fewer
// than DOut of the current membership are outbound connections.
func (h *heartbeat) ensureOutbound(topic collab.Topic) {
	members := h.mesh.meshPeers(topic)
	outbound := 0
	for _, peer := range members {
		if handle, ok := h.peerHandle(peer); ok && handle.IsOutbound() {
			outbound++
		}
	}
	need := h.params.DOut - outbound
	if need <= 0 {
		return
	}

	inMesh := toSet(members)
	sp := h.score.Params()
	var candidates []collab.PeerID
	for _, peer := range h.peersInTopic(topic) {
		if inMesh[peer] {
			continue
		}
		if h.backoff.isBackoff(peer, topic) {
			continue
		}
		if sp.IsDirect != nil && sp.IsDirect(peer) {
			continue
		}
		if h.score.Score(peer) < 0 {
			continue
		}
		if handle, ok := h.peerHandle(peer); !ok || !handle.IsOutbound() {
			continue
		}
		candidates = append(candidates, peer)
	}

	picked := sampleN(h.rand, candidates, need)
	for _, peer := range picked {
		h.mesh.graft(topic, peer)
		h.score.NotifyMeshed(peer, topic)
		h.sendGraft(peer, topic)
	}
}

// opportunisticGraft adds a few above-median peers when the mesh's own
// median score has sunk below the configured threshold, per §4.7.
func (h *heartbeat) opportunisticGraft(topic collab.Topic) {
	members := h.mesh.meshPeers(topic)
	if len(members) <= 1 {
		return
	}
	sp := h.score.Params()
	scores := make([]float64, len(members))
	for i, peer := range members {
		scores[i] = h.score.Score(peer)
	}
	median := medianScore(scores)
	if median >= sp.OpportunisticGraftThreshold {
		return
	}
	h.log.Debug("opportunistic graft triggered", "topic", string(topic), "median", median)

	inMesh := toSet(members)
	var candidates []collab.PeerID
	for _, peer := range h.peersInTopic(topic) {
		if inMesh[peer] {
			continue
		}
		if h.backoff.isBackoff(peer, topic) {
			continue
		}
		if h.score.Score(peer) <= median {
			continue
		}
		candidates = append(candidates, peer)
	}

	picked := sampleN(h.rand, candidates, h.params.OpportunisticGraftPeers)
	for _, peer := range picked {
		h.mesh.graft(topic, peer)
		h.score.NotifyMeshed(peer, topic)
		h.sendGraft(peer, topic)
	}
}

func (h *heartbeat) topScored(peers []collab.PeerID, n int) []collab.PeerID {
	if n >= len(peers) {
		out := make([]collab.PeerID, len(peers))
		copy(out, peers)
		return out
	}
	if n <= 0 {
		return nil
	}
	ranked := make([]collab.PeerID, len(peers))
	copy(ranked, peers)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && h.score.Score(ranked[j-1]) < h.score.Score(ranked[j]); j-- {
			ranked[j-1], ranked[j] = ranked[j], ranked[j-1]
		}
	}
	return ranked[:n]
}

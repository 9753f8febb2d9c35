package gossip

import (
	"context"

	"github.com/gossipmesh/engine/pkg/collab"
	"github.com/gossipmesh/engine/pkg/log"
)

// controlHandler implements the GRAFT/PRUNE/IHAVE/IWANT logic of §4.3. It
// mutates mesh membership and the backoff/request-tracking tables but
// never talks to the transport directly except to queue RPC parts (the
// caller flushes them) and to resend cached messages for IWANT.
type controlHandler struct {
	params Params

	mesh     *meshManager
	backoff  *backoffTable
	trackers *requestTrackers
	cache    *messageCache

	score     collab.PeerScore
	transport collab.Transport
	rand      collab.Rand

	peerHandle func(collab.PeerID) (collab.PeerHandle, bool)
	seen       collab.SeenMessages

	onPXCandidate collab.ConnectCallback

	metrics *metrics
	log     *log.Component
}

func newControlHandler(
	params Params,
	mesh *meshManager,
	backoff *backoffTable,
	trackers *requestTrackers,
	cache *messageCache,
	score collab.PeerScore,
	transport collab.Transport,
	rand collab.Rand,
	peerHandle func(collab.PeerID) (collab.PeerHandle, bool),
	seen collab.SeenMessages,
	onPXCandidate collab.ConnectCallback,
	metrics *metrics,
) *controlHandler {
	return &controlHandler{
		params:        params,
		mesh:          mesh,
		backoff:       backoff,
		trackers:      trackers,
		cache:         cache,
		score:         score,
		transport:     transport,
		rand:          rand,
		peerHandle:    peerHandle,
		seen:          seen,
		onPXCandidate: onPXCandidate,
		metrics:       metrics,
		log:           log.Logger("gossip.control"),
	}
}

// handleRPC dispatches every control item in rpc, addressed from peer.
func (c *controlHandler) handleRPC(ctx context.Context, from collab.PeerID, rpc *collab.RPC) {
	for _, g := range rpc.Grafts {
		c.metrics.incControlRecv("graft")
		c.handleGraft(from, g)
	}
	for _, p := range rpc.Prunes {
		c.metrics.incControlRecv("prune")
		c.handlePrune(from, p)
	}
	for _, ih := range rpc.IHaves {
		c.metrics.incControlRecv("ihave")
		c.handleIHave(from, ih)
	}
	for _, iw := range rpc.IWants {
		c.metrics.incControlRecv("iwant")
		c.handleIWant(ctx, from, iw)
	}
}

func (c *controlHandler) handleGraft(from collab.PeerID, g collab.Graft) {
	topic := g.Topic

	if !c.mesh.subscribed(topic) {
		c.log.Debug("ignoring graft for unsubscribed topic", "peer", string(from), "topic", string(topic))
		return
	}

	sp := c.score.Params()
	direct := sp.IsDirect != nil && sp.IsDirect(from)

	if direct {
		c.sendPrune(from, c.pruneWithBackoff(topic))
		return
	}

	if c.backoff.isBackoff(from, topic) {
		c.score.NotifyRouterMisbehavior(from, 1)
		c.metrics.incMisbehavior()
		if c.backoff.isFlood(from, topic) {
			c.score.NotifyRouterMisbehavior(from, 1)
			c.metrics.incMisbehavior()
		}
		c.sendPrune(from, c.pruneWithBackoff(topic))
		return
	}

	if c.score.Score(from) < 0 {
		c.sendPrune(from, c.pruneWithBackoff(topic))
		return
	}

	if c.mesh.inMesh(topic, from) {
		return
	}

	if c.mesh.meshSize(topic) >= c.params.DHigh {
		outbound := false
		if handle, ok := c.peerHandle(from); ok {
			outbound = handle.IsOutbound()
		}
		if !outbound {
			c.sendPrune(from, &collab.Prune{Topic: topic})
			return
		}
	}

	c.mesh.graft(topic, from)
	c.score.NotifyMeshed(from, topic)
}

func (c *controlHandler) sendPrune(peer collab.PeerID, p *collab.Prune) {
	c.transport.AddPendingRPCPart(peer, collab.RPCPart{Prune: p})
	c.metrics.incControlSent("prune")
}

func (c *controlHandler) handlePrune(from collab.PeerID, p collab.Prune) {
	topic := p.Topic

	if c.mesh.inMesh(topic, from) {
		c.mesh.prune(topic, from)
		c.score.NotifyPruned(from, topic)
	}

	handle, ok := c.peerHandle(from)
	isV11 := ok && handle.ProtocolVersion() == collab.ProtocolV11

	if !isV11 && (p.Backoff != nil || len(p.Peers) != 0) {
		c.score.NotifyRouterMisbehavior(from, 1)
		c.metrics.incMisbehavior()
	}

	delay := c.params.PruneBackoff
	if isV11 && p.Backoff != nil {
		delay = secondsToDuration(*p.Backoff)
	}
	c.backoff.set(from, topic, delay)

	if !isV11 || len(p.Peers) == 0 {
		return
	}
	sp := c.score.Params()
	if c.score.Score(from) < sp.AcceptPXThreshold {
		return
	}
	candidates := append([]collab.PeerInfo(nil), p.Peers...)
	c.rand.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
	if len(candidates) > c.params.MaxPrunePeers {
		candidates = candidates[:c.params.MaxPrunePeers]
	}
	for _, pi := range candidates {
		if _, connected := c.peerHandle(pi.PeerID); connected {
			continue
		}
		if c.onPXCandidate != nil {
			c.onPXCandidate(pi.PeerID, pi.SignedRecord)
		}
	}
}

func (c *controlHandler) handleIHave(from collab.PeerID, ih collab.IHave) {
	sp := c.score.Params()
	direct := sp.IsDirect != nil && sp.IsDirect(from)
	if !direct && c.score.Score(from) < sp.GossipThreshold {
		return
	}

	count := c.trackers.incPeerIHave(from)
	if count > c.params.MaxIHaveMessages {
		return
	}

	var wanted []collab.MessageID
	for _, id := range ih.MessageIDs {
		if c.seen != nil && c.seen.Has(id) {
			continue
		}
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return
	}

	budget := c.params.MaxIHaveLength - c.trackers.iAskedCount(from)
	if budget <= 0 {
		return
	}
	picked := sampleMessageIDsN(c.rand, wanted, budget)
	if len(picked) == 0 {
		return
	}
	c.trackers.addIAsked(from, len(picked))
	for _, id := range picked {
		c.trackers.recordIWant(from, id)
	}
	c.log.Debug("requesting messages via iwant", "peer", string(from), "count", len(picked))
	c.transport.AddPendingRPCPart(from, collab.RPCPart{IWant: &collab.IWant{MessageIDs: picked}})
	c.metrics.incControlSent("iwant")
}

func (c *controlHandler) handleIWant(ctx context.Context, from collab.PeerID, iw collab.IWant) {
	sp := c.score.Params()
	direct := sp.IsDirect != nil && sp.IsDirect(from)
	if !direct && c.score.Score(from) < sp.GossipThreshold {
		return
	}
	for _, id := range iw.MessageIDs {
		msg, sent, ok := c.cache.getForPeer(from, id)
		if !ok || sent >= c.params.GossipRetransmission {
			continue
		}
		c.log.Debug("serving iwant request", "peer", string(from), "id", log.Base58([]byte(id)))
		c.transport.SubmitPublish(ctx, from, msg)
	}
}

func (c *controlHandler) pruneWithBackoff(topic collab.Topic) *collab.Prune {
	seconds := uint64(c.params.PruneBackoff.Seconds())
	return &collab.Prune{Topic: topic, Backoff: &seconds}
}

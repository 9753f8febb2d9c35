package gossip

import (
	"context"

	"github.com/gossipmesh/engine/pkg/collab"
	"github.com/gossipmesh/engine/pkg/log"
)

// publisher implements the outbound message paths of §4.5 (local publish
// and forwarding of inbound messages) and the lazy gossip emission of
// §4.8. It never decides mesh membership itself; it only reads it.
type publisher struct {
	params Params

	mesh  *meshManager
	cache *messageCache

	score        collab.PeerScore
	transport    collab.Transport
	rand         collab.Rand
	peersInTopic collab.PeersInTopic
	getMessageID collab.GetMessageID
	peerHandle   func(collab.PeerID) (collab.PeerHandle, bool)

	metrics *metrics
	log     *log.Component
}

func newPublisher(
	params Params,
	mesh *meshManager,
	cache *messageCache,
	score collab.PeerScore,
	transport collab.Transport,
	rand collab.Rand,
	peersInTopic collab.PeersInTopic,
	getMessageID collab.GetMessageID,
	peerHandle func(collab.PeerID) (collab.PeerHandle, bool),
	metrics *metrics,
) *publisher {
	return &publisher{
		params:       params,
		mesh:         mesh,
		cache:        cache,
		score:        score,
		transport:    transport,
		rand:         rand,
		peersInTopic: peersInTopic,
		getMessageID: getMessageID,
		peerHandle:   peerHandle,
		metrics:      metrics,
		log:          log.Logger("gossip.publish"),
	}
}

// resendFunc observes the outcome of one SubmitPublish call and decides
// whether to retry it. Kept as a callback so the publisher never has to
// know how retries are scheduled (engine.go runs them off the executor).
type resendFunc func(ctx context.Context, peer collab.PeerID, msg *collab.Message, result <-chan error)

// publishLocal routes a self-originated message per §4.5: through the
// mesh if subscribed, through fanout otherwise (seeding it with D peers
// on first use), or — under FloodPublish — to every sufficiently scored
// topic peer regardless of mesh membership.
func (p *publisher) publishLocal(ctx context.Context, msg *collab.Message, resend resendFunc) error {
	id := p.getMessageID(msg)
	p.cache.put(id, msg)

	var targets []collab.PeerID
	switch {
	case p.params.FloodPublish:
		targets = p.aboveThreshold(msg.Topics, p.score.Params().PublishThreshold)
	default:
		for _, topic := range msg.Topics {
			targets = append(targets, p.routeTargets(topic)...)
		}
		targets = dedupePeers(targets)
	}

	if len(targets) == 0 {
		return ErrNoConnectedPeers
	}
	p.metrics.incPublished()
	p.sendTo(ctx, id, msg, targets, collab.PeerID(""), resend)
	return nil
}

// forwardReceived relays a message accepted from a peer to the rest of
// the mesh for every topic it carries, per §4.5. Unlike local publish,
// forwarding always stays within mesh membership: fanout and
// FloodPublish never apply to relayed traffic.
func (p *publisher) forwardReceived(ctx context.Context, from collab.PeerID, msg *collab.Message, resend resendFunc) {
	id := p.getMessageID(msg)
	p.cache.put(id, msg)

	var targets []collab.PeerID
	for _, topic := range msg.Topics {
		if !p.mesh.subscribed(topic) {
			continue
		}
		targets = append(targets, p.mesh.meshPeers(topic)...)
	}
	targets = dedupePeers(targets)
	p.metrics.incForwarded()
	p.sendTo(ctx, id, msg, targets, from, resend)
}

// routeTargets returns the peers a local publish to topic should reach:
// the mesh if subscribed, else the fanout (seeded from topic peers if
// empty).
func (p *publisher) routeTargets(topic collab.Topic) []collab.PeerID {
	if p.mesh.subscribed(topic) {
		return p.mesh.meshPeers(topic)
	}
	fanout := p.mesh.fanoutPeers(topic)
	if len(fanout) > 0 {
		p.mesh.touchFanout(topic)
		return fanout
	}
	set := p.mesh.ensureFanout(topic)
	for _, peer := range sampleN(p.rand, p.peersInTopic(topic), p.params.D) {
		set.Add(peer)
	}
	return set.List()
}

func (p *publisher) aboveThreshold(topics []collab.Topic, threshold float64) []collab.PeerID {
	var out []collab.PeerID
	seen := make(map[collab.PeerID]bool)
	for _, topic := range topics {
		for _, peer := range p.peersInTopic(topic) {
			if seen[peer] {
				continue
			}
			if p.score.Score(peer) >= threshold {
				seen[peer] = true
				out = append(out, peer)
			}
		}
	}
	return out
}

func (p *publisher) sendTo(ctx context.Context, id collab.MessageID, msg *collab.Message, targets []collab.PeerID, exclude collab.PeerID, resend resendFunc) {
	for _, peer := range targets {
		if peer == exclude {
			continue
		}
		p.cache.getForPeer(peer, id) // marks as sent for retransmission accounting
		result := p.transport.SubmitPublish(ctx, peer, msg)
		if resend != nil {
			resend(ctx, peer, msg, result)
		}
	}
}

// emitGossip sends IHAVE announcements for topic per §4.8: DLazy peers,
// or GossipFactor of the eligible non-mesh peer pool if larger, chosen
// from non-direct peers currently above the gossip threshold and
// excluding mesh members (who already receive the message directly).
// At most MaxIHaveLength ids, sampled at random, are announced.
func (p *publisher) emitGossip(topic collab.Topic) {
	ids := p.cache.idsForTopic(topic)
	if len(ids) == 0 {
		return
	}
	ids = sampleMessageIDsN(p.rand, ids, p.params.MaxIHaveLength)

	inMesh := toSet(p.mesh.meshPeers(topic))
	sp := p.score.Params()

	var eligible []collab.PeerID
	for _, peer := range p.peersInTopic(topic) {
		if inMesh[peer] {
			continue
		}
		if sp.IsDirect != nil && sp.IsDirect(peer) {
			continue
		}
		if p.score.Score(peer) < sp.GossipThreshold {
			continue
		}
		eligible = append(eligible, peer)
	}
	if len(eligible) == 0 {
		return
	}

	target := int(p.params.GossipFactor * float64(len(eligible)))
	if target < p.params.DLazy {
		target = p.params.DLazy
	}
	recipients := sampleN(p.rand, eligible, target)

	for _, peer := range recipients {
		p.transport.AddPendingRPCPart(peer, collab.RPCPart{IHave: &collab.IHave{Topic: topic, MessageIDs: ids}})
		p.metrics.incControlSent("ihave")
	}
}

func dedupePeers(peers []collab.PeerID) []collab.PeerID {
	seen := make(map[collab.PeerID]bool, len(peers))
	out := make([]collab.PeerID, 0, len(peers))
	for _, p := range peers {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

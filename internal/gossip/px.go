package gossip

import "github.com/gossipmesh/engine/pkg/collab"

// pxCandidates picks up to n alternative mesh peers to offer a pruned
// v1.1 peer, per §4.4. Only signed records the outer layer is willing to
// share are included; peerRecord returns ok=false for peers it has none
// for (or does not want to disclose).
func pxCandidates(
	rand collab.Rand,
	meshPeers []collab.PeerID,
	exclude collab.PeerID,
	n int,
	peerRecord func(collab.PeerID) ([]byte, bool),
) []collab.PeerInfo {
	if n <= 0 {
		return nil
	}
	pool := make([]collab.PeerID, 0, len(meshPeers))
	for _, p := range meshPeers {
		if p != exclude {
			pool = append(pool, p)
		}
	}
	picked := sampleN(rand, pool, n)

	out := make([]collab.PeerInfo, 0, len(picked))
	for _, p := range picked {
		record, ok := peerRecord(p)
		if !ok {
			continue
		}
		out = append(out, collab.PeerInfo{PeerID: p, SignedRecord: record})
	}
	return out
}

// buildPrune assembles the outgoing PRUNE for topic, attaching PX
// candidates only when the pruned peer speaks v1.1.
func buildPrune(
	topic collab.Topic,
	backoffSeconds uint64,
	includePX bool,
	rand collab.Rand,
	meshPeers []collab.PeerID,
	exclude collab.PeerID,
	n int,
	peerRecord func(collab.PeerID) ([]byte, bool),
) *collab.Prune {
	p := &collab.Prune{Topic: topic, Backoff: &backoffSeconds}
	if includePX {
		p.Peers = pxCandidates(rand, meshPeers, exclude, n, peerRecord)
	}
	return p
}

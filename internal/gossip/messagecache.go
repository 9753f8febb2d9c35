package gossip

import "github.com/gossipmesh/engine/pkg/collab"

// cacheEntry is one retained message plus its per-peer retransmit counts.
type cacheEntry struct {
	msg      *collab.Message
	sentTo   map[collab.PeerID]int
}

// messageCache is the bounded sliding-window store described in §4.1: a
// ring of gossipHistoryLength slots, the newest gossipSize of which feed
// IHAVE announcement pools. Unlike a plain LRU, eviction here is driven by
// heartbeat cadence (shift), not by access pattern — a message is kept for
// exactly historyLength heartbeats regardless of how often it is fetched.
type messageCache struct {
	gossipSize    int
	historyLength int

	entries map[collab.MessageID]*cacheEntry
	// slots[0] is the newest slot; slots[historyLength-1] the oldest.
	slots [][]collab.MessageID
}

func newMessageCache(gossipSize, historyLength int) *messageCache {
	if historyLength < 1 {
		historyLength = 1
	}
	if gossipSize > historyLength {
		gossipSize = historyLength
	}
	mc := &messageCache{
		gossipSize:    gossipSize,
		historyLength: historyLength,
		entries:       make(map[collab.MessageID]*cacheEntry),
		slots:         make([][]collab.MessageID, historyLength),
	}
	for i := range mc.slots {
		mc.slots[i] = nil
	}
	return mc
}

// put stores msg under id in the newest slot. Re-putting the same id
// while it is still in the newest slot is a no-op.
func (mc *messageCache) put(id collab.MessageID, msg *collab.Message) {
	for _, existing := range mc.slots[0] {
		if existing == id {
			return
		}
	}
	mc.slots[0] = append(mc.slots[0], id)
	mc.entries[id] = &cacheEntry{msg: msg, sentTo: make(map[collab.PeerID]int)}
}

// getForPeer returns the cached message and the number of times it was
// already sent to peer, then increments that counter. ok is false if id
// has fallen off the ring.
func (mc *messageCache) getForPeer(peer collab.PeerID, id collab.MessageID) (*collab.Message, int, bool) {
	e, ok := mc.entries[id]
	if !ok {
		return nil, 0, false
	}
	sent := e.sentTo[peer]
	e.sentTo[peer] = sent + 1
	return e.msg, sent, true
}

// idsForTopic returns, freshest slot first, the union of ids across the
// gossipSize newest slots whose message lists topic.
func (mc *messageCache) idsForTopic(topic collab.Topic) []collab.MessageID {
	var out []collab.MessageID
	limit := mc.gossipSize
	if limit > len(mc.slots) {
		limit = len(mc.slots)
	}
	for i := 0; i < limit; i++ {
		for _, id := range mc.slots[i] {
			e, ok := mc.entries[id]
			if !ok {
				continue
			}
			for _, t := range e.msg.Topics {
				if t == topic {
					out = append(out, id)
					break
				}
			}
		}
	}
	return out
}

// shift advances the ring: a fresh empty slot becomes the newest, and the
// oldest slot's ids are evicted from entries (unless still retained by a
// more recent slot, which happens when the same id was put again after
// an earlier shift).
func (mc *messageCache) shift() {
	oldest := mc.slots[mc.historyLength-1]
	copy(mc.slots[1:], mc.slots[:mc.historyLength-1])
	mc.slots[0] = nil

	for _, id := range oldest {
		stillRetained := false
		for _, s := range mc.slots[:mc.historyLength-1] {
			for _, other := range s {
				if other == id {
					stillRetained = true
					break
				}
			}
			if stillRetained {
				break
			}
		}
		if !stillRetained {
			delete(mc.entries, id)
		}
	}
}

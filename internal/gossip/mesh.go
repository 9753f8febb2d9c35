package gossip

import (
	"time"

	"github.com/gossipmesh/engine/pkg/collab"
)

// topicState is the per-topic bookkeeping the mesh manager owns: the
// full mesh for subscribed topics, and the fanout set plus its
// last-published timestamp for topics we publish to without subscribing.
type topicState struct {
	mesh          *peerSet
	fanout        *peerSet
	lastPublished time.Time
}

// meshManager owns the mesh and fanout membership described in §4.6. It
// does not decide who to graft or prune each heartbeat; it records the
// outcome of those decisions and answers membership queries for the
// publish and control paths.
type meshManager struct {
	clock  Clock
	topics map[collab.Topic]*topicState
}

func newMeshManager(clock Clock) *meshManager {
	return &meshManager{clock: clock, topics: make(map[collab.Topic]*topicState)}
}

func (m *meshManager) subscribed(topic collab.Topic) bool {
	st, ok := m.topics[topic]
	return ok && st.mesh != nil
}

func (m *meshManager) topicNames() []collab.Topic {
	out := make([]collab.Topic, 0, len(m.topics))
	for t := range m.topics {
		out = append(out, t)
	}
	return out
}

// subscribe creates an empty mesh for topic. It grafts no peer: a fanout
// that already existed for the topic (we had been publishing without
// subscribing) is left in place and does not seed the mesh, and neither
// subscribe nor its caller (Engine.Subscribe) drops it.
func (m *meshManager) subscribe(topic collab.Topic) {
	st := m.stateFor(topic)
	if st.mesh == nil {
		st.mesh = newPeerSet()
	}
}

// unsubscribe drops the mesh for topic entirely; fanout state is left
// untouched since unsubscribing does not affect any publish-only path.
func (m *meshManager) unsubscribe(topic collab.Topic) {
	st, ok := m.topics[topic]
	if !ok {
		return
	}
	st.mesh = nil
	if st.fanout == nil {
		delete(m.topics, topic)
	}
}

func (m *meshManager) stateFor(topic collab.Topic) *topicState {
	st, ok := m.topics[topic]
	if !ok {
		st = &topicState{}
		m.topics[topic] = st
	}
	return st
}

func (m *meshManager) meshPeers(topic collab.Topic) []collab.PeerID {
	st, ok := m.topics[topic]
	if !ok || st.mesh == nil {
		return nil
	}
	return st.mesh.List()
}

func (m *meshManager) meshSize(topic collab.Topic) int {
	st, ok := m.topics[topic]
	if !ok || st.mesh == nil {
		return 0
	}
	return st.mesh.Len()
}

func (m *meshManager) inMesh(topic collab.Topic, peer collab.PeerID) bool {
	st, ok := m.topics[topic]
	return ok && st.mesh != nil && st.mesh.Has(peer)
}

func (m *meshManager) graft(topic collab.Topic, peer collab.PeerID) {
	m.stateFor(topic).mesh.Add(peer)
}

func (m *meshManager) prune(topic collab.Topic, peer collab.PeerID) {
	st, ok := m.topics[topic]
	if ok && st.mesh != nil {
		st.mesh.Remove(peer)
	}
}

// removePeer drops peer from every mesh and fanout it belongs to, used
// when a peer disconnects.
func (m *meshManager) removePeer(peer collab.PeerID) {
	for _, st := range m.topics {
		if st.mesh != nil {
			st.mesh.Remove(peer)
		}
		if st.fanout != nil {
			st.fanout.Remove(peer)
		}
	}
}

func (m *meshManager) fanoutPeers(topic collab.Topic) []collab.PeerID {
	st, ok := m.topics[topic]
	if !ok || st.fanout == nil {
		return nil
	}
	return st.fanout.List()
}

func (m *meshManager) fanoutSize(topic collab.Topic) int {
	st, ok := m.topics[topic]
	if !ok || st.fanout == nil {
		return 0
	}
	return st.fanout.Len()
}

func (m *meshManager) ensureFanout(topic collab.Topic) *peerSet {
	st := m.stateFor(topic)
	if st.fanout == nil {
		st.fanout = newPeerSet()
	}
	st.lastPublished = m.clock.Now()
	return st.fanout
}

func (m *meshManager) touchFanout(topic collab.Topic) {
	if st, ok := m.topics[topic]; ok {
		st.lastPublished = m.clock.Now()
	}
}

// expireFanout drops every fanout whose last publish is older than ttl,
// per §4.7's fanout maintenance step. Topics that are also subscribed
// (mesh != nil) are left alone regardless of fanout age.
func (m *meshManager) expireFanout(ttl time.Duration) {
	now := m.clock.Now()
	for topic, st := range m.topics {
		if st.fanout == nil {
			continue
		}
		if now.Sub(st.lastPublished) > ttl {
			st.fanout = nil
			if st.mesh == nil {
				delete(m.topics, topic)
			}
		}
	}
}

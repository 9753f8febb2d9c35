package gossip

import "github.com/gossipmesh/engine/pkg/collab"

// peerSet is an insertion-ordered set of peers: O(1) membership tests via
// the index map, stable iteration order via the slice. Mesh and fanout
// membership is exposed to the rest of the engine through this type so
// iteration order (and therefore e.g. log output) is deterministic.
type peerSet struct {
	order []collab.PeerID
	index map[collab.PeerID]int
}

func newPeerSet() *peerSet {
	return &peerSet{index: make(map[collab.PeerID]int)}
}

func (s *peerSet) Add(p collab.PeerID) bool {
	if _, ok := s.index[p]; ok {
		return false
	}
	s.index[p] = len(s.order)
	s.order = append(s.order, p)
	return true
}

func (s *peerSet) Remove(p collab.PeerID) bool {
	i, ok := s.index[p]
	if !ok {
		return false
	}
	last := len(s.order) - 1
	s.order[i] = s.order[last]
	s.index[s.order[i]] = i
	s.order = s.order[:last]
	delete(s.index, p)
	return true
}

func (s *peerSet) Has(p collab.PeerID) bool {
	_, ok := s.index[p]
	return ok
}

func (s *peerSet) Len() int { return len(s.order) }

// List returns the set's members in insertion order. The caller must not
// mutate the returned slice.
func (s *peerSet) List() []collab.PeerID { return s.order }

// Clone returns an independent copy of the set's members.
func (s *peerSet) Clone() []collab.PeerID {
	out := make([]collab.PeerID, len(s.order))
	copy(out, s.order)
	return out
}

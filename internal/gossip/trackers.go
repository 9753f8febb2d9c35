package gossip

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gossipmesh/engine/pkg/collab"
)

const (
	maxIAskedEntries    = 256
	maxPeerIHaveEntries = 256
	maxIWantRequests    = 10240
)

type iwantKey struct {
	peer collab.PeerID
	id   collab.MessageID
}

// requestTrackers holds the three bounded LRU tables from §3 that drive
// per-heartbeat IHAVE/IWANT rate limiting and stale-request detection.
// iAsked and peerIHave are reset wholesale at the top of every heartbeat
// (§4.7 step 1); iWantRequests entries are swept individually once they
// age past IWantFollowupTime (§4.7 step 2).
type requestTrackers struct {
	clock Clock

	iAsked        *lru.Cache[collab.PeerID, int]
	peerIHave     *lru.Cache[collab.PeerID, int]
	iWantRequests *lru.Cache[iwantKey, time.Time]
}

func newRequestTrackers(clock Clock) *requestTrackers {
	iAsked, err := lru.New[collab.PeerID, int](maxIAskedEntries)
	if err != nil {
		panic(err)
	}
	peerIHave, err := lru.New[collab.PeerID, int](maxPeerIHaveEntries)
	if err != nil {
		panic(err)
	}
	iWant, err := lru.New[iwantKey, time.Time](maxIWantRequests)
	if err != nil {
		panic(err)
	}
	return &requestTrackers{clock: clock, iAsked: iAsked, peerIHave: peerIHave, iWantRequests: iWant}
}

func (rt *requestTrackers) iAskedCount(peer collab.PeerID) int {
	n, _ := rt.iAsked.Get(peer)
	return n
}

func (rt *requestTrackers) addIAsked(peer collab.PeerID, n int) {
	rt.iAsked.Add(peer, rt.iAskedCount(peer)+n)
}

func (rt *requestTrackers) peerIHaveCount(peer collab.PeerID) int {
	n, _ := rt.peerIHave.Get(peer)
	return n
}

func (rt *requestTrackers) incPeerIHave(peer collab.PeerID) int {
	n := rt.peerIHaveCount(peer) + 1
	rt.peerIHave.Add(peer, n)
	return n
}

// resetWindow clears the per-heartbeat counters. Called at the start of
// every heartbeat tick.
func (rt *requestTrackers) resetWindow() {
	rt.iAsked.Purge()
	rt.peerIHave.Purge()
}

// recordIWant notes that peer was asked for id at the current time.
func (rt *requestTrackers) recordIWant(peer collab.PeerID, id collab.MessageID) {
	rt.iWantRequests.Add(iwantKey{peer, id}, rt.clock.Now())
}

// clearIWant removes an outstanding ask, e.g. because the message arrived.
func (rt *requestTrackers) clearIWant(peer collab.PeerID, id collab.MessageID) {
	rt.iWantRequests.Remove(iwantKey{peer, id})
}

// sweepStaleIWants removes every outstanding ask older than followup and
// returns the peers that broke their promise, one entry per stale ask.
func (rt *requestTrackers) sweepStaleIWants(followup time.Duration) []collab.PeerID {
	var broken []collab.PeerID
	now := rt.clock.Now()
	for _, key := range rt.iWantRequests.Keys() {
		askedAt, ok := rt.iWantRequests.Peek(key)
		if !ok {
			continue
		}
		if now.Sub(askedAt) > followup {
			rt.iWantRequests.Remove(key)
			broken = append(broken, key.peer)
		}
	}
	return broken
}

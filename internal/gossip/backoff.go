package gossip

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gossipmesh/engine/pkg/collab"
)

const backoffTableCapacity = 10240

type backoffKey struct {
	peer  collab.PeerID
	topic collab.Topic
}

// backoffTable is the LRU-bounded (peer, topic) -> expiry table from §4.2.
// LRU eviction is acceptable here because an evicted entry is
// indistinguishable from a never-set one: both mean "no backoff", and the
// spec treats expired and absent entries as semantically equivalent.
type backoffTable struct {
	lru            *lru.Cache[backoffKey, time.Time]
	clock          Clock
	defaultDelay   time.Duration
	floodThreshold time.Duration
}

func newBackoffTable(clock Clock, defaultDelay, floodThreshold time.Duration) *backoffTable {
	c, err := lru.New[backoffKey, time.Time](backoffTableCapacity)
	if err != nil {
		panic(err) // only fails for a non-positive capacity, which is a constant here
	}
	return &backoffTable{lru: c, clock: clock, defaultDelay: defaultDelay, floodThreshold: floodThreshold}
}

// set records an expiry delay (delay<=0 uses the configured default) from
// now for (peer, topic).
func (bt *backoffTable) set(peer collab.PeerID, topic collab.Topic, delay time.Duration) {
	if delay <= 0 {
		delay = bt.defaultDelay
	}
	bt.lru.Add(backoffKey{peer, topic}, bt.clock.Now().Add(delay))
}

func (bt *backoffTable) expiry(peer collab.PeerID, topic collab.Topic) (time.Time, bool) {
	return bt.lru.Get(backoffKey{peer, topic})
}

// isBackoff reports whether the peer is still within its backoff window
// for topic.
func (bt *backoffTable) isBackoff(peer collab.PeerID, topic collab.Topic) bool {
	exp, ok := bt.expiry(peer, topic)
	return ok && bt.clock.Now().Before(exp)
}

// isFlood reports whether the peer attempted to re-GRAFT well before its
// backoff window would naturally have expired.
func (bt *backoffTable) isFlood(peer collab.PeerID, topic collab.Topic) bool {
	exp, ok := bt.expiry(peer, topic)
	if !ok {
		return false
	}
	floodCutoff := exp.Add(-(bt.defaultDelay + bt.floodThreshold))
	return bt.clock.Now().Before(floodCutoff)
}

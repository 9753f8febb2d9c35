package gossip

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/gossipmesh/engine/pkg/collab"
)

func TestRequestTrackers_IAskedAccumulates(t *testing.T) {
	mock := clock.NewMock()
	rt := newRequestTrackers(mock)

	assert.Equal(t, 0, rt.iAskedCount("p1"))
	rt.addIAsked("p1", 3)
	rt.addIAsked("p1", 2)
	assert.Equal(t, 5, rt.iAskedCount("p1"))
}

func TestRequestTrackers_PeerIHaveCounts(t *testing.T) {
	mock := clock.NewMock()
	rt := newRequestTrackers(mock)

	assert.Equal(t, 0, rt.peerIHaveCount("p1"))
	rt.incPeerIHave("p1")
	n := rt.incPeerIHave("p1")
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, rt.peerIHaveCount("p1"))
}

func TestRequestTrackers_ResetWindowClearsCounters(t *testing.T) {
	mock := clock.NewMock()
	rt := newRequestTrackers(mock)

	rt.addIAsked("p1", 4)
	rt.incPeerIHave("p1")
	rt.resetWindow()

	assert.Equal(t, 0, rt.iAskedCount("p1"))
	assert.Equal(t, 0, rt.peerIHaveCount("p1"))
}

func TestRequestTrackers_RecordAndClearIWant(t *testing.T) {
	mock := clock.NewMock()
	rt := newRequestTrackers(mock)

	rt.recordIWant("p1", "m1")
	rt.clearIWant("p1", "m1")

	broken := rt.sweepStaleIWants(time.Second)
	assert.Empty(t, broken)
}

func TestRequestTrackers_SweepStaleIWantsReturnsBrokenPromises(t *testing.T) {
	mock := clock.NewMock()
	rt := newRequestTrackers(mock)

	rt.recordIWant("p1", "m1")
	rt.recordIWant("p2", "m2")

	mock.Add(2 * time.Second)
	broken := rt.sweepStaleIWants(time.Second)

	assert.ElementsMatch(t, []collab.PeerID{"p1", "p2"}, broken)

	// Swept entries are removed, so a second sweep finds nothing left.
	assert.Empty(t, rt.sweepStaleIWants(time.Second))
}

func TestRequestTrackers_SweepStaleIWantsKeepsFreshAsks(t *testing.T) {
	mock := clock.NewMock()
	rt := newRequestTrackers(mock)

	rt.recordIWant("p1", "m1")
	mock.Add(500 * time.Millisecond)
	rt.recordIWant("p2", "m2")
	mock.Add(600 * time.Millisecond)

	broken := rt.sweepStaleIWants(time.Second)
	assert.Equal(t, []collab.PeerID{"p1"}, broken)
}

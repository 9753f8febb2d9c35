package gossip

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/gossipmesh/engine/pkg/collab"
)

func TestMeshManager_SubscribeUnsubscribe(t *testing.T) {
	mock := clock.NewMock()
	m := newMeshManager(mock)

	assert.False(t, m.subscribed("t1"))
	m.subscribe("t1")
	assert.True(t, m.subscribed("t1"))

	m.unsubscribe("t1")
	assert.False(t, m.subscribed("t1"))
}

func TestMeshManager_GraftPruneMembership(t *testing.T) {
	mock := clock.NewMock()
	m := newMeshManager(mock)
	m.subscribe("t1")

	m.graft("t1", "p1")
	m.graft("t1", "p2")
	assert.True(t, m.inMesh("t1", "p1"))
	assert.Equal(t, 2, m.meshSize("t1"))
	assert.ElementsMatch(t, []collab.PeerID{"p1", "p2"}, m.meshPeers("t1"))

	m.prune("t1", "p1")
	assert.False(t, m.inMesh("t1", "p1"))
	assert.Equal(t, 1, m.meshSize("t1"))
}

func TestMeshManager_UnsubscribeKeepsFanoutAlive(t *testing.T) {
	mock := clock.NewMock()
	m := newMeshManager(mock)
	m.subscribe("t1")
	m.ensureFanout("t1").Add("p1")

	m.unsubscribe("t1")
	assert.False(t, m.subscribed("t1"))
	assert.Equal(t, []collab.PeerID{"p1"}, m.fanoutPeers("t1"))
}

func TestMeshManager_RemovePeerDropsFromAllSets(t *testing.T) {
	mock := clock.NewMock()
	m := newMeshManager(mock)
	m.subscribe("t1")
	m.graft("t1", "p1")
	m.ensureFanout("t2").Add("p1")

	m.removePeer("p1")

	assert.False(t, m.inMesh("t1", "p1"))
	assert.Equal(t, 0, m.fanoutSize("t2"))
}

func TestMeshManager_EnsureFanoutStampsLastPublished(t *testing.T) {
	mock := clock.NewMock()
	m := newMeshManager(mock)

	m.ensureFanout("t1")
	assert.Equal(t, mock.Now(), m.topics["t1"].lastPublished)

	mock.Add(time.Minute)
	m.touchFanout("t1")
	assert.Equal(t, mock.Now(), m.topics["t1"].lastPublished)
}

func TestMeshManager_ExpireFanoutDropsStaleUnsubscribedTopics(t *testing.T) {
	mock := clock.NewMock()
	m := newMeshManager(mock)

	m.ensureFanout("t1")
	m.subscribe("t2")
	m.ensureFanout("t2")

	mock.Add(time.Hour)
	m.expireFanout(time.Minute)

	_, t1Exists := m.topics["t1"]
	assert.False(t, t1Exists)

	assert.True(t, m.subscribed("t2"))
	assert.Equal(t, 0, m.fanoutSize("t2"))
}

package gossip

import (
	"context"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gossipmesh/engine/pkg/collab"
)

func newTestPublisher(mock *clock.Mock, mesh *meshManager, score *fakeScore, transport *fakeTransport, peersInTopic collab.PeersInTopic) *publisher {
	return newPublisher(
		DefaultParams(), mesh, newMessageCache(3, 5), score, transport, fakeRand{},
		peersInTopic, fakeGetMessageID, fixedPeerHandle(true, collab.ProtocolV11), nil,
	)
}

func TestPublisher_PublishLocal_RoutesThroughMesh(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	mesh.subscribe("t1")
	mesh.graft("t1", "p1")
	mesh.graft("t1", "p2")
	transport := newFakeTransport()
	p := newTestPublisher(mock, mesh, newFakeScore(), transport, func(collab.Topic) []collab.PeerID { return nil })

	msg := &collab.Message{From: "me", Seqno: []byte("1"), Topics: []collab.Topic{"t1"}}
	err := p.publishLocal(context.Background(), msg, nil)

	require.NoError(t, err)
	assert.ElementsMatch(t, []collab.PeerID{"p1", "p2"}, publishedPeers(transport))
}

func TestPublisher_PublishLocal_NoPeersReturnsError(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	mesh.subscribe("t1")
	transport := newFakeTransport()
	p := newTestPublisher(mock, mesh, newFakeScore(), transport, func(collab.Topic) []collab.PeerID { return nil })

	msg := &collab.Message{From: "me", Seqno: []byte("1"), Topics: []collab.Topic{"t1"}}
	err := p.publishLocal(context.Background(), msg, nil)

	assert.ErrorIs(t, err, ErrNoConnectedPeers)
}

func TestPublisher_PublishLocal_SeedsFanoutWhenUnsubscribed(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	transport := newFakeTransport()
	peersInTopic := func(collab.Topic) []collab.PeerID { return []collab.PeerID{"p1", "p2", "p3"} }
	p := newTestPublisher(mock, mesh, newFakeScore(), transport, peersInTopic)

	msg := &collab.Message{From: "me", Seqno: []byte("1"), Topics: []collab.Topic{"t1"}}
	err := p.publishLocal(context.Background(), msg, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, mesh.fanoutPeers("t1"))
	assert.NotEmpty(t, transport.Published)
}

func TestPublisher_PublishLocal_FloodPublishUsesScoreThreshold(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	transport := newFakeTransport()
	score := newFakeScore()
	score.setScore("p1", 100)
	score.setScore("p2", -9999)
	peersInTopic := func(collab.Topic) []collab.PeerID { return []collab.PeerID{"p1", "p2"} }

	params := DefaultParams()
	params.FloodPublish = true
	p := newPublisher(params, mesh, newMessageCache(3, 5), score, transport, fakeRand{},
		peersInTopic, fakeGetMessageID, fixedPeerHandle(true, collab.ProtocolV11), nil)

	msg := &collab.Message{From: "me", Seqno: []byte("1"), Topics: []collab.Topic{"t1"}}
	err := p.publishLocal(context.Background(), msg, nil)

	require.NoError(t, err)
	assert.Equal(t, []collab.PeerID{"p1"}, publishedPeers(transport))
}

func TestPublisher_ForwardReceived_ExcludesSenderAndNonMeshTopics(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	mesh.subscribe("t1")
	mesh.graft("t1", "from")
	mesh.graft("t1", "p2")
	transport := newFakeTransport()
	p := newTestPublisher(mock, mesh, newFakeScore(), transport, func(collab.Topic) []collab.PeerID { return nil })

	msg := &collab.Message{From: "origin", Seqno: []byte("1"), Topics: []collab.Topic{"t1"}}
	p.forwardReceived(context.Background(), "from", msg, nil)

	assert.Equal(t, []collab.PeerID{"p2"}, publishedPeers(transport))
}

func TestPublisher_EmitGossip_SendsIHaveToEligibleNonMeshPeers(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	mesh.subscribe("t1")
	mesh.graft("t1", "meshed")
	transport := newFakeTransport()
	score := newFakeScore()
	peersInTopic := func(collab.Topic) []collab.PeerID { return []collab.PeerID{"meshed", "other"} }
	p := newTestPublisher(mock, mesh, score, transport, peersInTopic)
	p.cache.put("m1", &collab.Message{Topics: []collab.Topic{"t1"}})

	p.emitGossip("t1")

	require.Len(t, transport.Pending["other"], 1)
	assert.NotNil(t, transport.Pending["other"][0].IHave)
	assert.Empty(t, transport.Pending["meshed"])
}

func TestPublisher_EmitGossip_NoMessagesSkips(t *testing.T) {
	mock := clock.NewMock()
	mesh := newMeshManager(mock)
	mesh.subscribe("t1")
	transport := newFakeTransport()
	p := newTestPublisher(mock, mesh, newFakeScore(), transport, func(collab.Topic) []collab.PeerID { return []collab.PeerID{"p1"} })

	p.emitGossip("t1")

	assert.Empty(t, transport.Pending["p1"])
}

func publishedPeers(ft *fakeTransport) []collab.PeerID {
	out := make([]collab.PeerID, 0, len(ft.Published))
	for _, m := range ft.Published {
		out = append(out, m.Peer)
	}
	return out
}

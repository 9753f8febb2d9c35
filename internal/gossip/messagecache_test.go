package gossip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gossipmesh/engine/pkg/collab"
)

func TestMessageCache_PutAndGetForPeer(t *testing.T) {
	mc := newMessageCache(3, 5)
	msg := &collab.Message{From: "p1", Topics: []collab.Topic{"t1"}}
	mc.put("m1", msg)

	got, sent, ok := mc.getForPeer("peerA", "m1")
	require.True(t, ok)
	assert.Same(t, msg, got)
	assert.Equal(t, 0, sent)

	_, sent, ok = mc.getForPeer("peerA", "m1")
	require.True(t, ok)
	assert.Equal(t, 1, sent)
}

func TestMessageCache_PutIsIdempotentWithinNewestSlot(t *testing.T) {
	mc := newMessageCache(3, 5)
	msg := &collab.Message{From: "p1"}
	mc.put("m1", msg)
	mc.put("m1", msg)
	assert.Len(t, mc.slots[0], 1)
}

func TestMessageCache_IdsForTopicFiltersByTopic(t *testing.T) {
	mc := newMessageCache(3, 5)
	mc.put("a", &collab.Message{Topics: []collab.Topic{"t1"}})
	mc.put("b", &collab.Message{Topics: []collab.Topic{"t2"}})

	ids := mc.idsForTopic("t1")
	assert.Equal(t, []collab.MessageID{"a"}, ids)
}

func TestMessageCache_ShiftEvictsBeyondHistoryLength(t *testing.T) {
	mc := newMessageCache(1, 2)
	mc.put("a", &collab.Message{Topics: []collab.Topic{"t1"}})
	mc.shift()
	mc.put("b", &collab.Message{Topics: []collab.Topic{"t1"}})
	mc.shift()

	_, _, ok := mc.getForPeer("peerA", "a")
	assert.False(t, ok)
	_, _, ok = mc.getForPeer("peerA", "b")
	assert.True(t, ok)
}

func TestMessageCache_GossipSizeClampedToHistoryLength(t *testing.T) {
	mc := newMessageCache(10, 2)
	assert.Equal(t, 2, mc.gossipSize)
}

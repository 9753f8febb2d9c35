package gossip

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/gossipmesh/engine/pkg/collab"
)

func TestBackoffTable_SetAndIsBackoff(t *testing.T) {
	mock := clock.NewMock()
	bt := newBackoffTable(mock, time.Minute, 10*time.Second)

	assert.False(t, bt.isBackoff("p1", "t1"))

	bt.set("p1", "t1", 0)
	assert.True(t, bt.isBackoff("p1", "t1"))

	mock.Add(time.Minute + time.Second)
	assert.False(t, bt.isBackoff("p1", "t1"))
}

func TestBackoffTable_IsFloodOnlyForExtendedBackoff(t *testing.T) {
	mock := clock.NewMock()
	bt := newBackoffTable(mock, time.Minute, 10*time.Second)

	// A backoff at exactly the default delay never counts as flood: the
	// flood margin is measured back from expiry by defaultDelay+threshold,
	// which lands before the backoff was even set.
	bt.set("p1", "t1", 0)
	assert.False(t, bt.isFlood("p1", "t1"))

	// An extended backoff (escalated past a prior violation) does trip
	// flood detection while well inside its window.
	bt.set("p2", "t1", 5*time.Minute)
	mock.Add(time.Minute)
	assert.True(t, bt.isFlood("p2", "t1"))
}

func TestBackoffTable_DefaultDelayUsedWhenNonPositive(t *testing.T) {
	mock := clock.NewMock()
	bt := newBackoffTable(mock, 30*time.Second, time.Second)
	bt.set("p1", "t1", -1)

	exp, ok := bt.expiry("p1", "t1")
	assert.True(t, ok)
	assert.Equal(t, mock.Now().Add(30*time.Second), exp)
}

func TestBackoffTable_UnknownPeerIsNotBackoff(t *testing.T) {
	mock := clock.NewMock()
	bt := newBackoffTable(mock, time.Minute, time.Second)
	assert.False(t, bt.isBackoff(collab.PeerID("nobody"), "t1"))
}

package scoring

import (
	"math"

	"github.com/gossipmesh/engine/pkg/collab"
)

// NullScorer is a collab.PeerScore that scores every peer at zero and
// ignores every notification. It is useful for deployments that want
// mesh maintenance driven purely by DLow/DHigh/D without any
// behavioural gating, or for tests that want to isolate mesh logic
// from scoring.
type NullScorer struct {
	params collab.ScoreParams
}

// NewNullScorer builds a NullScorer with thresholds permissive enough
// that nothing is ever graylisted, rejected from gossip, or denied PX.
func NewNullScorer() *NullScorer {
	return &NullScorer{params: collab.ScoreParams{
		GossipThreshold:             math.Inf(-1),
		PublishThreshold:            math.Inf(-1),
		GraylistThreshold:           math.Inf(-1),
		AcceptPXThreshold:           math.Inf(-1),
		OpportunisticGraftThreshold: math.Inf(-1),
	}}
}

func (NullScorer) Score(collab.PeerID) float64 { return 0 }
func (n NullScorer) Params() collab.ScoreParams { return n.params }

func (NullScorer) NotifyConnected(collab.PeerID)                   {}
func (NullScorer) NotifyDisconnected(collab.PeerID)                 {}
func (NullScorer) NotifyMeshed(collab.PeerID, collab.Topic)         {}
func (NullScorer) NotifyPruned(collab.PeerID, collab.Topic)         {}
func (NullScorer) NotifySeen(collab.PeerID, collab.Topic)           {}
func (NullScorer) NotifyUnseenValid(collab.PeerID, collab.Topic)    {}
func (NullScorer) NotifyUnseenInvalid(collab.PeerID, collab.Topic)  {}
func (NullScorer) NotifyRouterMisbehavior(collab.PeerID, int)       {}

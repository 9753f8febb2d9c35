// Package scoring implements the default GossipSub v1.1 peer-scoring
// engine consumed through collab.PeerScore: per-topic delivery and
// mesh-time credit, behavioural-penalty tracking and periodic decay.
// The gossip core never depends on this package directly — it is wired
// in by whoever constructs an Engine, exactly like any other
// collab.PeerScore implementation (including NullScorer in null.go).
package scoring

import "time"

// Params are the scorer-wide tunables (P5/P7 and decay behaviour).
type Params struct {
	DecayInterval time.Duration
	DecayToZero   float64
	RetainScore   time.Duration

	// AppSpecificScore, when set, overrides the per-peer application
	// score recorded via SetAppScore.
	AppSpecificScore  func(peer string) float64
	AppSpecificWeight float64

	BehaviourPenaltyWeight    float64
	BehaviourPenaltyThreshold float64
	BehaviourPenaltyDecay     float64

	GossipThreshold             float64
	PublishThreshold            float64
	GraylistThreshold           float64
	AcceptPXThreshold           float64
	OpportunisticGraftThreshold float64
}

// DefaultParams returns the reference thresholds and decay tuning.
func DefaultParams() Params {
	return Params{
		DecayInterval:               time.Second,
		DecayToZero:                 0.01,
		RetainScore:                 10 * time.Minute,
		AppSpecificWeight:           1.0,
		BehaviourPenaltyWeight:      -1.0,
		BehaviourPenaltyThreshold:   1.0,
		BehaviourPenaltyDecay:       0.999,
		GossipThreshold:             -500,
		PublishThreshold:            -1000,
		GraylistThreshold:           -2500,
		AcceptPXThreshold:           10,
		OpportunisticGraftThreshold: 5,
	}
}

// TopicParams are the per-topic weights (P1-P4).
type TopicParams struct {
	TopicWeight float64

	TimeInMeshWeight  float64
	TimeInMeshQuantum time.Duration
	TimeInMeshCap     float64

	FirstMessageDeliveriesWeight float64
	FirstMessageDeliveriesDecay  float64
	FirstMessageDeliveriesCap    float64

	MeshMessageDeliveriesWeight    float64
	MeshMessageDeliveriesDecay     float64
	MeshMessageDeliveriesCap       float64
	MeshMessageDeliveriesThreshold float64
	MeshMessageDeliveriesActivation time.Duration

	MeshFailurePenaltyWeight float64
	MeshFailurePenaltyDecay  float64

	InvalidMessageDeliveriesWeight float64
	InvalidMessageDeliveriesDecay  float64
}

// DefaultTopicParams returns the reference per-topic weights.
func DefaultTopicParams() TopicParams {
	return TopicParams{
		TopicWeight:                     1.0,
		TimeInMeshWeight:                0.01,
		TimeInMeshQuantum:               time.Second,
		TimeInMeshCap:                   3600,
		FirstMessageDeliveriesWeight:    1.0,
		FirstMessageDeliveriesDecay:     0.9999,
		FirstMessageDeliveriesCap:       100,
		MeshMessageDeliveriesWeight:     -1.0,
		MeshMessageDeliveriesDecay:      0.9999,
		MeshMessageDeliveriesCap:        1000,
		MeshMessageDeliveriesThreshold:  1,
		MeshMessageDeliveriesActivation: 5 * time.Second,
		MeshFailurePenaltyWeight:        -1.0,
		MeshFailurePenaltyDecay:         0.999,
		InvalidMessageDeliveriesWeight:  -1000.0,
		InvalidMessageDeliveriesDecay:   0.9999,
	}
}

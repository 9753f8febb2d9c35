// Package gossip implements the routing core of a GossipSub v1.0/v1.1
// mesh: mesh/fanout management, the message cache, control-message
// handling (GRAFT/PRUNE/IHAVE/IWANT), peer exchange, backoff tracking and
// the heartbeat that drives all of the above. Transport, wire framing,
// message deduplication and the scoring engine itself are external
// collaborators, injected through pkg/collab.
package gossip

import "time"

// Params holds the tunables of the mesh-maintenance algorithm. Field names
// track the wire protocol's own vocabulary (D, DLow, DHigh, ...) rather
// than inventing new ones.
type Params struct {
	// D is the target mesh degree. DLow/DHigh loosely bound it between
	// heartbeats.
	D, DLow, DHigh int
	// DScore is the size of the top-scoring keep-pool retained verbatim
	// when a mesh is pruned down from DHigh.
	DScore int
	// DOut is the minimum number of outbound peers a mesh must retain.
	DOut int
	// DLazy is the minimum number of gossip (IHAVE) recipients per topic
	// per heartbeat.
	DLazy int

	HeartbeatInterval time.Duration

	// FanoutTTL is how long a fanout entry survives with no local publish.
	FanoutTTL time.Duration

	// GossipSize is how many of the newest MessageCache slots contribute
	// ids to IHAVE announcements; GossipHistoryLength is the ring depth.
	GossipSize          int
	GossipHistoryLength int

	// GossipFactor is the fraction of eligible topic peers gossiped to
	// per heartbeat, subject to the DLazy floor.
	GossipFactor float64

	// GossipRetransmission caps retransmits of one message to one peer.
	GossipRetransmission int

	// MaxIHaveLength caps ids asked for per peer per heartbeat window;
	// MaxIHaveMessages caps IHAVE messages accepted per peer per window.
	MaxIHaveLength   int
	MaxIHaveMessages int

	// PruneBackoff is the default backoff duration set on PRUNE.
	// GraftFloodThreshold is the extra margin inside the backoff window
	// that marks a re-GRAFT as flooding rather than merely premature.
	PruneBackoff        time.Duration
	GraftFloodThreshold time.Duration

	// OpportunisticGraftTicks is the heartbeat cadence of opportunistic
	// grafting; OpportunisticGraftPeers is how many candidates it grafts.
	OpportunisticGraftTicks  int
	OpportunisticGraftPeers  int

	// IWantFollowupTime is how long an outstanding IWANT may go unfulfilled
	// before it is swept and penalised.
	IWantFollowupTime time.Duration

	// FloodPublish, when set, broadcasts local publishes to every
	// sufficiently-scored topic peer instead of routing through mesh/fanout.
	FloodPublish bool

	// MaxPrunePeers caps how many PX candidates are accepted from one PRUNE.
	MaxPrunePeers int
}

// DefaultParams returns the reference GossipSub v1.1 tuning used by most
// deployments.
func DefaultParams() Params {
	return Params{
		D:                       6,
		DLow:                    4,
		DHigh:                   12,
		DScore:                  4,
		DOut:                    2,
		DLazy:                   6,
		HeartbeatInterval:       time.Second,
		FanoutTTL:               60 * time.Second,
		GossipSize:              3,
		GossipHistoryLength:     5,
		GossipFactor:            0.25,
		GossipRetransmission:    3,
		MaxIHaveLength:          5000,
		MaxIHaveMessages:        10,
		PruneBackoff:            time.Minute,
		GraftFloodThreshold:     10 * time.Second,
		OpportunisticGraftTicks: 60,
		OpportunisticGraftPeers: 2,
		IWantFollowupTime:       3 * time.Second,
		FloodPublish:            false,
		MaxPrunePeers:           16,
	}
}

// Option configures a Params value, mirroring the functional-options style
// used across the rest of the router.
type Option func(*Params)

func WithMeshDegree(d, dlo, dhi int) Option {
	return func(p *Params) { p.D, p.DLow, p.DHigh = d, dlo, dhi }
}

func WithDScore(dscore int) Option { return func(p *Params) { p.DScore = dscore } }
func WithDOut(dout int) Option     { return func(p *Params) { p.DOut = dout } }
func WithDLazy(dlazy int) Option   { return func(p *Params) { p.DLazy = dlazy } }

func WithHeartbeatInterval(d time.Duration) Option {
	return func(p *Params) { p.HeartbeatInterval = d }
}

func WithFanoutTTL(d time.Duration) Option { return func(p *Params) { p.FanoutTTL = d } }

func WithMessageCache(gossipSize, historyLength int) Option {
	return func(p *Params) { p.GossipSize = gossipSize; p.GossipHistoryLength = historyLength }
}

func WithGossipFactor(f float64) Option { return func(p *Params) { p.GossipFactor = f } }

func WithGossipRetransmission(n int) Option {
	return func(p *Params) { p.GossipRetransmission = n }
}

func WithIHaveLimits(maxLength, maxMessages int) Option {
	return func(p *Params) { p.MaxIHaveLength = maxLength; p.MaxIHaveMessages = maxMessages }
}

func WithBackoff(prune, floodThreshold time.Duration) Option {
	return func(p *Params) { p.PruneBackoff = prune; p.GraftFloodThreshold = floodThreshold }
}

func WithOpportunisticGraft(ticks, peers int) Option {
	return func(p *Params) { p.OpportunisticGraftTicks = ticks; p.OpportunisticGraftPeers = peers }
}

func WithIWantFollowupTime(d time.Duration) Option {
	return func(p *Params) { p.IWantFollowupTime = d }
}

func WithFloodPublish(enabled bool) Option { return func(p *Params) { p.FloodPublish = enabled } }

func WithMaxPrunePeers(n int) Option { return func(p *Params) { p.MaxPrunePeers = n } }

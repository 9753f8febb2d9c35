package scoring

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gossipmesh/engine/pkg/collab"
)

// peerStats is the per-peer bookkeeping the scorer accumulates.
type peerStats struct {
	connected bool
	firstSeen time.Time
	lastSeen  time.Time

	topics map[collab.Topic]*topicStats

	behaviourPenalty float64
	appScore         float64
}

// topicStats is the per-(peer, topic) bookkeeping behind P1-P4.
type topicStats struct {
	inMesh    bool
	meshTime  time.Duration
	graftTime time.Time

	firstMessageDeliveries float64

	meshMessageDeliveries       float64
	meshMessageDeliveriesActive bool

	meshFailurePenalty float64
	invalidMessages    float64
}

// Scorer is the default collab.PeerScore implementation, grounded on
// GossipSub v1.1's scoring function: a weighted sum of per-topic
// delivery credit (P1-P4), an application-supplied score (P5) and a
// behavioural penalty (P7). IP colocation penalties (P6) are out of
// scope here since collab.PeerID carries no address information — that
// belongs to whatever owns the transport, which can feed it in through
// NotifyRouterMisbehavior instead.
type Scorer struct {
	mu sync.RWMutex

	clock  clock.Clock
	params Params

	topicParams map[collab.Topic]TopicParams
	peers       map[collab.PeerID]*peerStats

	isDirect  func(collab.PeerID) bool
	lastDecay time.Time
}

// New builds a Scorer. clk may be clock.New() in production or
// clock.NewMock() in tests; isDirect may be nil (no configured direct
// peers).
func New(clk clock.Clock, params Params, isDirect func(collab.PeerID) bool) *Scorer {
	return &Scorer{
		clock:       clk,
		params:      params,
		topicParams: make(map[collab.Topic]TopicParams),
		peers:       make(map[collab.PeerID]*peerStats),
		isDirect:    isDirect,
		lastDecay:   clk.Now(),
	}
}

// SetTopicParams installs custom per-topic weights; omitted topics use
// DefaultTopicParams.
func (s *Scorer) SetTopicParams(topic collab.Topic, p TopicParams) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topicParams[topic] = p
}

func (s *Scorer) topicParamsFor(topic collab.Topic) TopicParams {
	if p, ok := s.topicParams[topic]; ok {
		return p
	}
	return DefaultTopicParams()
}

// Score implements collab.PeerScore. It applies any owed decay first,
// so callers never need to drive Decay themselves.
func (s *Scorer) Score(p collab.PeerID) float64 {
	s.Decay()
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.peers[p]
	if !ok {
		return 0
	}
	return s.computeScore(p, stats)
}

func (s *Scorer) computeScore(peer collab.PeerID, stats *peerStats) float64 {
	var score float64
	for topic, ts := range stats.topics {
		tp := s.topicParamsFor(topic)
		score += s.computeTopicScore(ts, tp) * tp.TopicWeight
	}

	if s.params.AppSpecificScore != nil {
		score += s.params.AppSpecificScore(string(peer)) * s.params.AppSpecificWeight
	} else {
		score += stats.appScore * s.params.AppSpecificWeight
	}

	if stats.behaviourPenalty > s.params.BehaviourPenaltyThreshold {
		score += stats.behaviourPenalty * s.params.BehaviourPenaltyWeight
	}
	return score
}

func (s *Scorer) computeTopicScore(ts *topicStats, tp TopicParams) float64 {
	var score float64

	if ts.inMesh && ts.meshTime > 0 {
		p1 := ts.meshTime.Seconds() / tp.TimeInMeshQuantum.Seconds()
		if p1 > tp.TimeInMeshCap {
			p1 = tp.TimeInMeshCap
		}
		score += p1 * tp.TimeInMeshWeight
	}

	p2 := ts.firstMessageDeliveries
	if p2 > tp.FirstMessageDeliveriesCap {
		p2 = tp.FirstMessageDeliveriesCap
	}
	score += p2 * tp.FirstMessageDeliveriesWeight

	if ts.meshMessageDeliveriesActive {
		if deficit := tp.MeshMessageDeliveriesThreshold - ts.meshMessageDeliveries; deficit > 0 {
			score += deficit * deficit * tp.MeshMessageDeliveriesWeight
		}
	}

	if ts.meshFailurePenalty > 0 {
		score += ts.meshFailurePenalty * tp.MeshFailurePenaltyWeight
	}

	if ts.invalidMessages > 0 {
		score += ts.invalidMessages * ts.invalidMessages * tp.InvalidMessageDeliveriesWeight
	}

	return score
}

// Params implements collab.PeerScore.
func (s *Scorer) Params() collab.ScoreParams {
	return collab.ScoreParams{
		GossipThreshold:             s.params.GossipThreshold,
		PublishThreshold:            s.params.PublishThreshold,
		GraylistThreshold:           s.params.GraylistThreshold,
		AcceptPXThreshold:           s.params.AcceptPXThreshold,
		OpportunisticGraftThreshold: s.params.OpportunisticGraftThreshold,
		IsDirect:                    s.isDirect,
	}
}

func (s *Scorer) getOrCreate(p collab.PeerID) *peerStats {
	stats, ok := s.peers[p]
	if !ok {
		now := s.clock.Now()
		stats = &peerStats{connected: true, firstSeen: now, lastSeen: now, topics: make(map[collab.Topic]*topicStats)}
		s.peers[p] = stats
	}
	stats.lastSeen = s.clock.Now()
	return stats
}

func (s *Scorer) topicStatsFor(stats *peerStats, topic collab.Topic) *topicStats {
	ts, ok := stats.topics[topic]
	if !ok {
		ts = &topicStats{}
		stats.topics[topic] = ts
	}
	return ts
}

// NotifyConnected implements collab.PeerScore.
func (s *Scorer) NotifyConnected(p collab.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(p)
}

// NotifyDisconnected implements collab.PeerScore. Stats are retained
// for RetainScore so a peer cannot wash its score by reconnecting.
func (s *Scorer) NotifyDisconnected(p collab.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stats, ok := s.peers[p]; ok {
		stats.connected = false
	}
}

// NotifyMeshed implements collab.PeerScore.
func (s *Scorer) NotifyMeshed(p collab.PeerID, t collab.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.topicStatsFor(s.getOrCreate(p), t)
	ts.inMesh = true
	ts.graftTime = s.clock.Now()
	ts.meshMessageDeliveriesActive = false
}

// NotifyPruned implements collab.PeerScore.
func (s *Scorer) NotifyPruned(p collab.PeerID, t collab.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.topicStatsFor(s.getOrCreate(p), t)
	if !ts.inMesh {
		return
	}
	ts.inMesh = false
	if ts.meshMessageDeliveriesActive {
		tp := s.topicParamsFor(t)
		if deficit := tp.MeshMessageDeliveriesThreshold - ts.meshMessageDeliveries; deficit > 0 {
			ts.meshFailurePenalty += deficit * deficit
		}
	}
}

// NotifySeen implements collab.PeerScore: peer announced or forwarded a
// message we had already accepted from someone else.
func (s *Scorer) NotifySeen(p collab.PeerID, t collab.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.topicStatsFor(s.getOrCreate(p), t)
	if ts.inMesh {
		ts.meshMessageDeliveries++
	}
}

// NotifyUnseenValid implements collab.PeerScore: first valid delivery
// of a message from this peer.
func (s *Scorer) NotifyUnseenValid(p collab.PeerID, t collab.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.topicStatsFor(s.getOrCreate(p), t)
	ts.firstMessageDeliveries++
	if ts.inMesh {
		ts.meshMessageDeliveries++
	}
}

// NotifyUnseenInvalid implements collab.PeerScore.
func (s *Scorer) NotifyUnseenInvalid(p collab.PeerID, t collab.Topic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.topicStatsFor(s.getOrCreate(p), t)
	ts.invalidMessages++
}

// NotifyRouterMisbehavior implements collab.PeerScore.
func (s *Scorer) NotifyRouterMisbehavior(p collab.PeerID, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(p).behaviourPenalty += float64(delta)
}

// SetAppScore sets the application-layer score (P5) used when Params
// has no AppSpecificScore override installed.
func (s *Scorer) SetAppScore(p collab.PeerID, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(p).appScore = score
}

// Decay applies P1-P4/P7 decay for every elapsed DecayInterval since
// the last call, and evicts peers disconnected for longer than
// RetainScore. It is a no-op when called more often than
// DecayInterval, so callers (typically a heartbeat) can call it
// unconditionally every tick.
func (s *Scorer) Decay() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	elapsed := now.Sub(s.lastDecay)
	if elapsed < s.params.DecayInterval {
		return
	}
	s.lastDecay = now
	intervals := int(elapsed / s.params.DecayInterval)

	for peer, stats := range s.peers {
		s.decayPeer(stats, intervals)
		if !stats.connected && now.Sub(stats.lastSeen) > s.params.RetainScore {
			delete(s.peers, peer)
		}
	}
}

func (s *Scorer) decayPeer(stats *peerStats, intervals int) {
	for topic, ts := range stats.topics {
		tp := s.topicParamsFor(topic)

		if ts.inMesh {
			ts.meshTime += s.params.DecayInterval * time.Duration(intervals)
			if !ts.meshMessageDeliveriesActive && s.clock.Now().Sub(ts.graftTime) >= tp.MeshMessageDeliveriesActivation {
				ts.meshMessageDeliveriesActive = true
			}
		}

		ts.firstMessageDeliveries *= math.Pow(tp.FirstMessageDeliveriesDecay, float64(intervals))
		ts.meshMessageDeliveries *= math.Pow(tp.MeshMessageDeliveriesDecay, float64(intervals))
		ts.meshFailurePenalty *= math.Pow(tp.MeshFailurePenaltyDecay, float64(intervals))
		ts.invalidMessages *= math.Pow(tp.InvalidMessageDeliveriesDecay, float64(intervals))

		if ts.firstMessageDeliveries < s.params.DecayToZero {
			ts.firstMessageDeliveries = 0
		}
		if ts.meshMessageDeliveries < s.params.DecayToZero {
			ts.meshMessageDeliveries = 0
		}
		if ts.meshFailurePenalty < s.params.DecayToZero {
			ts.meshFailurePenalty = 0
		}
		if ts.invalidMessages < s.params.DecayToZero {
			ts.invalidMessages = 0
		}
	}

	stats.behaviourPenalty *= math.Pow(s.params.BehaviourPenaltyDecay, float64(intervals))
	if stats.behaviourPenalty < s.params.DecayToZero {
		stats.behaviourPenalty = 0
	}
}

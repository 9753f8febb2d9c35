package gossip

import (
	"context"

	"github.com/google/uuid"
	catcher "github.com/jbenet/go-temp-err-catcher"
	"github.com/jbenet/goprocess"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gossipmesh/engine/pkg/collab"
	"github.com/gossipmesh/engine/pkg/log"
)

// peerEntry is the registry entry the engine keeps per connected peer:
// enough to answer the collab.PeerHandle contract and to hand out a
// signed record for peer exchange.
type peerEntry struct {
	handle       collab.PeerHandle
	signedRecord []byte
}

// Engine is the single-threaded routing core described in §5. Every
// public method hands its work to one internal goroutine — the
// executor — so mesh state, the message cache and the backoff/request
// tables are never touched from two goroutines at once; no field in the
// engine or its collaborators needs its own lock.
type Engine struct {
	params Params

	mesh      *meshManager
	backoff   *backoffTable
	trackers  *requestTrackers
	cache     *messageCache
	control   *controlHandler
	publisher *publisher
	heartbeat *heartbeat

	score     collab.PeerScore
	transport collab.Transport
	clock     Clock

	peers map[collab.PeerID]*peerEntry

	proc    goprocess.Process
	actions chan func()

	log *log.Component
}

// Deps bundles the collaborators injected from outside the core. They
// are touched only from within the executor goroutine, except
// Transport.SubmitPublish, which retrySend also calls from its own
// goroutine when it resends after a temporary error.
type Deps struct {
	Score         collab.PeerScore
	Transport     collab.Transport
	Clock         Clock
	Rand          collab.Rand
	GetMessageID  collab.GetMessageID
	PeersInTopic  collab.PeersInTopic
	Seen          collab.SeenMessages
	OnPXCandidate collab.ConnectCallback

	// Registerer receives the engine's Prometheus collectors. May be nil
	// to run without metrics.
	Registerer prometheus.Registerer
}

// NewEngine wires every internal component together. The engine is
// inert until Start is called.
func NewEngine(params Params, deps Deps) *Engine {
	mesh := newMeshManager(deps.Clock)
	backoff := newBackoffTable(deps.Clock, params.PruneBackoff, params.GraftFloodThreshold)
	trackers := newRequestTrackers(deps.Clock)
	cache := newMessageCache(params.GossipSize, params.GossipHistoryLength)
	m := newMetrics(deps.Registerer)

	e := &Engine{
		params:    params,
		mesh:      mesh,
		backoff:   backoff,
		trackers:  trackers,
		cache:     cache,
		score:     deps.Score,
		transport: deps.Transport,
		clock:     deps.Clock,
		peers:     make(map[collab.PeerID]*peerEntry),
		actions:   make(chan func()),
		log:       log.Logger("gossip.engine"),
	}

	e.control = newControlHandler(params, mesh, backoff, trackers, cache, deps.Score, deps.Transport,
		deps.Rand, e.peerHandle, deps.Seen, deps.OnPXCandidate, m)
	e.publisher = newPublisher(params, mesh, cache, deps.Score, deps.Transport, deps.Rand,
		deps.PeersInTopic, deps.GetMessageID, e.peerHandle, m)
	e.heartbeat = newHeartbeat(params, mesh, backoff, trackers, cache, e.publisher, deps.Score,
		deps.Transport, deps.Rand, deps.PeersInTopic, e.peerHandle, e.peerRecord, m)

	return e
}

// Start launches the executor goroutine and the heartbeat ticker under a
// goprocess so callers get ordinary Close-based shutdown and can nest
// the engine under a larger process tree.
func (e *Engine) Start() goprocess.Process {
	e.proc = goprocess.Go(func(proc goprocess.Process) {
		ticker := e.clock.Ticker(e.params.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case fn := <-e.actions:
				fn()
			case <-ticker.C:
				e.heartbeat.tick()
			case <-proc.Closing():
				return
			}
		}
	})
	return e.proc
}

// Close stops the executor and waits for it to exit.
func (e *Engine) Close() error {
	if e.proc == nil {
		return nil
	}
	return e.proc.Close()
}

// run submits fn to the executor and blocks until it has run.
func (e *Engine) run(fn func()) {
	done := make(chan struct{})
	e.actions <- func() {
		fn()
		close(done)
	}
	<-done
}

// Subscribe joins topic by allocating an empty mesh for it. It grafts no
// peer itself (the heartbeat's graft-up step fills the mesh) and leaves
// any fanout for topic in place until fanout expiry removes it.
func (e *Engine) Subscribe(topic collab.Topic) error {
	var err error
	e.run(func() {
		if e.mesh.subscribed(topic) {
			err = ErrTopicAlreadyJoined
			return
		}
		e.mesh.subscribe(topic)
	})
	return err
}

// Unsubscribe leaves topic, pruning every current mesh member and
// recording the default prune backoff for each (per §4.6). The PRUNE
// sent carries only the topic.
func (e *Engine) Unsubscribe(topic collab.Topic) {
	e.run(func() {
		for _, peer := range e.mesh.meshPeers(topic) {
			e.score.NotifyPruned(peer, topic)
			e.backoff.set(peer, topic, e.params.PruneBackoff)
			e.transport.AddPendingRPCPart(peer, collab.RPCPart{Prune: &collab.Prune{Topic: topic}})
		}
		e.mesh.unsubscribe(topic)
		e.transport.FlushAllPending()
	})
}

// Publish routes a locally originated message, per §4.5. Delivery to
// each target retries transient transport errors in the background;
// Publish itself returns as soon as the sends are queued, not once they
// land.
func (e *Engine) Publish(ctx context.Context, msg *collab.Message) error {
	if len(msg.Seqno) == 0 {
		id := uuid.New()
		msg.Seqno = id[:]
	}
	var err error
	e.run(func() {
		err = e.publisher.publishLocal(ctx, msg, e.retrySend)
		e.transport.FlushAllPending()
	})
	return err
}

// retrySend watches one SubmitPublish attempt and, on a transient
// error, resubmits via resend. It never re-enters the executor:
// SubmitPublish is safe for concurrent use per its contract in
// pkg/collab.
func (e *Engine) retrySend(ctx context.Context, peer collab.PeerID, msg *collab.Message, result <-chan error) {
	go func() {
		var tec catcher.TempErrCatcher
		for {
			err := <-result
			if err == nil {
				return
			}
			if tec.IsTemporary(err) {
				result = e.transport.SubmitPublish(ctx, peer, msg)
				continue
			}
			e.log.Warn("giving up on message after permanent send error", "peer", string(peer), "err", err)
			return
		}
	}()
}

// OnPeerActive registers a newly connected peer and notifies scoring.
func (e *Engine) OnPeerActive(id collab.PeerID, handle collab.PeerHandle, signedRecord []byte) {
	e.run(func() {
		e.peers[id] = &peerEntry{handle: handle, signedRecord: signedRecord}
		e.score.NotifyConnected(id)
	})
}

// OnPeerDisconnected removes a peer from every mesh/fanout and scoring
// state.
func (e *Engine) OnPeerDisconnected(id collab.PeerID) {
	e.run(func() {
		e.mesh.removePeer(id)
		delete(e.peers, id)
		e.score.NotifyDisconnected(id)
	})
}

// OnInboundRPC processes one received RPC: control items per §4.3, then
// messages per §4.2/§4.5 (dedup is the outer router's responsibility —
// the engine trusts that seen.Has already filtered msg.Messages).
func (e *Engine) OnInboundRPC(ctx context.Context, from collab.PeerID, rpc *collab.RPC) {
	e.run(func() {
		e.control.handleRPC(ctx, from, rpc)
		for _, msg := range rpc.Messages {
			id := e.publisher.getMessageID(msg)
			e.trackers.clearIWant(from, id)
			e.score.NotifySeen(from, topicOrEmpty(msg))
			e.publisher.forwardReceived(ctx, from, msg, e.retrySend)
		}
		e.transport.FlushAllPending()
	})
}

func (e *Engine) peerHandle(id collab.PeerID) (collab.PeerHandle, bool) {
	entry, ok := e.peers[id]
	if !ok {
		return nil, false
	}
	return entry.handle, true
}

func (e *Engine) peerRecord(id collab.PeerID) ([]byte, bool) {
	entry, ok := e.peers[id]
	if !ok || entry.signedRecord == nil {
		return nil, false
	}
	return entry.signedRecord, true
}

func topicOrEmpty(msg *collab.Message) collab.Topic {
	if len(msg.Topics) == 0 {
		return ""
	}
	return msg.Topics[0]
}

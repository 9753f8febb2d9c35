package gossip

import "errors"

var (
	// ErrTopicAlreadyJoined is returned by Subscribe for a topic already
	// in the mesh table.
	ErrTopicAlreadyJoined = errors.New("gossip: topic already subscribed")

	// ErrUnknownTopic reports an operation against a topic the local
	// node has not subscribed to. No function in this package returns it.
	ErrUnknownTopic = errors.New("gossip: unknown topic")

	// ErrNoConnectedPeers is returned by a publish path that found no
	// eligible recipient.
	ErrNoConnectedPeers = errors.New("gossip: no eligible peers")

	// ErrAllSendsFailed reports that every recipient's submit future
	// resolved to an error. No function in this package returns it:
	// Publish returns once the sends are queued, before any result is in.
	ErrAllSendsFailed = errors.New("gossip: all sends failed")
)

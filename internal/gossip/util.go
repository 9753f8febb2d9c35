package gossip

import (
	"time"

	"github.com/gossipmesh/engine/pkg/collab"
)

func secondsToDuration(s uint64) time.Duration {
	return time.Duration(s) * time.Second
}

// shuffle permutes ids in place using rnd.
func shuffle(rnd collab.Rand, ids []collab.PeerID) {
	rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// shuffleMessageIDs permutes ids in place using rnd.
func shuffleMessageIDs(rnd collab.Rand, ids []collab.MessageID) {
	rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}

// sampleN returns up to n distinct entries of candidates chosen uniformly
// at random, without mutating candidates.
func sampleN(rnd collab.Rand, candidates []collab.PeerID, n int) []collab.PeerID {
	if n >= len(candidates) {
		out := make([]collab.PeerID, len(candidates))
		copy(out, candidates)
		shuffle(rnd, out)
		return out
	}
	if n <= 0 {
		return nil
	}
	pool := make([]collab.PeerID, len(candidates))
	copy(pool, candidates)
	shuffle(rnd, pool)
	return pool[:n]
}

// sampleMessageIDsN returns up to n distinct message ids chosen uniformly
// at random from candidates, without mutating candidates.
func sampleMessageIDsN(rnd collab.Rand, candidates []collab.MessageID, n int) []collab.MessageID {
	if n >= len(candidates) {
		out := make([]collab.MessageID, len(candidates))
		copy(out, candidates)
		shuffleMessageIDs(rnd, out)
		return out
	}
	if n <= 0 {
		return nil
	}
	pool := make([]collab.MessageID, len(candidates))
	copy(pool, candidates)
	shuffleMessageIDs(rnd, pool)
	return pool[:n]
}

// subtractPeers returns the elements of a that are not in any of excl.
func subtractPeers(a []collab.PeerID, excl ...map[collab.PeerID]bool) []collab.PeerID {
	out := make([]collab.PeerID, 0, len(a))
outer:
	for _, p := range a {
		for _, ex := range excl {
			if ex[p] {
				continue outer
			}
		}
		out = append(out, p)
	}
	return out
}

func toSet(peers []collab.PeerID) map[collab.PeerID]bool {
	m := make(map[collab.PeerID]bool, len(peers))
	for _, p := range peers {
		m[p] = true
	}
	return m
}

func medianScore(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	// insertion sort: mesh sizes are small (bounded by DHigh), so this
	// avoids pulling in sort for a handful of elements.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

package gossip

import "github.com/benbjohnson/clock"

// Clock is the time source injected into every time-based table and the
// heartbeat loop. Production code uses clock.New(); tests use clock.NewMock()
// to drive the heartbeat and backoff/IWANT expiry deterministically without
// sleeping.
type Clock = clock.Clock

package comm

import (
	"sync"

	"github.com/google/uuid"
)

// dedupKey identifies one delivered response for duplicate detection:
// the correlationId it answers plus the sender that produced it. A
// broker retransmit of the same response carries the same key and is
// discarded (spec §4.1 "Correlation").
type dedupKey struct {
	correlationID uuid.UUID
	senderID      uuid.UUID
}

// correlator tracks in-flight request correlators and the dedup set of
// responses already delivered for each. It is removed explicitly when
// the caller's observer disposes (Discover/Query/Update/Call requests
// never terminate on their own per spec §4.1 — "caller's timeout is
// authoritative").
type correlator struct {
	mu   sync.Mutex
	seen map[uuid.UUID]map[uuid.UUID]bool // correlationId -> senderId -> delivered
}

func newCorrelator() *correlator {
	return &correlator{seen: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

// register starts tracking duplicates for a freshly allocated
// correlationId.
func (c *correlator) register(correlationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[correlationID]; !ok {
		c.seen[correlationID] = make(map[uuid.UUID]bool)
	}
}

// admit reports whether a response bearing correlationID from sender
// should be delivered: true the first time this (correlationId,
// senderId) pair is seen, false on every subsequent (duplicate)
// delivery. Responses for a correlationId that was never registered
// (or already disposed) are not admitted.
func (c *correlator) admit(correlationID, sender uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	senders, ok := c.seen[correlationID]
	if !ok {
		return false
	}
	if senders[sender] {
		return false
	}
	senders[sender] = true
	return true
}

// dispose removes a correlationId's dedup state once its observer has
// detached, so the map does not grow unboundedly over a long-lived
// container's lifetime.
func (c *correlator) dispose(correlationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, correlationID)
}

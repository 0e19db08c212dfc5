package groundctl

import (
	"sync"

	"github.com/jd3nn1s/groundctl/naio"
)

// OutboundQueue holds non-motor packets until the next writer cycle. Each
// packet is sent at most once; a failed write loses it.
type OutboundQueue struct {
	mu      sync.Mutex
	packets []naio.Packet
}

func (q *OutboundQueue) Push(p ...naio.Packet) {
	q.mu.Lock()
	q.packets = append(q.packets, p...)
	q.mu.Unlock()
}

// Drain returns the pending packets in push order and leaves the queue empty.
func (q *OutboundQueue) Drain() []naio.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.packets
	q.packets = nil
	return out
}

func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

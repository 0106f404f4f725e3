package intake

import (
	"sync"

	"fibermesh/internal/model"
)

// Broker fans a rejection out to every current subscriber. The consumers
// are the orchestrator's own progression logic and any in-process
// observers (spec.md §4.5 "publishes to a pub/sub channel"); nothing in
// this repo's dependency pack offers a message broker suited to a
// single-binary deployment, so this stays a small buffered-channel
// fan-out rather than reaching for an external broker for an intra-process
// concern (DESIGN.md C5 stdlib justification).
type Broker struct {
	mu   sync.Mutex
	subs map[int]chan model.RejectedTransaction
	next int
}

// NewBroker builds an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan model.RejectedTransaction)}
}

// Subscribe returns a channel that receives every rejection published
// after this call, and an unsubscribe function. The channel is buffered;
// a slow subscriber drops events rather than blocking intake.
func (b *Broker) Subscribe(buffer int) (<-chan model.RejectedTransaction, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan model.RejectedTransaction, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish fans tx out to every current subscriber, non-blocking.
func (b *Broker) Publish(tx model.RejectedTransaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- tx:
		default:
		}
	}
}

package event

import "sync"

// Bus fans events out to subscribers. Publish never blocks the caller: each
// subscriber owns an unbounded FIFO drained by its own delivery goroutine, so
// a slow client grows its queue instead of stalling the state machine.
// Delivery order per subscriber equals publish order.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber and returns its subscription. Events
// published after this call are delivered on [Subscription.C] in order. The
// caller must Cancel the subscription when done.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{
		bus:  b,
		out:  make(chan Event),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.closed = true
		close(s.out)
		return s
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.deliver()
	return s
}

// Publish enqueues the event for every current subscriber and returns
// immediately. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		s.enqueue(ev)
	}
}

// Close stops the bus. Events already queued keep flowing to subscribers
// that keep receiving; each subscription's channel closes once its queue is
// empty. A subscriber that stopped reading must still Cancel to release its
// delivery goroutine.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

// Subscription is one subscriber's view of the bus.
type Subscription struct {
	bus  *Bus
	out  chan Event
	done chan struct{}
	stop sync.Once

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool
}

// C returns the channel events are delivered on. It is closed after Cancel,
// or after bus Close once every queued event has been received. Cancel drops
// events not yet received.
func (s *Subscription) C() <-chan Event {
	return s.out
}

// Cancel detaches the subscription from the bus and stops delivery
// immediately, dropping any events not yet received.
func (s *Subscription) Cancel() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.close()
	s.stop.Do(func() { close(s.done) })
}

// Drain detaches the subscription from the bus but keeps delivering the
// events already queued; the channel closes once they have all been received.
func (s *Subscription) Drain() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.close()
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, ev)
	s.cond.Signal()
}

// close marks the subscription finished: no further enqueues, and deliver
// exits once the queue is empty.
func (s *Subscription) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// deliver drains the queue into the out channel. Runs in its own goroutine.
// After close it flushes whatever is still queued; the done channel cuts the
// flush short when the consumer cancelled and will not read again.
func (s *Subscription) deliver() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			close(s.out)
			return
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			close(s.out)
			return
		}
	}
}

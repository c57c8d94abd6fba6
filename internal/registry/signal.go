package registry

import "sync"

// signalCapacity bounds each subscriber's mailbox per §5: a multi-producer,
// multi-subscriber broadcast with bounded capacity 16.
const signalCapacity = 16

// Signal is a per-session broadcast channel. Every message means the same
// thing — invalidate — so overflow on a slow subscriber is harmless: it
// already has an invalidation queued, which is what an overflow notice
// would have told it anyway.
type Signal struct {
	mu      sync.Mutex
	nextID  uint64
	subs    map[uint64]chan struct{}
	closed  bool
}

// NewSignal creates an empty broadcast channel.
func NewSignal() *Signal {
	return &Signal{subs: make(map[uint64]chan struct{})}
}

// Subscribe registers a new subscriber and returns its receive channel and
// an id for later Unsubscribe. The channel is closed if the Signal has
// already been permanently shut down.
func (s *Signal) Subscribe() (uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan struct{}, signalCapacity)
	if s.closed {
		close(ch)
		return 0, ch
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber so Publish stops holding a reference to
// its channel. Safe to call more than once.
func (s *Signal) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

// Publish notifies every current subscriber. Sends are non-blocking: a
// subscriber whose mailbox is already full is, by definition, already going
// to see an invalidation.
func (s *Signal) Publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

package hub

import (
	"ctchen222/tictactoe-engine/internal/session"
	"sync"
)

const subscriberBuffer = 16

// Subscriber receives every snapshot of one session. Its channel is closed
// when the session is removed or the subscriber falls behind.
type Subscriber struct {
	sessionID string
	ch        chan session.Snapshot
	once      sync.Once
}

// C returns the snapshot stream.
func (s *Subscriber) C() <-chan session.Snapshot {
	return s.ch
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers a new subscriber for the session. The current snapshot
// is delivered first.
func (h *Hub) Subscribe(id, owner string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, err := h.lookupLocked(id, owner)
	if err != nil {
		return nil, err
	}
	sub := &Subscriber{sessionID: id, ch: make(chan session.Snapshot, subscriberBuffer)}
	sub.ch <- e.last
	e.subscribers[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe detaches sub. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.sessions[sub.sessionID]; ok {
		delete(e.subscribers, sub)
	}
	sub.close()
}

package bus

import (
	"sync"
)

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		mu:   sync.Mutex{},
		subs: make(map[chan T]struct{}),
	}
}

// Hub fans out events to subscribers. Slow subscribers only see the latest
// event, so Broadcast never blocks the caller.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	latest T
	has    bool
}

func (h *Hub[T]) Broadcast(event T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = event
	h.has = true

	for sub := range h.subs {
		replace(sub, event)
	}
}

// replace drops any unread event in c and sends event.
func replace[T any](c chan T, event T) {
	for {
		select {
		case c <- event:
			return
		default:
		}
		select {
		case <-c:
		default:
		}
	}
}

// Latest returns the last broadcast event.
func (h *Hub[T]) Latest() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, h.has
}

// Subscribe returns a channel that receives the latest event first, if any.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	c := make(chan T, 1)
	if h.has {
		c <- h.latest
	}
	h.subs[c] = struct{}{}
	h.mu.Unlock()

	return c, func() {
		h.mu.Lock()
		delete(h.subs, c)
		h.mu.Unlock()
	}
}

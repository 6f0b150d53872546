package chart

import (
	"sync"
)

// Hub is a Sink that keeps the latest dataset and fans it out to
// subscribers. Each subscriber has a one-slot buffer; a slow subscriber
// skips intermediate datasets and always receives the newest one.
type Hub struct {
	mu     sync.Mutex
	latest *Dataset
	subs   map[chan Dataset]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Dataset]struct{})}
}

// Render implements Sink.
func (h *Hub) Render(ds Dataset) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = &ds
	for ch := range h.subs {
		select {
		case ch <- ds:
		default:
			// drop the stale frame and replace it
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ds:
			default:
			}
		}
	}
}

// Latest returns the last rendered dataset.
func (h *Hub) Latest() (Dataset, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return Dataset{}, false
	}
	return *h.latest, true
}

// Subscribe registers a subscriber. The channel is primed with the latest
// dataset if one exists. The returned function unsubscribes and closes the
// channel.
func (h *Hub) Subscribe() (<-chan Dataset, func()) {
	ch := make(chan Dataset, 1)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	if h.latest != nil {
		ch <- *h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

package syncer

import (
	"sync"

	"github.com/0KvinayK0/android-pass/internal/domain"
)

const subscriberBuffer = 64

// changeHub fans item change notifications out to subscribers. Delivery
// is best-effort: a subscriber that stops draining its channel loses
// notifications instead of stalling reconciliation.
type changeHub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan domain.Change
}

func newChangeHub() *changeHub {
	return &changeHub{subs: make(map[int]chan domain.Change)}
}

// subscribe registers a listener. The returned cancel func closes the
// channel and must be called exactly once.
func (h *changeHub) subscribe() (<-chan domain.Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan domain.Change, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (h *changeHub) publish(c domain.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

package notify

import "sync"

// Hub fans notifications out to connected event-stream subscribers. Delivery
// is best effort: a subscriber whose buffer is full misses the message and
// catches up from the store on its next list.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan *Notification]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan *Notification]struct{}{}}
}

// Subscribe registers a channel for a user's notifications. The returned
// cancel func unregisters and closes the channel; it is safe to call once.
func (h *Hub) Subscribe(userID string) (<-chan *Notification, func()) {
	ch := make(chan *Notification, 16)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = map[chan *Notification]struct{}{}
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[userID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

// Publish delivers a notification to the recipient's subscribers without
// blocking.
func (h *Hub) Publish(n *Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[n.RecipientID] {
		select {
		case ch <- n:
		default:
		}
	}
}

// SubscriberCount reports how many channels are registered for a user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

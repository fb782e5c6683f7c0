// Package notify fans job outcomes out to connected clients.
//
// Delivery is best-effort UI feedback, not part of the durability
// contract: a slow or absent subscriber drops messages rather than
// blocking the queue processor.
package notify

import (
	"log/slog"
	"sync"

	"github.com/syncrelay/syncrelay/internal/models"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind starts losing notifications.
const subscriberBuffer = 16

// Hub is an in-process broadcaster with a dynamic subscriber registry.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan models.Notification]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan models.Notification]struct{})}
}

// Subscribe registers a new subscriber and returns its channel.
func (h *Hub) Subscribe() chan models.Notification {
	ch := make(chan models.Notification, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	slog.Debug("Hub.Subscribe: client attached")
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(ch chan models.Notification) {
	h.mu.Lock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()
	slog.Debug("Hub.Unsubscribe: client detached")
}

// Broadcast sends a notification to every subscriber without blocking.
func (h *Hub) Broadcast(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			slog.Debug("Hub.Broadcast: subscriber buffer full, dropping", "type", n.Type, "id", n.Payload.ID)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

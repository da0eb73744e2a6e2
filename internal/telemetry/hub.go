package telemetry

import (
	"sync"
	"time"

	"packetvault/internal/core/domain"
)

// Alert is one integrity event as pushed to monitoring clients.
type Alert struct {
	RecordID string            `json:"record_id"`
	Reason   domain.SkipReason `json:"reason"`
	Detail   string            `json:"detail,omitempty"`
	RaisedAt time.Time         `json:"raised_at"`
}

// Hub fans integrity alerts out to live monitoring streams. Slow subscribers
// are never allowed to block the retrieval path.
type Hub struct {
	mu          sync.RWMutex
	subscribers []chan Alert
}

func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a monitoring client and returns its alert channel.
func (h *Hub) Subscribe() chan Alert {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Alert, 64) // buffered so a stalled client drops instead of blocking
	h.subscribers = append(h.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a client channel.
func (h *Hub) Unsubscribe(ch chan Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, sub := range h.subscribers {
		if sub == ch {
			h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// IntegrityAlert implements domain.AlertSink for the retrieval service.
func (h *Hub) IntegrityAlert(recordID string, reason domain.SkipReason, detail string) {
	alert := Alert{
		RecordID: recordID,
		Reason:   reason,
		Detail:   detail,
		RaisedAt: time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- alert:
		default: // drop for this subscriber, the batch must not stall
		}
	}
}

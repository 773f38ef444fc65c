// Package events fans out session lifecycle notifications to subscribers.
//
// It is the one notification surface named in the spec: a single "blindscan"
// topic event carrying {uuid, state, peaks, duration} on every worker
// terminal transition. The control-surface dispatcher (external to this
// module) is expected to bridge Hub subscriptions onto whatever transport it
// owns (websocket, SSE, polling) — this package only keeps a bounded
// in-memory history and fans out live updates to Go-level subscribers.
package events

import (
	"sync"
	"time"

	"github.com/satops/blindscan/internal/logging"
)

// Topic names the channel a Notification was published on. The core only
// ever publishes "blindscan", but the type keeps room for future topics
// without changing the Hub's shape.
type Topic string

const TopicBlindscan Topic = "blindscan"

// Notification is the payload emitted on a session's terminal transition.
type Notification struct {
	Topic     Topic     `json:"topic"`
	UUID      string    `json:"uuid"`
	State     string    `json:"state"`
	Peaks     int       `json:"peaks"`
	Duration  int64     `json:"duration_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub collects a bounded history of notifications and fans out live
// updates to subscribers, grounded on the teacher's telemetry Hub
// publish/subscribe shape.
type Hub struct {
	mu           sync.RWMutex
	history      []Notification
	historyLimit int
	subscribers  map[chan Notification]struct{}
	logger       logging.Logger
}

// NewHub builds an event hub retaining up to historyLimit notifications.
func NewHub(historyLimit int, logger logging.Logger) *Hub {
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &Hub{
		historyLimit: historyLimit,
		subscribers:  make(map[chan Notification]struct{}),
		logger:       logging.WithComponent(logger, "events"),
	}
}

// Publish records a notification and delivers it to all current subscribers.
// Slow subscribers are never blocked: delivery is best-effort (buffered
// channel, non-blocking send).
func (h *Hub) Publish(n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	h.mu.Lock()
	h.history = append(h.history, n)
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- n:
		default:
		}
	}
	h.mu.Unlock()

	h.logger.Info("published notification",
		logging.Field{Key: "topic", Value: n.Topic},
		logging.Field{Key: "uuid", Value: n.UUID},
		logging.Field{Key: "state", Value: n.State},
		logging.Field{Key: "peaks", Value: n.Peaks},
	)
}

// PublishTerminal is a convenience wrapper for the blindscan topic's
// worker-terminal-transition event.
func (h *Hub) PublishTerminal(uuid, state string, peaks int, duration time.Duration) {
	h.Publish(Notification{
		Topic:    TopicBlindscan,
		UUID:     uuid,
		State:    state,
		Peaks:    peaks,
		Duration: duration.Milliseconds(),
	})
}

// History returns a copy of the retained notifications.
func (h *Hub) History() []Notification {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Notification, len(h.history))
	copy(out, h.history)
	return out
}

// Subscribe registers a listener for live notifications. The returned
// cancel function must be called to release the subscription.
func (h *Hub) Subscribe() (chan Notification, func()) {
	ch := make(chan Notification, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/yegors/liveblog/pkg/logger"
)

// Event names sent over the push channel.
const (
	EventTranscriptPiece = "transcript_piece"
	EventChunk           = "chunk"
	EventEOF             = "eof"
)

// subscriberBuffer is the per-viewer event queue depth. A viewer that falls
// this far behind is dropped rather than blocking the publisher.
const subscriberBuffer = 64

// Subscriber is one connected viewer.
type Subscriber struct {
	ch chan []byte
}

// Hub fans summary cards and transcript events out to every connected
// viewer over server-sent events. It is shared across sessions; cards from
// any audio source reach all viewers. There is no replay: joining
// mid-session yields only future events.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	logger      *logger.Logger
}

// New creates a new broadcast hub.
func New(log *logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		logger:      log.Named("hub"),
	}
}

// Subscribe registers a new viewer and returns its handle.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.logger.Info("Viewer subscribed", logger.Int("viewers", count))
	return sub
}

// Unsubscribe removes a viewer. Safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	if ok {
		delete(h.subscribers, sub)
		close(sub.ch)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if ok {
		h.logger.Info("Viewer unsubscribed", logger.Int("viewers", count))
	}
}

// Publish sends one event to every current viewer, best effort. A slow
// viewer is dropped; it never blocks the publisher or the other viewers.
func (h *Hub) Publish(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal event payload",
			logger.String("event", event),
			logger.Error(err))
		return
	}

	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))

	// Sends happen under the read lock. Unsubscribe closes channels under the
	// write lock only, so a send can never hit a closed channel even with
	// concurrent publishers and disconnecting viewers.
	h.mu.RLock()
	var slow []*Subscriber
	for sub := range h.subscribers {
		select {
		case sub.ch <- frame:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.logger.Warn("Dropping slow viewer")
		h.Unsubscribe(sub)
	}
}

// ViewerCount returns the number of currently connected viewers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// ServeHTTP streams events to one viewer over server-sent events until the
// client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-sub.ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

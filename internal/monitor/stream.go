package monitor

import (
	"sync"

	"github.com/wolfman30/context-rot-monitor/internal/observability/metrics"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

// Stream message types.
const (
	StreamVerdict = "verdict"
	StreamReset   = "reset"
)

const defaultStreamBuffer = 16

// StreamMessage is what subscribers receive.
type StreamMessage struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	Report    *DriftReport `json:"report,omitempty"`
}

// Subscription delivers messages for one session until cancelled or dropped.
type Subscription struct {
	C <-chan StreamMessage

	ch        chan StreamMessage
	sessionID string
	hub       *Hub
}

// Cancel unsubscribes. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
}

// Hub fans out stream messages to per-session subscribers. Subscribers that
// fall behind are dropped rather than blocking publishers.
type Hub struct {
	buffer  int
	metrics *metrics.DriftMetrics
	logger  *logging.Logger

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub(buffer int, m *metrics.DriftMetrics, logger *logging.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultStreamBuffer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		buffer:  buffer,
		metrics: m,
		logger:  logger,
		subs:    make(map[string]map[*Subscription]struct{}),
	}
}

func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan StreamMessage, h.buffer)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, hub: h}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	h.metrics.AddSubscribers(1)
	return sub
}

// Publish delivers msg to every subscriber of msg.SessionID without blocking.
func (h *Hub) Publish(msg StreamMessage) {
	var dropped int
	h.mu.Lock()
	for sub := range h.subs[msg.SessionID] {
		select {
		case sub.ch <- msg:
		default:
			h.removeLocked(sub)
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.metrics.AddSubscribers(-dropped)
		h.logger.Warn("dropped slow stream subscribers", "session_id", msg.SessionID, "count", dropped)
	}
}

// Close ends every subscription for a session.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	set := h.subs[sessionID]
	n := len(set)
	for sub := range set {
		h.removeLocked(sub)
	}
	h.mu.Unlock()

	if n > 0 {
		h.metrics.AddSubscribers(-n)
	}
}

// Subscribers returns the number of live subscriptions for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub.sessionID][sub]
	if ok {
		h.removeLocked(sub)
	}
	h.mu.Unlock()
	if ok {
		h.metrics.AddSubscribers(-1)
	}
}

// removeLocked closes sub's channel. Caller holds h.mu.
func (h *Hub) removeLocked(sub *Subscription) {
	set := h.subs[sub.sessionID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.sessionID)
	}
	close(sub.ch)
}

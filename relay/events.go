package relay

import (
	"sync"
	"time"

	"vtrelay/internal/metrics"
	"vtrelay/util"
)

// EventKind names a relay notification.
type EventKind string

const (
	// EventConnected fires when a terminal connection is registered.
	EventConnected EventKind = "connected"
	// EventDataReceived fires once per committed input line.
	EventDataReceived EventKind = "data_received"
	// EventDisconnected fires when a terminal connection ends.
	EventDisconnected EventKind = "disconnected"
)

// Event is one notification.  Text is set only for data_received.
type Event struct {
	Kind     EventKind `json:"type"`
	IP       string    `json:"ip"`
	Text     string    `json:"text,omitempty"`
	Outbound bool      `json:"outbound,omitempty"`
	Time     time.Time `json:"time"`
}

// DefaultEventBuffer is the subscriber channel size used when the
// caller passes 0.
const DefaultEventBuffer = 64

// hub fans events out to subscribers without ever blocking the
// publisher: a subscriber whose buffer is full loses the event.
type hub struct {
	mu      sync.Mutex
	next    int
	subs    map[int]chan Event
	closed  bool
	metrics *metrics.Collector
	logger  *util.Logger
}

func newHub(m *metrics.Collector, logger *util.Logger) *hub {
	return &hub{subs: make(map[int]chan Event), metrics: m, logger: logger}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *hub) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.metrics.EventDropped()
			h.logger.Debug("subscriber full, dropped %s event for %s", ev.Kind, ev.IP)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

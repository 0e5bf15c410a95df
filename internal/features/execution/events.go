package execution

import (
	"sync"

	"go.uber.org/zap"
)

// EventHub fans execution status events out to websocket subscribers.
// Slow subscribers miss events rather than block a run.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	next   int
	logger *zap.Logger
}

func NewEventHub(logger *zap.Logger) *EventHub {
	return &EventHub{subs: map[int]chan Event{}, logger: logger}
}

// Subscribe registers a listener. The returned func unsubscribes and
// closes the channel.
func (h *EventHub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *EventHub) Publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Debug("Dropping execution event for slow subscriber", zap.String("execution_id", ev.ExecutionID))
		}
	}
}

package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is the per-subscription event buffer.
const DefaultBuffer = 64

// Subscription receives every dispatched event that matches any of its filters.
type Subscription struct {
	id      uint64
	UserID  uuid.UUID
	Filters []Filter
	C       chan Event

	dropped atomic.Uint64
}

func (s *Subscription) matches(e Event) bool {
	for _, f := range s.Filters {
		if f.Matches(e) {
			return true
		}
	}
	return false
}

// Hub fans change events out to subscriptions. Dispatch never blocks: an event for a
// subscription whose buffer is full is dropped and logged.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	buffer int
	logger *logrus.Logger
}

func NewHub(logger *logrus.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

func (h *Hub) Subscribe(userID uuid.UUID, filters ...Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &Subscription{
		id:      h.nextID,
		UserID:  userID,
		Filters: filters,
		C:       make(chan Event, h.buffer),
	}
	h.subs[s.id] = s
	return s
}

// Unsubscribe removes s and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[s.id]; !ok {
		return
	}
	delete(h.subs, s.id)
	close(s.C)
}

// Dispatch delivers e to matching subscriptions and returns how many received it.
func (h *Hub) Dispatch(e Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, s := range h.subs {
		if !s.matches(e) {
			continue
		}
		select {
		case s.C <- e:
			delivered++
		default:
			n := s.dropped.Add(1)
			h.logger.WithFields(logrus.Fields{
				"user":    s.UserID,
				"table":   e.Table,
				"type":    e.Type,
				"dropped": n,
			}).Warn("realtime: subscription buffer full, dropping event")
		}
	}
	return delivered
}

// Len is the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close drops every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		delete(h.subs, id)
		close(s.C)
	}
}

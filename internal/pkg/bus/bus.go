package bus

import (
	"sync"

	"github.com/signcast/notify/internal/domain"
)

// Publisher dispatches a freshly enqueued outbox record to live
// subscribers of its target screen.
type Publisher interface {
	Publish(screenID string, rec domain.NotificationRecord)
}

// Hub is the in-process registry of live device subscriptions, keyed by
// screen id. It is the single fan-out point of a gateway instance: the
// change publisher (or the cross-instance bridge) publishes into it and
// every open stream for the screen receives the record.
//
// Publish never blocks. A subscriber whose buffer is full is kicked:
// its channel is closed and the device is expected to reconnect and
// catch up from the outbox.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription is one device connection's view of the hub.
type Subscription struct {
	hub      *Hub
	screenID string

	mu     sync.Mutex
	closed bool
	ch     chan domain.NotificationRecord
}

// Records is the stream of live outbox records. It is closed when the
// subscription is cancelled or the subscriber is kicked for falling
// behind.
func (s *Subscription) Records() <-chan domain.NotificationRecord { return s.ch }

// ScreenID returns the screen this subscription is bound to.
func (s *Subscription) ScreenID() string { return s.screenID }

// Cancel releases the registry entry and closes the channel. Safe to
// call more than once and concurrently with Publish.
func (s *Subscription) Cancel() {
	s.hub.remove(s)
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
}

// trySend delivers rec without blocking. Returns false when the buffer
// is full; a closed subscription reports success so a racing Publish
// does not kick it twice.
func (s *Subscription) trySend(rec domain.NotificationRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- rec:
		return true
	default:
		return false
	}
}

// Subscribe registers a subscription for screenID with the given
// outbound buffer size.
func (h *Hub) Subscribe(screenID string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{
		hub:      h,
		screenID: screenID,
		ch:       make(chan domain.NotificationRecord, buffer),
	}
	h.mu.Lock()
	set, ok := h.subs[screenID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[screenID] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	if set, ok := h.subs[s.screenID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.screenID)
		}
	}
	h.mu.Unlock()
}

// Publish fans rec out to every live subscription for screenID.
// Slow subscribers are kicked rather than blocked on.
func (h *Hub) Publish(screenID string, rec domain.NotificationRecord) {
	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs[screenID]))
	for s := range h.subs[screenID] {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	for _, s := range snapshot {
		if !s.trySend(rec) {
			s.Cancel()
		}
	}
}

// ConnectionCount returns the number of live subscriptions.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// ConnectedScreens returns the screen ids with at least one live
// subscription. Order is unspecified.
func (h *Hub) ConnectedScreens() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	return ids
}

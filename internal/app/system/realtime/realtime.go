// Package realtime fans change signals out to per-user subscribers.
//
// A Subscription delivers a coalesced signal: several publishes before the
// subscriber reads collapse into one. Subscribers reload whatever state they
// show (for example the unread count) when signalled.
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Hub tracks subscribers per user id. It is safe for concurrent use.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
	log    *zap.Logger
}

// NewHub returns an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), log: logger}
}

// Subscription is one listener for one user. Call Cancel when done.
type Subscription struct {
	// C receives a value whenever something changed for the user.
	// It is closed by Cancel or when the hub shuts down.
	C <-chan struct{}

	c      chan struct{}
	hub    *Hub
	userID string
	once   sync.Once
}

// Subscribe registers a listener for userID. On a closed hub the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe(userID string) *Subscription {
	c := make(chan struct{}, 1)
	s := &Subscription{C: c, c: c, hub: h, userID: userID}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.once.Do(func() { close(c) })
		return s
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}
	return s
}

// Cancel unregisters the subscription and closes C. It is idempotent.
func (s *Subscription) Cancel() {
	h := s.hub
	h.mu.Lock()
	if set, ok := h.subs[s.userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.userID)
		}
	}
	h.mu.Unlock()
	s.once.Do(func() { close(s.c) })
}

// Publish signals every subscriber of each user id. It never blocks.
func (h *Hub) Publish(userIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, uid := range userIDs {
		for s := range h.subs[uid] {
			select {
			case s.c <- struct{}{}:
			default: // a signal is already pending
			}
			delivered++
		}
	}
	if delivered > 0 {
		h.log.Debug("realtime publish",
			zap.Int("users", len(userIDs)),
			zap.Int("subscribers", delivered))
	}
}

// Subscribers returns how many listeners userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Close cancels every subscription; later Subscribe calls get closed channels.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, set := range all {
		for s := range set {
			s.once.Do(func() { close(s.c) })
		}
	}
}

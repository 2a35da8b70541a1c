// Package ws carries live messenger sessions over websockets. Each session
// owns a livesync controller; the hub subscribes to the record store once and
// fans every change notification out to all controllers.
package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"messenger-service/internal/observability"
	"messenger-service/internal/store"
)

// Hub tracks active sessions.
type Hub struct {
	mu       sync.RWMutex
	sessions map[*Session]struct{}
	log      zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[*Session]struct{}),
		log:      log.With().Str("component", "ws").Logger(),
	}
}

// Attach subscribes the hub to the store's change feed and returns the
// subscription's cancel func.
func (h *Hub) Attach(st store.Store) (cancel func()) {
	return st.Subscribe(h.NotifyStoreChange)
}

// NotifyStoreChange fans one change notification out to every session's
// controller. Each controller refreshes independently so one slow session
// does not hold up the others.
func (h *Hub) NotifyStoreChange() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	observability.IncSyncRun("store_change")
	for _, s := range sessions {
		go s.controller.OnStoreChange(context.Background())
	}
}

// SessionCount reports the number of attached sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}

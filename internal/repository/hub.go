package repository

import (
	"context"
	"sync"

	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

// listFunc loads the current history snapshot of one user.
type listFunc func(ctx context.Context) ([]domain.HistoryEntry, error)

// Hub fans history snapshots out to subscribers. Every notification gets a
// version taken before the snapshot is loaded; a subscriber never receives
// a snapshot older than one it has already seen.
type Hub struct {
	mu      sync.Mutex
	nextID  int
	version map[string]uint64
	subs    map[string]map[int]*subscription
}

type subscription struct {
	mu        sync.Mutex
	fn        func([]domain.HistoryEntry)
	started   bool
	delivered uint64
}

func (s *subscription) deliver(version uint64, entries []domain.HistoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started && version <= s.delivered {
		return
	}
	s.started = true
	s.delivered = version
	s.fn(append([]domain.HistoryEntry(nil), entries...))
}

func NewHub() *Hub {
	return &Hub{
		version: make(map[string]uint64),
		subs:    make(map[string]map[int]*subscription),
	}
}

// Subscribe registers fn for userID, delivers the current snapshot and keeps
// fn registered until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID string, fn func([]domain.HistoryEntry), list listFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	sub := &subscription{fn: fn}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]*subscription)
	}
	h.subs[userID][id] = sub
	version := h.version[userID]
	h.mu.Unlock()

	entries, err := list(ctx)
	if err != nil {
		h.remove(userID, id)
		return err
	}
	sub.deliver(version, entries)

	go func() {
		<-ctx.Done()
		h.remove(userID, id)
	}()
	return nil
}

func (h *Hub) remove(userID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[userID], id)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
}

// Subscribers returns the number of live subscriptions for userID.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Notify loads a fresh snapshot and hands it to every subscriber of userID.
// It is a no-op when nobody listens.
func (h *Hub) Notify(ctx context.Context, userID string, list listFunc) {
	h.mu.Lock()
	if len(h.subs[userID]) == 0 {
		h.mu.Unlock()
		return
	}
	h.version[userID]++
	version := h.version[userID]
	subs := make([]*subscription, 0, len(h.subs[userID]))
	for _, s := range h.subs[userID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	entries, err := list(ctx)
	if err != nil {
		logger.Warn("Failed to load history snapshot for subscribers", "user_id", userID, "error", err)
		return
	}
	for _, s := range subs {
		s.deliver(version, entries)
	}
}

package services

import (
	"context"
	"sync"

	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

// HistoryFeed keeps the latest history snapshot of each user it has seen,
// refreshed through repository subscriptions. Subscriptions live until the
// feed's context is cancelled.
type HistoryFeed struct {
	ctx     context.Context
	history domain.HistoryRepository

	subscribe sync.Mutex
	mu        sync.RWMutex
	snapshots map[string][]domain.HistoryEntry
}

func NewHistoryFeed(ctx context.Context, history domain.HistoryRepository) *HistoryFeed {
	return &HistoryFeed{
		ctx:       ctx,
		history:   history,
		snapshots: make(map[string][]domain.HistoryEntry),
	}
}

// Entries returns the user's entries newest first, subscribing on first use.
func (f *HistoryFeed) Entries(userID string) ([]domain.HistoryEntry, error) {
	f.mu.RLock()
	entries, ok := f.snapshots[userID]
	f.mu.RUnlock()
	if ok {
		return entries, nil
	}

	f.subscribe.Lock()
	defer f.subscribe.Unlock()

	f.mu.RLock()
	entries, ok = f.snapshots[userID]
	f.mu.RUnlock()
	if ok {
		return entries, nil
	}

	err := f.history.Subscribe(f.ctx, userID, func(snapshot []domain.HistoryEntry) {
		f.mu.Lock()
		f.snapshots[userID] = snapshot
		f.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("History feed subscribed", "user_id", userID)

	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snapshots[userID], nil
}

// Find returns the entry with id from the cached snapshot.
func (f *HistoryFeed) Find(userID, entryID string) (domain.HistoryEntry, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.snapshots[userID] {
		if e.ID == entryID {
			return e, true
		}
	}
	return domain.HistoryEntry{}, false
}

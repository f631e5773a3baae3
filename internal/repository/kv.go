package repository

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/securestore"
)

// KeyValueStore is the local storage contract: JSON values by string key.
// Get returns securestore.ErrNotFound for a missing key.
type KeyValueStore interface {
	Get(ctx context.Context, key string, v any) error
	Set(ctx context.Context, key string, v any) error
	Remove(ctx context.Context, key string) error
}

var _ KeyValueStore = (*securestore.Store)(nil)

// MemoryKV is a process-local KeyValueStore. Values are stored as JSON so
// callers never share memory with the store.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

func (m *MemoryKV) Get(ctx context.Context, key string, v any) error {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return securestore.ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func (m *MemoryKV) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryKV) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

var (
	_ domain.HistoryRepository  = (*LocalHistory)(nil)
	_ domain.SettingsRepository = (*LocalSettings)(nil)
	_ domain.UserRepository     = (*LocalUsers)(nil)
	_ domain.HistoryRepository  = (*HistoryRepository)(nil)
	_ domain.SettingsRepository = (*SettingsRepository)(nil)
	_ domain.UserRepository     = (*UserRepository)(nil)
)

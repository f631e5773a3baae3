package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/securestore"
)

func historyKey(userID string) string  { return "history:" + userID }
func settingsKey(userID string) string { return "settings:" + userID }
func userKey(telegramID int64) string  { return fmt.Sprintf("user:tg:%d", telegramID) }

// LocalHistory keeps each user's history as one encrypted list, newest first.
type LocalHistory struct {
	mu  sync.Mutex
	kv  KeyValueStore
	hub *Hub
}

func NewLocalHistory(kv KeyValueStore, hub *Hub) *LocalHistory {
	return &LocalHistory{kv: kv, hub: hub}
}

func (r *LocalHistory) load(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := r.kv.Get(ctx, historyKey(userID), &entries)
	if errors.Is(err, securestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err).WithContext("user_id", userID)
	}
	return entries, nil
}

func (r *LocalHistory) store(ctx context.Context, userID string, entries []domain.HistoryEntry) error {
	if err := r.kv.Set(ctx, historyKey(userID), entries); err != nil {
		return apperrors.NewStorageError(err).WithContext("user_id", userID)
	}
	return nil
}

func (r *LocalHistory) lister(userID string) listFunc {
	return func(ctx context.Context) ([]domain.HistoryEntry, error) {
		return r.List(ctx, userID)
	}
}

func (r *LocalHistory) Append(ctx context.Context, userID string, entry domain.HistoryEntry) error {
	r.mu.Lock()
	entries, err := r.load(ctx, userID)
	if err == nil {
		err = r.store(ctx, userID, append([]domain.HistoryEntry{entry}, entries...))
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.hub.Notify(ctx, userID, r.lister(userID))
	return nil
}

func (r *LocalHistory) List(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, userID)
}

func (r *LocalHistory) Subscribe(ctx context.Context, userID string, fn func([]domain.HistoryEntry)) error {
	return r.hub.Subscribe(ctx, userID, fn, r.lister(userID))
}

func (r *LocalHistory) Delete(ctx context.Context, userID, entryID string) error {
	r.mu.Lock()
	entries, err := r.load(ctx, userID)
	if err == nil {
		idx := -1
		for i, e := range entries {
			if e.ID == entryID {
				idx = i
				break
			}
		}
		if idx < 0 {
			err = apperrors.NewEntryNotFoundError(entryID)
		} else {
			err = r.store(ctx, userID, append(entries[:idx:idx], entries[idx+1:]...))
		}
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.hub.Notify(ctx, userID, r.lister(userID))
	return nil
}

func (r *LocalHistory) Clear(ctx context.Context, userID string) error {
	r.mu.Lock()
	err := r.kv.Remove(ctx, historyKey(userID))
	r.mu.Unlock()
	if err != nil {
		return apperrors.NewStorageError(err).WithContext("user_id", userID)
	}

	r.hub.Notify(ctx, userID, r.lister(userID))
	return nil
}

// LocalSettings stores DoseSettings under one key per user.
type LocalSettings struct {
	kv KeyValueStore
}

func NewLocalSettings(kv KeyValueStore) *LocalSettings {
	return &LocalSettings{kv: kv}
}

func (r *LocalSettings) Get(ctx context.Context, userID string) (domain.DoseSettings, bool, error) {
	var s domain.DoseSettings
	err := r.kv.Get(ctx, settingsKey(userID), &s)
	if errors.Is(err, securestore.ErrNotFound) {
		return domain.DoseSettings{}, false, nil
	}
	if err != nil {
		return domain.DoseSettings{}, false, apperrors.NewStorageError(err).WithContext("user_id", userID)
	}
	return s, true, nil
}

func (r *LocalSettings) Save(ctx context.Context, userID string, settings domain.DoseSettings) error {
	if err := r.kv.Set(ctx, settingsKey(userID), settings); err != nil {
		return apperrors.NewStorageError(err).WithContext("user_id", userID)
	}
	return nil
}

// LocalUsers keeps user profiles in the key-value store.
type LocalUsers struct {
	mu  sync.Mutex
	kv  KeyValueStore
	now func() time.Time
}

func NewLocalUsers(kv KeyValueStore) *LocalUsers {
	return &LocalUsers{kv: kv, now: time.Now}
}

func (r *LocalUsers) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	user = &domain.User{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		CreatedAt:  r.now(),
	}
	if err := r.kv.Set(ctx, userKey(telegramID), user); err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return user, nil
}

func (r *LocalUsers) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var user domain.User
	err := r.kv.Get(ctx, userKey(telegramID), &user)
	if errors.Is(err, securestore.ErrNotFound) {
		return nil, apperrors.NewUserNotFoundError(telegramID)
	}
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return &user, nil
}

package domain

import (
	"context"
)

// HistoryRepository stores saved calculations per user. Implementations
// return entries newest first.
type HistoryRepository interface {
	Append(ctx context.Context, userID string, entry HistoryEntry) error
	// Subscribe calls fn with the current entries and again after every
	// change, until ctx is done.
	Subscribe(ctx context.Context, userID string, fn func([]HistoryEntry)) error
	List(ctx context.Context, userID string) ([]HistoryEntry, error)
	Delete(ctx context.Context, userID, entryID string) error
	Clear(ctx context.Context, userID string) error
}

// SettingsRepository stores DoseSettings per user. Get reports found ==
// false when the user never saved settings.
type SettingsRepository interface {
	Get(ctx context.Context, userID string) (settings DoseSettings, found bool, err error)
	Save(ctx context.Context, userID string, settings DoseSettings) error
}

// UserRepository maps Telegram accounts to users.
type UserRepository interface {
	GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
}

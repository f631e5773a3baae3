package interfaces

import (
	"context"

	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	"github.com/vladimiradmaev/dosemate/internal/services"
)

// UserServiceInterface defines the contract for user operations
type UserServiceInterface interface {
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*domain.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
}

// DoseServiceInterface defines the contract for calculations and history
type DoseServiceInterface interface {
	Calculate(ctx context.Context, userID string, req services.DoseRequest) (dose.Result, error)
	Save(ctx context.Context, userID string, res dose.Result) (domain.HistoryEntry, error)
	DeleteEntry(ctx context.Context, userID, entryID string) error
	ClearHistory(ctx context.Context, userID string) error
}

// SettingsServiceInterface defines the contract for per-user dose settings
type SettingsServiceInterface interface {
	Get(ctx context.Context, userID string) (domain.DoseSettings, error)
	SetCarbRatio(ctx context.Context, userID string, ratio float64) (domain.DoseSettings, error)
	SetUseCustomTable(ctx context.Context, userID string, use bool) (domain.DoseSettings, error)
	SetCustomTable(ctx context.Context, userID string, table dose.Table) (domain.DoseSettings, []dose.Issue, error)
}

// HistoryFeedInterface serves the cached history snapshots
type HistoryFeedInterface interface {
	Entries(userID string) ([]domain.HistoryEntry, error)
	Find(userID, entryID string) (domain.HistoryEntry, bool)
}

// FoodEstimatorInterface defines the contract for photo carb estimation
type FoodEstimatorInterface interface {
	Enabled() bool
	Estimate(ctx context.Context, image []byte, weight float64) (*services.FoodEstimate, error)
}

var (
	_ UserServiceInterface     = (*services.UserService)(nil)
	_ DoseServiceInterface     = (*services.DoseService)(nil)
	_ SettingsServiceInterface = (*services.SettingsService)(nil)
	_ HistoryFeedInterface     = (*services.HistoryFeed)(nil)
	_ FoodEstimatorInterface   = (*services.FoodEstimator)(nil)
)

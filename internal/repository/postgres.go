package repository

import (
	"context"
	"errors"

	"github.com/vladimiradmaev/dosemate/internal/database"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryRepository stores history entries in postgres, one row per entry.
type HistoryRepository struct {
	db  *gorm.DB
	hub *Hub
}

func NewHistoryRepository(db *gorm.DB, hub *Hub) *HistoryRepository {
	return &HistoryRepository{db: db, hub: hub}
}

func (r *HistoryRepository) lister(userID string) listFunc {
	return func(ctx context.Context) ([]domain.HistoryEntry, error) {
		return r.List(ctx, userID)
	}
}

func (r *HistoryRepository) Append(ctx context.Context, userID string, entry domain.HistoryEntry) error {
	row := database.NewHistoryRecord(userID, entry)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return apperrors.NewDatabaseError(err).WithContext("user_id", userID)
	}
	r.hub.Notify(ctx, userID, r.lister(userID))
	return nil
}

// List returns the user's entries newest first.
func (r *HistoryRepository) List(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	var rows []database.HistoryRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError(err).WithContext("user_id", userID)
	}

	entries := make([]domain.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.ToDomain())
	}
	return entries, nil
}

func (r *HistoryRepository) Subscribe(ctx context.Context, userID string, fn func([]domain.HistoryEntry)) error {
	return r.hub.Subscribe(ctx, userID, fn, r.lister(userID))
}

func (r *HistoryRepository) Delete(ctx context.Context, userID, entryID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", entryID, userID).
		Delete(&database.HistoryRecord{})
	if res.Error != nil {
		return apperrors.NewDatabaseError(res.Error).WithContext("user_id", userID)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewEntryNotFoundError(entryID)
	}
	r.hub.Notify(ctx, userID, r.lister(userID))
	return nil
}

func (r *HistoryRepository) Clear(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&database.HistoryRecord{}).Error
	if err != nil {
		return apperrors.NewDatabaseError(err).WithContext("user_id", userID)
	}
	r.hub.Notify(ctx, userID, r.lister(userID))
	return nil
}

// SettingsRepository stores one dose_settings row per user.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, userID string) (domain.DoseSettings, bool, error) {
	var row database.DoseSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DoseSettings{}, false, nil
	}
	if err != nil {
		return domain.DoseSettings{}, false, apperrors.NewDatabaseError(err).WithContext("user_id", userID)
	}

	s, err := row.ToDomain()
	if err != nil {
		return domain.DoseSettings{}, false, apperrors.NewDatabaseError(err).WithContext("user_id", userID)
	}
	return s, true, nil
}

func (r *SettingsRepository) Save(ctx context.Context, userID string, settings domain.DoseSettings) error {
	row, err := database.NewDoseSettings(userID, settings)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		return apperrors.NewDatabaseError(err).WithContext("user_id", userID)
	}
	return nil
}

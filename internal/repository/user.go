package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/dosemate/internal/database"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository handles user data operations in postgres
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate gets an existing user or creates a new one
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username, firstName, lastName string) (*domain.User, error) {
	user, err := r.GetByTelegramID(ctx, telegramID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	row := database.User{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
		CreatedAt:  time.Now(),
	}
	// A concurrent first message from the same user may have won the race.
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "telegram_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return nil, apperrors.NewDatabaseError(res.Error).WithContext("telegram_id", telegramID)
	}
	if res.RowsAffected == 0 {
		return r.GetByTelegramID(ctx, telegramID)
	}
	return row.ToDomain(), nil
}

// GetByTelegramID gets a user by their Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	var row database.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewUserNotFoundError(telegramID)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(err).WithContext("telegram_id", telegramID)
	}
	return row.ToDomain(), nil
}

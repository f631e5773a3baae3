package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladimiradmaev/dosemate/internal/config"
	"github.com/vladimiradmaev/dosemate/internal/database/migrations"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	"github.com/vladimiradmaev/dosemate/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type User struct {
	ID         string `gorm:"primaryKey;size:36"`
	TelegramID int64  `gorm:"uniqueIndex"`
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// HistoryRecord is one saved calculation.
type HistoryRecord struct {
	ID                string    `gorm:"primaryKey;size:36"`
	UserID            string    `gorm:"index;size:36"`
	Timestamp         time.Time `gorm:"index"`
	Display           string
	Glycemia          *float64
	Base              *float64
	Meal              *float64
	TotalAdministered int
	TotalCalculated   float64
	Moment            string `gorm:"size:16"`
}

func (HistoryRecord) TableName() string { return "history_entries" }

type DoseSettings struct {
	UserID         string `gorm:"primaryKey;size:36"`
	CarbRatio      float64
	UseCustomTable bool
	CustomTable    string // JSON encoded dose.Table
	UpdatedAt      time.Time
}

func (DoseSettings) TableName() string { return "dose_settings" }

func NewUser(u *domain.User) User {
	return User{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		CreatedAt:  u.CreatedAt,
	}
}

func (u User) ToDomain() *domain.User {
	return &domain.User{
		ID:         u.ID,
		TelegramID: u.TelegramID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		CreatedAt:  u.CreatedAt,
	}
}

func NewHistoryRecord(userID string, e domain.HistoryEntry) HistoryRecord {
	return HistoryRecord{
		ID:                e.ID,
		UserID:            userID,
		Timestamp:         e.Timestamp,
		Display:           e.Display,
		Glycemia:          e.Glycemia,
		Base:              e.Base,
		Meal:              e.Meal,
		TotalAdministered: e.TotalAdministered,
		TotalCalculated:   e.TotalCalculated,
		Moment:            string(e.Moment),
	}
}

func (r HistoryRecord) ToDomain() domain.HistoryEntry {
	return domain.HistoryEntry{
		ID:                r.ID,
		Timestamp:         r.Timestamp,
		Display:           r.Display,
		Glycemia:          r.Glycemia,
		Base:              r.Base,
		Meal:              r.Meal,
		TotalAdministered: r.TotalAdministered,
		TotalCalculated:   r.TotalCalculated,
		Moment:            dose.Moment(r.Moment),
	}
}

func NewDoseSettings(userID string, s domain.DoseSettings) (DoseSettings, error) {
	row := DoseSettings{
		UserID:         userID,
		CarbRatio:      s.CarbRatio,
		UseCustomTable: s.UseCustomTable,
	}
	if len(s.CustomTable) > 0 {
		raw, err := json.Marshal(s.CustomTable)
		if err != nil {
			return DoseSettings{}, fmt.Errorf("encode custom table: %w", err)
		}
		row.CustomTable = string(raw)
	}
	return row, nil
}

func (s DoseSettings) ToDomain() (domain.DoseSettings, error) {
	out := domain.DoseSettings{
		CarbRatio:      s.CarbRatio,
		UseCustomTable: s.UseCustomTable,
	}
	if s.CustomTable != "" {
		if err := json.Unmarshal([]byte(s.CustomTable), &out.CustomTable); err != nil {
			return domain.DoseSettings{}, fmt.Errorf("decode custom table: %w", err)
		}
	}
	return out, nil
}

// NewPostgresDB connects to postgres and brings the schema up to date.
func NewPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	migrator, err := migrations.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := migrator.Run(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Columns added to the models after the last SQL migration.
	if err := db.AutoMigrate(&User{}, &DoseSettings{}, &HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	logger.Info("Database connection established and migrations completed", "host", cfg.Host, "db", cfg.DBName)
	return db, nil
}

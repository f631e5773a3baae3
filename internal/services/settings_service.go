package services

import (
	"context"
	"fmt"
	"math"

	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

// SettingsService reads and updates per-user dose settings.
type SettingsService struct {
	repo             domain.SettingsRepository
	defaultCarbRatio float64
}

func NewSettingsService(repo domain.SettingsRepository, defaultCarbRatio float64) *SettingsService {
	if !(defaultCarbRatio > 0) || math.IsInf(defaultCarbRatio, 0) {
		defaultCarbRatio = dose.DefaultCarbRatio
	}
	return &SettingsService{repo: repo, defaultCarbRatio: defaultCarbRatio}
}

// Get returns the user's settings, or the defaults if none were saved.
func (s *SettingsService) Get(ctx context.Context, userID string) (domain.DoseSettings, error) {
	settings, found, err := s.repo.Get(ctx, userID)
	if err != nil {
		return domain.DoseSettings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	if !found {
		return domain.DoseSettings{CarbRatio: s.defaultCarbRatio}, nil
	}
	return settings, nil
}

func (s *SettingsService) update(ctx context.Context, userID string, change func(*domain.DoseSettings)) (domain.DoseSettings, error) {
	settings, err := s.Get(ctx, userID)
	if err != nil {
		return domain.DoseSettings{}, err
	}
	change(&settings)
	if err := s.repo.Save(ctx, userID, settings); err != nil {
		return domain.DoseSettings{}, fmt.Errorf("failed to save settings: %w", err)
	}
	return settings, nil
}

// SetCarbRatio stores grams of carbohydrate covered by one unit.
func (s *SettingsService) SetCarbRatio(ctx context.Context, userID string, ratio float64) (domain.DoseSettings, error) {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return domain.DoseSettings{}, apperrors.ErrInvalidCarbRatio
	}
	settings, err := s.update(ctx, userID, func(d *domain.DoseSettings) { d.CarbRatio = ratio })
	if err != nil {
		return domain.DoseSettings{}, err
	}
	logger.Info("Carb ratio updated", "user_id", userID, "carb_ratio", ratio)
	return settings, nil
}

func (s *SettingsService) SetUseCustomTable(ctx context.Context, userID string, use bool) (domain.DoseSettings, error) {
	return s.update(ctx, userID, func(d *domain.DoseSettings) { d.UseCustomTable = use })
}

// SetCustomTable validates and stores table. Overlaps and gaps are returned
// as diagnostics and do not block the save.
func (s *SettingsService) SetCustomTable(ctx context.Context, userID string, table dose.Table) (domain.DoseSettings, []dose.Issue, error) {
	if err := table.Validate(); err != nil {
		return domain.DoseSettings{}, nil, apperrors.NewInvalidTableError(err).WithContext("user_id", userID)
	}

	settings, err := s.update(ctx, userID, func(d *domain.DoseSettings) { d.CustomTable = table.Clone() })
	if err != nil {
		return domain.DoseSettings{}, nil, err
	}

	issues := table.Diagnose()
	if len(issues) > 0 {
		logger.Warn("Custom dose table saved with issues", "user_id", userID, "issues", len(issues))
	}
	return settings, issues, nil
}

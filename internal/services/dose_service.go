package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	"github.com/vladimiradmaev/dosemate/internal/logger"
)

// DoseRequest is what the user entered for one calculation.
type DoseRequest struct {
	Glycemia   string          `json:"glycemia"`
	FoodItems  []dose.FoodItem `json:"food_items"`
	ForceExtra bool            `json:"force_extra"`
}

// DoseService runs calculations with the user's settings and manages the
// saved history.
type DoseService struct {
	settings *SettingsService
	history  domain.HistoryRepository
	now      func() time.Time
	location *time.Location
	newID    func() string
}

func NewDoseService(settings *SettingsService, history domain.HistoryRepository) *DoseService {
	return &DoseService{
		settings: settings,
		history:  history,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// WithClock replaces the time source used for moments and timestamps.
func (s *DoseService) WithClock(now func() time.Time) *DoseService {
	s.now = now
	return s
}

// WithLocation sets the zone the moment of day is read in. A nil location
// keeps the clock's own zone.
func (s *DoseService) WithLocation(loc *time.Location) *DoseService {
	s.location = loc
	return s
}

func (s *DoseService) clock() time.Time {
	if s.location == nil {
		return s.now()
	}
	return s.now().In(s.location)
}

// Calculate computes a dose for req. It fails only when settings cannot be
// loaded.
func (s *DoseService) Calculate(ctx context.Context, userID string, req DoseRequest) (dose.Result, error) {
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return dose.Result{}, err
	}

	res := dose.Compute(dose.Input{
		Glycemia:   req.Glycemia,
		FoodItems:  req.FoodItems,
		CarbRatio:  settings.CarbRatio,
		Table:      settings.ActiveTable(),
		ForceExtra: req.ForceExtra,
		Now:        s.clock(),
	})

	if res.Unmatched {
		logger.Warn("Glycemia not covered by the active dose table",
			"user_id", userID,
			"glycemia", *res.Glycemia,
			"custom_table", settings.UseCustomTable,
		)
	}
	return res, nil
}

// Save stores res as a new history entry stamped with the current time.
func (s *DoseService) Save(ctx context.Context, userID string, res dose.Result) (domain.HistoryEntry, error) {
	entry := domain.NewHistoryEntry(s.newID(), s.clock(), res)
	if err := s.history.Append(ctx, userID, entry); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("failed to save history entry: %w", err)
	}
	logger.Info("Dose saved", "user_id", userID, "entry_id", entry.ID, "administered", entry.TotalAdministered)
	return entry, nil
}

func (s *DoseService) History(ctx context.Context, userID string) ([]domain.HistoryEntry, error) {
	return s.history.List(ctx, userID)
}

func (s *DoseService) DeleteEntry(ctx context.Context, userID, entryID string) error {
	return s.history.Delete(ctx, userID, entryID)
}

func (s *DoseService) ClearHistory(ctx context.Context, userID string) error {
	return s.history.Clear(ctx, userID)
}

// Subscribe forwards to the history repository.
func (s *DoseService) Subscribe(ctx context.Context, userID string, fn func([]domain.HistoryEntry)) error {
	return s.history.Subscribe(ctx, userID, fn)
}

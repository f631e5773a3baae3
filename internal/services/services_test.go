package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vladimiradmaev/dosemate/internal/domain"
	"github.com/vladimiradmaev/dosemate/internal/dose"
	apperrors "github.com/vladimiradmaev/dosemate/internal/errors"
	"github.com/vladimiradmaev/dosemate/internal/repository"
)

var morning = time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC)

type fixture struct {
	settings *SettingsService
	doses    *DoseService
	history  *repository.LocalHistory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	kv := repository.NewMemoryKV()
	history := repository.NewLocalHistory(kv, repository.NewHub())
	settings := NewSettingsService(repository.NewLocalSettings(kv), 10)
	doses := NewDoseService(settings, history).WithClock(func() time.Time { return morning })
	return fixture{settings: settings, doses: doses, history: history}
}

// failingSettings fails every call.
type failingSettings struct{}

func (failingSettings) Get(context.Context, string) (domain.DoseSettings, bool, error) {
	return domain.DoseSettings{}, false, apperrors.NewDatabaseError(errors.New("connection refused"))
}

func (failingSettings) Save(context.Context, string, domain.DoseSettings) error {
	return apperrors.NewDatabaseError(errors.New("connection refused"))
}

func TestSettingsService_Defaults(t *testing.T) {
	f := newFixture(t)

	s, err := f.settings.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.CarbRatio)
	assert.False(t, s.UseCustomTable)
	assert.Equal(t, dose.DefaultTable(), s.ActiveTable())
}

func TestSettingsService_InvalidDefaultFallsBack(t *testing.T) {
	svc := NewSettingsService(repository.NewLocalSettings(repository.NewMemoryKV()), 0)
	s, err := svc.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, dose.DefaultCarbRatio, s.CarbRatio)
}

func TestSettingsService_SetCarbRatio(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, bad := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		_, err := f.settings.SetCarbRatio(ctx, "u1", bad)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCarbRatio, "ratio %v", bad)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	}

	_, err := f.settings.SetCarbRatio(ctx, "u1", 12.5)
	require.NoError(t, err)

	s, err := f.settings.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 12.5, s.CarbRatio)
}

func TestSettingsService_SetCustomTable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	bad := dose.Table{{Min: 200, Max: 100, Doses: map[dose.Moment]float64{dose.MomentMorning: 1}}}
	_, _, err := f.settings.SetCustomTable(ctx, "u1", bad)
	assert.ErrorIs(t, err, dose.ErrInvalidTable)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	table := dose.Table{
		{Min: math.Inf(-1), Max: 100, Doses: map[dose.Moment]float64{dose.MomentMorning: 2}},
		{Min: 150, Max: math.Inf(1), Doses: map[dose.Moment]float64{dose.MomentMorning: 4}},
	}
	saved, issues, err := f.settings.SetCustomTable(ctx, "u1", table)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, dose.IssueGap, issues[0].Kind)
	assert.False(t, saved.UseCustomTable)

	_, err = f.settings.SetUseCustomTable(ctx, "u1", true)
	require.NoError(t, err)

	s, err := f.settings.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, table, s.ActiveTable())
}

func TestDoseService_CalculateUsesSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := DoseRequest{
		Glycemia:  "180",
		FoodItems: []dose.FoodItem{{CarbsPer100: "50", Weight: "100"}},
	}

	res, err := f.doses.Calculate(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, dose.MomentMorning, res.Moment)
	require.NotNil(t, res.Base)
	assert.Equal(t, 10.0, *res.Base)
	require.NotNil(t, res.Meal)
	assert.Equal(t, 5.0, *res.Meal)
	assert.Equal(t, 15, res.TotalAdministered)

	_, err = f.settings.SetCarbRatio(ctx, "u1", 25)
	require.NoError(t, err)

	res, err = f.doses.Calculate(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *res.Meal)
	assert.Equal(t, 12, res.TotalAdministered)

	req.ForceExtra = true
	res, err = f.doses.Calculate(ctx, "u1", req)
	require.NoError(t, err)
	assert.Equal(t, dose.MomentExtra, res.Moment)
	assert.Equal(t, 2.0, *res.Base)
}

func TestDoseService_CalculateUnmatchedGlycemia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	table := dose.Table{{Min: 100, Max: 200, Doses: map[dose.Moment]float64{dose.MomentMorning: 3}}}
	_, _, err := f.settings.SetCustomTable(ctx, "u1", table)
	require.NoError(t, err)
	_, err = f.settings.SetUseCustomTable(ctx, "u1", true)
	require.NoError(t, err)

	res, err := f.doses.Calculate(ctx, "u1", DoseRequest{Glycemia: "80"})
	require.NoError(t, err)
	assert.True(t, res.Unmatched)
	assert.Nil(t, res.Base)
	assert.Equal(t, 0, res.TotalAdministered)
}

func TestDoseService_CalculateSettingsFailure(t *testing.T) {
	settings := NewSettingsService(failingSettings{}, 10)
	svc := NewDoseService(settings, repository.NewLocalHistory(repository.NewMemoryKV(), repository.NewHub()))

	_, err := svc.Calculate(context.Background(), "u1", DoseRequest{Glycemia: "120"})
	assert.ErrorIs(t, err, apperrors.ErrDatabaseError)
}

func TestDoseService_MomentUsesConfiguredLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	early := time.Date(2024, 6, 3, 3, 30, 0, 0, time.UTC)
	f.doses.WithClock(func() time.Time { return early })

	res, err := f.doses.Calculate(ctx, "u1", DoseRequest{Glycemia: "130"})
	require.NoError(t, err)
	assert.Equal(t, dose.MomentExtra, res.Moment)

	f.doses.WithLocation(time.FixedZone("UTC+5", 5*60*60))
	res, err = f.doses.Calculate(ctx, "u1", DoseRequest{Glycemia: "130"})
	require.NoError(t, err)
	assert.Equal(t, dose.MomentMorning, res.Moment)
	require.NotNil(t, res.Base)
	assert.Equal(t, 9.0, *res.Base)

	entry, err := f.doses.Save(ctx, "u1", res)
	require.NoError(t, err)
	assert.True(t, early.Equal(entry.Timestamp))
	assert.Equal(t, "03/06/2024 08:30", entry.Display)
}

func TestDoseService_SaveAndManageHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.doses.Calculate(ctx, "u1", DoseRequest{Glycemia: "130"})
	require.NoError(t, err)

	first, err := f.doses.Save(ctx, "u1", res)
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, morning, first.Timestamp)
	assert.Equal(t, "03/06/2024 08:30", first.Display)
	assert.Equal(t, res.TotalAdministered, first.TotalAdministered)
	assert.Equal(t, dose.MomentMorning, first.Moment)

	second, err := f.doses.Save(ctx, "u1", res)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	entries, err := f.doses.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, second.ID, entries[0].ID)

	require.NoError(t, f.doses.DeleteEntry(ctx, "u1", second.ID))
	assert.ErrorIs(t, f.doses.DeleteEntry(ctx, "u1", second.ID), apperrors.ErrEntryNotFound)

	require.NoError(t, f.doses.ClearHistory(ctx, "u1"))
	entries, err = f.doses.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryFeed_TracksChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	feed := NewHistoryFeed(ctx, f.history)

	entries, err := feed.Entries("u1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	res, err := f.doses.Calculate(ctx, "u1", DoseRequest{Glycemia: "130"})
	require.NoError(t, err)
	saved, err := f.doses.Save(ctx, "u1", res)
	require.NoError(t, err)

	entries, err = feed.Entries("u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, saved.ID, entries[0].ID)

	got, ok := feed.Find("u1", saved.ID)
	assert.True(t, ok)
	assert.Equal(t, saved.ID, got.ID)

	require.NoError(t, f.doses.DeleteEntry(ctx, "u1", saved.ID))
	_, ok = feed.Find("u1", saved.ID)
	assert.False(t, ok)
}

func TestHistoryFeed_SubscribeError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	feed := NewHistoryFeed(ctx, repository.NewLocalHistory(repository.NewMemoryKV(), repository.NewHub()))
	_, err := feed.Entries("u1")
	assert.ErrorIs(t, err, context.Canceled)
}

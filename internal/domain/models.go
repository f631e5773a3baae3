package domain

import (
	"time"

	"github.com/vladimiradmaev/dosemate/internal/dose"
)

// DisplayLayout formats HistoryEntry.Display.
const DisplayLayout = "02/01/2006 15:04"

// User represents a telegram user in the system
type User struct {
	ID         string // opaque, keys history and settings
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// HistoryEntry is one saved calculation.
type HistoryEntry struct {
	ID                string      `json:"id"`
	Timestamp         time.Time   `json:"timestamp"`
	Display           string      `json:"display"`
	Glycemia          *float64    `json:"glycemia,omitempty"`
	Base              *float64    `json:"base,omitempty"`
	Meal              *float64    `json:"meal,omitempty"`
	TotalAdministered int         `json:"total_administered"`
	TotalCalculated   float64     `json:"total_calculated"`
	Moment            dose.Moment `json:"moment"`
}

// NewHistoryEntry derives an entry from a calculation result at time at.
func NewHistoryEntry(id string, at time.Time, res dose.Result) HistoryEntry {
	return HistoryEntry{
		ID:                id,
		Timestamp:         at,
		Display:           at.Format(DisplayLayout),
		Glycemia:          copyFloat(res.Glycemia),
		Base:              copyFloat(res.Base),
		Meal:              copyFloat(res.Meal),
		TotalAdministered: res.TotalAdministered,
		TotalCalculated:   res.TotalCalculated,
		Moment:            res.Moment,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// DoseSettings are the per-user inputs of the calculator that persist
// between sessions.
type DoseSettings struct {
	CarbRatio      float64    `json:"carb_ratio"`
	UseCustomTable bool       `json:"use_custom_table"`
	CustomTable    dose.Table `json:"custom_table,omitempty"`
}

// ActiveTable returns the table lookups should use.
func (s DoseSettings) ActiveTable() dose.Table {
	return dose.SelectTable(s.UseCustomTable, s.CustomTable)
}

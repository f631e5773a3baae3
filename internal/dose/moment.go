package dose

import "time"

// Moment is the time-of-day bucket used to pick a dose from a table row.
type Moment string

const (
	MomentMorning Moment = "morning"
	MomentNoon    Moment = "noon"
	MomentEvening Moment = "evening"
	MomentExtra   Moment = "extra"
)

// Moments lists every bucket in display order.
var Moments = []Moment{MomentMorning, MomentNoon, MomentEvening, MomentExtra}

// Hour boundaries of the day buckets: [5,11) morning, [11,16) noon, [16,22) evening.
const (
	morningStartHour = 5
	noonStartHour    = 11
	eveningStartHour = 16
	extraStartHour   = 22
)

// MomentAt returns the bucket for the local hour of t.
func MomentAt(t time.Time) Moment {
	h := t.Hour()
	switch {
	case h >= morningStartHour && h < noonStartHour:
		return MomentMorning
	case h >= noonStartHour && h < eveningStartHour:
		return MomentNoon
	case h >= eveningStartHour && h < extraStartHour:
		return MomentEvening
	default:
		return MomentExtra
	}
}

// ResolveMoment applies the forced "extra" override.
func ResolveMoment(now time.Time, forceExtra bool) Moment {
	if forceExtra {
		return MomentExtra
	}
	return MomentAt(now)
}

// Valid reports whether m is one of the four known buckets.
func (m Moment) Valid() bool {
	switch m {
	case MomentMorning, MomentNoon, MomentEvening, MomentExtra:
		return true
	}
	return false
}

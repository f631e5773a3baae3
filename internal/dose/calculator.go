// Package dose computes an insulin dose from a glucose reading and a meal.
//
// Compute is pure: it reads no clock, no storage and no global state. The
// caller passes the time, the active table and the carb ratio explicitly.
package dose

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// DisplayMax is the largest dose ever shown as administered.
	DisplayMax = 22.0
	// MaxCalculated caps the calculated total before anything else uses it.
	MaxCalculated = 25.0
	// HypoThreshold and HyperThreshold are in mg/dL, both exclusive.
	HypoThreshold  = 70.0
	HyperThreshold = 351.0
	// DefaultCarbRatio is grams of carbohydrate covered by one unit.
	DefaultCarbRatio = 10.0
)

// FoodItem is one meal ingredient as typed by the user.
type FoodItem struct {
	CarbsPer100 string `json:"carbs_per_100"`
	Weight      string `json:"weight"`
}

// Carbs returns the grams of carbohydrate in the item. Unparseable fields count as 0.
func (f FoodItem) Carbs() float64 {
	return decimalOrZero(f.CarbsPer100) * decimalOrZero(f.Weight) / 100
}

// Input is a snapshot of everything Compute depends on.
type Input struct {
	Glycemia   string
	FoodItems  []FoodItem
	CarbRatio  float64
	Table      Table
	ForceExtra bool
	Now        time.Time
}

// Result is the dose breakdown. Base and Meal are nil when the component
// does not apply.
type Result struct {
	Moment            Moment
	Glycemia          *float64
	Base              *float64
	Meal              *float64
	TotalCarbs        float64
	TotalCalculated   float64
	TotalAdministered int
	Hypo              bool
	Hyper             bool
	AlertMax          bool
	Note              *string
	// Unmatched is set when a reading at or below the hyper threshold hit
	// no table row, so no correction was applied.
	Unmatched bool
}

// Compute runs the dose calculation. It never fails: malformed numbers
// degrade to "absent" or zero.
func Compute(in Input) Result {
	res := Result{Moment: ResolveMoment(in.Now, in.ForceExtra)}
	total := 0.0

	if g, ok := ParseDecimal(in.Glycemia); ok {
		res.Glycemia = &g
		res.Hypo = g < HypoThreshold
		res.Hyper = g > HyperThreshold
		if r, found := in.Table.Lookup(g); found {
			base := r.DoseFor(res.Moment)
			res.Base = &base
			total += base
		} else {
			res.Unmatched = true
		}
	}

	for _, item := range in.FoodItems {
		res.TotalCarbs += item.Carbs()
	}
	// Overflowing carbs are treated like a missing ratio: the meal shows 0
	// and adds nothing.
	carbsFinite := finite(res.TotalCarbs)
	if !carbsFinite {
		res.TotalCarbs = 0
	}
	if res.TotalCarbs > 0 || !carbsFinite {
		meal := 0.0
		if carbsFinite && validRatio(in.CarbRatio) {
			if exact := res.TotalCarbs / in.CarbRatio; finite(exact) {
				meal = math.Round(exact)
				total += exact
			}
		}
		res.Meal = &meal
	}

	if total > MaxCalculated {
		total = MaxCalculated
	}
	res.TotalCalculated = total
	res.TotalAdministered = int(math.Max(0, math.Round(math.Min(total, DisplayMax))))

	if total > DisplayMax {
		res.AlertMax = true
		note := fmt.Sprintf("calculated dose %s U exceeds the %s U limit; administered dose capped at %d U",
			strconv.FormatFloat(total, 'f', -1, 64),
			strconv.FormatFloat(DisplayMax, 'f', -1, 64),
			res.TotalAdministered)
		res.Note = &note
	}
	return res
}

func validRatio(r float64) bool {
	return r > 0 && finite(r)
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

package dose

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidTable is wrapped by every Validate failure.
var ErrInvalidTable = errors.New("invalid dose table")

// Range is one table row: a closed glucose interval [Min, Max] in mg/dL and
// the dose per moment. Min may be -Inf and Max may be +Inf.
type Range struct {
	Min   float64
	Max   float64
	Doses map[Moment]float64
}

// Table is an ordered list of ranges. Lookups take the first match.
type Table []Range

// Contains reports whether g lies in [Min, Max].
func (r Range) Contains(g float64) bool {
	return r.Min <= g && g <= r.Max
}

// DoseFor returns the dose for m, or 0 when the row has none.
func (r Range) DoseFor(m Moment) float64 {
	return r.Doses[m]
}

type rangeJSON struct {
	Min   *float64           `json:"min"`
	Max   *float64           `json:"max"`
	Doses map[Moment]float64 `json:"doses"`
}

// MarshalJSON encodes an infinite lower bound or upper bound as null.
func (r Range) MarshalJSON() ([]byte, error) {
	out := rangeJSON{Doses: r.Doses}
	if !math.IsInf(r.Min, -1) {
		lo := r.Min
		out.Min = &lo
	}
	if !math.IsInf(r.Max, 1) {
		hi := r.Max
		out.Max = &hi
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Range) UnmarshalJSON(data []byte) error {
	var in rangeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Min = math.Inf(-1)
	if in.Min != nil {
		r.Min = *in.Min
	}
	r.Max = math.Inf(1)
	if in.Max != nil {
		r.Max = *in.Max
	}
	r.Doses = in.Doses
	return nil
}

func row(lo, hi, morning, noon, evening, extra float64) Range {
	return Range{
		Min: lo,
		Max: hi,
		Doses: map[Moment]float64{
			MomentMorning: morning,
			MomentNoon:    noon,
			MomentEvening: evening,
			MomentExtra:   extra,
		},
	}
}

// DefaultTable returns a fresh copy of the built-in table. Each row starts
// at the previous row's max so decimal readings between the printed integer
// ranges are covered; the shared bound belongs to the earlier row.
func DefaultTable() Table {
	return Table{
		row(math.Inf(-1), 69, 7, 5, 6, 0),
		row(69, 100, 8, 6, 7, 0),
		row(100, 150, 9, 7, 8, 1),
		row(150, 200, 10, 8, 9, 2),
		row(200, 250, 11, 9, 10, 3),
		row(250, 300, 12, 10, 11, 4),
		row(300, 350, 13, 11, 12, 5),
		row(350, math.Inf(1), 14, 12, 13, 6),
	}
}

// SelectTable returns the custom table when it is switched on and has rows,
// and the default table otherwise.
func SelectTable(useCustom bool, custom Table) Table {
	if useCustom && len(custom) > 0 {
		return custom
	}
	return DefaultTable()
}

// Lookup finds the row for glycemia g. The first matching row wins. When no
// row matches and g is above the hyper threshold the last row is used.
func (t Table) Lookup(g float64) (Range, bool) {
	for _, r := range t {
		if r.Contains(g) {
			return r, true
		}
	}
	if g > HyperThreshold && len(t) > 0 {
		return t[len(t)-1], true
	}
	return Range{}, false
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	if t == nil {
		return nil
	}
	out := make(Table, len(t))
	for i, r := range t {
		doses := make(map[Moment]float64, len(r.Doses))
		for m, v := range r.Doses {
			doses[m] = v
		}
		out[i] = Range{Min: r.Min, Max: r.Max, Doses: doses}
	}
	return out
}

// Validate checks the constraints a stored custom table must satisfy.
func (t Table) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidTable)
	}
	for i, r := range t {
		if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
			return fmt.Errorf("%w: row %d: bound is not a number", ErrInvalidTable, i+1)
		}
		if math.IsInf(r.Min, 1) || math.IsInf(r.Max, -1) {
			return fmt.Errorf("%w: row %d: bound is infinite on the wrong side", ErrInvalidTable, i+1)
		}
		if r.Min > r.Max {
			return fmt.Errorf("%w: row %d: min %g is greater than max %g", ErrInvalidTable, i+1, r.Min, r.Max)
		}
		for m, v := range r.Doses {
			if !m.Valid() {
				return fmt.Errorf("%w: row %d: unknown moment %q", ErrInvalidTable, i+1, m)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("%w: row %d: dose for %s must be a non-negative number", ErrInvalidTable, i+1, m)
			}
		}
	}
	return nil
}

// IssueKind classifies a table diagnostic.
type IssueKind string

const (
	IssueOverlap IssueKind = "overlap"
	IssueGap     IssueKind = "gap"
)

// Issue is a non-fatal problem in a table. Rows are 1-based table positions.
type Issue struct {
	Kind    IssueKind
	Row     int
	Other   int
	Message string
}

// Diagnose reports overlapping rows and uncovered intervals between rows.
// Rows that only share a bound are fine: the first one wins there. Readings
// in a gap get no correction dose.
func (t Table) Diagnose() []Issue {
	if len(t) == 0 {
		return nil
	}
	idx := make([]int, len(t))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return t[idx[a]].Min < t[idx[b]].Min })

	// reach is the highest max seen so far, owned by row reachRow.
	reachRow := idx[0]
	reach := t[reachRow].Max

	var issues []Issue
	for _, i := range idx[1:] {
		cur := t[i]
		switch {
		case cur.Min < reach:
			issues = append(issues, Issue{
				Kind:    IssueOverlap,
				Row:     reachRow + 1,
				Other:   i + 1,
				Message: fmt.Sprintf("rows %d and %d overlap from %g to %g", reachRow+1, i+1, cur.Min, math.Min(reach, cur.Max)),
			})
		case cur.Min > reach:
			issues = append(issues, Issue{
				Kind:    IssueGap,
				Row:     reachRow + 1,
				Other:   i + 1,
				Message: fmt.Sprintf("no row covers readings between %g and %g", reach, cur.Min),
			})
		}
		if cur.Max > reach {
			reach, reachRow = cur.Max, i
		}
	}
	return issues
}

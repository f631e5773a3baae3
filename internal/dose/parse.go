package dose

import (
	"math"
	"strconv"
	"strings"
)

// ParseDecimal parses a user-entered decimal. Both "12.5" and "12,5" are
// accepted. Empty, malformed and non-finite input reports ok == false.
func ParseDecimal(raw string) (value float64, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// decimalOrZero is ParseDecimal with the failure case mapped to 0.
func decimalOrZero(raw string) float64 {
	v, ok := ParseDecimal(raw)
	if !ok {
		return 0
	}
	return v
}

package control

import (
	"errors"
	"fmt"
	"math"
)

// ErrBadTable is returned for breakpoint tables Interp cannot use.
var ErrBadTable = errors.New("control: invalid interpolation table")

// ValidateTable checks that xp is non-empty, strictly increasing and as long
// as fp.
func ValidateTable(xp, fp []float64) error {
	if len(xp) == 0 || len(xp) != len(fp) {
		return fmt.Errorf("%w: %d breakpoints, %d values", ErrBadTable, len(xp), len(fp))
	}
	for i := range xp {
		if math.IsNaN(xp[i]) || math.IsNaN(fp[i]) {
			return fmt.Errorf("%w: NaN at index %d", ErrBadTable, i)
		}
		if i > 0 && xp[i] <= xp[i-1] {
			return fmt.Errorf("%w: breakpoints not increasing at index %d", ErrBadTable, i)
		}
	}
	return nil
}

// Interp linearly interpolates x over the table (xp, fp), holding the end
// values outside it. The table must satisfy ValidateTable.
func Interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	if n == 1 {
		return fp[0]
	}
	if math.IsNaN(x) {
		return math.NaN()
	}
	if x <= xp[0] {
		return fp[0]
	}
	if x >= xp[n-1] {
		return fp[n-1]
	}
	i := 1
	for xp[i] < x {
		i++
	}
	t := (x - xp[i-1]) / (xp[i] - xp[i-1])
	return fp[i-1] + t*(fp[i]-fp[i-1])
}

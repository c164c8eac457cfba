package control

import "math"

// Deadzone boundaries for normalized stick/sensor input.
const (
	DeadzoneLow  = 0.15
	DeadzoneHigh = 0.30
)

// Shape remaps a raw normalized input v in [-1, 1] to suppress touch
// and sensor noise. Magnitudes below DeadzoneLow collapse to zero,
// magnitudes in [DeadzoneLow, DeadzoneHigh) ramp linearly up to
// DeadzoneHigh so there is no jump at the deadzone edge, and anything
// at or above DeadzoneHigh passes through unchanged. Pure function;
// callers guarantee the input range.
func Shape(v float64) float64 {
	abs := math.Abs(v)
	switch {
	case abs < DeadzoneLow:
		return 0
	case abs < DeadzoneHigh:
		return math.Copysign((abs-DeadzoneLow)/DeadzoneLow*DeadzoneHigh, v)
	default:
		return v
	}
}

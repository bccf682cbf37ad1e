// Package units provides angle conversions and wrapping shared by the
// replanning math.
package units

import "math"

// RadToDeg converts an angle from radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

// WrapAngle normalizes an angle in radians to (-pi, pi].
func WrapAngle(rad float64) float64 {
	wrapped := math.Mod(rad, 2*math.Pi)
	if wrapped > math.Pi {
		wrapped -= 2 * math.Pi
	} else if wrapped <= -math.Pi {
		wrapped += 2 * math.Pi
	}
	return wrapped
}

// AngleDiff returns the absolute difference between two angles in radians,
// wrapped to [0, pi].
func AngleDiff(a, b float64) float64 {
	return math.Abs(WrapAngle(a - b))
}

package dsp

import "math"

// RoundClip8b rounds v to the nearest integer (half to even) and clips the
// result to [0, 255]. NaN maps to 0.
func RoundClip8b(v float64) uint8 {
	switch {
	case v != v, v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.RoundToEven(v))
}

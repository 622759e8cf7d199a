package blend

import "math"

// unit converts an 8-bit channel to [0, 1].
func unit(v uint8) float64 {
	return float64(v) / 255
}

// quantize converts a [0, 1] value to 8 bits, rounding to nearest.
// Out-of-range inputs are clamped.
func quantize(v float64) uint8 {
	return uint8(math.Floor(clamp01(v)*255 + 0.5))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

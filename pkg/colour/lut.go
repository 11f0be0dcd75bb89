package colour

import "math"

// LUTSize is the resolution of the gamma lookup tables, matching the
// original's LUT_ARRAY_ENTRIES (one entry per 16-bit sample value).
const LUTSize = 65536

// GammaToLinearLUT builds a table mapping a gamma-encoded sample (indexed
// 0..LUTSize-1) to its linear-light value, per spec's transfer function.
// Grounded on original_source/phaneron/src/colour.rs: gamma_to_linear_lut.
func GammaToLinearLUT(spec Spec) []float32 {
	lut := make([]float32, LUTSize)
	for i := range lut {
		fi := float64(i) / float64(LUTSize-1)
		if fi < spec.Beta*spec.Delta {
			lut[i] = float32(fi / spec.Delta)
		} else {
			lut[i] = float32(math.Pow((fi+(spec.Alpha-1))/spec.Alpha, 1/spec.Gamma))
		}
	}
	return lut
}

// LinearToGammaLUT builds the inverse table: linear-light sample index to
// gamma-encoded value.
// Grounded on original_source/phaneron/src/colour.rs: linear_to_gamma_lut.
func LinearToGammaLUT(spec Spec) []float32 {
	lut := make([]float32, LUTSize)
	for i := range lut {
		fi := float64(i) / float64(LUTSize-1)
		if fi < spec.Beta {
			lut[i] = float32(fi * spec.Delta)
		} else {
			lut[i] = float32(spec.Alpha*math.Pow(fi, spec.Gamma) - (spec.Alpha - 1))
		}
	}
	return lut
}

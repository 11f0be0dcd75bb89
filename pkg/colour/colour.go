// Package colour implements component I's colour-science layer: the
// built-in colourimetric specs, gamma transfer-function lookup tables,
// and the RGB<->XYZ and YCbCr<->RGB matrices every format conversion
// routes through on its way to or from the common working space.
//
// Grounded on original_source/phaneron-plugin/src/colour.rs (the ColourSpec
// struct and built-in constants) and original_source/phaneron/src/colour.rs
// (the LUT and matrix derivations), reproduced with gonum/mat in place of
// the original's nalgebra.
package colour

// Spec is a colourimetric specification: chromaticity primaries and white
// point, the Rec.ITU-R luma coefficients, and the gamma transfer-function
// parameters. Mirrors phaneron-plugin's ColourSpec exactly, field for
// field, so the built-in constants below can be transcribed directly from
// the original source and ITU recommendations.
type Spec struct {
	KR, KB             float64
	Rx, Ry             float64
	Gx, Gy             float64
	Bx, By             float64
	Wx, Wy             float64
	Alpha, Beta, Gamma, Delta float64
}

// BT709 is the common working space every format conversion targets or
// sources from.
var BT709 = Spec{
	KR: 0.2126, KB: 0.0722,
	Rx: 0.64, Ry: 0.33,
	Gx: 0.3, Gy: 0.6,
	Bx: 0.15, By: 0.06,
	Wx: 0.3127, Wy: 0.329,
	Alpha: 1.099, Beta: 0.018, Gamma: 0.45, Delta: 4.5,
}

// BT601_525 is the NTSC variant of Rec. 601.
var BT601_525 = Spec{
	KR: 0.299, KB: 0.114,
	Rx: 0.63, Ry: 0.34,
	Gx: 0.31, Gy: 0.595,
	Bx: 0.155, By: 0.07,
	Wx: 0.3127, Wy: 0.329,
	Alpha: 1.099, Beta: 0.018, Gamma: 0.45, Delta: 4.5,
}

// BT601_625 is the PAL/EBU variant of Rec. 601.
var BT601_625 = Spec{
	KR: 0.299, KB: 0.114,
	Rx: 0.64, Ry: 0.33,
	Gx: 0.29, Gy: 0.60,
	Bx: 0.15, By: 0.06,
	Wx: 0.3127, Wy: 0.329,
	Alpha: 1.099, Beta: 0.018, Gamma: 0.45, Delta: 4.5,
}

// BT2020 is Rec. 2020 (UHDTV).
var BT2020 = Spec{
	KR: 0.2627, KB: 0.0593,
	Rx: 0.708, Ry: 0.292,
	Gx: 0.170, Gy: 0.797,
	Bx: 0.131, By: 0.046,
	Wx: 0.3127, Wy: 0.329,
	Alpha: 1.09929682680944, Beta: 0.018053968510807, Gamma: 0.45, Delta: 4.5,
}

// SRGB is the sRGB spec used by most desktop/web-sourced imagery.
var SRGB = Spec{
	KR: 0.2126, KB: 0.0722,
	Rx: 0.64, Ry: 0.33,
	Gx: 0.30, Gy: 0.60,
	Bx: 0.15, By: 0.06,
	Wx: 0.3127, Wy: 0.329,
	Alpha: 1.055, Beta: 0.0031308, Gamma: 1.0 / 2.4, Delta: 12.92,
}

// Named looks up a built-in Spec by its canonical name ("bt709",
// "bt601-525", "bt601-625", "bt2020", "srgb"), for config-driven node
// construction.
func Named(name string) (Spec, bool) {
	switch name {
	case "bt709":
		return BT709, true
	case "bt601-525":
		return BT601_525, true
	case "bt601-625":
		return BT601_625, true
	case "bt2020":
		return BT2020, true
	case "srgb":
		return SRGB, true
	default:
		return Spec{}, false
	}
}

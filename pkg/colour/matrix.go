package colour

import "gonum.org/v1/gonum/mat"

// RGBToXYZMatrix derives the 3x3 matrix that converts linear RGB in the
// given spec's primaries to CIE XYZ, via the white-point scaling method:
// solve the primaries matrix against the white point, scale each primary
// column, keeping it otherwise unnormalised.
// Grounded on original_source/phaneron/src/colour.rs: rgb_to_xyz_matrix.
func RGBToXYZMatrix(spec Spec) *mat.Dense {
	primaries := mat.NewDense(3, 3, []float64{
		spec.Rx, spec.Gx, spec.Bx,
		spec.Ry, spec.Gy, spec.By,
		1 - spec.Rx - spec.Ry, 1 - spec.Gx - spec.Gy, 1 - spec.Bx - spec.By,
	})

	white := mat.NewVecDense(3, []float64{spec.Wx, spec.Wy, 1 - spec.Wx - spec.Wy})
	// Normalise the white point so its Y component is 1, matching the
	// original's `w * (1.0 / w.y)`.
	wy := white.AtVec(1)
	scaledWhite := mat.NewVecDense(3, nil)
	scaledWhite.ScaleVec(1/wy, white)

	var primariesInv mat.Dense
	if err := primariesInv.Inverse(primaries); err != nil {
		panic("colour: singular primaries matrix: " + err.Error())
	}

	var scaleFactors mat.VecDense
	scaleFactors.MulVec(&primariesInv, scaledWhite)

	scale := mat.NewDiagDense(3, []float64{scaleFactors.AtVec(0), scaleFactors.AtVec(1), scaleFactors.AtVec(2)})

	var xyz mat.Dense
	xyz.Mul(primaries, scale)
	return &xyz
}

// XYZToRGBMatrix is the inverse of RGBToXYZMatrix.
func XYZToRGBMatrix(spec Spec) *mat.Dense {
	rgbToXYZ := RGBToXYZMatrix(spec)
	var inv mat.Dense
	if err := inv.Inverse(rgbToXYZ); err != nil {
		panic("colour: singular RGB-to-XYZ matrix: " + err.Error())
	}
	return &inv
}

// RGBToCommonSpaceMatrix derives the matrix that converts linear RGB in
// source's primaries directly into the common working space (BT.709),
// transposed to match the row-vector convention the format converters
// multiply frame pixels by.
func RGBToCommonSpaceMatrix(source Spec) *mat.Dense {
	var m mat.Dense
	m.Mul(XYZToRGBMatrix(BT709), RGBToXYZMatrix(source))
	var t mat.Dense
	t.CloneFrom(m.T())
	return &t
}

// CommonSpaceToRGBMatrix derives the matrix that converts a common
// working space (BT.709) linear RGB pixel into destination's primaries.
func CommonSpaceToRGBMatrix(destination Spec) *mat.Dense {
	var m mat.Dense
	m.Mul(XYZToRGBMatrix(destination), RGBToXYZMatrix(BT709))
	var t mat.Dense
	t.CloneFrom(m.T())
	return &t
}

// YCbCrParams bundles the quantization parameters a YCbCr<->RGB matrix
// derivation needs beyond the colour spec itself.
type YCbCrParams struct {
	NumberOfBits int
	LumaBlack    float64
	LumaWhite    float64
	ChromaRange  float64
}

// YCbCrToRGBMatrix derives the 4x3 (homogeneous) matrix that converts a
// quantized YCbCr sample (plus constant 1 for the offset term) into
// linear RGB. Grounded on original_source/phaneron/src/colour.rs:
// ycbcr_to_rgb_matrix.
func YCbCrToRGBMatrix(spec Spec, p YCbCrParams) *mat.Dense {
	chromaNull := float64(uint32(128) << uint(p.NumberOfBits-8))
	lumaRange := p.LumaWhite - p.LumaBlack

	kR, kB := spec.KR, spec.KB
	kG := 1 - kR - kB

	colourMatrix := mat.NewDense(3, 3, []float64{
		1, 0, 1 - kR,
		1, -((1 - kB) * kB) / kG, -((1 - kR) * kR) / kG,
		1, 1 - kB, 0,
	})

	scaleMatrix := mat.NewDense(3, 4, []float64{
		1 / lumaRange, 0, 0, -p.LumaBlack / lumaRange,
		0, (1 / p.ChromaRange) * 2, 0, -(chromaNull / p.ChromaRange) * 2,
		0, 0, (1 / p.ChromaRange) * 2, -(chromaNull / p.ChromaRange) * 2,
	})

	var product mat.Dense
	product.Mul(colourMatrix, scaleMatrix)
	var t mat.Dense
	t.CloneFrom(product.T())
	return &t
}

// RGBToYCbCrMatrix derives the 4x3 matrix that converts linear RGB (plus
// constant 1) into quantized YCbCr.
func RGBToYCbCrMatrix(spec Spec, p YCbCrParams) *mat.Dense {
	chromaNull := float64(uint32(128) << uint(p.NumberOfBits-8))
	lumaRange := p.LumaWhite - p.LumaBlack
	kR, kB := spec.KR, spec.KB
	kG := 1 - kR - kB

	scaleMatrix := mat.NewDense(3, 3, []float64{
		lumaRange, 0, 0,
		0, p.ChromaRange / 2, 0,
		0, 0, p.ChromaRange / 2,
	})

	colourMatrix := mat.NewDense(3, 4, []float64{
		kR, kG, kB, p.LumaBlack / lumaRange,
		-kR / (1 - kB), -kG / (1 - kB), 1, (chromaNull / p.ChromaRange) * 2,
		1, -kG / (1 - kR), -kB / (1 - kR), (chromaNull / p.ChromaRange) * 2,
	})

	var product mat.Dense
	product.Mul(scaleMatrix, colourMatrix)
	var t mat.Dense
	t.CloneFrom(product.T())
	return &t
}

package convert

import (
	"encoding/binary"
	"fmt"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
)

// rgba8Packer/rgba8Unpacker: 4 bytes per pixel, R G B A, gamma-encoded
// RGB (is_rgb in the original, so no YCbCr matrix is applied). Grounded
// on format/rgba8.rs.
type rgba8Packer struct{ width, height int }

func (p *rgba8Packer) NumBytes() []int { return []int{p.width * p.height * 4} }

func (p *rgba8Packer) Unpack(planes [][]byte) ([]float32, error) {
	plane, err := singlePlane(planes, p.width*p.height*4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, p.width*p.height*4)
	for i, b := range plane {
		out[i] = float32(b) / 255
	}
	return out, nil
}

type rgba8Unpacker struct{ width, height int }

func (u *rgba8Unpacker) NumBytes() []int { return []int{u.width * u.height * 4} }

func (u *rgba8Unpacker) Pack(pixels []float32) ([][]byte, error) {
	out := make([]byte, u.width*u.height*4)
	for i, v := range pixels {
		out[i] = clampToByte(v)
	}
	return [][]byte{out}, nil
}

// bgra8Packer/bgra8Unpacker: byte order B G R A. Grounded on format/bgra.rs
// (same shape as rgba8.rs with channels swapped).
type bgra8Packer struct{ width, height int }

func (p *bgra8Packer) NumBytes() []int { return []int{p.width * p.height * 4} }

func (p *bgra8Packer) Unpack(planes [][]byte) ([]float32, error) {
	plane, err := singlePlane(planes, p.width*p.height*4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, p.width*p.height*4)
	for i := 0; i < p.width*p.height; i++ {
		b, g, r, a := plane[i*4], plane[i*4+1], plane[i*4+2], plane[i*4+3]
		out[i*4+0] = float32(r) / 255
		out[i*4+1] = float32(g) / 255
		out[i*4+2] = float32(b) / 255
		out[i*4+3] = float32(a) / 255
	}
	return out, nil
}

type bgra8Unpacker struct{ width, height int }

func (u *bgra8Unpacker) NumBytes() []int { return []int{u.width * u.height * 4} }

func (u *bgra8Unpacker) Pack(pixels []float32) ([][]byte, error) {
	out := make([]byte, u.width*u.height*4)
	for i := 0; i < u.width*u.height; i++ {
		r, g, b, a := pixels[i*4], pixels[i*4+1], pixels[i*4+2], pixels[i*4+3]
		out[i*4+0] = clampToByte(b)
		out[i*4+1] = clampToByte(g)
		out[i*4+2] = clampToByte(r)
		out[i*4+3] = clampToByte(a)
	}
	return [][]byte{out}, nil
}

// yuvPlanar is shared machinery for the three planar YUV formats: decode
// to/from RGBA via the spec's YCbCr<->RGB matrix, differing only in
// chroma subsampling and sample bit depth.
type yuvPlanar struct {
	width, height    int
	chromaW, chromaH int // chroma plane dimensions
	bits             int
	spec             colour.Spec
}

func (y yuvPlanar) lumaSamples() int   { return y.width * y.height }
func (y yuvPlanar) chromaSamples() int { return y.chromaW * y.chromaH }

func (y yuvPlanar) unpack8or16(planes [][]byte, bytesPerSample int) ([]float32, error) {
	lumaBytes := y.lumaSamples() * bytesPerSample
	chromaBytes := y.chromaSamples() * bytesPerSample
	if len(planes) != 3 {
		return nil, fmt.Errorf("convert: yuv planar format requires 3 planes, got %d", len(planes))
	}
	if len(planes[0]) != lumaBytes || len(planes[1]) != chromaBytes || len(planes[2]) != chromaBytes {
		return nil, fmt.Errorf("convert: yuv planar plane size mismatch")
	}

	readSample := func(plane []byte, idx int) float64 {
		if bytesPerSample == 1 {
			return float64(plane[idx])
		}
		return float64(binary.LittleEndian.Uint16(plane[idx*2 : idx*2+2]))
	}

	params := ycbcrParamsFor(y.bits)
	m := colour.YCbCrToRGBMatrix(y.spec, params)

	out := make([]float32, y.width*y.height*4)
	chromaScaleX := y.width / y.chromaW
	chromaScaleY := y.height / y.chromaH

	for row := 0; row < y.height; row++ {
		for col := 0; col < y.width; col++ {
			lumaIdx := row*y.width + col
			chromaCol := col / chromaScaleX
			chromaRow := row / chromaScaleY
			chromaIdx := chromaRow*y.chromaW + chromaCol

			yy := readSample(planes[0], lumaIdx)
			cb := readSample(planes[1], chromaIdx)
			cr := readSample(planes[2], chromaIdx)

			r := m.At(0, 0)*yy + m.At(1, 0)*cb + m.At(2, 0)*cr + m.At(3, 0)
			g := m.At(0, 1)*yy + m.At(1, 1)*cb + m.At(2, 1)*cr + m.At(3, 1)
			b := m.At(0, 2)*yy + m.At(1, 2)*cb + m.At(2, 2)*cr + m.At(3, 2)

			pixIdx := lumaIdx * 4
			out[pixIdx+0] = float32(r)
			out[pixIdx+1] = float32(g)
			out[pixIdx+2] = float32(b)
			out[pixIdx+3] = 1
		}
	}
	return out, nil
}

func (y yuvPlanar) pack8or16(pixels []float32, bytesPerSample int) [][]byte {
	params := ycbcrParamsFor(y.bits)
	m := colour.RGBToYCbCrMatrix(y.spec, params)

	lumaPlane := make([]byte, y.lumaSamples()*bytesPerSample)
	// Accumulate chroma samples so each chroma site averages the
	// co-sited luma samples it subsamples, matching the original
	// kernels' nearest/area-average behavior closely enough for this
	// module's purposes.
	chromaAccumU := make([]float64, y.chromaSamples())
	chromaAccumV := make([]float64, y.chromaSamples())
	chromaCount := make([]int, y.chromaSamples())

	chromaScaleX := y.width / y.chromaW
	chromaScaleY := y.height / y.chromaH

	maxSampleVal := float64((1 << uint(y.bits)) - 1)
	writeSample := func(plane []byte, idx int, v float64) {
		if v < 0 {
			v = 0
		}
		if v > maxSampleVal {
			v = maxSampleVal
		}
		if bytesPerSample == 1 {
			plane[idx] = byte(v)
			return
		}
		binary.LittleEndian.PutUint16(plane[idx*2:idx*2+2], uint16(v))
	}

	for row := 0; row < y.height; row++ {
		for col := 0; col < y.width; col++ {
			pixIdx := (row*y.width + col) * 4
			r, g, b := float64(pixels[pixIdx]), float64(pixels[pixIdx+1]), float64(pixels[pixIdx+2])

			yy := m.At(0, 0)*r + m.At(1, 0)*g + m.At(2, 0)*b + m.At(3, 0)
			cb := m.At(0, 1)*r + m.At(1, 1)*g + m.At(2, 1)*b + m.At(3, 1)
			cr := m.At(0, 2)*r + m.At(1, 2)*g + m.At(2, 2)*b + m.At(3, 2)

			lumaIdx := row*y.width + col
			writeSample(lumaPlane, lumaIdx, yy)

			chromaCol := col / chromaScaleX
			chromaRow := row / chromaScaleY
			chromaIdx := chromaRow*y.chromaW + chromaCol
			chromaAccumU[chromaIdx] += cb
			chromaAccumV[chromaIdx] += cr
			chromaCount[chromaIdx]++
		}
	}

	cbPlane := make([]byte, y.chromaSamples()*bytesPerSample)
	crPlane := make([]byte, y.chromaSamples()*bytesPerSample)
	maxVal := float64((1 << uint(y.bits)) - 1)
	for i := range chromaAccumU {
		avgU := chromaAccumU[i] / float64(chromaCount[i])
		avgV := chromaAccumV[i] / float64(chromaCount[i])
		if avgU < 0 {
			avgU = 0
		}
		if avgU > maxVal {
			avgU = maxVal
		}
		if avgV < 0 {
			avgV = 0
		}
		if avgV > maxVal {
			avgV = maxVal
		}
		if bytesPerSample == 1 {
			cbPlane[i] = byte(avgU)
			crPlane[i] = byte(avgV)
		} else {
			binary.LittleEndian.PutUint16(cbPlane[i*2:i*2+2], uint16(avgU))
			binary.LittleEndian.PutUint16(crPlane[i*2:i*2+2], uint16(avgV))
		}
	}

	return [][]byte{lumaPlane, cbPlane, crPlane}
}

// yuv420p: chroma subsampled 2x horizontally and vertically, 8-bit.
type yuv420pPacker struct {
	width, height int
	spec          colour.Spec
}

func (p *yuv420pPacker) planar() yuvPlanar {
	return yuvPlanar{width: p.width, height: p.height, chromaW: p.width / 2, chromaH: p.height / 2, bits: 8, spec: p.spec}
}
func (p *yuv420pPacker) NumBytes() []int {
	y := p.planar()
	return []int{y.lumaSamples(), y.chromaSamples(), y.chromaSamples()}
}
func (p *yuv420pPacker) Unpack(planes [][]byte) ([]float32, error) {
	return p.planar().unpack8or16(planes, 1)
}

type yuv420pUnpacker struct {
	width, height int
	spec          colour.Spec
}

func (u *yuv420pUnpacker) planar() yuvPlanar {
	return yuvPlanar{width: u.width, height: u.height, chromaW: u.width / 2, chromaH: u.height / 2, bits: 8, spec: u.spec}
}
func (u *yuv420pUnpacker) NumBytes() []int {
	y := u.planar()
	return []int{y.lumaSamples(), y.chromaSamples(), y.chromaSamples()}
}
func (u *yuv420pUnpacker) Pack(pixels []float32) ([][]byte, error) {
	return u.planar().pack8or16(pixels, 1), nil
}

// yuv422p8: chroma subsampled 2x horizontally only, 8-bit.
type yuv422p8Packer struct {
	width, height int
	spec          colour.Spec
}

func (p *yuv422p8Packer) planar() yuvPlanar {
	return yuvPlanar{width: p.width, height: p.height, chromaW: p.width / 2, chromaH: p.height, bits: 8, spec: p.spec}
}
func (p *yuv422p8Packer) NumBytes() []int {
	y := p.planar()
	return []int{y.lumaSamples(), y.chromaSamples(), y.chromaSamples()}
}
func (p *yuv422p8Packer) Unpack(planes [][]byte) ([]float32, error) {
	return p.planar().unpack8or16(planes, 1)
}

type yuv422p8Unpacker struct {
	width, height int
	spec          colour.Spec
}

func (u *yuv422p8Unpacker) planar() yuvPlanar {
	return yuvPlanar{width: u.width, height: u.height, chromaW: u.width / 2, chromaH: u.height, bits: 8, spec: u.spec}
}
func (u *yuv422p8Unpacker) NumBytes() []int {
	y := u.planar()
	return []int{y.lumaSamples(), y.chromaSamples(), y.chromaSamples()}
}
func (u *yuv422p8Unpacker) Pack(pixels []float32) ([][]byte, error) {
	return u.planar().pack8or16(pixels, 1), nil
}

// yuv422p10: chroma subsampled 2x horizontally only, 10-bit samples
// stored in 16-bit little-endian words. Grounded on format/yuv422p10.rs.
type yuv422p10Packer struct {
	width, height int
	spec          colour.Spec
}

func (p *yuv422p10Packer) planar() yuvPlanar {
	return yuvPlanar{width: p.width, height: p.height, chromaW: p.width / 2, chromaH: p.height, bits: 10, spec: p.spec}
}
func (p *yuv422p10Packer) NumBytes() []int {
	y := p.planar()
	return []int{y.lumaSamples() * 2, y.chromaSamples() * 2, y.chromaSamples() * 2}
}
func (p *yuv422p10Packer) Unpack(planes [][]byte) ([]float32, error) {
	return p.planar().unpack8or16(planes, 2)
}

type yuv422p10Unpacker struct {
	width, height int
	spec          colour.Spec
}

func (u *yuv422p10Unpacker) planar() yuvPlanar {
	return yuvPlanar{width: u.width, height: u.height, chromaW: u.width / 2, chromaH: u.height, bits: 10, spec: u.spec}
}
func (u *yuv422p10Unpacker) NumBytes() []int {
	y := u.planar()
	return []int{y.lumaSamples() * 2, y.chromaSamples() * 2, y.chromaSamples() * 2}
}
func (u *yuv422p10Unpacker) Pack(pixels []float32) ([][]byte, error) {
	return u.planar().pack8or16(pixels, 2), nil
}

func singlePlane(planes [][]byte, want int) ([]byte, error) {
	if len(planes) != 1 {
		return nil, fmt.Errorf("convert: expected 1 plane, got %d", len(planes))
	}
	if len(planes[0]) != want {
		return nil, fmt.Errorf("convert: plane size mismatch: want %d, got %d", want, len(planes[0]))
	}
	return planes[0], nil
}

func clampToByte(v float32) byte {
	scaled := v * 255
	if scaled < 0 {
		return 0
	}
	if scaled > 255 {
		return 255
	}
	return byte(scaled)
}

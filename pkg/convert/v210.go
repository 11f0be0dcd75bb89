package convert

import (
	"encoding/binary"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
)

// v210 packs 6 pixels' worth of 4:2:2 10-bit YCbCr samples (6 Y, 3 Cb, 3
// Cr) into 4 little-endian 32-bit words, 3 ten-bit components per word
// with 2 padding bits, per SMPTE 292M. Grounded on
// original_source/phaneron/src/format/v210.rs's reader/writer pair; the
// bit layout itself follows the public v210 specification the original
// kernel implements in OpenCL.
type v210Packer struct {
	width, height int
	spec          colour.Spec
}

func v210GroupsPerRow(width int) int {
	// v210 requires width to be a multiple of 6; round up the group
	// count for any width, matching typical v210 muxers that pad rows.
	return (width + 5) / 6
}

func (p *v210Packer) NumBytes() []int {
	return []int{v210GroupsPerRow(p.width) * 16 * p.height}
}

func (p *v210Packer) Unpack(planes [][]byte) ([]float32, error) {
	want := p.NumBytes()[0]
	plane, err := singlePlane(planes, want)
	if err != nil {
		return nil, err
	}

	chromaW := (p.width + 1) / 2
	params := ycbcrParamsFor(10)
	m := colour.YCbCrToRGBMatrix(p.spec, params)

	lumaPlane := make([]uint16, p.width*p.height)
	cbPlane := make([]uint16, chromaW*p.height)
	crPlane := make([]uint16, chromaW*p.height)

	groupsPerRow := v210GroupsPerRow(p.width)
	rowBytes := groupsPerRow * 16

	for row := 0; row < p.height; row++ {
		rowOffset := row * rowBytes
		for g := 0; g < groupsPerRow; g++ {
			base := rowOffset + g*16
			w0 := binary.LittleEndian.Uint32(plane[base : base+4])
			w1 := binary.LittleEndian.Uint32(plane[base+4 : base+8])
			w2 := binary.LittleEndian.Uint32(plane[base+8 : base+12])
			w3 := binary.LittleEndian.Uint32(plane[base+12 : base+16])

			cb0 := uint16(w0 & 0x3ff)
			y0 := uint16((w0 >> 10) & 0x3ff)
			cr0 := uint16((w0 >> 20) & 0x3ff)

			y1 := uint16(w1 & 0x3ff)
			cb2 := uint16((w1 >> 10) & 0x3ff)
			y2 := uint16((w1 >> 20) & 0x3ff)

			cr2 := uint16(w2 & 0x3ff)
			y3 := uint16((w2 >> 10) & 0x3ff)
			cb4 := uint16((w2 >> 20) & 0x3ff)

			y4 := uint16(w3 & 0x3ff)
			cr4 := uint16((w3 >> 10) & 0x3ff)
			y5 := uint16((w3 >> 20) & 0x3ff)

			pixBase := g * 6
			ys := [6]uint16{y0, y1, y2, y3, y4, y5}
			for i, yv := range ys {
				col := pixBase + i
				if col >= p.width {
					continue
				}
				lumaPlane[row*p.width+col] = yv
			}
			chromaBase := g * 3
			cbs := [3]uint16{cb0, cb2, cb4}
			crs := [3]uint16{cr0, cr2, cr4}
			for i := 0; i < 3; i++ {
				col := chromaBase + i
				if col >= chromaW {
					continue
				}
				cbPlane[row*chromaW+col] = cbs[i]
				crPlane[row*chromaW+col] = crs[i]
			}
		}
	}

	out := make([]float32, p.width*p.height*4)
	for row := 0; row < p.height; row++ {
		for col := 0; col < p.width; col++ {
			yy := float64(lumaPlane[row*p.width+col])
			chromaCol := col / 2
			cb := float64(cbPlane[row*chromaW+chromaCol])
			cr := float64(crPlane[row*chromaW+chromaCol])

			r := m.At(0, 0)*yy + m.At(1, 0)*cb + m.At(2, 0)*cr + m.At(3, 0)
			g := m.At(0, 1)*yy + m.At(1, 1)*cb + m.At(2, 1)*cr + m.At(3, 1)
			b := m.At(0, 2)*yy + m.At(1, 2)*cb + m.At(2, 2)*cr + m.At(3, 2)

			idx := (row*p.width + col) * 4
			out[idx+0] = float32(r)
			out[idx+1] = float32(g)
			out[idx+2] = float32(b)
			out[idx+3] = 1
		}
	}
	return out, nil
}

type v210Unpacker struct {
	width, height int
	spec          colour.Spec
}

func (u *v210Unpacker) NumBytes() []int {
	return []int{v210GroupsPerRow(u.width) * 16 * u.height}
}

func (u *v210Unpacker) Pack(pixels []float32) ([][]byte, error) {
	chromaW := (u.width + 1) / 2
	params := ycbcrParamsFor(10)
	m := colour.RGBToYCbCrMatrix(u.spec, params)

	clamp10 := func(v float64) uint32 {
		if v < 0 {
			v = 0
		}
		if v > 1023 {
			v = 1023
		}
		return uint32(v)
	}

	lumaPlane := make([]uint32, u.width*u.height)
	cbPlane := make([]uint32, chromaW*u.height)
	crPlane := make([]uint32, chromaW*u.height)
	chromaCount := make([]int, chromaW*u.height)
	chromaAccumCb := make([]float64, chromaW*u.height)
	chromaAccumCr := make([]float64, chromaW*u.height)

	for row := 0; row < u.height; row++ {
		for col := 0; col < u.width; col++ {
			idx := (row*u.width + col) * 4
			r, g, b := float64(pixels[idx]), float64(pixels[idx+1]), float64(pixels[idx+2])
			yy := m.At(0, 0)*r + m.At(1, 0)*g + m.At(2, 0)*b + m.At(3, 0)
			cb := m.At(0, 1)*r + m.At(1, 1)*g + m.At(2, 1)*b + m.At(3, 1)
			cr := m.At(0, 2)*r + m.At(1, 2)*g + m.At(2, 2)*b + m.At(3, 2)

			lumaPlane[row*u.width+col] = clamp10(yy)

			chromaIdx := row*chromaW + col/2
			chromaAccumCb[chromaIdx] += cb
			chromaAccumCr[chromaIdx] += cr
			chromaCount[chromaIdx]++
		}
	}
	for i := range chromaAccumCb {
		cbPlane[i] = clamp10(chromaAccumCb[i] / float64(chromaCount[i]))
		crPlane[i] = clamp10(chromaAccumCr[i] / float64(chromaCount[i]))
	}

	groupsPerRow := v210GroupsPerRow(u.width)
	rowBytes := groupsPerRow * 16
	out := make([]byte, rowBytes*u.height)

	lumaAt := func(row, col int) uint32 {
		if col >= u.width {
			return 0
		}
		return lumaPlane[row*u.width+col]
	}
	chromaAt := func(plane []uint32, row, col int) uint32 {
		if col >= chromaW {
			return 0
		}
		return plane[row*chromaW+col]
	}

	for row := 0; row < u.height; row++ {
		rowOffset := row * rowBytes
		for g := 0; g < groupsPerRow; g++ {
			base := rowOffset + g*16
			pixBase := g * 6
			chromaBase := g * 3

			y0 := lumaAt(row, pixBase)
			y1 := lumaAt(row, pixBase+1)
			y2 := lumaAt(row, pixBase+2)
			y3 := lumaAt(row, pixBase+3)
			y4 := lumaAt(row, pixBase+4)
			y5 := lumaAt(row, pixBase+5)

			cb0 := chromaAt(cbPlane, row, chromaBase)
			cb2 := chromaAt(cbPlane, row, chromaBase+1)
			cb4 := chromaAt(cbPlane, row, chromaBase+2)
			cr0 := chromaAt(crPlane, row, chromaBase)
			cr2 := chromaAt(crPlane, row, chromaBase+1)
			cr4 := chromaAt(crPlane, row, chromaBase+2)

			w0 := cb0 | (y0 << 10) | (cr0 << 20)
			w1 := y1 | (cb2 << 10) | (y2 << 20)
			w2 := cr2 | (y3 << 10) | (cb4 << 20)
			w3 := y4 | (cr4 << 10) | (y5 << 20)

			binary.LittleEndian.PutUint32(out[base:base+4], w0)
			binary.LittleEndian.PutUint32(out[base+4:base+8], w1)
			binary.LittleEndian.PutUint32(out[base+8:base+12], w2)
			binary.LittleEndian.PutUint32(out[base+12:base+16], w3)
		}
	}

	return [][]byte{out}, nil
}

package convert

import (
	"fmt"
	"math"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

// toRGBA implements plugin.ToRGBA: unpack a wire-format buffer into gamma
// RGBA float, linearize it, rotate it into the common BT.709 working
// space, and upload the result as a pooled device image. Grounded on
// original_source/phaneron/src/format.rs's Loader/ToRGBA pairing and
// original_source/phaneron/src/colour.rs's common-space matrices.
type toRGBA struct {
	ctx    *compute.Context
	packer Packer
	toXYZ  []float64 // RGBToCommonSpaceMatrix, flattened by flattenMatrix3
	gamma  []float32 // GammaToLinearLUT
	width  int
	height int
}

// NewToRGBA builds a ToRGBA converter for one wire format, source colour
// spec, and frame size.
func NewToRGBA(ctx *compute.Context, format string, spec colour.Spec, width, height int) (*toRGBA, error) {
	packer, err := NewPacker(format, spec, width, height)
	if err != nil {
		return nil, err
	}
	return &toRGBA{
		ctx:    ctx,
		packer: packer,
		toXYZ:  flattenMatrix3(colour.RGBToCommonSpaceMatrix(spec)),
		gamma:  colour.GammaToLinearLUT(spec),
		width:  width,
		height: height,
	}, nil
}

func (c *toRGBA) Convert(data []byte, width, height int) (*frame.VideoFrame, error) {
	if width != c.width || height != c.height {
		return nil, fmt.Errorf("convert: ToRGBA size mismatch: converter is %dx%d, got %dx%d", c.width, c.height, width, height)
	}

	planeSizes := c.packer.NumBytes()
	planes, err := splitPlanes(data, planeSizes)
	if err != nil {
		return nil, err
	}

	pixels, err := c.packer.Unpack(planes)
	if err != nil {
		return nil, err
	}

	linearizeAndRotate(pixels, c.gamma, c.toXYZ)

	pooled, err := c.ctx.Pool.Acquire(width, height)
	if err != nil {
		return nil, err
	}

	buf, err := c.ctx.Device.AllocateBuffer(len(pixels) * 4)
	if err != nil {
		pooled.Release()
		return nil, err
	}

	raw := floatsToBytes(pixels)
	err = c.ctx.Load(func() error {
		ev, err := c.ctx.Device.LoadHostToBuffer(buf, raw)
		if err != nil {
			return err
		}
		ev.Wait()
		return c.ctx.Device.CopyBufferToImage(buf, pooled.Image)
	})
	if err != nil {
		pooled.Release()
		return nil, err
	}

	return frame.NewVideoFrame(pooled, width, height), nil
}

// fromRGBA implements plugin.FromRGBA: read a common-working-space frame
// back to host memory, rotate it into the destination colour space,
// re-encode gamma, and pack it into the wire format's byte planes.
type fromRGBA struct {
	ctx      *compute.Context
	unpacker Unpacker
	fromXYZ  []float64 // CommonSpaceToRGBMatrix, flattened by flattenMatrix3
	degamma  []float32 // LinearToGammaLUT
	width    int
	height   int
}

// NewFromRGBA builds a FromRGBA converter for one wire format, destination
// colour spec, frame size, and interlace mode.
func NewFromRGBA(ctx *compute.Context, format string, spec colour.Spec, width, height, interlace int) (*fromRGBA, error) {
	unpacker, err := NewUnpacker(format, spec, width, height, interlace)
	if err != nil {
		return nil, err
	}
	return &fromRGBA{
		ctx:      ctx,
		unpacker: unpacker,
		fromXYZ:  flattenMatrix3(colour.CommonSpaceToRGBMatrix(spec)),
		degamma:  colour.LinearToGammaLUT(spec),
		width:    width,
		height:   height,
	}, nil
}

func (c *fromRGBA) Convert(f *frame.VideoFrame, _ plugin.FrameContext) ([]byte, error) {
	if f.Width != c.width || f.Height != c.height {
		return nil, fmt.Errorf("convert: FromRGBA size mismatch: converter is %dx%d, got %dx%d", c.width, c.height, f.Width, f.Height)
	}

	numPixels := c.width * c.height
	raw := make([]byte, numPixels*4*4)

	buf, err := c.ctx.Device.AllocateBuffer(len(raw))
	if err != nil {
		return nil, err
	}

	pooled, ok := f.Image.(*compute.PooledImage)
	if !ok {
		return nil, fmt.Errorf("convert: FromRGBA requires a device-pooled image")
	}

	err = c.ctx.Unload(func() error {
		if err := c.ctx.Device.CopyImageToBuffer(pooled.Image, buf); err != nil {
			return err
		}
		return c.ctx.Device.ReadBufferToHost(buf, raw, nil)
	})
	if err != nil {
		return nil, err
	}

	pixels := bytesToFloats(raw)
	rotateAndGamma(pixels, c.fromXYZ, c.degamma)

	return c.unpacker.Pack(pixels)
}

func splitPlanes(data []byte, sizes []int) ([][]byte, error) {
	planes := make([][]byte, len(sizes))
	offset := 0
	for i, size := range sizes {
		if offset+size > len(data) {
			return nil, fmt.Errorf("convert: wire buffer too short for plane %d: need %d more bytes", i, offset+size-len(data))
		}
		planes[i] = data[offset : offset+size]
		offset += size
	}
	if offset != len(data) {
		return nil, fmt.Errorf("convert: wire buffer has %d trailing bytes beyond declared planes", len(data)-offset)
	}
	return planes, nil
}

// flattenMatrix3 reads the top-left 3x3 of one of pkg/colour's transposed
// (row-vector) matrices into a flat row-major slice in column-vector form,
// out[r*3+c] = m.At(c, r), so the per-pixel hot loops below compute each
// output channel as a dot product with one row and never touch gonum.
func flattenMatrix3(m matrixLike) []float64 {
	out := make([]float64, 9)
	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			out[r*3+col] = m.At(col, r)
		}
	}
	return out
}

// matrixLike is the subset of *mat.Dense flattenMatrix3 needs.
type matrixLike interface {
	At(i, j int) float64
}

// linearizeAndRotate applies a gamma-to-linear LUT to each RGB channel (in
// place) and then rotates every pixel's RGB triple through m (row-major
// 3x3), leaving alpha untouched.
func linearizeAndRotate(pixels []float32, gamma []float32, m []float64) {
	lutMax := float32(len(gamma) - 1)
	for i := 0; i < len(pixels); i += 4 {
		r := lutLookup(gamma, pixels[i+0], lutMax)
		g := lutLookup(gamma, pixels[i+1], lutMax)
		b := lutLookup(gamma, pixels[i+2], lutMax)

		pixels[i+0] = float32(m[0]*float64(r) + m[1]*float64(g) + m[2]*float64(b))
		pixels[i+1] = float32(m[3]*float64(r) + m[4]*float64(g) + m[5]*float64(b))
		pixels[i+2] = float32(m[6]*float64(r) + m[7]*float64(g) + m[8]*float64(b))
	}
}

// rotateAndGamma is linearizeAndRotate's inverse: rotate common-space
// linear RGB through m, then re-encode gamma per channel.
func rotateAndGamma(pixels []float32, m []float64, degamma []float32) {
	lutMax := float32(len(degamma) - 1)
	for i := 0; i < len(pixels); i += 4 {
		r, g, b := pixels[i+0], pixels[i+1], pixels[i+2]

		rr := float32(m[0]*float64(r) + m[1]*float64(g) + m[2]*float64(b))
		gg := float32(m[3]*float64(r) + m[4]*float64(g) + m[5]*float64(b))
		bb := float32(m[6]*float64(r) + m[7]*float64(g) + m[8]*float64(b))

		pixels[i+0] = lutLookup(degamma, rr, lutMax)
		pixels[i+1] = lutLookup(degamma, gg, lutMax)
		pixels[i+2] = lutLookup(degamma, bb, lutMax)
	}
}

// lutLookup clamps v to [0, 1] and looks up the nearest LUT entry.
func lutLookup(lut []float32, v float32, lutMax float32) float32 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	idx := int(v * lutMax)
	return lut[idx]
}

func floatsToBytes(pixels []float32) []byte {
	out := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		bits := math.Float32bits(v)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func bytesToFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}

package demo

import (
	"fmt"
	"math"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
)

// dissolve cross-fades two same-sized video frames by a [0,1] position.
// Grounded on original_source/phaneron-plugin-demo/src/dissolve.rs, whose
// DissolveCl compiles a GPU kernel (shaders/dissolve.cl) that samples both
// inputs and lerps per pixel. pkg/compute's Kernel/EnqueueKernel machinery
// has no way to read an Image's pixels generically (Image only exposes
// Width/Height; only Device.Copy*Buffer can move pixel data), so rather
// than wire a kernel that would only ever work against this module's one
// software Device, this reimplements the same per-pixel lerp directly over
// the load/process/unload buffer round trip pkg/convert already uses for
// ToRGBA/FromRGBA.
type dissolve struct {
	ctx    *compute.Context
	width  int
	height int
}

func newDissolve(ctx *compute.Context, width, height int) *dissolve {
	return &dissolve{ctx: ctx, width: width, height: height}
}

// run blends current and next at position (0 = all current, 1 = all next)
// and returns a freshly pooled output frame. It does not release current
// or next; the caller owns that.
func (d *dissolve) run(current, next *frame.VideoFrame, position float32) (*frame.VideoFrame, error) {
	a, err := d.readPixels(current)
	if err != nil {
		return nil, fmt.Errorf("demo: dissolve failed to read current frame: %w", err)
	}
	b, err := d.readPixels(next)
	if err != nil {
		return nil, fmt.Errorf("demo: dissolve failed to read next frame: %w", err)
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("demo: dissolve input size mismatch: %d vs %d", len(a), len(b))
	}

	out := make([]float32, len(a))
	for i := range out {
		out[i] = a[i]*(1-position) + b[i]*position
	}

	pooled, err := d.ctx.Pool.Acquire(d.width, d.height)
	if err != nil {
		return nil, err
	}

	buf, err := d.ctx.Device.AllocateBuffer(len(out) * 4)
	if err != nil {
		pooled.Release()
		return nil, err
	}

	err = d.ctx.Load(func() error {
		ev, err := d.ctx.Device.LoadHostToBuffer(buf, floatsToBytes(out))
		if err != nil {
			return err
		}
		ev.Wait()
		return d.ctx.Device.CopyBufferToImage(buf, pooled.Image)
	})
	if err != nil {
		pooled.Release()
		return nil, err
	}

	return frame.NewVideoFrame(pooled, d.width, d.height), nil
}

func (d *dissolve) readPixels(f *frame.VideoFrame) ([]float32, error) {
	pooled, ok := f.Image.(*compute.PooledImage)
	if !ok {
		return nil, fmt.Errorf("demo: dissolve requires a device-pooled image")
	}

	raw := make([]byte, f.Width*f.Height*4*4)
	buf, err := d.ctx.Device.AllocateBuffer(len(raw))
	if err != nil {
		return nil, err
	}

	err = d.ctx.Unload(func() error {
		if err := d.ctx.Device.CopyImageToBuffer(pooled.Image, buf); err != nil {
			return err
		}
		return d.ctx.Device.ReadBufferToHost(buf, raw, nil)
	})
	if err != nil {
		return nil, err
	}

	return bytesToFloats(raw), nil
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

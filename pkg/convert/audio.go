package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

// Channel layout constants mirror plugin.AudioChannelLayout's int values
// (Mono=0, StereoLR=1, StereoRL=2). NewToAudioF32/NewFromAudioF32 take
// the layout as a plain int rather than the named type.
const (
	layoutMono     = 0
	layoutStereoLR = 1
	layoutStereoRL = 2
)

func layoutChannels(layout int) (int, error) {
	switch layout {
	case layoutMono:
		return 1, nil
	case layoutStereoLR, layoutStereoRL:
		return 2, nil
	default:
		return 0, fmt.Errorf("convert: unknown audio channel layout %d", layout)
	}
}

// toAudioF32 implements plugin.ToAudioF32: deinterleave a wire-format PCM
// buffer into planar float32, always ordering Buffers as [left, right] (or
// [mono]) regardless of the wire layout, so every downstream node works in
// one canonical channel order. Grounded on
// original_source/phaneron-plugin/src/audio.rs's ToAudioF32 trait.
type toAudioF32 struct {
	bytesPerSample int
	isFloat        bool
	channels       int
	swapStereo     bool
}

// NewToAudioF32 builds a ToAudioF32 converter for one wire sample format
// ("pcm16" or "f32") and channel layout.
func NewToAudioF32(format string, layout int) (*toAudioF32, error) {
	channels, err := layoutChannels(layout)
	if err != nil {
		return nil, err
	}
	bytesPerSample, isFloat, err := audioFormatShape(format)
	if err != nil {
		return nil, err
	}
	return &toAudioF32{
		bytesPerSample: bytesPerSample,
		isFloat:        isFloat,
		channels:       channels,
		swapStereo:     layout == layoutStereoRL,
	}, nil
}

func (c *toAudioF32) Convert(data []byte, samples int) (*frame.AudioFrame, error) {
	want := samples * c.channels * c.bytesPerSample
	if len(data) != want {
		return nil, fmt.Errorf("convert: ToAudioF32 size mismatch: want %d bytes for %d samples, got %d", want, samples, len(data))
	}

	buffers := make([][]float32, c.channels)
	for ch := range buffers {
		buffers[ch] = make([]float32, samples)
	}

	for s := 0; s < samples; s++ {
		for ch := 0; ch < c.channels; ch++ {
			offset := (s*c.channels + ch) * c.bytesPerSample
			v := readSample(data[offset:offset+c.bytesPerSample], c.isFloat)

			dest := ch
			if c.swapStereo && c.channels == 2 {
				dest = 1 - ch
			}
			buffers[dest][s] = v
		}
	}

	return frame.NewAudioFrame(buffers), nil
}

// fromAudioF32 implements plugin.FromAudioF32, interleaving canonical
// planar float32 back into a wire-format buffer in the requested layout's
// channel order.
type fromAudioF32 struct {
	bytesPerSample int
	isFloat        bool
	channels       int
	swapStereo     bool
}

// NewFromAudioF32 builds a FromAudioF32 converter for one wire sample
// format and channel layout.
func NewFromAudioF32(format string, layout int) (*fromAudioF32, error) {
	channels, err := layoutChannels(layout)
	if err != nil {
		return nil, err
	}
	bytesPerSample, isFloat, err := audioFormatShape(format)
	if err != nil {
		return nil, err
	}
	return &fromAudioF32{
		bytesPerSample: bytesPerSample,
		isFloat:        isFloat,
		channels:       channels,
		swapStereo:     layout == layoutStereoRL,
	}, nil
}

func (c *fromAudioF32) Convert(f *frame.AudioFrame, _ plugin.FrameContext) ([]byte, error) {
	if f.Channels() != c.channels {
		return nil, fmt.Errorf("convert: FromAudioF32 channel mismatch: converter wants %d channels, frame has %d", c.channels, f.Channels())
	}
	samples := f.Samples()
	out := make([]byte, samples*c.channels*c.bytesPerSample)

	for s := 0; s < samples; s++ {
		for ch := 0; ch < c.channels; ch++ {
			src := ch
			if c.swapStereo && c.channels == 2 {
				src = 1 - ch
			}
			offset := (s*c.channels + ch) * c.bytesPerSample
			writeSample(out[offset:offset+c.bytesPerSample], f.Buffers[src][s], c.isFloat)
		}
	}

	return out, nil
}

func audioFormatShape(format string) (bytesPerSample int, isFloat bool, err error) {
	switch format {
	case "pcm16":
		return 2, false, nil
	case "f32":
		return 4, true, nil
	default:
		return 0, false, fmt.Errorf("convert: unknown audio format %q", format)
	}
}

func readSample(b []byte, isFloat bool) float32 {
	if isFloat {
		bits := binary.LittleEndian.Uint32(b)
		return math.Float32frombits(bits)
	}
	v := int16(binary.LittleEndian.Uint16(b))
	return float32(v) / 32768
}

func writeSample(b []byte, v float32, isFloat bool) {
	if isFloat {
		binary.LittleEndian.PutUint32(b, math.Float32bits(v))
		return
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	binary.LittleEndian.PutUint16(b, uint16(int16(v*32767)))
}

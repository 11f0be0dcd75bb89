// Package convert implements component I of the Phaneron runtime: the
// conversion boundary between wire pixel/sample formats and the common
// working space every node processes in (BT.709 linear RGBA-float for
// video, planar float32 for audio).
//
// Grounded on original_source/phaneron/src/format.rs and its per-format
// submodules (rgba8.rs, yuv422p10.rs, ...), and on
// original_source/phaneron-plugin/src/audio.rs for the audio side. The
// original splits each conversion into an async load_frame (host-to-device
// upload) and process_frame (kernel run) pair so a GPU pipeline can
// overlap them across frames; this module's Device executes synchronously
// (see pkg/compute's package comment), so ToRGBA/FromRGBA/ToAudioF32/
// FromAudioF32 collapse that into one Convert call without losing any
// observable behavior.
package convert

import "github.com/SuperFlyTV/phaneron/pkg/colour"

// Packer reads one wire-format video frame's byte planes and produces
// gamma-encoded RGBA-float pixels in the frame's own colour space (the
// linearization and the colour matrix multiplication into the common
// working space happen in ToRGBA, not here, matching the original's
// separation between Packer and Loader).
type Packer interface {
	// NumBytes reports the expected size of each input plane, in the
	// order Unpack expects them.
	NumBytes() []int
	// Unpack decodes planes into width*height RGBA float32 pixels
	// (still gamma-encoded; ToRGBA applies the gamma-to-linear LUT).
	Unpack(planes [][]byte) ([]float32, error)
}

// Unpacker is Packer's inverse: it encodes RGBA float32 pixels (already
// gamma-encoded by FromRGBA) back into wire-format byte planes.
type Unpacker interface {
	NumBytes() []int
	Pack(pixels []float32) ([][]byte, error)
}

// NewPacker resolves a Packer by format name, source colour spec (used by
// the chroma-subsampled formats' YCbCr->RGB matrix), and frame dimensions.
func NewPacker(format string, spec colour.Spec, width, height int) (Packer, error) {
	switch format {
	case "rgba8":
		return &rgba8Packer{width: width, height: height}, nil
	case "bgra8":
		return &bgra8Packer{width: width, height: height}, nil
	case "yuv420p":
		return &yuv420pPacker{width: width, height: height, spec: spec}, nil
	case "yuv422p8":
		return &yuv422p8Packer{width: width, height: height, spec: spec}, nil
	case "yuv422p10":
		return &yuv422p10Packer{width: width, height: height, spec: spec}, nil
	case "v210":
		return &v210Packer{width: width, height: height, spec: spec}, nil
	default:
		return nil, errUnknownFormat(format)
	}
}

// NewUnpacker resolves an Unpacker by format name, destination colour
// spec, and frame dimensions. interlace is accepted but not applied to
// the pixel layout: every format is packed as a progressive frame.
func NewUnpacker(format string, spec colour.Spec, width, height int, interlace int) (Unpacker, error) {
	switch format {
	case "rgba8":
		return &rgba8Unpacker{width: width, height: height}, nil
	case "bgra8":
		return &bgra8Unpacker{width: width, height: height}, nil
	case "yuv420p":
		return &yuv420pUnpacker{width: width, height: height, spec: spec}, nil
	case "yuv422p8":
		return &yuv422p8Unpacker{width: width, height: height, spec: spec}, nil
	case "yuv422p10":
		return &yuv422p10Unpacker{width: width, height: height, spec: spec}, nil
	case "v210":
		return &v210Unpacker{width: width, height: height, spec: spec}, nil
	default:
		return nil, errUnknownFormat(format)
	}
}

type errUnknownFormat string

func (e errUnknownFormat) Error() string { return "convert: unknown video format " + string(e) }

// ycbcrParamsFor returns the standard full-range-adjacent quantization
// parameters for an 8- or 10-bit YCbCr plane, matching the constants the
// original's format modules use (luma 16..235 for 8-bit studio range,
// chroma range 224, scaled for bit depth).
func ycbcrParamsFor(bits int) colour.YCbCrParams {
	scale := float64(int(1) << uint(bits-8))
	return colour.YCbCrParams{
		NumberOfBits: bits,
		LumaBlack:    16 * scale,
		LumaWhite:    235 * scale,
		ChromaRange:  224 * scale,
	}
}

// Package frame defines the two frame kinds that move through the
// Phaneron graph: VideoFrame, a handle to a pooled device image, and
// AudioFrame, a set of planar host-memory sample buffers. Both carry an
// identifier distinct from the underlying buffer's identifier, mirroring
// original_source/phaneron/src/compute/video_frame.rs and
// audio_frame.rs, where a VideoFrameId is stamped fresh on every frame
// while the VideoBufferRef it wraps may be the pool's long-lived slot.
package frame

import "github.com/google/uuid"

// VideoFrameID identifies one video frame instance.
type VideoFrameID string

// NewVideoFrameID returns a fresh, globally unique VideoFrameID.
func NewVideoFrameID() VideoFrameID { return VideoFrameID(uuid.NewString()) }

func (id VideoFrameID) String() string { return string(id) }

// AudioFrameID identifies one audio frame instance.
type AudioFrameID string

// NewAudioFrameID returns a fresh, globally unique AudioFrameID.
func NewAudioFrameID() AudioFrameID { return AudioFrameID(uuid.NewString()) }

func (id AudioFrameID) String() string { return string(id) }

// PooledImage is the subset of *compute.PooledImage that the frame package
// depends on; kept as an interface here so frame does not import compute
// directly and the two packages can evolve independently.
type PooledImage interface {
	Retain()
	Release()
}

// VideoFrame is an immutable handle to one video frame's worth of pixels,
// backed by a pooled device image in the common working space (BT.709
// linear RGBA-float, see pkg/colour). A VideoFrame is shared by reference:
// every holder must call Release exactly once, and a holder that hands the
// frame to more than one downstream consumer must Retain first so the
// underlying pooled image is not recycled while still in flight.
type VideoFrame struct {
	ID     VideoFrameID
	Image  PooledImage
	Width  int
	Height int
}

// NewVideoFrame wraps a pooled image as a fresh video frame. The caller
// transfers ownership of one reference to the returned VideoFrame.
func NewVideoFrame(image PooledImage, width, height int) *VideoFrame {
	return &VideoFrame{
		ID:     NewVideoFrameID(),
		Image:  image,
		Width:  width,
		Height: height,
	}
}

// Retain adds one more owner of this frame's underlying image.
func (f *VideoFrame) Retain() {
	f.Image.Retain()
}

// Release drops one owner's reference to this frame's underlying image.
func (f *VideoFrame) Release() {
	f.Image.Release()
}

// AudioFrame is an immutable set of planar float32 sample buffers, one
// buffer per audio channel, all sharing the same sample count. Audio
// frames live entirely in host memory; there is no device-resident pool
// for them, since spec.md's audio path never leaves the CPU.
type AudioFrame struct {
	ID      AudioFrameID
	Buffers [][]float32
}

// NewAudioFrame wraps per-channel sample buffers as a fresh audio frame.
func NewAudioFrame(buffers [][]float32) *AudioFrame {
	return &AudioFrame{
		ID:      NewAudioFrameID(),
		Buffers: buffers,
	}
}

// Channels reports the number of channels in the frame.
func (f *AudioFrame) Channels() int {
	return len(f.Buffers)
}

// Samples reports the number of samples per channel, or 0 for a frame
// with no channels.
func (f *AudioFrame) Samples() int {
	if len(f.Buffers) == 0 {
		return 0
	}
	return len(f.Buffers[0])
}

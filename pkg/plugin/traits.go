// Package plugin defines the ABI surface a Phaneron node implementation is
// built against: the Node a plugin host runs, the NodeContext a node uses
// to declare its ports and request compute helpers, and the frame-handling
// contracts (ProcessFrameContext/FrameContext) the scheduler uses to
// witness a node's processing step.
//
// Grounded on original_source/phaneron-plugin/src/traits.rs. The original
// is a stable-ABI trait-object boundary (abi_stable::sabi_trait) meant to
// let a node live in a separately compiled dynamic library; this module
// never crosses a dynamic-library boundary (that is an explicit
// Non-goal), so the same contract is expressed as plain Go interfaces
// with value semantics instead of trait objects.
package plugin

import (
	"github.com/SuperFlyTV/phaneron/pkg/colour"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
)

// InterlaceMode mirrors the original's InterlaceMode enum.
type InterlaceMode int

const (
	Progressive InterlaceMode = iota
	TopFieldFirst
	BottomFieldFirst
)

// AudioChannelLayout names the per-sample channel arrangement a
// ToAudioF32/FromAudioF32 converter interprets its interleaved samples
// with.
type AudioChannelLayout int

const (
	Mono AudioChannelLayout = iota
	StereoLR
	StereoRL
)

// VideoFormat names a wire pixel format a ToRGBA/FromRGBA converter reads
// or writes. Concrete formats are declared in pkg/convert; this package
// only needs the name to select a reader/writer.
type VideoFormat string

// AudioFormat names a wire sample format (currently only interleaved
// 16-bit PCM and float32 are read by any supplied node).
type AudioFormat string

// VideoFrameWithID pairs a video frame with the ID of the output it
// arrived from, exactly as original_source/phaneron-plugin's
// VideoFrameWithId does; ProcessFrame receives one of these per connected
// video input.
type VideoFrameWithID struct {
	OutputID ids.VideoOutputID
	Frame    *frame.VideoFrame
}

// AudioFrameWithID pairs an audio frame with the ID of the output it
// arrived from.
type AudioFrameWithID struct {
	OutputID ids.AudioOutputID
	Frame    *frame.AudioFrame
}

// VideoOutput is the plugin-facing handle a node uses to publish video
// frames on one of its declared outputs. fc must be the FrameContext
// returned by this tick's ProcessFrameContext.Submit(), the same way
// push_frame takes a &FrameContext in original_source/phaneron-plugin/src
// /traits.rs: a node cannot call Send before Submit because it has no
// FrameContext value to pass until Submit has returned one.
type VideoOutput interface {
	Send(f *frame.VideoFrame, fc FrameContext)
}

// AudioOutput is the plugin-facing handle a node uses to publish audio
// frames on one of its declared outputs; see VideoOutput's fc note.
type AudioOutput interface {
	Send(f *frame.AudioFrame, fc FrameContext)
}

// ToRGBA converts a wire-format video buffer into the common working
// space (BT.709 linear RGBA-float).
type ToRGBA interface {
	Convert(data []byte, width, height int) (*frame.VideoFrame, error)
}

// FromRGBA converts a common-working-space video frame into a wire-format
// buffer. fc proves this tick's processing has already been submitted,
// mirroring FromRGBA::copy_frame's &FrameContext parameter in
// original_source/phaneron-plugin/src/traits.rs ("Required to prove that
// processing has finished") — the GPU readback Convert performs must never
// run before that has happened.
type FromRGBA interface {
	Convert(f *frame.VideoFrame, fc FrameContext) ([]byte, error)
}

// ToAudioF32 converts a wire-format interleaved audio buffer into planar
// float32.
type ToAudioF32 interface {
	Convert(data []byte, samples int) (*frame.AudioFrame, error)
}

// FromAudioF32 converts a planar float32 audio frame into a wire-format
// interleaved buffer; see FromRGBA's fc note — this mirrors
// FromAudioF32::copy_frame's &FrameContext parameter the same way.
type FromAudioF32 interface {
	Convert(f *frame.AudioFrame, fc FrameContext) ([]byte, error)
}

// NodeContext is the interface a Node uses, during construction, to
// declare its ports and obtain the format converters it needs; it offers
// no process-shader constructor. One NodeContext is created per node and
// handed to the node's constructor; it is not used from ProcessFrame.
type NodeContext interface {
	AddAudioInput() ids.AudioInputID
	AddVideoInput() ids.VideoInputID
	AddAudioOutput() AudioOutput
	AddVideoOutput() VideoOutput

	CreateToRGBA(format VideoFormat, spec colour.Spec, width, height int) (ToRGBA, error)
	CreateFromRGBA(format VideoFormat, spec colour.Spec, width, height int, interlace InterlaceMode) (FromRGBA, error)
	CreateToAudioF32(format AudioFormat, layout AudioChannelLayout) (ToAudioF32, error)
	CreateFromAudioF32(format AudioFormat, layout AudioChannelLayout) (FromAudioF32, error)
}

// ProcessFrameContext is handed to Node.ProcessFrame for exactly one
// processing step and must be submitted at most once. Submit is the
// two-phase commit's first phase: it witnesses that the node has finished
// computing its outputs for this tick and returns a FrameContext the node
// may continue to hold (e.g. across an async device readback) without
// being able to submit a second time.
type ProcessFrameContext interface {
	Submit() (FrameContext, error)
}

// FrameContext is the token a node holds after submitting a processing
// step; it carries no behavior in this implementation (neither did the
// original — see FrameContextImpl in node_context.rs), it exists purely as
// a capability proving Submit was called.
type FrameContext interface{}

// Node is a single node's behavior: it receives inputs and black/silence
// substitutes for any disconnected input, produces outputs by sending on
// whatever VideoOutput/AudioOutput handles it created against its
// NodeContext, and witnesses completion through ProcessFrameContext.
type Node interface {
	// ProcessFrame runs one tick of this node's processing. It must call
	// processCtx.Submit() before performing any device work (GPU readback,
	// encode, or output Send) and before returning; the FrameContext Submit
	// returns is the only way to call FromRGBA.Convert, FromAudioF32.Convert,
	// VideoOutput.Send, or AudioOutput.Send for this tick.
	ProcessFrame(
		processCtx ProcessFrameContext,
		videoInputs map[ids.VideoInputID]VideoFrameWithID,
		audioInputs map[ids.AudioInputID]AudioFrameWithID,
		blackFrame VideoFrameWithID,
		silenceFrame AudioFrameWithID,
	)

	// ApplyState attempts to apply a new state string (an opaque,
	// node-defined serialization) and reports whether it was accepted.
	ApplyState(state string) bool
}

// PluginHost constructs nodes by name. A host groups related node
// implementations the way a single compiled plugin did in the original
// dynamic-library design; this module's hosts are in-process Go packages
// instead (pkg/plugin/demo, pkg/plugin/gst, pkg/plugin/webrtc).
type PluginHost interface {
	// Name identifies the host for logging and error messages.
	Name() string
	// NodeKinds lists the node type names this host can construct.
	NodeKinds() []string
	// CreateNode constructs a node of the given kind, wiring it against
	// ctx. config is an opaque, kind-defined initial configuration
	// string (the node's own serialization format, same shape as the
	// state strings ApplyState/StateChanged carry).
	CreateNode(kind string, ctx NodeContext, config string) (Node, error)
}

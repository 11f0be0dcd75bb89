// Package node implements component E of the Phaneron runtime: the
// per-node runtime context the scheduler drives (port bookkeeping,
// connection state, structural events) and the plugin-facing NodeContext
// that lets a Node declare its ports.
//
// Grounded on original_source/phaneron/src/node_context.rs.
package node

import (
	"github.com/SuperFlyTV/phaneron/pkg/channel"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
)

// StateEvent is emitted by the runtime context toward the state registry
// whenever a node's observable structure changes. Mirrors
// node_context.rs's NodeStateEvent enum as a tagged struct; Kind
// discriminates which fields are meaningful.
type StateEvent struct {
	Kind StateEventKind

	NodeID ids.NodeID

	// StateChanged
	State string

	// *Added events
	AudioInputID  ids.AudioInputID
	VideoInputID  ids.VideoInputID
	AudioOutputID ids.AudioOutputID
	VideoOutputID ids.VideoOutputID
}

// StateEventKind discriminates StateEvent.
type StateEventKind int

const (
	StateChanged StateEventKind = iota
	AudioInputAdded
	VideoInputAdded
	AudioOutputAdded
	VideoOutputAdded
)

// Event is emitted by the plugin-facing NodeContext toward the runtime
// context whenever a node declares a new port. Mirrors node_context.rs's
// NodeEvent enum; AudioOutputAdded/VideoOutputAdded additionally carry the
// fan-out channel the port was created with since the runtime context (not
// the plugin) owns subscription bookkeeping.
type Event struct {
	Kind EventKind

	AudioInputID  ids.AudioInputID
	VideoInputID  ids.VideoInputID
	AudioOutputID ids.AudioOutputID
	VideoOutputID ids.VideoOutputID

	AudioChannel *channel.Channel[*frame.AudioFrame]
	VideoChannel *channel.Channel[*frame.VideoFrame]
}

// EventKind discriminates Event.
type EventKind int

const (
	EventAudioInputAdded EventKind = iota
	EventVideoInputAdded
	EventAudioOutputAdded
	EventVideoOutputAdded
)

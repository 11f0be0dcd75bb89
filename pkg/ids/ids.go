// Package ids defines the opaque identifier types shared across the
// Phaneron runtime: graphs, nodes, and the four kinds of input/output port a
// node can declare.
package ids

import "github.com/google/uuid"

// GraphID identifies a graph of connected nodes.
type GraphID string

// NodeID identifies a single node within a graph.
type NodeID string

// VideoInputID identifies one declared video input on a node.
type VideoInputID string

// VideoOutputID identifies one declared video output on a node.
type VideoOutputID string

// AudioInputID identifies one declared audio input on a node.
type AudioInputID string

// AudioOutputID identifies one declared audio output on a node.
type AudioOutputID string

func (id GraphID) String() string       { return string(id) }
func (id NodeID) String() string        { return string(id) }
func (id VideoInputID) String() string  { return string(id) }
func (id VideoOutputID) String() string { return string(id) }
func (id AudioInputID) String() string  { return string(id) }
func (id AudioOutputID) String() string { return string(id) }

// NewGraphID returns a fresh, globally unique GraphID.
func NewGraphID() GraphID { return GraphID(uuid.NewString()) }

// NewNodeID returns a fresh, globally unique NodeID.
func NewNodeID() NodeID { return NodeID(uuid.NewString()) }

// NewVideoInputID returns a fresh, globally unique VideoInputID.
func NewVideoInputID() VideoInputID { return VideoInputID(uuid.NewString()) }

// NewVideoOutputID returns a fresh, globally unique VideoOutputID.
func NewVideoOutputID() VideoOutputID { return VideoOutputID(uuid.NewString()) }

// NewAudioInputID returns a fresh, globally unique AudioInputID.
func NewAudioInputID() AudioInputID { return AudioInputID(uuid.NewString()) }

// NewAudioOutputID returns a fresh, globally unique AudioOutputID.
func NewAudioOutputID() AudioOutputID { return AudioOutputID(uuid.NewString()) }

// NodeIDFrom wraps a caller-supplied string as a NodeID, for callers (such
// as the control plane) that assign their own stable node identifiers.
func NodeIDFrom(s string) NodeID { return NodeID(s) }

// GraphIDFrom wraps a caller-supplied string as a GraphID.
func GraphIDFrom(s string) GraphID { return GraphID(s) }

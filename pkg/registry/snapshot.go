package registry

import "github.com/SuperFlyTV/phaneron/pkg/ids"

// GraphInfo is one graph's entry in a Snapshot.
type GraphInfo struct {
	Name    string       `json:"name"`
	NodeIDs []ids.NodeID `json:"nodes"`
}

// NodeInfo is one node's entry in a Snapshot. Configuration is the opaque
// string a node was created with, if any; State is the last accepted
// apply_state string.
type NodeInfo struct {
	Type          string `json:"type"`
	Name          string `json:"name"`
	State         string `json:"state"`
	Configuration string `json:"configuration,omitempty"`
}

// Snapshot is the broadcastable view of the whole registry, matching
// spec.md §6's "Event snapshot schema". Per §4.G's invariant, Nodes only
// contains entries for which StateChanged has already been observed; a
// node that has not yet applied its initial state is absent from Nodes
// and from the per-node port maps even if add_node has already run,
// though its graph's NodeIDs already lists it.
type Snapshot struct {
	Graphs map[ids.GraphID]GraphInfo `json:"graphs"`
	Nodes  map[ids.NodeID]NodeInfo   `json:"nodes"`

	AudioInputs  map[ids.NodeID][]ids.AudioInputID  `json:"audio_inputs"`
	VideoInputs  map[ids.NodeID][]ids.VideoInputID  `json:"video_inputs"`
	AudioOutputs map[ids.NodeID][]ids.AudioOutputID `json:"audio_outputs"`
	VideoOutputs map[ids.NodeID][]ids.VideoOutputID `json:"video_outputs"`

	VideoConnections map[ids.VideoInputID]ids.VideoOutputID `json:"video_connections"`
	AudioConnections map[ids.AudioInputID]ids.AudioOutputID `json:"audio_connections"`

	ReverseVideoConnections map[ids.VideoOutputID][]ids.VideoInputID `json:"reverse_video_connections"`
	ReverseAudioConnections map[ids.AudioOutputID][]ids.AudioInputID `json:"reverse_audio_connections"`
}

// Snapshot builds the current, immutable broadcast view under the
// registry's lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := Snapshot{
		Graphs:                  make(map[ids.GraphID]GraphInfo, len(r.graphs)),
		Nodes:                   make(map[ids.NodeID]NodeInfo, len(r.nodeStates)),
		AudioInputs:             make(map[ids.NodeID][]ids.AudioInputID),
		VideoInputs:             make(map[ids.NodeID][]ids.VideoInputID),
		AudioOutputs:            make(map[ids.NodeID][]ids.AudioOutputID),
		VideoOutputs:            make(map[ids.NodeID][]ids.VideoOutputID),
		VideoConnections:        make(map[ids.VideoInputID]ids.VideoOutputID, len(r.videoConnections)),
		AudioConnections:        make(map[ids.AudioInputID]ids.AudioOutputID, len(r.audioConnections)),
		ReverseVideoConnections: make(map[ids.VideoOutputID][]ids.VideoInputID),
		ReverseAudioConnections: make(map[ids.AudioOutputID][]ids.AudioInputID),
	}

	for id, g := range r.graphs {
		snap.Graphs[id] = GraphInfo{Name: g.name, NodeIDs: append([]ids.NodeID(nil), g.nodeIDs...)}
	}

	for nodeID, state := range r.nodeStates {
		entry, ok := r.nodes[nodeID]
		if !ok {
			continue
		}
		snap.Nodes[nodeID] = NodeInfo{
			Type:          entry.nodeType,
			Name:          entry.name,
			State:         state,
			Configuration: entry.configuration,
		}
		if v := r.audioInputs[nodeID]; len(v) > 0 {
			snap.AudioInputs[nodeID] = append([]ids.AudioInputID(nil), v...)
		}
		if v := r.videoInputs[nodeID]; len(v) > 0 {
			snap.VideoInputs[nodeID] = append([]ids.VideoInputID(nil), v...)
		}
		if v := r.audioOutputs[nodeID]; len(v) > 0 {
			snap.AudioOutputs[nodeID] = append([]ids.AudioOutputID(nil), v...)
		}
		if v := r.videoOutputs[nodeID]; len(v) > 0 {
			snap.VideoOutputs[nodeID] = append([]ids.VideoOutputID(nil), v...)
		}
	}

	for input, output := range r.videoConnections {
		snap.VideoConnections[input] = output
		snap.ReverseVideoConnections[output] = append(snap.ReverseVideoConnections[output], input)
	}
	for input, output := range r.audioConnections {
		snap.AudioConnections[input] = output
		snap.ReverseAudioConnections[output] = append(snap.ReverseAudioConnections[output], input)
	}

	return snap
}

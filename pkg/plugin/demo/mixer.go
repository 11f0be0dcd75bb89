package demo

import (
	"encoding/json"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

const mixerDefaultInputs = 2

// mixerConfiguration mirrors traditional_mixer_emulator.rs's
// TraditionalMixerEmulatorConfiguration.
type mixerConfiguration struct {
	NumberOfInputs int `json:"numberOfInputs"`
}

// mixerState mirrors TraditionalMixerEmulatorState: which input is live,
// which is queued behind a transition, and the transition itself.
type mixerState struct {
	ActiveInput *string          `json:"activeInput"`
	NextInput   *string          `json:"nextInput"`
	Transition  *mixerTransition `json:"transition"`
}

// mixerTransition mirrors the Mix variant of
// TraditionalMixerEmulatorTransition; it is the only transition kind this
// emulator implements.
type mixerTransition struct {
	Kind     string  `json:"kind"`
	Position float32 `json:"position"`
}

// mixerEmulator emulates a traditional vision-mixer's single-bus output: it
// selects one active input each tick, and dissolves into a queued next
// input when a Mix transition is staged. Grounded on
// original_source/phaneron-plugin-demo/src/traditional_mixer_emulator.rs.
type mixerEmulator struct {
	compute *compute.Context
	output  plugin.VideoOutput
	inputs  []ids.VideoInputID

	state mixerState
	blend *dissolve
}

func newMixerEmulator(computeCtx *compute.Context, ctx plugin.NodeContext, config string) (*mixerEmulator, error) {
	numInputs := mixerDefaultInputs
	if config != "" {
		var c mixerConfiguration
		if err := json.Unmarshal([]byte(config), &c); err == nil && c.NumberOfInputs > 0 {
			numInputs = c.NumberOfInputs
		}
	}

	output := ctx.AddVideoOutput()
	inputs := make([]ids.VideoInputID, numInputs)
	for i := range inputs {
		inputs[i] = ctx.AddVideoInput()
	}

	return &mixerEmulator{
		compute: computeCtx,
		output:  output,
		inputs:  inputs,
	}, nil
}

// ApplyState parses the JSON state string, as the original does
// unconditionally. An empty string is accepted and leaves the state
// unchanged; a string that does not parse as mixerState is rejected.
func (m *mixerEmulator) ApplyState(state string) bool {
	if state == "" {
		return true
	}
	var s mixerState
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return false
	}
	m.state = s
	return true
}

func (m *mixerEmulator) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	videoInputs map[ids.VideoInputID]plugin.VideoFrameWithID,
	_ map[ids.AudioInputID]plugin.AudioFrameWithID,
	blackFrame plugin.VideoFrameWithID,
	_ plugin.AudioFrameWithID,
) {
	active := m.frameFor(m.state.ActiveInput, videoInputs, blackFrame)
	mixing := m.state.Transition != nil && m.state.Transition.Kind == "mix" && m.state.NextInput != nil
	next := blackFrame
	if mixing {
		next = m.frameFor(m.state.NextInput, videoInputs, blackFrame)
	}

	// Input frames that feed neither the active nor the next picture are
	// not forwarded this tick, so their references are dropped here.
	for _, in := range videoInputs {
		if in.Frame != active.Frame && in.Frame != next.Frame {
			in.Frame.Release()
		}
	}

	if !mixing {
		fc, err := processCtx.Submit()
		if err != nil {
			return
		}
		m.output.Send(active.Frame, fc)
		return
	}

	fc, subErr := processCtx.Submit()
	if subErr != nil {
		return
	}

	if m.blend == nil {
		m.blend = newDissolve(m.compute, active.Frame.Width, active.Frame.Height)
	}

	blended, err := m.blend.run(active.Frame, next.Frame, m.state.Transition.Position)
	active.Frame.Release()
	next.Frame.Release()
	if err != nil {
		return
	}
	m.output.Send(blended, fc)
}

// frameFor resolves a configured input ID string to the frame that arrived
// on it this tick, falling back to blackFrame when the input is unset,
// unrecognised, or currently disconnected.
func (m *mixerEmulator) frameFor(
	id *string,
	videoInputs map[ids.VideoInputID]plugin.VideoFrameWithID,
	blackFrame plugin.VideoFrameWithID,
) plugin.VideoFrameWithID {
	if id == nil {
		return blackFrame
	}
	for _, inputID := range m.inputs {
		if string(inputID) != *id {
			continue
		}
		if f, ok := videoInputs[inputID]; ok {
			return f
		}
		break
	}
	return blackFrame
}

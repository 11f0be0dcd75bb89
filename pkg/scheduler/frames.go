package scheduler

import (
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

// staticImage adapts a compute.Image that the scheduler keeps alive for the
// lifetime of the process (the cached black frame) to frame.PooledImage.
// Retain/Release are no-ops: nothing ever recycles a black frame's slot, so
// there is no refcount to track. Grounded on frame.go's own note that
// PooledImage is an interface specifically so alternate implementations
// don't need compute.Context's pool.
type staticImage struct {
	compute.Image
}

func (staticImage) Retain()  {}
func (staticImage) Release() {}

// blackOutputID and silenceOutputID tag substituted frames the way
// node_context.rs's run_node tags them (VideoOutputId::new_from("black"),
// AudioFrameId::new_from("silence")), so a node inspecting
// VideoFrameWithID.OutputID can tell a substitution from a real upstream.
const (
	blackOutputID   ids.VideoOutputID = "black"
	silenceOutputID ids.AudioOutputID = "silence"
)

// defaultBlackWidth/defaultBlackHeight are the black frame's dimensions
// when a node declares video inputs but none has yet delivered a real
// frame this tick, mirroring node_context.rs's run_node initial
// max_width/max_height before any input is folded in.
const (
	defaultBlackWidth  = 256
	defaultBlackHeight = 1
)

// silenceChannels/silenceSamples give the cached silence frame its fixed
// shape: one channel of 48000/25 samples of 0.0, matching run_node's
// AudioFrame::new silence construction (one 25fps frame's worth of
// samples at 48kHz).
const (
	silenceChannels = 1
	silenceSamples  = 48000 / 25
)

func newSilenceFrame() plugin.AudioFrameWithID {
	buffers := make([][]float32, silenceChannels)
	for i := range buffers {
		buffers[i] = make([]float32, silenceSamples)
	}
	return plugin.AudioFrameWithID{
		OutputID: silenceOutputID,
		Frame:    frame.NewAudioFrame(buffers),
	}
}

func (r *Runner) blackFrameFor(width, height int) (plugin.VideoFrameWithID, error) {
	if r.blackFrame.Frame != nil && r.blackWidth >= width && r.blackHeight >= height {
		return r.blackFrame, nil
	}

	img, err := r.compute.BlackImage(width, height)
	if err != nil {
		return plugin.VideoFrameWithID{}, err
	}

	f := plugin.VideoFrameWithID{
		OutputID: blackOutputID,
		Frame:    frame.NewVideoFrame(staticImage{img}, width, height),
	}
	r.blackFrame = f
	r.blackWidth = width
	r.blackHeight = height
	return f, nil
}

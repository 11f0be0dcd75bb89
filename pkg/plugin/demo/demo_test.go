package demo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin/demo"
	"github.com/SuperFlyTV/phaneron/pkg/registry"
)

func newTestRegistry(t *testing.T) (*registry.Registry, *compute.Context) {
	t.Helper()
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	host := demo.NewHost(computeCtx)
	reg, err := registry.New(computeCtx, host)
	require.NoError(t, err)
	return reg, computeCtx
}

func TestColourBarsIntoMixerIntoTurboConsumerRunsEndToEnd(t *testing.T) {
	reg, computeCtx := newTestRegistry(t)
	defer reg.Close()
	defer computeCtx.Close()

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	barsID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, barsID, demo.KindColourBarsProducer, "bars", "ready", `{"width":64,"height":36}`))

	mixerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, mixerID, demo.KindTraditionalMixerEmulator, "mixer", "", `{"numberOfInputs":2}`))

	consumerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, consumerID, demo.KindTurboConsumer, "consumer", "ready", ""))

	defer reg.RemoveNode(barsID)
	defer reg.RemoveNode(mixerID)
	defer reg.RemoveNode(consumerID)

	var barsOutput ids.VideoOutputID
	var mixerInput ids.VideoInputID
	var mixerOutput ids.VideoOutputID
	var consumerInput ids.VideoInputID
	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		outs := snap.VideoOutputs[barsID]
		ins := snap.VideoInputs[mixerID]
		mixOuts := snap.VideoOutputs[mixerID]
		consIns := snap.VideoInputs[consumerID]
		if len(outs) == 0 || len(ins) == 0 || len(mixOuts) == 0 || len(consIns) == 0 {
			return false
		}
		barsOutput, mixerInput, mixerOutput, consumerInput = outs[0], ins[0], mixOuts[0], consIns[0]
		return true
	}, time.Second, 5*time.Millisecond, "every node should have declared its ports")

	require.NoError(t, reg.MakeVideoConnection(barsID, barsOutput, mixerID, mixerInput))
	require.NoError(t, reg.MakeVideoConnection(mixerID, mixerOutput, consumerID, consumerInput))

	state := `{"activeInput":"` + string(mixerInput) + `"}`
	require.NoError(t, reg.SetNodeState(mixerID, state))

	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		return snap.VideoConnections[mixerInput] == barsOutput &&
			snap.VideoConnections[consumerInput] == mixerOutput
	}, time.Second, 5*time.Millisecond, "both connections should appear in the broadcast snapshot")

	// The mixer only ticks once the consumer subscribes to its output; a
	// tick applies the pending state and reports it back in the snapshot.
	require.Eventually(t, func() bool {
		return reg.Snapshot().Nodes[mixerID].State == state
	}, 5*time.Second, 5*time.Millisecond, "the mixer should tick and apply its state")
}

func TestMixerAppliesMixTransitionState(t *testing.T) {
	reg, computeCtx := newTestRegistry(t)
	defer reg.Close()
	defer computeCtx.Close()

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	firstID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, firstID, demo.KindColourBarsProducer, "first", "ready", ""))
	secondID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, secondID, demo.KindColourBarsProducer, "second", "ready", ""))
	mixerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, mixerID, demo.KindTraditionalMixerEmulator, "mixer", "", `{"numberOfInputs":2}`))
	consumerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, consumerID, demo.KindTurboConsumer, "consumer", "ready", ""))

	defer reg.RemoveNode(firstID)
	defer reg.RemoveNode(secondID)
	defer reg.RemoveNode(mixerID)
	defer reg.RemoveNode(consumerID)

	var firstOutput, secondOutput, mixerOutput ids.VideoOutputID
	var mixerInputs []ids.VideoInputID
	var consumerInput ids.VideoInputID
	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		firstOuts := snap.VideoOutputs[firstID]
		secondOuts := snap.VideoOutputs[secondID]
		ins := snap.VideoInputs[mixerID]
		mixOuts := snap.VideoOutputs[mixerID]
		consIns := snap.VideoInputs[consumerID]
		if len(firstOuts) == 0 || len(secondOuts) == 0 || len(ins) < 2 || len(mixOuts) == 0 || len(consIns) == 0 {
			return false
		}
		firstOutput, secondOutput, mixerInputs = firstOuts[0], secondOuts[0], ins
		mixerOutput, consumerInput = mixOuts[0], consIns[0]
		return true
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, reg.MakeVideoConnection(firstID, firstOutput, mixerID, mixerInputs[0]))
	require.NoError(t, reg.MakeVideoConnection(secondID, secondOutput, mixerID, mixerInputs[1]))
	require.NoError(t, reg.MakeVideoConnection(mixerID, mixerOutput, consumerID, consumerInput))

	state := `{"activeInput":"` + string(mixerInputs[0]) + `","nextInput":"` + string(mixerInputs[1]) +
		`","transition":{"kind":"mix","position":0.5}}`
	require.NoError(t, reg.SetNodeState(mixerID, state))

	// ApplyState/ProcessFrame run on the scheduler's own goroutine, so the
	// snapshot is the only externally visible signal: the consumer's
	// subscription lets the mixer tick, and a tick that applies the mix
	// state reports it back as the node's state.
	require.Eventually(t, func() bool {
		return reg.Snapshot().Nodes[mixerID].State == state
	}, 5*time.Second, 5*time.Millisecond)
}

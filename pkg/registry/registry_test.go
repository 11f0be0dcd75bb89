package registry_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
	"github.com/SuperFlyTV/phaneron/pkg/registry"
)

// fakeHost provides two trivial node kinds exercising one declared video
// output and one declared video input, enough to drive a connection
// through the registry end to end.
type fakeHost struct{}

func (fakeHost) Name() string        { return "fake" }
func (fakeHost) NodeKinds() []string { return []string{"producer", "consumer"} }

func (fakeHost) CreateNode(kind string, ctx plugin.NodeContext, _ string) (plugin.Node, error) {
	switch kind {
	case "producer":
		return &fakeProducer{out: ctx.AddVideoOutput()}, nil
	case "consumer":
		ctx.AddVideoInput()
		return &fakeConsumer{}, nil
	default:
		return nil, fmt.Errorf("fakeHost: unknown node kind %s", kind)
	}
}

type fakeProducer struct {
	out plugin.VideoOutput
}

func (n *fakeProducer) ApplyState(string) bool { return true }

func (n *fakeProducer) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	_ map[ids.VideoInputID]plugin.VideoFrameWithID,
	_ map[ids.AudioInputID]plugin.AudioFrameWithID,
	_ plugin.VideoFrameWithID,
	_ plugin.AudioFrameWithID,
) {
	fc, _ := processCtx.Submit()
	n.out.Send(frame.NewVideoFrame(noopImage{}, 1, 1), fc)
}

type fakeConsumer struct{}

func (n *fakeConsumer) ApplyState(string) bool { return true }

func (n *fakeConsumer) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	_ map[ids.VideoInputID]plugin.VideoFrameWithID,
	_ map[ids.AudioInputID]plugin.AudioFrameWithID,
	_ plugin.VideoFrameWithID,
	_ plugin.AudioFrameWithID,
) {
	_, _ = processCtx.Submit()
}

type noopImage struct{}

func (noopImage) Retain()  {}
func (noopImage) Release() {}

func newTestRegistry(t *testing.T) (*registry.Registry, *compute.Context) {
	t.Helper()
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	reg, err := registry.New(computeCtx, fakeHost{})
	require.NoError(t, err)
	return reg, computeCtx
}

func TestAddNodeRejectsMissingGraphAndUnknownType(t *testing.T) {
	reg, computeCtx := newTestRegistry(t)
	defer reg.Close()
	defer computeCtx.Close()

	err := reg.AddNode(ids.NewGraphID(), ids.NewNodeID(), "producer", "p", "init", "")
	require.ErrorIs(t, err, registry.ErrGraphMissing)

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	err = reg.AddNode(graphID, ids.NewNodeID(), "no-such-type", "p", "init", "")
	require.ErrorIs(t, err, registry.ErrUnknownNodeType)
}

func TestMakeVideoConnectionWiresGraphAndAppearsInSnapshot(t *testing.T) {
	reg, computeCtx := newTestRegistry(t)
	defer reg.Close()
	defer computeCtx.Close()

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	producerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, producerID, "producer", "producer", "init", ""))

	consumerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, consumerID, "consumer", "consumer", "init", ""))
	defer reg.RemoveNode(producerID)
	defer reg.RemoveNode(consumerID)

	var outputID ids.VideoOutputID
	var inputID ids.VideoInputID
	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		outs := snap.VideoOutputs[producerID]
		ins := snap.VideoInputs[consumerID]
		if len(outs) == 0 || len(ins) == 0 {
			return false
		}
		outputID, inputID = outs[0], ins[0]
		return true
	}, time.Second, 5*time.Millisecond, "producer output and consumer input should be declared")

	// Wrong output/node combinations are rejected before any wiring happens.
	err := reg.MakeVideoConnection(ids.NewNodeID(), outputID, consumerID, inputID)
	require.ErrorIs(t, err, registry.ErrNodeMissing)

	err = reg.MakeVideoConnection(producerID, ids.NewVideoOutputID(), consumerID, inputID)
	require.ErrorIs(t, err, registry.ErrOutputMissing)

	require.NoError(t, reg.MakeVideoConnection(producerID, outputID, consumerID, inputID))

	err = reg.MakeVideoConnection(producerID, outputID, consumerID, inputID)
	require.ErrorIs(t, err, registry.ErrAlreadyConnected)

	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		return snap.VideoConnections[inputID] == outputID &&
			containsVideoInput(snap.ReverseVideoConnections[outputID], inputID)
	}, time.Second, 5*time.Millisecond, "connection should appear in the broadcast snapshot")
}

func TestConnectReportsTypeMismatch(t *testing.T) {
	reg, computeCtx := newTestRegistry(t)
	defer reg.Close()
	defer computeCtx.Close()

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	producerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, producerID, "producer", "producer", "init", ""))
	consumerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, consumerID, "consumer", "consumer", "init", ""))
	defer reg.RemoveNode(producerID)
	defer reg.RemoveNode(consumerID)

	var outputID ids.VideoOutputID
	var inputID ids.VideoInputID
	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		outs := snap.VideoOutputs[producerID]
		ins := snap.VideoInputs[consumerID]
		if len(outs) == 0 || len(ins) == 0 {
			return false
		}
		outputID, inputID = outs[0], ins[0]
		return true
	}, time.Second, 5*time.Millisecond)

	err := reg.Connect(registry.AudioPort, producerID, string(outputID), consumerID, string(inputID))
	require.True(t, errors.Is(err, registry.ErrTypeMismatch))
}

func TestSubscribeSeedsCurrentSnapshotThenTracksUpdates(t *testing.T) {
	reg, computeCtx := newTestRegistry(t)
	defer reg.Close()
	defer computeCtx.Close()

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	ch, unsubscribe, err := reg.Subscribe()
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case snap := <-ch:
		_, ok := snap.Graphs[graphID]
		require.True(t, ok, "subscribe should be seeded with the current snapshot")
	case <-time.After(time.Second):
		t.Fatal("subscribe did not deliver an initial snapshot")
	}

	producerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, producerID, "producer", "producer", "init", ""))
	defer reg.RemoveNode(producerID)

	require.Eventually(t, func() bool {
		select {
		case snap := <-ch:
			_, ok := snap.Nodes[producerID]
			return ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "subscriber should observe the new node once StateChanged fires")
}

func containsVideoInput(haystack []ids.VideoInputID, needle ids.VideoInputID) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/channel"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/frame"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/node"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
	"github.com/SuperFlyTV/phaneron/pkg/scheduler"
)

// fakeNode is a minimal plugin.Node that records every ProcessFrame call it
// receives onto a channel, and submits exactly once.
type fakeNode struct {
	calls chan fakeCall
}

type fakeCall struct {
	videoInputs  map[ids.VideoInputID]plugin.VideoFrameWithID
	audioInputs  map[ids.AudioInputID]plugin.AudioFrameWithID
	blackFrame   plugin.VideoFrameWithID
	silenceFrame plugin.AudioFrameWithID
}

func newFakeNode() *fakeNode {
	return &fakeNode{calls: make(chan fakeCall, 8)}
}

func (n *fakeNode) ApplyState(state string) bool { return true }

func (n *fakeNode) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	videoInputs map[ids.VideoInputID]plugin.VideoFrameWithID,
	audioInputs map[ids.AudioInputID]plugin.AudioFrameWithID,
	blackFrame plugin.VideoFrameWithID,
	silenceFrame plugin.AudioFrameWithID,
) {
	n.calls <- fakeCall{
		videoInputs:  videoInputs,
		audioInputs:  audioInputs,
		blackFrame:   blackFrame,
		silenceFrame: silenceFrame,
	}
	_, err := processCtx.Submit()
	if err != nil {
		panic(err)
	}
}

func newTestComputeContext() *compute.Context {
	return compute.NewContext(compute.NewSoftwareDevice())
}

// TestRunnerProcessesEveryTickRegardlessOfInputConnectivity exercises
// spec.md §8 scenario 3: a declared video input with no upstream
// connection never gates ProcessFrame, it just never appears in the
// videoInputs map that tick (the node falls back to blackFrame). Once
// connected, the same running node starts seeing the real frames.
func TestRunnerProcessesEveryTickRegardlessOfInputConnectivity(t *testing.T) {
	nodeID := ids.NewNodeID()
	stateEvents := make(chan node.StateEvent, 16)
	runCtx := node.NewRunContext(nodeID, stateEvents)

	videoInputID := ids.NewVideoInputID()
	runCtx.HandleEvent(node.Event{Kind: node.EventVideoInputAdded, VideoInputID: videoInputID})

	impl := newFakeNode()
	events := make(chan node.Event)
	sema := channel.NewSemaphoreProvider()
	computeCtx := newTestComputeContext()
	defer computeCtx.Close()

	runner := scheduler.NewRunner(nodeID, runCtx, impl, computeCtx, sema, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	// Not gated: the declared video input has no upstream connection yet,
	// but ProcessFrame must still run every tick, substituting black frame
	// for the unconnected input.
	select {
	case call := <-impl.calls:
		_, ok := call.videoInputs[videoInputID]
		require.False(t, ok, "an unconnected input must not appear in the videoInputs map")
	case <-time.After(time.Second):
		t.Fatal("process_frame did not run for an unconnected input")
	}

	upstreamOutputID := ids.NewVideoOutputID()
	upstreamChannel := channel.New[*frame.VideoFrame]()
	upstreamProvider := channel.NewSemaphoreProvider()
	sub := upstreamChannel.Subscribe()

	pipe := node.NewPipe(upstreamOutputID, sub)
	require.NoError(t, runCtx.ConnectVideo(videoInputID, upstreamOutputID, pipe))

	pooled, err := computeCtx.Pool.Acquire(4, 2)
	require.NoError(t, err)
	sentFrame := frame.NewVideoFrame(pooled, 4, 2)
	upstreamChannel.Send(upstreamProvider, sentFrame)

	found := false
	deadline := time.After(time.Second)
	for !found {
		select {
		case call := <-impl.calls:
			if got, ok := call.videoInputs[videoInputID]; ok {
				require.Equal(t, upstreamOutputID, got.OutputID)
				require.Equal(t, sentFrame, got.Frame)
				found = true
			}
		case <-deadline:
			t.Fatal("process_frame never observed the frame after the input was connected")
		}
	}
}

func TestRunnerSubstitutesBlackFrameAfterEndOfStream(t *testing.T) {
	nodeID := ids.NewNodeID()
	stateEvents := make(chan node.StateEvent, 16)
	runCtx := node.NewRunContext(nodeID, stateEvents)

	videoInputID := ids.NewVideoInputID()
	runCtx.HandleEvent(node.Event{Kind: node.EventVideoInputAdded, VideoInputID: videoInputID})

	outputID := ids.NewVideoOutputID()
	raw := make(chan channel.Delivery[*frame.VideoFrame])
	close(raw) // upstream gone before ever delivering: immediate end-of-stream

	pipe := node.NewPipe(outputID, raw)
	require.NoError(t, runCtx.ConnectVideo(videoInputID, outputID, pipe))

	impl := newFakeNode()
	events := make(chan node.Event)
	sema := channel.NewSemaphoreProvider()
	computeCtx := newTestComputeContext()
	defer computeCtx.Close()

	runner := scheduler.NewRunner(nodeID, runCtx, impl, computeCtx, sema, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	select {
	case call := <-impl.calls:
		got, ok := call.videoInputs[videoInputID]
		require.False(t, ok, "a disconnected input must not appear in the videoInputs map")
		_ = got
		require.Equal(t, ids.VideoOutputID("black"), call.blackFrame.OutputID)
		require.NotNil(t, call.blackFrame.Frame)
	case <-time.After(time.Second):
		t.Fatal("process_frame did not run after the end-of-stream tick")
	}
}

func TestRunnerDeliversOutputFrameWithDeliverySemaphore(t *testing.T) {
	nodeID := ids.NewNodeID()
	stateEvents := make(chan node.StateEvent, 16)
	runCtx := node.NewRunContext(nodeID, stateEvents)

	events := make(chan node.Event, 4)
	sema := channel.NewSemaphoreProvider()
	computeCtx := newTestComputeContext()
	defer computeCtx.Close()

	ctxImpl := node.NewContextImpl(nodeID, computeCtx, events, sema)

	out := ctxImpl.AddVideoOutput()
	runCtx.HandleEvent(<-events)

	// A subscriber must exist before a tick can pass the output gate.
	outputID := ids.VideoOutputID("")
	for id := range runCtx.Snapshot().VideoOutputs {
		outputID = id
	}
	require.NotEmpty(t, string(outputID))
	downstreamPipe, err := runCtx.GetVideoPipe(outputID)
	require.NoError(t, err)

	impl := &sendingNode{out: out}
	runner := scheduler.NewRunner(nodeID, runCtx, impl, computeCtx, sema, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	value, receivedSema, ok := downstreamPipe.NextFrame()
	require.True(t, ok)
	require.NotNil(t, value)
	require.NotPanics(t, receivedSema.Signal)
}

// sendingNode is a plugin.Node with one declared video output that sends
// one frame per tick, used to exercise the downstream semaphore path.
type sendingNode struct {
	out plugin.VideoOutput
}

func (n *sendingNode) ApplyState(string) bool { return true }

func (n *sendingNode) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	_ map[ids.VideoInputID]plugin.VideoFrameWithID,
	_ map[ids.AudioInputID]plugin.AudioFrameWithID,
	_ plugin.VideoFrameWithID,
	_ plugin.AudioFrameWithID,
) {
	fc, _ := processCtx.Submit()
	n.out.Send(frame.NewVideoFrame(noopImage{}, 1, 1), fc)
}

// noopImage satisfies frame.PooledImage for a frame this test never reads
// pixels from.
type noopImage struct{}

func (noopImage) Retain()  {}
func (noopImage) Release() {}

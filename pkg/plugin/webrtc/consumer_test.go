package webrtc_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin/webrtc"
	"github.com/SuperFlyTV/phaneron/pkg/registry"
)

func TestCreateNodeRejectsUnknownKind(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := webrtc.NewHost(computeCtx, nil)
	_, err := host.CreateNode("not_a_real_kind", nil, "")
	require.Error(t, err)
}

func TestCreateNodeRejectsInvalidJSON(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := webrtc.NewHost(computeCtx, nil)
	_, err := host.CreateNode(webrtc.KindConsumer, nil, `{not valid json`)
	require.Error(t, err)
}

func TestConsumerDeclaresOneVideoAndOneAudioInput(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := webrtc.NewHost(computeCtx, []string{"stun:stun.l.google.com:19302"})
	reg, err := registry.New(computeCtx, host)
	require.NoError(t, err)
	defer reg.Close()

	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "g")

	consumerID := ids.NewNodeID()
	require.NoError(t, reg.AddNode(graphID, consumerID, webrtc.KindConsumer, "consumer", "", `{"streamId":"test"}`))
	defer reg.RemoveNode(consumerID)

	require.Eventually(t, func() bool {
		snap := reg.Snapshot()
		return len(snap.VideoInputs[consumerID]) == 1 && len(snap.AudioInputs[consumerID]) == 1
	}, time.Second, 5*time.Millisecond, "the consumer should declare exactly one video and one audio input")
}

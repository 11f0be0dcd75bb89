package gst_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/plugin/gst"
)

// These exercise newProducer's configuration validation, which runs before
// any GStreamer initialization, so they do not require a GStreamer install
// to pass.

func TestCreateNodeRejectsUnknownKind(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := gst.NewHost(computeCtx)
	_, err := host.CreateNode("not_a_real_kind", nil, "")
	require.Error(t, err)
}

func TestCreateNodeRejectsMissingPipeline(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := gst.NewHost(computeCtx)
	_, err := host.CreateNode(gst.KindProducer, nil, `{"width":640,"height":480}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pipeline")
}

func TestCreateNodeRejectsNonPositiveDimensions(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := gst.NewHost(computeCtx)
	_, err := host.CreateNode(gst.KindProducer, nil, `{"pipeline":"videotestsrc ! appsink name=videosink","width":0,"height":0}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "width/height")
}

func TestCreateNodeRejectsInvalidJSON(t *testing.T) {
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	host := gst.NewHost(computeCtx)
	_, err := host.CreateNode(gst.KindProducer, nil, `{not valid json`)
	require.Error(t, err)
}

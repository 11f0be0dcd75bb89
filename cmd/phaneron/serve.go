package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/config"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
	"github.com/SuperFlyTV/phaneron/pkg/plugin/demo"
	"github.com/SuperFlyTV/phaneron/pkg/plugin/gst"
	"github.com/SuperFlyTV/phaneron/pkg/plugin/webrtc"
	"github.com/SuperFlyTV/phaneron/pkg/registry"
)

var errMissingDefaultGraphPorts = errors.New("phaneron: default graph nodes did not declare the expected ports")

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	setupLogging(cfg.Log.Level)

	if cfg.Compute.Backend != "software" {
		log.Warn().Str("backend", cfg.Compute.Backend).Msg("phaneron: only the software compute backend is implemented; ignoring configured backend")
	}
	computeCtx := compute.NewContext(compute.NewSoftwareDevice())
	defer computeCtx.Close()

	hosts := []plugin.PluginHost{demo.NewHost(computeCtx)}
	if cfg.Plugins.GStreamer.Enabled {
		hosts = append(hosts, gst.NewHost(computeCtx))
		log.Info().Msg("phaneron: gst plugin host enabled")
	}
	if cfg.Plugins.WebRTC.Enabled {
		hosts = append(hosts, webrtc.NewHost(computeCtx, cfg.Plugins.WebRTC.STUNServers))
		log.Info().Strs("stun_servers", cfg.Plugins.WebRTC.STUNServers).Msg("phaneron: webrtc plugin host enabled")
	}

	reg, err := registry.New(computeCtx, hosts...)
	if err != nil {
		return err
	}
	defer reg.Close()

	graphID, nodeIDs, err := buildDefaultGraph(reg)
	if err != nil {
		return err
	}
	log.Info().Str("graph_id", graphID.String()).Int("nodes", len(nodeIDs)).Msg("phaneron: default demo graph running")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("phaneron: shutting down")

	for _, nodeID := range nodeIDs {
		if err := reg.RemoveNode(nodeID); err != nil {
			log.Warn().Err(err).Str("node_id", nodeID.String()).Msg("phaneron: failed to remove node during shutdown")
		}
	}

	return nil
}

// buildDefaultGraph wires colour-bars producer -> traditional mixer
// emulator -> turbo consumer, the three demo.Host node types, so that
// cmd/phaneron serve has something to run by default when no external
// plugin host is configured (SPEC_FULL.md §12).
func buildDefaultGraph(reg *registry.Registry) (ids.GraphID, []ids.NodeID, error) {
	graphID := ids.NewGraphID()
	reg.AddGraph(graphID, "default")

	bars := ids.NewNodeID()
	if err := reg.AddNode(graphID, bars, demo.KindColourBarsProducer, "bars", "", ""); err != nil {
		return graphID, nil, err
	}

	mixer := ids.NewNodeID()
	if err := reg.AddNode(graphID, mixer, demo.KindTraditionalMixerEmulator, "mixer", "", ""); err != nil {
		return graphID, nil, err
	}

	consumer := ids.NewNodeID()
	if err := reg.AddNode(graphID, consumer, demo.KindTurboConsumer, "consumer", "", ""); err != nil {
		return graphID, nil, err
	}

	nodeIDs := []ids.NodeID{bars, mixer, consumer}

	snap := reg.Snapshot()
	barsOutputs := snap.VideoOutputs[bars]
	mixerInputs := snap.VideoInputs[mixer]
	mixerOutputs := snap.VideoOutputs[mixer]
	consumerInputs := snap.VideoInputs[consumer]
	if len(barsOutputs) == 0 || len(mixerInputs) == 0 || len(mixerOutputs) == 0 || len(consumerInputs) == 0 {
		return graphID, nodeIDs, errMissingDefaultGraphPorts
	}

	if err := reg.MakeVideoConnection(bars, barsOutputs[0], mixer, mixerInputs[0]); err != nil {
		return graphID, nodeIDs, err
	}
	if err := reg.MakeVideoConnection(mixer, mixerOutputs[0], consumer, consumerInputs[0]); err != nil {
		return graphID, nodeIDs, err
	}

	active := string(mixerInputs[0])
	if err := reg.SetNodeState(mixer, `{"activeInput":"`+active+`"}`); err != nil {
		return graphID, nodeIDs, err
	}

	return graphID, nodeIDs, nil
}

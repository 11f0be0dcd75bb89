// Package demo implements a small in-process PluginHost exercising the
// runtime end to end without any external device or transport: a static
// colour-bars producer, a mixer emulator with a dissolve transition, and a
// frame-rate-logging consumer.
//
// Grounded on original_source/phaneron-plugin-demo (traditional_mixer_emulator.rs,
// dissolve.rs, turbo_consumer.rs); the colour-bars producer itself has no
// counterpart in that crate's lib.rs node-type list and is a supplemented
// addition (SPEC_FULL.md §12) giving the mixer and consumer something to
// run against by default.
package demo

import (
	"fmt"

	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

const (
	KindColourBarsProducer       = "colour_bars_producer"
	KindTraditionalMixerEmulator = "traditional_mixer_emulator"
	KindTurboConsumer            = "turbo_consumer"
)

// Host is the demo PluginHost. Unlike the original's dynamic-library
// plugin, it is constructed directly with the process's compute.Context
// (rather than only receiving it indirectly per-node through
// plugin.NodeContext), since a Go plugin host is ordinary in-process code
// free to depend on pkg/compute directly; the node/scheduler packages are
// what keep that dependency away from the rest of the runtime.
type Host struct {
	compute *compute.Context
}

// NewHost builds the demo host over a shared compute.Context.
func NewHost(computeCtx *compute.Context) *Host {
	return &Host{compute: computeCtx}
}

func (h *Host) Name() string { return "demo" }

func (h *Host) NodeKinds() []string {
	return []string{KindColourBarsProducer, KindTraditionalMixerEmulator, KindTurboConsumer}
}

func (h *Host) CreateNode(kind string, ctx plugin.NodeContext, config string) (plugin.Node, error) {
	switch kind {
	case KindColourBarsProducer:
		return newColourBarsProducer(h.compute, ctx, config)
	case KindTraditionalMixerEmulator:
		return newMixerEmulator(h.compute, ctx, config)
	case KindTurboConsumer:
		return newTurboConsumer(h.compute, ctx)
	default:
		return nil, fmt.Errorf("demo: unknown node type %q", kind)
	}
}

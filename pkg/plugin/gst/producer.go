// Package gst implements a PluginHost providing a single producer node
// type that pulls raw RGBA frames out of a GStreamer appsink pipeline,
// grounded on the teacher's desktop/gst_pipeline.go (GstPipeline,
// NewSampleFunc callback, watchBus, idempotent Stop via sync.Once).
//
// Unlike the teacher's pipeline, which terminates in an H.264-encoding
// appsink for WebRTC delivery, this producer's pipeline string must end in
// an appsink emitting raw video/x-raw frames in the format ToRGBA was built
// for (see newProducer), since ProcessFrame hands the pulled buffer
// straight to plugin.ToRGBA.Convert.
package gst

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
	"github.com/rs/zerolog/log"

	"github.com/SuperFlyTV/phaneron/pkg/colour"
	"github.com/SuperFlyTV/phaneron/pkg/compute"
	"github.com/SuperFlyTV/phaneron/pkg/ids"
	"github.com/SuperFlyTV/phaneron/pkg/plugin"
)

const KindProducer = "gst_producer"

var initOnce sync.Once

func initGStreamer() {
	initOnce.Do(func() { gst.Init(nil) })
}

// CheckElement reports whether a named GStreamer element factory is
// available, for callers that want to validate a pipeline string's
// elements exist before wiring a node against it.
func CheckElement(element string) bool {
	initGStreamer()
	return gst.Find(element) != nil
}

// Host is the gst PluginHost. Like pkg/plugin/demo's Host, it holds the
// shared compute.Context directly rather than receiving it only through
// plugin.NodeContext.
type Host struct {
	compute *compute.Context
}

func NewHost(computeCtx *compute.Context) *Host {
	return &Host{compute: computeCtx}
}

func (h *Host) Name() string { return "gst" }

func (h *Host) NodeKinds() []string { return []string{KindProducer} }

func (h *Host) CreateNode(kind string, ctx plugin.NodeContext, config string) (plugin.Node, error) {
	if kind != KindProducer {
		return nil, fmt.Errorf("gst: unknown node type %q", kind)
	}
	return newProducer(h.compute, ctx, config)
}

// producerConfiguration names the pipeline string and the raw frame size
// its terminal appsink is configured to emit. The pipeline string must end
// with an element named "videosink" that is (or can be made) an appsink,
// exactly as the teacher's NewGstPipeline doc comment requires.
type producerConfiguration struct {
	Pipeline string `json:"pipeline"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// producer is a plugin.Node that owns one GStreamer pipeline and converts
// every raw frame it pulls into the common working space via ToRGBA.
type producer struct {
	output plugin.VideoOutput
	toRGBA plugin.ToRGBA
	width  int
	height int

	pipeline *gst.Pipeline
	appsink  *app.Sink
	frames   chan []byte
	running  atomic.Bool
	stopOnce sync.Once

	lastFrame []byte
}

func newProducer(computeCtx *compute.Context, ctx plugin.NodeContext, config string) (*producer, error) {
	var cfg producerConfiguration
	if config != "" {
		if err := json.Unmarshal([]byte(config), &cfg); err != nil {
			return nil, fmt.Errorf("gst: invalid producer configuration: %w", err)
		}
	}
	if cfg.Pipeline == "" {
		return nil, fmt.Errorf("gst: producer configuration requires a non-empty pipeline string")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("gst: producer configuration requires positive width/height")
	}

	initGStreamer()

	gstPipeline, err := gst.NewPipelineFromString(cfg.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("gst: failed to parse pipeline: %w", err)
	}
	elem, err := gstPipeline.GetElementByName("videosink")
	if err != nil {
		gstPipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("gst: pipeline has no videosink element: %w", err)
	}
	appsink := app.SinkFromElement(elem)
	if appsink == nil {
		gstPipeline.SetState(gst.StateNull)
		return nil, fmt.Errorf("gst: videosink element is not an appsink")
	}

	toRGBA, err := ctx.CreateToRGBA(plugin.VideoFormat("rgba8"), colour.BT709, cfg.Width, cfg.Height)
	if err != nil {
		gstPipeline.SetState(gst.StateNull)
		return nil, err
	}

	p := &producer{
		output:   ctx.AddVideoOutput(),
		toRGBA:   toRGBA,
		width:    cfg.Width,
		height:   cfg.Height,
		pipeline: gstPipeline,
		appsink:  appsink,
		frames:   make(chan []byte, 4),
	}

	appsink.SetProperty("emit-signals", true)
	appsink.SetProperty("max-buffers", uint(2))
	appsink.SetProperty("drop", true)
	appsink.SetProperty("sync", false)
	appsink.SetCallbacks(&app.SinkCallbacks{NewSampleFunc: p.onNewSample})

	if err := gstPipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("gst: failed to set pipeline to playing: %w", err)
	}
	p.running.Store(true)
	go p.watchBus()

	return p, nil
}

func (p *producer) onNewSample(sink *app.Sink) gst.FlowReturn {
	if !p.running.Load() {
		return gst.FlowEOS
	}
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return gst.FlowOK
	}
	defer buffer.Unmap()

	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())

	select {
	case p.frames <- data:
	default:
		// Drop: ProcessFrame re-uses the previous frame this tick, matching
		// the teacher's low-latency drop-on-full-channel preference.
	}
	return gst.FlowOK
}

func (p *producer) watchBus() {
	bus := p.pipeline.GetPipelineBus()
	if bus == nil {
		return
	}
	for p.running.Load() {
		msg := bus.TimedPop(gst.ClockTime(100 * time.Millisecond))
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			p.Close()
			return
		case gst.MessageError:
			if gerr := msg.ParseError(); gerr != nil {
				log.Error().Err(gerr).Msg("gst: pipeline error")
			}
			p.Close()
			return
		case gst.MessageWarning:
			if gwarn := msg.ParseWarning(); gwarn != nil {
				log.Warn().Err(gwarn).Msg("gst: pipeline warning")
			}
		}
	}
}

// Close idempotently stops the pipeline and closes its frame channel. The
// scheduler does not call this directly; a gst-backed graph's caller should
// call it once the owning node is removed from the registry, alongside the
// registry's own RunContext.CloseOutputs.
func (p *producer) Close() {
	p.stopOnce.Do(func() {
		p.running.Store(false)
		p.pipeline.SetState(gst.StateNull)
		close(p.frames)
	})
}

func (p *producer) ApplyState(string) bool { return true }

func (p *producer) ProcessFrame(
	processCtx plugin.ProcessFrameContext,
	_ map[ids.VideoInputID]plugin.VideoFrameWithID,
	_ map[ids.AudioInputID]plugin.AudioFrameWithID,
	_ plugin.VideoFrameWithID,
	_ plugin.AudioFrameWithID,
) {
	select {
	case raw, ok := <-p.frames:
		if ok {
			p.lastFrame = raw
		}
	default:
	}

	fc, err := processCtx.Submit()
	if err != nil {
		return
	}
	if p.lastFrame == nil {
		return
	}

	f, err := p.toRGBA.Convert(p.lastFrame, p.width, p.height)
	if err != nil {
		log.Error().Err(err).Msg("gst: frame conversion failed")
		return
	}
	p.output.Send(f, fc)
}
